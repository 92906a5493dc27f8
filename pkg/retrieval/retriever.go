package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/nurhq/nur/pkg/embeddings"
)

// wikiPageClass is the Weaviate class holding indexed wiki pages.
const wikiPageClass = "WikiPage"

// Retriever maps a free-text query to an ordered list of relevant document
// identifiers. An empty list is a valid result.
type Retriever interface {
	RetrieveRelevant(ctx context.Context, query string) ([]string, error)
}

// Page is one wiki page stored in the vector index.
type Page struct {
	PageID    string
	SpaceKey  string
	Title     string
	Author    string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
	Embedding []float32
}

// WeaviateRetriever implements Retriever backed by a Weaviate instance.
type WeaviateRetriever struct {
	client   *weaviate.Client
	embedder embeddings.Embedder
	limit    int
}

// NewWeaviateRetriever creates a retriever against the given Weaviate host.
// limit caps the number of page ids returned per query.
func NewWeaviateRetriever(scheme, host, apiKey string, embedder embeddings.Embedder, limit int) (*WeaviateRetriever, error) {
	if host == "" {
		return nil, fmt.Errorf("weaviate host cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	cfg := weaviate.Config{
		Scheme: scheme,
		Host:   host,
	}
	if apiKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: apiKey}
	}

	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	return &WeaviateRetriever{
		client:   client,
		embedder: embedder,
		limit:    limit,
	}, nil
}

// Initialize creates the WikiPage class if it does not exist yet.
func (r *WeaviateRetriever) Initialize(ctx context.Context) error {
	exists, err := r.client.Schema().ClassExistenceChecker().
		WithClassName(wikiPageClass).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check class existence: %w", err)
	}
	if exists {
		return nil
	}

	classObj := &models.Class{
		Class:       wikiPageClass,
		Description: "An indexed wiki page",
		Properties: []*models.Property{
			{
				Name:        "pageId",
				DataType:    []string{"string"},
				Description: "The page id in the wiki",
			},
			{
				Name:        "spaceKey",
				DataType:    []string{"string"},
				Description: "The wiki space the page belongs to",
			},
			{
				Name:        "title",
				DataType:    []string{"string"},
				Description: "The page title",
			},
			{
				Name:        "author",
				DataType:    []string{"string"},
				Description: "The page author",
			},
			{
				Name:        "content",
				DataType:    []string{"text"},
				Description: "The page body text",
			},
			{
				Name:        "createdAt",
				DataType:    []string{"date"},
				Description: "When the page was created",
			},
			{
				Name:        "updatedAt",
				DataType:    []string{"date"},
				Description: "When the page was last updated",
			},
		},
		VectorIndexType: "hnsw",
		VectorIndexConfig: map[string]interface{}{
			"distance": "cosine",
		},
	}

	if err := r.client.Schema().ClassCreator().WithClass(classObj).Do(ctx); err != nil {
		return fmt.Errorf("failed to create class schema: %w", err)
	}

	return nil
}

// StorePage upserts a page and its embedding into the index.
func (r *WeaviateRetriever) StorePage(ctx context.Context, page Page) error {
	dataObj := map[string]interface{}{
		"pageId":    page.PageID,
		"spaceKey":  page.SpaceKey,
		"title":     page.Title,
		"author":    page.Author,
		"content":   page.Content,
		"createdAt": page.CreatedAt,
		"updatedAt": page.UpdatedAt,
	}

	_, err := r.client.Data().Creator().
		WithClassName(wikiPageClass).
		WithProperties(dataObj).
		WithVector(page.Embedding).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to store page %s: %w", page.PageID, err)
	}

	return nil
}

// RetrieveRelevant embeds the query and returns the page ids of the nearest
// pages, best match first.
func (r *WeaviateRetriever) RetrieveRelevant(ctx context.Context, query string) ([]string, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	result, err := r.client.GraphQL().Get().
		WithClassName(wikiPageClass).
		WithFields(
			graphql.Field{Name: "pageId"},
			graphql.Field{Name: "_additional", Fields: []graphql.Field{
				{Name: "distance"},
			}},
		).
		WithNearVector(r.client.GraphQL().NearVectorArgBuilder().
			WithVector(vec)).
		WithLimit(r.limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search pages: %w", err)
	}

	return parsePageIDs(result)
}

// parsePageIDs extracts ordered page ids from a GraphQL Get response.
func parsePageIDs(result *models.GraphQLResponse) ([]string, error) {
	if result == nil {
		return nil, fmt.Errorf("nil graphql response")
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", result.Errors[0].Message)
	}

	get, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return []string{}, nil
	}
	objects, ok := get[wikiPageClass].([]interface{})
	if !ok {
		return []string{}, nil
	}

	ids := make([]string, 0, len(objects))
	for _, obj := range objects {
		props, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := props["pageId"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}

	return ids, nil
}
