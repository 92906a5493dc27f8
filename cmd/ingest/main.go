package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/joho/godotenv"

	"github.com/nurhq/nur/internal/config"
	"github.com/nurhq/nur/pkg/embeddings"
	"github.com/nurhq/nur/pkg/retrieval"
	"github.com/nurhq/nur/pkg/wiki"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var spaceKeys string
	flag.StringVar(&spaceKeys, "spaces", "", "comma-separated wiki space keys to ingest (default: all)")
	flag.Parse()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateWiki(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	embedder := embeddings.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel)
	retriever, err := retrieval.NewWeaviateRetriever(
		cfg.WeaviateScheme, cfg.WeaviateHost, cfg.WeaviateAPIKey,
		embedder, cfg.RetrievalLimit,
	)
	if err != nil {
		log.Fatalf("Failed to create retriever: %v", err)
	}
	if err := retriever.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize vector schema: %v", err)
	}

	wikiClient := wiki.NewClient(cfg.WikiBaseURL, cfg.WikiUsername, cfg.WikiAPIToken)

	keys := splitKeys(spaceKeys)
	if len(keys) == 0 {
		spaces, err := wikiClient.Spaces(ctx)
		if err != nil {
			log.Fatalf("Failed to list wiki spaces: %v", err)
		}
		for _, s := range spaces {
			keys = append(keys, s.Key)
		}
	}

	var stored, failed int
	for _, key := range keys {
		pages, err := wikiClient.Pages(ctx, key)
		if err != nil {
			log.Printf("Failed to fetch pages for space %s: %v", key, err)
			continue
		}
		log.Printf("Space %s: %d pages", key, len(pages))

		for _, p := range pages {
			if strings.TrimSpace(p.Body) == "" {
				continue
			}

			vec, err := embedder.Embed(ctx, p.Title+"\n"+p.Body)
			if err != nil {
				log.Printf("Failed to embed page %s: %v", p.ID, err)
				failed++
				continue
			}

			page := retrieval.Page{
				PageID:    p.ID,
				SpaceKey:  key,
				Title:     p.Title,
				Author:    p.Author,
				Content:   p.Body,
				CreatedAt: p.Created,
				UpdatedAt: p.Updated,
				Embedding: vec,
			}
			if err := retriever.StorePage(ctx, page); err != nil {
				log.Printf("Failed to store page %s: %v", p.ID, err)
				failed++
				continue
			}
			stored++
		}
	}

	log.Printf("Ingestion complete: %d pages stored, %d failed", stored, failed)
}

func splitKeys(s string) []string {
	if s == "" {
		return nil
	}

	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
