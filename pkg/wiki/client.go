package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to a Confluence-compatible wiki over its REST API.
type Client struct {
	baseURL    string
	username   string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a wiki client using basic auth with an API token.
func NewClient(baseURL, username, apiToken string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Space is one wiki space.
type Space struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Page is one wiki page with its body rendered as storage text.
type Page struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Author  string    `json:"author"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

type spaceListResponse struct {
	Results []struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"results"`
	Size int `json:"size"`
}

type pageListResponse struct {
	Results []pageResult `json:"results"`
	Size    int          `json:"size"`
}

type pageResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	History struct {
		CreatedDate time.Time `json:"createdDate"`
		CreatedBy   struct {
			DisplayName string `json:"displayName"`
		} `json:"createdBy"`
	} `json:"history"`
	Version struct {
		When time.Time `json:"when"`
	} `json:"version"`
}

// Spaces returns every space in the wiki, paging through the API.
func (c *Client) Spaces(ctx context.Context) ([]Space, error) {
	var all []Space
	start := 0
	const limit = 50

	for {
		var resp spaceListResponse
		query := url.Values{
			"start": {strconv.Itoa(start)},
			"limit": {strconv.Itoa(limit)},
		}
		if err := c.get(ctx, "/rest/api/space", query, &resp); err != nil {
			return nil, fmt.Errorf("failed to list spaces: %w", err)
		}
		if len(resp.Results) == 0 {
			break
		}

		for _, s := range resp.Results {
			all = append(all, Space{Key: s.Key, Name: s.Name})
		}
		start += len(resp.Results)
	}

	return all, nil
}

// Pages returns every page in a space with its body, paging through the API.
func (c *Client) Pages(ctx context.Context, spaceKey string) ([]Page, error) {
	var all []Page
	start := 0
	const limit = 50

	for {
		var resp pageListResponse
		query := url.Values{
			"spaceKey": {spaceKey},
			"type":     {"page"},
			"start":    {strconv.Itoa(start)},
			"limit":    {strconv.Itoa(limit)},
			"expand":   {"body.storage,history,version"},
		}
		if err := c.get(ctx, "/rest/api/content", query, &resp); err != nil {
			return nil, fmt.Errorf("failed to list pages in %s: %w", spaceKey, err)
		}
		if len(resp.Results) == 0 {
			break
		}

		for _, p := range resp.Results {
			all = append(all, Page{
				ID:      p.ID,
				Title:   p.Title,
				Author:  p.History.CreatedBy.DisplayName,
				Body:    p.Body.Storage.Value,
				Created: p.History.CreatedDate,
				Updated: p.Version.When,
			})
		}
		start += len(resp.Results)
	}

	return all, nil
}

// get performs an authenticated GET against a REST path.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.SetBasicAuth(c.username, c.apiToken)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
