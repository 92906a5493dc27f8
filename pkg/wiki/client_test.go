package wiki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func TestSpacesPagination(t *testing.T) {
	// Two pages of results, then an empty page terminating the loop.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/space" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if user, _, ok := r.BasicAuth(); !ok || user != "bot@example.com" {
			t.Error("Expected basic auth with the configured username")
		}

		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		switch start {
		case 0:
			fmt.Fprint(w, `{"results":[{"key":"ENG","name":"Engineering"},{"key":"OPS","name":"Operations"}],"size":2}`)
		case 2:
			fmt.Fprint(w, `{"results":[{"key":"HR","name":"People"}],"size":1}`)
		default:
			fmt.Fprint(w, `{"results":[],"size":0}`)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, "bot@example.com", "token")

	spaces, err := c.Spaces(context.Background())
	if err != nil {
		t.Fatalf("Spaces failed: %v", err)
	}

	if len(spaces) != 3 {
		t.Fatalf("Expected 3 spaces, got %d", len(spaces))
	}
	if spaces[0].Key != "ENG" || spaces[2].Key != "HR" {
		t.Errorf("Unexpected spaces: %+v", spaces)
	}
}

func TestPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("spaceKey") != "ENG" {
			t.Errorf("spaceKey = %q", q.Get("spaceKey"))
		}
		if q.Get("expand") != "body.storage,history,version" {
			t.Errorf("expand = %q", q.Get("expand"))
		}

		if q.Get("start") != "0" {
			fmt.Fprint(w, `{"results":[],"size":0}`)
			return
		}
		fmt.Fprint(w, `{
			"results": [{
				"id": "p1",
				"title": "Onboarding",
				"body": {"storage": {"value": "Welcome aboard"}},
				"history": {
					"createdDate": "2024-01-02T03:04:05.000Z",
					"createdBy": {"displayName": "Alex"}
				},
				"version": {"when": "2024-02-03T04:05:06.000Z"}
			}],
			"size": 1
		}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "bot@example.com", "token")

	pages, err := c.Pages(context.Background(), "ENG")
	if err != nil {
		t.Fatalf("Pages failed: %v", err)
	}

	if len(pages) != 1 {
		t.Fatalf("Expected 1 page, got %d", len(pages))
	}
	p := pages[0]
	if p.ID != "p1" || p.Title != "Onboarding" || p.Body != "Welcome aboard" || p.Author != "Alex" {
		t.Errorf("Unexpected page: %+v", p)
	}
	if p.Created.IsZero() || p.Updated.IsZero() {
		t.Error("Expected created and updated timestamps")
	}
}

func TestPagesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such space", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL, "bot@example.com", "token")

	if _, err := c.Pages(context.Background(), "NOPE"); err == nil {
		t.Error("Expected error for non-200 status")
	}
}
