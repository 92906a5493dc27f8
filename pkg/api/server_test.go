package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nurhq/nur/pkg/store"
)

type fakeInteractionStore struct {
	interactions map[string]store.Interaction
}

func (f *fakeInteractionStore) Create(ctx context.Context, in store.Interaction) error {
	f.interactions[in.ThreadID] = in
	return nil
}

func (f *fakeInteractionStore) GetByThreadID(ctx context.Context, threadID string) (*store.Interaction, error) {
	in, ok := f.interactions[threadID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &in, nil
}

func (f *fakeInteractionStore) AppendComment(ctx context.Context, threadID string, c store.Comment) error {
	return nil
}

func (f *fakeInteractionStore) List(ctx context.Context) ([]store.Interaction, error) {
	var out []store.Interaction
	for _, in := range f.interactions {
		out = append(out, in)
	}
	return out, nil
}

func newTestServer() (*fakeInteractionStore, http.Handler) {
	fs := &fakeInteractionStore{interactions: make(map[string]store.Interaction)}
	return fs, NewServer(fs).Router()
}

func TestHealth(t *testing.T) {
	_, router := newTestServer()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestListInteractions(t *testing.T) {
	fs, router := newTestServer()
	fs.interactions["1.1"] = store.Interaction{ThreadID: "1.1", QuestionText: "What is X?"}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/interactions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got []store.Interaction
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if len(got) != 1 || got[0].ThreadID != "1.1" {
		t.Errorf("Unexpected interactions: %+v", got)
	}
}

func TestListInteractionsEmpty(t *testing.T) {
	_, router := newTestServer()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/interactions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// Empty list must encode as [], not null.
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("body = %q", body)
	}
}

func TestGetInteraction(t *testing.T) {
	fs, router := newTestServer()
	fs.interactions["1.1"] = store.Interaction{ThreadID: "1.1", AnswerText: "X is Y"}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/interactions/1.1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var got store.Interaction
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if got.AnswerText != "X is Y" {
		t.Errorf("AnswerText = %q", got.AnswerText)
	}
}

func TestGetInteractionNotFound(t *testing.T) {
	_, router := newTestServer()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/interactions/9.9", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, router := newTestServer()

	for _, path := range []string{"/api/v1/interactions", "/api/v1/interactions/1.1"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s: status = %d, want 405", path, rec.Code)
		}
	}
}
