package deckstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/deckgest/internal/cards"
	"github.com/dgallion1/deckgest/internal/doctree"
	"github.com/dgallion1/deckgest/internal/extract"
)

// fakePathstore is a minimal in-memory KV server speaking the pathstore API.
type fakePathstore struct {
	mu    sync.Mutex
	nodes map[string]json.RawMessage
	auth  []string
}

func newFakePathstore() *fakePathstore {
	return &fakePathstore{nodes: make(map[string]json.RawMessage)}
}

func (f *fakePathstore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	key := strings.TrimPrefix(r.URL.Path, "/kv/")
	switch {
	case r.Method == http.MethodPut:
		var req NodeRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		raw, _ := json.Marshal(req.Value)
		f.nodes[key] = raw
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodGet && strings.HasSuffix(key, "/*"):
		prefix := strings.TrimSuffix(key, "*")
		var keys []string
		for k := range f.nodes {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		nodes := make([]Node, 0, len(keys))
		for _, k := range keys {
			nodes = append(nodes, Node{Key: k, Value: f.nodes[k]})
		}
		json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
	case r.Method == http.MethodGet:
		v, ok := f.nodes[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(Node{Key: key, Value: v})
	case r.Method == http.MethodDelete:
		delete(f.nodes, key)
		if r.URL.Query().Get("children") == "true" {
			for k := range f.nodes {
				if strings.HasPrefix(k, key+"/") {
					delete(f.nodes, k)
				}
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakePathstore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[key]
	return ok
}

func sampleDeck() Deck {
	return Deck{
		Meta: Meta{
			DocID:       "doc-1",
			UserID:      "u1",
			Filename:    "bio.md",
			Title:       "Biology",
			ContentHash: "abc123",
			Chapters:    1,
			Knowledge:   1,
			Cards:       2,
			CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		Chapters: ChaptersOf([]doctree.ExtractedChapter{{
			ID: "ch-0", Title: "Cells", Level: 1, PageStart: 1, PageEnd: 2,
			ContentBlocks: []doctree.TextBlock{{Text: "a"}, {Text: "b"}},
		}}),
		Knowledge: []extract.Knowledge{{ID: "k1", Text: "A cell is a unit.", Kind: extract.KindDefinition, Confidence: 0.8}},
		Cards: []cards.Card{
			{ID: "c1", Type: cards.TypeQA, Front: "What is a cell?", Back: "A unit.", Difficulty: 1.5},
			{ID: "c2", Type: cards.TypeCloze, Front: "A [1] is a unit.", Back: "A cell is a unit.", Difficulty: 2},
		},
	}
}

func TestClient_SaveDeckWritesLayout(t *testing.T) {
	fake := newFakePathstore()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := NewClient(srv.URL, "secret", 2)

	if err := c.SaveDeck(context.Background(), sampleDeck()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{
		"decks/users/u1/documents/doc-1/meta",
		"decks/users/u1/documents/doc-1/chapters/ch-0",
		"decks/users/u1/documents/doc-1/knowledge/k1",
		"decks/users/u1/documents/doc-1/cards/c1",
		"decks/users/u1/documents/doc-1/cards/c2",
		"decks/users/u1/by_hash/abc123/doc-1",
	} {
		if !fake.has(key) {
			t.Errorf("expected key %q to be written", key)
		}
	}
	for _, a := range fake.auth {
		if a != "Bearer secret" {
			t.Fatalf("expected bearer auth, got %q", a)
		}
	}
}

func TestClient_FindListDelete(t *testing.T) {
	fake := newFakePathstore()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := NewClient(srv.URL, "secret", 0)
	ctx := context.Background()

	if id, err := c.FindByHash(ctx, "u1", "abc123"); err != nil || id != "" {
		t.Fatalf("expected no match before save, got %q, %v", id, err)
	}
	if err := c.SaveDeck(ctx, sampleDeck()); err != nil {
		t.Fatalf("save: %v", err)
	}

	id, err := c.FindByHash(ctx, "u1", "abc123")
	if err != nil || id != "doc-1" {
		t.Fatalf("expected doc-1, got %q, %v", id, err)
	}

	decks, err := c.ListDecks(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(decks) != 1 || decks[0].Title != "Biology" || decks[0].Cards != 2 {
		t.Fatalf("unexpected decks %+v", decks)
	}

	if err := c.DeleteDeck(ctx, "u1", "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if fake.has("decks/users/u1/documents/doc-1/cards/c1") {
		t.Error("expected cards to be deleted")
	}
	if id, _ := c.FindByHash(ctx, "u1", "abc123"); id != "" {
		t.Errorf("expected hash index removed, got %q", id)
	}
	if err := c.DeleteDeck(ctx, "u1", "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "k", 1)

	err := c.SaveDeck(context.Background(), sampleDeck())
	if err == nil || !strings.Contains(err.Error(), "status 500") {
		t.Fatalf("expected status error, got %v", err)
	}
	if _, err := c.ListDecks(context.Background(), "u1"); err == nil {
		t.Fatal("expected list error")
	}
}

func TestMemory_RoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	deck := sampleDeck()

	if err := m.SaveDeck(ctx, deck); err != nil {
		t.Fatalf("save: %v", err)
	}
	if id, _ := m.FindByHash(ctx, "u1", "abc123"); id != "doc-1" {
		t.Errorf("expected doc-1, got %q", id)
	}
	if id, _ := m.FindByHash(ctx, "u2", "abc123"); id != "" {
		t.Errorf("hash index must be per user, got %q", id)
	}
	got, ok := m.Deck("u1", "doc-1")
	if !ok || len(got.Cards) != 2 {
		t.Fatalf("expected stored deck, got %+v", got)
	}
	list, _ := m.ListDecks(ctx, "u1")
	if len(list) != 1 {
		t.Fatalf("expected 1 deck, got %d", len(list))
	}
	if err := m.DeleteDeck(ctx, "u1", "doc-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.DeleteDeck(ctx, "u1", "doc-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLastSegment(t *testing.T) {
	tests := map[string]string{
		"decks/users/u/by_hash/h/doc-9": "doc-9",
		"decks.users.u.by_hash.h.doc-9": "doc-9",
		"plain":                         "plain",
	}
	for in, want := range tests {
		if got := lastSegment(in); got != want {
			t.Errorf("lastSegment(%q) = %q, want %q", in, got, want)
		}
	}
}
