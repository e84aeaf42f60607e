package deckstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/deckgest/internal/cards"
	"github.com/dgallion1/deckgest/internal/dedup"
	"github.com/dgallion1/deckgest/internal/doctree"
	"github.com/dgallion1/deckgest/internal/extract"
)

// ErrNotFound is returned when a deck does not exist.
var ErrNotFound = errors.New("deck not found")

// Store persists generated decks.
type Store interface {
	// FindByHash returns the ID of a user's deck built from identical
	// content, or "" when there is none.
	FindByHash(ctx context.Context, userID, hash string) (string, error)
	SaveDeck(ctx context.Context, deck Deck) error
	ListDecks(ctx context.Context, userID string) ([]Meta, error)
	DeleteDeck(ctx context.Context, userID, docID string) error
}

// Meta summarizes one stored deck.
type Meta struct {
	DocID       string      `json:"doc_id"`
	UserID      string      `json:"user_id"`
	Filename    string      `json:"filename"`
	Title       string      `json:"title"`
	ContentHash string      `json:"content_hash"`
	Chapters    int         `json:"chapters"`
	Knowledge   int         `json:"knowledge"`
	Cards       int         `json:"cards"`
	Dedup       dedup.Stats `json:"dedup"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Chapter is the stored form of a chapter; content blocks are not kept.
type Chapter struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Level      int    `json:"level"`
	OrderIndex int    `json:"order_index"`
	PageStart  int    `json:"page_start"`
	PageEnd    int    `json:"page_end"`
	Blocks     int    `json:"blocks"`
}

// Deck is everything produced for one document.
type Deck struct {
	Meta      Meta                `json:"meta"`
	Chapters  []Chapter           `json:"chapters"`
	Knowledge []extract.Knowledge `json:"knowledge"`
	Cards     []cards.Card        `json:"cards"`
}

// ChaptersOf converts extracted chapters to their stored form.
func ChaptersOf(chs []doctree.ExtractedChapter) []Chapter {
	out := make([]Chapter, 0, len(chs))
	for _, ch := range chs {
		out = append(out, Chapter{
			ID:         ch.ID,
			Title:      ch.Title,
			Level:      ch.Level,
			OrderIndex: ch.OrderIndex,
			PageStart:  ch.PageStart,
			PageEnd:    ch.PageEnd,
			Blocks:     len(ch.ContentBlocks),
		})
	}
	return out
}

// Key layout:
//
//	decks/users/{user}/documents/{doc}/meta
//	decks/users/{user}/documents/{doc}/chapters/{id}
//	decks/users/{user}/documents/{doc}/knowledge/{id}
//	decks/users/{user}/documents/{doc}/cards/{id}
//	decks/users/{user}/by_hash/{hash}/{doc}
func documentsPrefix(userID string) string {
	return fmt.Sprintf("decks/users/%s/documents", userID)
}

func deckPrefix(userID, docID string) string {
	return documentsPrefix(userID) + "/" + docID
}

func hashKey(userID, hash, docID string) string {
	return fmt.Sprintf("decks/users/%s/by_hash/%s/%s", userID, hash, docID)
}

// SaveDeck writes every record of a deck. The hash index is written last so
// a partially stored deck is never reported as a duplicate.
func (c *Client) SaveDeck(ctx context.Context, deck Deck) error {
	m := deck.Meta
	prefix := deckPrefix(m.UserID, m.DocID)
	source := "deckgest:" + m.DocID

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	put := func(key string, value any, memoryType string, salience float64) {
		g.Go(func() error {
			return c.PutNode(gctx, key, NodeRequest{
				Value:      value,
				MemoryType: memoryType,
				Salience:   salience,
				Source:     source,
			})
		})
	}
	for _, ch := range deck.Chapters {
		put(prefix+"/chapters/"+ch.ID, ch, "metacognitive", 0.2)
	}
	for _, k := range deck.Knowledge {
		put(prefix+"/knowledge/"+k.ID, k, "semantic", k.Confidence)
	}
	for _, card := range deck.Cards {
		put(prefix+"/cards/"+card.ID, card, "semantic", 0.5)
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("store records: %w", err)
	}

	if err := c.PutNode(ctx, prefix+"/meta", NodeRequest{Value: m, MemoryType: "metacognitive", Salience: 0.5, Source: source}); err != nil {
		return fmt.Errorf("store meta: %w", err)
	}
	if m.ContentHash != "" {
		idx := map[string]any{"filename": m.Filename, "created_at": m.CreatedAt.Format(time.RFC3339)}
		if err := c.PutNode(ctx, hashKey(m.UserID, m.ContentHash, m.DocID), NodeRequest{Value: idx, MemoryType: "metacognitive", Salience: 0.1, Source: source}); err != nil {
			return fmt.Errorf("store hash index: %w", err)
		}
	}
	return nil
}

func (c *Client) FindByHash(ctx context.Context, userID, hash string) (string, error) {
	nodes, err := c.ListChildren(ctx, fmt.Sprintf("decks/users/%s/by_hash/%s", userID, hash), 1)
	if err != nil {
		return "", err
	}
	if len(nodes) == 0 {
		return "", nil
	}
	return lastSegment(nodes[0].Key), nil
}

func (c *Client) ListDecks(ctx context.Context, userID string) ([]Meta, error) {
	nodes, err := c.ListChildren(ctx, documentsPrefix(userID), 10000)
	if err != nil {
		return nil, err
	}
	var out []Meta
	for _, n := range nodes {
		if lastSegment(n.Key) != "meta" {
			continue
		}
		var m Meta
		if err := json.Unmarshal(n.Value, &m); err != nil {
			return nil, fmt.Errorf("decode meta %s: %w", n.Key, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *Client) DeleteDeck(ctx context.Context, userID, docID string) error {
	prefix := deckPrefix(userID, docID)
	node, err := c.GetNode(ctx, prefix+"/meta")
	if err != nil {
		return err
	}
	if node == nil {
		return ErrNotFound
	}
	var m Meta
	if err := json.Unmarshal(node.Value, &m); err != nil {
		return fmt.Errorf("decode meta: %w", err)
	}
	// Drop the hash index first so a half-deleted deck stops blocking re-uploads.
	if m.ContentHash != "" {
		if err := c.DeleteNode(ctx, hashKey(userID, m.ContentHash, docID), false); err != nil {
			return err
		}
	}
	return c.DeleteNode(ctx, prefix, true)
}

// lastSegment returns the final component of a key. The store reports keys
// with either slash or dot separators.
func lastSegment(key string) string {
	if i := strings.LastIndexAny(key, "/."); i >= 0 {
		return key[i+1:]
	}
	return key
}

var (
	_ Store = (*Client)(nil)
	_ Store = (*Memory)(nil)
)
