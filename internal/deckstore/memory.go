package deckstore

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store used when no pathstore is configured.
type Memory struct {
	mu     sync.Mutex
	decks  map[string]map[string]Deck // user -> doc -> deck
	hashes map[string]string          // user/hash -> doc
}

func NewMemory() *Memory {
	return &Memory{
		decks:  make(map[string]map[string]Deck),
		hashes: make(map[string]string),
	}
}

func (m *Memory) FindByHash(_ context.Context, userID, hash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[userID+"/"+hash], nil
}

func (m *Memory) SaveDeck(_ context.Context, deck Deck) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := deck.Meta.UserID
	if m.decks[user] == nil {
		m.decks[user] = make(map[string]Deck)
	}
	m.decks[user][deck.Meta.DocID] = deck
	if deck.Meta.ContentHash != "" {
		m.hashes[user+"/"+deck.Meta.ContentHash] = deck.Meta.DocID
	}
	return nil
}

func (m *Memory) ListDecks(_ context.Context, userID string) ([]Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Meta, 0, len(m.decks[userID]))
	for _, d := range m.decks[userID] {
		out = append(out, d.Meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) DeleteDeck(_ context.Context, userID, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[userID][docID]
	if !ok {
		return ErrNotFound
	}
	delete(m.decks[userID], docID)
	if d.Meta.ContentHash != "" {
		delete(m.hashes, userID+"/"+d.Meta.ContentHash)
	}
	return nil
}

// Deck returns a stored deck.
func (m *Memory) Deck(userID, docID string) (Deck, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[userID][docID]
	return d, ok
}
