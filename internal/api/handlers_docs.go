package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/deckgest/internal/deckstore"
)

// handleListDecks lists all stored decks for a user.
func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		jsonError(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}

	decks, err := s.orchestrator.Store().ListDecks(r.Context(), userID)
	if err != nil {
		jsonError(w, "failed to list decks: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if decks == nil {
		decks = []deckstore.Meta{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"decks": decks})
}

// handleDeleteDeck deletes a stored deck with its chapters, knowledge and cards.
func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		jsonError(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}

	err := s.orchestrator.Store().DeleteDeck(r.Context(), userID, docID)
	switch {
	case errors.Is(err, deckstore.ErrNotFound):
		jsonError(w, "deck not found", http.StatusNotFound)
		return
	case err != nil:
		jsonError(w, "failed to delete deck: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"deleted": docID})
}
