package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/deckgest/internal/config"
	"github.com/dgallion1/deckgest/internal/extract"
	"github.com/dgallion1/deckgest/internal/pipeline"
)

// Server is the HTTP API server for deckgest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	llmModel     string
	llmStats     *extract.LLMStats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. llmStats may be nil when
// extraction runs on rules alone.
func NewServer(orch *pipeline.Orchestrator, llmModel string, llmStats *extract.LLMStats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		llmModel:     llmModel,
		llmStats:     llmStats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.DeckgestAPIKey, s.log))

		r.Post("/api/decks", s.handleCreateDeck)
		r.Post("/api/decks/batch", s.handleBatchCreate)
		r.Get("/api/decks/{jobID}/status", s.handleDeckStatus)
		r.Get("/api/decks/{jobID}/cards", s.handleDeckCards)
		r.Get("/api/decks", s.handleListDecks)
		r.Delete("/api/decks/{docID}", s.handleDeleteDeck)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
