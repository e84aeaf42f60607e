package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dgallion1/deckgest/internal/api"
	"github.com/dgallion1/deckgest/internal/config"
	"github.com/dgallion1/deckgest/internal/deckstore"
	"github.com/dgallion1/deckgest/internal/embedding"
	"github.com/dgallion1/deckgest/internal/extract"
	"github.com/dgallion1/deckgest/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Deck storage.
	var store deckstore.Store
	var ps *deckstore.Client
	if cfg.PathstoreURL != "" {
		ps = deckstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey, cfg.MaxConcurrentStore)
		store = ps
	} else {
		log.Warn("PATHSTORE_URL not set, decks are kept in memory")
		store = deckstore.NewMemory()
	}

	// Extraction backends.
	deps := pipeline.Deps{}
	var llmModel string
	var llmStats *extract.LLMStats
	var claude *extract.ClaudeClient
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		claude = extract.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		deps.Backends = append(deps.Backends, extract.NewLLMBackend(claude, cfg.Tuning.Extract.MaxPerSegment))
		llmModel, llmStats = claude.Model(), claude.Stats
	case config.ProviderOpenAI:
		client := extract.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		deps.Backends = append(deps.Backends, extract.NewLLMBackend(client, cfg.Tuning.Extract.MaxPerSegment))
		llmModel, llmStats = client.Model(), client.Stats
	default:
		log.Info("no llm provider, extracting with rules only")
	}

	if cfg.EmbeddingsEnabled {
		emb, err := embedding.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.EmbeddingModel)
		if err != nil {
			log.Error("failed to create embedder", "error", err)
			os.Exit(1)
		}
		deps.Embedder = emb
	}

	// Initialize pipeline.
	p := pipeline.New(pipeline.SettingsFrom(cfg), deps, log)
	orch := pipeline.NewOrchestrator(cfg, p, store, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, llmModel, llmStats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		orch.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		if claude != nil {
			claude.Close()
		}
		if ps != nil {
			ps.Close()
		}
	}()

	log.Info("starting deckgest",
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
		"embeddings", cfg.EmbeddingsEnabled,
		"workers", cfg.WorkerCount,
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
