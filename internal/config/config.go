package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LLM providers accepted by LLM_PROVIDER.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderNone      = "none"
)

type Config struct {
	Port string

	// Deck storage. An empty URL keeps decks in memory.
	PathstoreURL    string
	PathstoreAPIKey string

	// Auth
	DeckgestAPIKey string

	// LLM extraction
	LLMProvider     string
	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	LLMCallTimeout  time.Duration

	// Embedding similarity for deduplication
	EmbeddingsEnabled bool
	EmbeddingModel    string

	// Worker pool
	WorkerCount           int
	MaxQueueSize          int
	MaxConcurrentChapters int
	MaxConcurrentStore    int

	// Upload limits
	MaxUploadBytes int64

	// Timeouts and job state
	DocumentTimeout time.Duration
	JobTTL          time.Duration

	// Parsing
	PDFFallbackPdftotext bool
	ImageDir             string

	// Algorithm thresholds, optionally overridden by TUNING_FILE.
	TuningFile string
	Tuning     Tuning
}

// Load reads the environment and the tuning file it names.
func Load() (Config, error) {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		PathstoreURL:    os.Getenv("PATHSTORE_URL"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		DeckgestAPIKey: os.Getenv("DECKGEST_API_KEY"),

		LLMProvider:     envOr("LLM_PROVIDER", ProviderAnthropic),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:     envOr("OPENAI_MODEL", "gpt-4o-mini"),
		LLMCallTimeout:  envDuration("LLM_CALL_TIMEOUT", 60*time.Second),

		EmbeddingsEnabled: envBool("EMBEDDINGS_ENABLED", false),
		EmbeddingModel:    envOr("EMBEDDING_MODEL", "text-embedding-3-small"),

		WorkerCount:           envInt("WORKER_COUNT", 4),
		MaxQueueSize:          envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentChapters: envInt("MAX_CONCURRENT_CHAPTERS", 4),
		MaxConcurrentStore:    envInt("MAX_CONCURRENT_STORE", 10),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		DocumentTimeout: envDuration("DOCUMENT_TIMEOUT", 5*time.Minute),
		JobTTL:          envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
		ImageDir:             os.Getenv("IMAGE_DIR"),

		TuningFile: os.Getenv("TUNING_FILE"),
		Tuning:     DefaultTuning(),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentChapters <= 0 {
		cfg.MaxConcurrentChapters = 4
	}
	if cfg.MaxConcurrentStore <= 0 {
		cfg.MaxConcurrentStore = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.DocumentTimeout <= 0 {
		cfg.DocumentTimeout = 5 * time.Minute
	}
	if cfg.LLMCallTimeout <= 0 {
		cfg.LLMCallTimeout = 60 * time.Second
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	if cfg.TuningFile != "" {
		t, err := LoadTuning(cfg.TuningFile)
		if err != nil {
			return cfg, err
		}
		cfg.Tuning = t
	}
	cfg.Tuning.Extract.MinConfidence = envFloat("MIN_CONFIDENCE", cfg.Tuning.Extract.MinConfidence)
	cfg.Tuning.Dedup.Threshold = envFloat("DEDUP_THRESHOLD", cfg.Tuning.Dedup.Threshold)
	cfg.Tuning.Extract.CallTimeout = cfg.LLMCallTimeout

	return cfg, nil
}

func (c Config) Validate() error {
	if c.DeckgestAPIKey == "" {
		return fmt.Errorf("DECKGEST_API_KEY is required")
	}
	if c.PathstoreURL != "" && c.PathstoreAPIKey == "" {
		return fmt.Errorf("PATHSTORE_API_KEY is required when PATHSTORE_URL is set")
	}
	switch c.LLMProvider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", c.LLMProvider)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider %q", c.LLMProvider)
		}
	case ProviderNone:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.EmbeddingsEnabled && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDINGS_ENABLED is set")
	}
	return c.Tuning.Validate()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
