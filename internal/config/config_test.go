package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TUNING_FILE", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("DOCUMENT_TIMEOUT", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8090" {
		t.Errorf("expected default port 8090, got %q", cfg.Port)
	}
	if cfg.LLMProvider != ProviderAnthropic {
		t.Errorf("expected anthropic provider, got %q", cfg.LLMProvider)
	}
	if cfg.DocumentTimeout != 5*time.Minute {
		t.Errorf("expected 5m document timeout, got %v", cfg.DocumentTimeout)
	}
	if cfg.Tuning.Dedup.Threshold != 0.9 {
		t.Errorf("expected default dedup threshold 0.9, got %v", cfg.Tuning.Dedup.Threshold)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TUNING_FILE", "")
	t.Setenv("WORKER_COUNT", "-3")
	t.Setenv("MIN_CONFIDENCE", "0.65")
	t.Setenv("LLM_CALL_TIMEOUT", "15s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("expected invalid worker count to fall back to 4, got %d", cfg.WorkerCount)
	}
	if cfg.Tuning.Extract.MinConfidence != 0.65 {
		t.Errorf("expected min confidence 0.65, got %v", cfg.Tuning.Extract.MinConfidence)
	}
	if cfg.Tuning.Extract.CallTimeout != 15*time.Second {
		t.Errorf("expected extract call timeout 15s, got %v", cfg.Tuning.Extract.CallTimeout)
	}
}

func TestLoadTuning_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.toml")
	content := `
[segmenter]
max_length = 800

[cards]
max_cloze_blanks = 2

[cards.weights]
complexity = 2.0

[dedup]
threshold = 0.85
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	tun, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tun.Segmenter.MaxLength != 800 || tun.Segmenter.MinLength != 300 {
		t.Errorf("unexpected segmenter config %+v", tun.Segmenter)
	}
	if tun.Cards.MaxClozeBlanks != 2 || tun.Cards.MaxHotspotsPerImage != 5 {
		t.Errorf("unexpected cards config %+v", tun.Cards)
	}
	if tun.Cards.Weights.Complexity != 2.0 || tun.Cards.Weights.Base != 1.0 {
		t.Errorf("unexpected weights %+v", tun.Cards.Weights)
	}
	if tun.Dedup.Threshold != 0.85 || tun.Dedup.FrontWeight != 0.6 {
		t.Errorf("unexpected dedup config %+v", tun.Dedup)
	}
	if tun.Chapter.KeepThreshold != 0.5 {
		t.Errorf("expected chapter defaults, got %+v", tun.Chapter)
	}
}

func TestLoadTuning_Errors(t *testing.T) {
	if _, err := LoadTuning(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("[dedup\nthreshold ="), 0o644)
	if _, err := LoadTuning(path); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestLoad_TuningFileFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.toml")
	os.WriteFile(path, []byte("[extract]\nmax_per_segment = 5\n"), 0o644)
	t.Setenv("TUNING_FILE", path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tuning.Extract.MaxPerSegment != 5 {
		t.Errorf("expected max per segment 5, got %d", cfg.Tuning.Extract.MaxPerSegment)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		DeckgestAPIKey:  "k",
		LLMProvider:     ProviderAnthropic,
		AnthropicAPIKey: "a",
		Tuning:          DefaultTuning(),
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing api key", func(c *Config) { c.DeckgestAPIKey = "" }, "DECKGEST_API_KEY"},
		{"store without key", func(c *Config) { c.PathstoreURL = "http://x" }, "PATHSTORE_API_KEY"},
		{"anthropic without key", func(c *Config) { c.AnthropicAPIKey = "" }, "ANTHROPIC_API_KEY"},
		{"openai without key", func(c *Config) { c.LLMProvider = ProviderOpenAI }, "OPENAI_API_KEY"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "bard" }, "unknown LLM_PROVIDER"},
		{"embeddings without key", func(c *Config) { c.EmbeddingsEnabled = true }, "EMBEDDINGS_ENABLED"},
		{"threshold out of range", func(c *Config) { c.Tuning.Dedup.Threshold = 1.5 }, "dedup.threshold"},
		{"inverted segment bounds", func(c *Config) { c.Tuning.Segmenter.MaxLength = 100 }, "segmenter.max_length"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}

	none := base
	none.LLMProvider = ProviderNone
	none.AnthropicAPIKey = ""
	if err := none.Validate(); err != nil {
		t.Errorf("provider none needs no keys, got %v", err)
	}
}
