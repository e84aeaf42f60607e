package pipeline

import (
	"time"

	"github.com/dgallion1/deckgest/internal/config"
)

// Settings is the immutable configuration of a Pipeline.
type Settings struct {
	Tuning                config.Tuning
	MaxConcurrentChapters int
	DocumentTimeout       time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Tuning:                config.DefaultTuning(),
		MaxConcurrentChapters: 4,
		DocumentTimeout:       5 * time.Minute,
	}
}

// SettingsFrom builds pipeline settings from the loaded configuration.
func SettingsFrom(cfg config.Config) Settings {
	return Settings{
		Tuning:                cfg.Tuning,
		MaxConcurrentChapters: cfg.MaxConcurrentChapters,
		DocumentTimeout:       cfg.DocumentTimeout,
	}.withDefaults()
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MaxConcurrentChapters <= 0 {
		s.MaxConcurrentChapters = d.MaxConcurrentChapters
	}
	if s.DocumentTimeout <= 0 {
		s.DocumentTimeout = d.DocumentTimeout
	}
	return s
}
