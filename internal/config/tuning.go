package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/dgallion1/deckgest/internal/cards"
	"github.com/dgallion1/deckgest/internal/chapter"
	"github.com/dgallion1/deckgest/internal/dedup"
	"github.com/dgallion1/deckgest/internal/extract"
	"github.com/dgallion1/deckgest/internal/segmenter"
)

// Tuning holds the thresholds and weights of every pipeline stage. It is
// built once at startup and handed to each stage by value.
type Tuning struct {
	Chapter   chapter.Config   `toml:"chapter"`
	Segmenter segmenter.Config `toml:"segmenter"`
	Extract   extract.Config   `toml:"extract"`
	Cards     cards.Config     `toml:"cards"`
	Dedup     dedup.Config     `toml:"dedup"`
}

func DefaultTuning() Tuning {
	return Tuning{
		Chapter:   chapter.DefaultConfig(),
		Segmenter: segmenter.DefaultConfig(),
		Extract:   extract.DefaultConfig(),
		Cards:     cards.DefaultConfig(),
		Dedup:     dedup.DefaultConfig(),
	}
}

// LoadTuning reads a TOML file over the defaults. Keys the file omits keep
// their default values.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tuning file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse tuning file %s: %w", path, err)
	}
	return t, nil
}

// Validate rejects values outside the ranges the stages accept.
func (t Tuning) Validate() error {
	unit := []struct {
		name string
		v    float64
	}{
		{"chapter.detect_threshold", t.Chapter.DetectThreshold},
		{"chapter.keep_threshold", t.Chapter.KeepThreshold},
		{"segmenter.similarity_threshold", t.Segmenter.SimilarityThreshold},
		{"extract.min_confidence", t.Extract.MinConfidence},
		{"extract.overlap_threshold", t.Extract.OverlapThreshold},
		{"extract.fallback_confidence", t.Extract.FallbackConfidence},
		{"dedup.threshold", t.Dedup.Threshold},
		{"dedup.max_duplicate_rate", t.Dedup.MaxDuplicateRate},
	}
	for _, u := range unit {
		if u.v < 0 || u.v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", u.name, u.v)
		}
	}
	if t.Segmenter.MaxLength > 0 && t.Segmenter.MaxLength < t.Segmenter.MinLength {
		return fmt.Errorf("segmenter.max_length (%d) is below min_length (%d)", t.Segmenter.MaxLength, t.Segmenter.MinLength)
	}
	if t.Cards.MaxClozeBlanks > 0 && t.Cards.MaxClozeBlanks < t.Cards.MinClozeBlanks {
		return fmt.Errorf("cards.max_cloze_blanks (%d) is below min_cloze_blanks (%d)", t.Cards.MaxClozeBlanks, t.Cards.MinClozeBlanks)
	}
	return nil
}
