package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/deckgest/internal/doctree"
	"github.com/dgallion1/deckgest/internal/nlp"
)

// ErrAllBackendsFailed is returned when no strategy could process a segment.
var ErrAllBackendsFailed = errors.New("all extraction backends failed")

// Input is what a backend sees for one segment.
type Input struct {
	Segment   doctree.TextSegment
	Entities  []nlp.Entity
	ChapterID string
}

// Backend is one extraction strategy.
type Backend interface {
	Name() string
	Extract(ctx context.Context, in Input) ([]Candidate, error)
}

// Config controls filtering of extracted points.
type Config struct {
	MinConfidence      float64       `toml:"min_confidence"`
	MaxPerSegment      int           `toml:"max_per_segment"`
	OverlapThreshold   float64       `toml:"overlap_threshold"`   // Word overlap above which two points are duplicates.
	FallbackConfidence float64       `toml:"fallback_confidence"` // Scale applied to rule-based confidences.
	CallTimeout        time.Duration `toml:"-"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidence:      0.5,
		MaxPerSegment:      3,
		OverlapThreshold:   0.8,
		FallbackConfidence: 0.8,
		CallTimeout:        60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinConfidence <= 0 {
		c.MinConfidence = d.MinConfidence
	}
	if c.MaxPerSegment <= 0 {
		c.MaxPerSegment = d.MaxPerSegment
	}
	if c.OverlapThreshold <= 0 {
		c.OverlapThreshold = d.OverlapThreshold
	}
	if c.FallbackConfidence <= 0 {
		c.FallbackConfidence = d.FallbackConfidence
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	return c
}

// Extractor runs backends in priority order per segment. The rule backend
// is always last, so extraction only fails when the rules do.
type Extractor struct {
	cfg      Config
	backends []Backend
	entities nlp.EntityExtractor
	log      *slog.Logger
}

// New builds an extractor trying primary backends first, then rules.
func New(cfg Config, entities nlp.EntityExtractor, log *slog.Logger, primary ...Backend) *Extractor {
	cfg = cfg.withDefaults()
	if entities == nil {
		entities = nlp.HeuristicEntities{}
	}
	if log == nil {
		log = slog.Default()
	}
	backends := make([]Backend, 0, len(primary)+1)
	for _, b := range primary {
		if b != nil {
			backends = append(backends, b)
		}
	}
	backends = append(backends, NewRuleBackend(cfg.FallbackConfidence))
	return &Extractor{cfg: cfg, backends: backends, entities: entities, log: log}
}

// Extract classifies every segment of a chapter. Segments whose backends
// all fail contribute nothing; the rest of the chapter is unaffected.
func (e *Extractor) Extract(ctx context.Context, segments []doctree.TextSegment, chapterID string) []Knowledge {
	var out []Knowledge
	for i, seg := range segments {
		if ctx.Err() != nil {
			break
		}
		points, err := e.extractSegment(ctx, seg, chapterID)
		if err != nil {
			e.log.Warn("segment extraction failed", "chapter_id", chapterID, "segment", i, "error", err)
			continue
		}
		for _, p := range points {
			p.SegmentIndex = i
			out = append(out, p)
		}
	}
	return out
}

func (e *Extractor) extractSegment(ctx context.Context, seg doctree.TextSegment, chapterID string) ([]Knowledge, error) {
	if strings.TrimSpace(seg.Text) == "" {
		return nil, nil
	}
	in := Input{Segment: seg, Entities: e.lookupEntities(ctx, seg.Text), ChapterID: chapterID}

	var errs []error
	for _, b := range e.backends {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		cands, err := b.Extract(callCtx, in)
		cancel()
		if err != nil {
			e.log.Debug("backend failed, falling back", "backend", b.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", b.Name(), err))
			continue
		}
		return e.selectPoints(cands, seg, chapterID, b.Name()), nil
	}
	return nil, fmt.Errorf("%w: %w", ErrAllBackendsFailed, errors.Join(errs...))
}

func (e *Extractor) lookupEntities(ctx context.Context, text string) []nlp.Entity {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	ents, err := e.entities.Extract(callCtx, text)
	if err != nil {
		e.log.Debug("entity extraction failed", "error", err)
		return nil
	}
	return ents
}

// selectPoints drops low-confidence and overlapping candidates, keeps the
// most confident few, and returns them in text order.
func (e *Extractor) selectPoints(cands []Candidate, seg doctree.TextSegment, chapterID, method string) []Knowledge {
	filtered := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" || !c.Kind.Valid() || c.Confidence < e.cfg.MinConfidence {
			continue
		}
		filtered = append(filtered, c)
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Confidence > filtered[j].Confidence })

	var kept []Candidate
	for _, c := range filtered {
		dup := false
		for _, k := range kept {
			if nlp.WordOverlap(c.Text, k.Text) > e.cfg.OverlapThreshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		kept = append(kept, c)
		if len(kept) == e.cfg.MaxPerSegment {
			break
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Offset < kept[j].Offset })

	out := make([]Knowledge, 0, len(kept))
	for _, c := range kept {
		out = append(out, Knowledge{
			ID:         uuid.NewString(),
			Text:       c.Text,
			Kind:       c.Kind,
			Entities:   c.Entities,
			Confidence: min(c.Confidence, 1),
			Anchors:    seg.Anchors,
			Method:     method,
			ChapterID:  chapterID,
		})
	}
	return out
}
