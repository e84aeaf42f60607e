package cards

import (
	"github.com/google/uuid"

	"github.com/dgallion1/deckgest/internal/extract"
	"github.com/dgallion1/deckgest/internal/nlp"
)

// Config controls card generation.
type Config struct {
	MinClozeBlanks      int     `toml:"min_cloze_blanks"`
	MaxClozeBlanks      int     `toml:"max_cloze_blanks"`
	MaxHotspotsPerImage int     `toml:"max_hotspots_per_image"`
	HotspotOverlap      float64 `toml:"hotspot_overlap"`    // Caption word overlap that ties a point to a figure.
	ReverseMaxTermWords int     `toml:"reverse_max_words"`  // Longest term that still gets a reverse card.
	ReverseMultiplier   float64 `toml:"reverse_multiplier"` // Difficulty scale of reverse cards.
	Weights             Weights `toml:"weights"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinClozeBlanks:      1,
		MaxClozeBlanks:      3,
		MaxHotspotsPerImage: 5,
		HotspotOverlap:      0.3,
		ReverseMaxTermWords: 3,
		ReverseMultiplier:   1.1,
		Weights:             DefaultWeights(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinClozeBlanks <= 0 {
		c.MinClozeBlanks = d.MinClozeBlanks
	}
	if c.MaxClozeBlanks < c.MinClozeBlanks {
		c.MaxClozeBlanks = max(d.MaxClozeBlanks, c.MinClozeBlanks)
	}
	if c.MaxHotspotsPerImage <= 0 || c.MaxHotspotsPerImage > len(hotspotLayout) {
		c.MaxHotspotsPerImage = d.MaxHotspotsPerImage
	}
	if c.HotspotOverlap <= 0 {
		c.HotspotOverlap = d.HotspotOverlap
	}
	if c.ReverseMaxTermWords <= 0 {
		c.ReverseMaxTermWords = d.ReverseMaxTermWords
	}
	if c.ReverseMultiplier <= 0 {
		c.ReverseMultiplier = d.ReverseMultiplier
	}
	if c.Weights == (Weights{}) {
		c.Weights = d.Weights
	}
	return c
}

type generator func(k extract.Knowledge) []Card

// Synthesizer turns knowledge points into cards.
type Synthesizer struct {
	cfg        Config
	complexity nlp.ComplexityScorer
	generators map[Type]generator
}

// textTypes is the order text-derived generators run in.
var textTypes = []Type{TypeQA, TypeCloze}

// New builds a synthesizer. A nil scorer uses the heuristic one.
func New(cfg Config, complexity nlp.ComplexityScorer) *Synthesizer {
	if complexity == nil {
		complexity = nlp.HeuristicComplexity{}
	}
	s := &Synthesizer{cfg: cfg.withDefaults(), complexity: complexity}
	s.generators = map[Type]generator{
		TypeQA:    s.qa,
		TypeCloze: s.cloze,
	}
	return s
}

// Synthesize generates QA and cloze cards for every point, then hotspot
// cards for figures that points can be tied to.
func (s *Synthesizer) Synthesize(knowledge []extract.Knowledge, figures []Figure) []Card {
	var out []Card
	for _, k := range knowledge {
		for _, t := range textTypes {
			out = append(out, s.generators[t](k)...)
		}
	}
	for _, f := range figures {
		if c, ok := s.hotspot(f, knowledge); ok {
			out = append(out, c)
		}
	}
	return out
}

func (s *Synthesizer) difficulty(k extract.Knowledge, t Type) float64 {
	return difficultyParts(s.complexity, k.Text, k.Entities, k.Kind, k.Confidence).Score(s.cfg.Weights, t)
}

func (s *Synthesizer) newCard(t Type, k extract.Knowledge, front, back string) Card {
	return Card{
		ID:          uuid.NewString(),
		Type:        t,
		Front:       front,
		Back:        back,
		Difficulty:  s.difficulty(k, t),
		Entities:    k.Entities,
		KnowledgeID: k.ID,
		Source:      sourceOf(k),
		Metadata: map[string]any{
			"kind":       string(k.Kind),
			"chapter_id": k.ChapterID,
			"method":     k.Method,
		},
	}
}
