package cards

import (
	"github.com/dgallion1/deckgest/internal/extract"
	"github.com/dgallion1/deckgest/internal/nlp"
)

// Weights are the coefficients of the difficulty formula.
type Weights struct {
	Base          float64 `toml:"base"`
	Complexity    float64 `toml:"complexity"`
	EntityDensity float64 `toml:"entity_density"`
	Length        float64 `toml:"length"`
	Kind          float64 `toml:"kind"`
}

// DefaultWeights returns the standard difficulty coefficients.
func DefaultWeights() Weights {
	return Weights{Base: 1.0, Complexity: 1.5, EntityDensity: 1.0, Length: 1.0, Kind: 1.0}
}

var kindFactor = map[extract.Kind]float64{
	extract.KindTheorem:    0.4,
	extract.KindProcess:    0.2,
	extract.KindConcept:    0.2,
	extract.KindFact:       0.1,
	extract.KindDefinition: 0.0,
	extract.KindExample:    -0.1,
}

var typeModifier = map[Type]float64{
	TypeQA:           1.0,
	TypeCloze:        1.2,
	TypeImageHotspot: 1.1,
}

// DifficultyParts are the named inputs to a card's difficulty.
type DifficultyParts struct {
	Complexity    float64
	EntityDensity float64
	Length        float64
	KindFactor    float64
	Penalty       float64
}

// Score applies the weights and the per-type modifier. The weighted sum is
// clamped, multiplied, then clamped again.
func (p DifficultyParts) Score(w Weights, t Type) float64 {
	raw := w.Base +
		p.Complexity*w.Complexity +
		p.EntityDensity*w.EntityDensity +
		p.Length*w.Length +
		p.KindFactor*w.Kind +
		p.Penalty
	mod, ok := typeModifier[t]
	if !ok {
		mod = 1
	}
	return clampDifficulty(clampDifficulty(raw) * mod)
}

// difficultyParts measures text for the difficulty formula.
func difficultyParts(scorer nlp.ComplexityScorer, text string, entities []string, kind extract.Kind, confidence float64) DifficultyParts {
	words := nlp.WordCount(text)
	p := DifficultyParts{
		Complexity: scorer.Complexity(text),
		KindFactor: kindFactor[kind],
	}
	if words > 0 {
		p.EntityDensity = min(1, float64(len(entities))/(float64(words)/10))
		p.Length = min(1, float64(words)/50)
	}
	if confidence < 0.5 {
		p.Penalty = 0.3*(0.5-max(confidence, 0))/0.5 + 0.2
	}
	return p
}

func clampDifficulty(d float64) float64 {
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}
