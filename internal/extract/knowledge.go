package extract

import (
	"github.com/dgallion1/deckgest/internal/doctree"
)

// Kind classifies a knowledge point.
type Kind string

const (
	KindDefinition Kind = "definition"
	KindFact       Kind = "fact"
	KindTheorem    Kind = "theorem"
	KindProcess    Kind = "process"
	KindExample    Kind = "example"
	KindConcept    Kind = "concept"
)

// Kinds lists every knowledge kind, most specific first.
var Kinds = []Kind{KindTheorem, KindDefinition, KindProcess, KindFact, KindExample, KindConcept}

// Valid reports whether k is one of the closed set of kinds.
func (k Kind) Valid() bool {
	_, ok := specificity[k]
	return ok
}

// specificity weights how strongly a pattern match implies its kind.
var specificity = map[Kind]float64{
	KindTheorem:    0.9,
	KindDefinition: 0.8,
	KindProcess:    0.7,
	KindFact:       0.6,
	KindExample:    0.5,
	KindConcept:    0.4,
}

// Specificity returns the fixed per-kind weight used in rule confidence.
func (k Kind) Specificity() float64 {
	return specificity[k]
}

// Extraction methods recorded as provenance.
const (
	MethodRules = "rules"
	MethodLLM   = "llm"
)

// Knowledge is a classified span of segment text.
type Knowledge struct {
	ID           string          `json:"id"`
	Text         string          `json:"text"`
	Kind         Kind            `json:"kind"`
	Entities     []string        `json:"entities"`
	Confidence   float64         `json:"confidence"`
	Anchors      doctree.Anchors `json:"anchors"`
	SegmentIndex int             `json:"segment_index"`
	Method       string          `json:"method"`
	ChapterID    string          `json:"chapter_id"`
}

// Candidate is a backend's raw proposal before filtering.
type Candidate struct {
	Text       string   `json:"text"`
	Kind       Kind     `json:"kind"`
	Confidence float64  `json:"confidence"`
	Entities   []string `json:"entities"`
	Offset     int      `json:"-"` // Byte offset of the span in the segment.
}
