package cards

import (
	"github.com/dgallion1/deckgest/internal/doctree"
	"github.com/dgallion1/deckgest/internal/extract"
)

// Type is the closed set of card kinds.
type Type string

const (
	TypeQA           Type = "qa"
	TypeCloze        Type = "cloze"
	TypeImageHotspot Type = "image_hotspot"
)

// Difficulty bounds for every card.
const (
	MinDifficulty = 0.5
	MaxDifficulty = 5.0
)

// SourceInfo locates the text a card was generated from.
type SourceInfo struct {
	ChapterID    string          `json:"chapter_id"`
	SegmentIndex int             `json:"segment_index"`
	Method       string          `json:"method"`
	Kind         extract.Kind    `json:"kind"`
	Confidence   float64         `json:"confidence"`
	Anchors      doctree.Anchors `json:"anchors"`
}

// Card is a generated flashcard.
type Card struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	Front       string         `json:"front"`
	Back        string         `json:"back"`
	Difficulty  float64        `json:"difficulty"`
	Entities    []string       `json:"entities,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	KnowledgeID string         `json:"knowledge_id"`
	Source      SourceInfo     `json:"source"`
}

// Figure is an image tied to the chapter whose page range contains it.
type Figure struct {
	Image     doctree.ImageData
	ChapterID string
}

// Region is one hotspot on an image, in coordinates normalized to [0,1].
type Region struct {
	Label       string  `json:"label"`
	KnowledgeID string  `json:"knowledge_id"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	W           float64 `json:"w"`
	H           float64 `json:"h"`
}

func sourceOf(k extract.Knowledge) SourceInfo {
	return SourceInfo{
		ChapterID:    k.ChapterID,
		SegmentIndex: k.SegmentIndex,
		Method:       k.Method,
		Kind:         k.Kind,
		Confidence:   k.Confidence,
		Anchors:      k.Anchors,
	}
}
