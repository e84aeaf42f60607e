package cards

import (
	"strings"

	"github.com/google/uuid"

	"github.com/dgallion1/deckgest/internal/extract"
	"github.com/dgallion1/deckgest/internal/nlp"
)

// hotspotLayout holds region centers: top-left, top-right, center,
// bottom-left, bottom-right.
var hotspotLayout = [][2]float64{
	{0.25, 0.25},
	{0.75, 0.25},
	{0.5, 0.5},
	{0.25, 0.75},
	{0.75, 0.75},
}

// regionSize grows with text length within [0.1, 0.3].
func regionSize(textLen int) float64 {
	return min(max(0.1+float64(textLen)/2000, 0.1), 0.3)
}

func placeRegion(slot int, size float64) (x, y float64) {
	c := hotspotLayout[slot]
	x = min(max(c[0]-size/2, 0), 1-size)
	y = min(max(c[1]-size/2, 0), 1-size)
	return x, y
}

// relatedToFigure reports whether a point belongs to a figure: same
// chapter, and an entity in the caption or enough caption word overlap.
func (s *Synthesizer) relatedToFigure(k extract.Knowledge, f Figure) bool {
	if k.ChapterID != f.ChapterID {
		return false
	}
	caption := strings.ToLower(f.Image.Caption)
	if strings.TrimSpace(caption) == "" {
		return false
	}
	for _, e := range k.Entities {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" && strings.Contains(caption, e) {
			return true
		}
	}
	return nlp.WordOverlap(k.Text, f.Image.Caption) > s.cfg.HotspotOverlap
}

func (s *Synthesizer) hotspot(f Figure, knowledge []extract.Knowledge) (Card, bool) {
	var related []extract.Knowledge
	for _, k := range knowledge {
		if s.relatedToFigure(k, f) {
			related = append(related, k)
			if len(related) == s.cfg.MaxHotspotsPerImage {
				break
			}
		}
	}
	if len(related) == 0 {
		return Card{}, false
	}

	regions := make([]Region, 0, len(related))
	labels := make([]string, 0, len(related))
	var backLines []string
	var entities []string
	knowledgeIDs := make([]string, 0, len(related))
	var diffSum float64
	for i, k := range related {
		size := regionSize(len(k.Text))
		x, y := placeRegion(i, size)
		label := keyTerm(k)
		if label == "" {
			label = k.Text
		}
		regions = append(regions, Region{Label: label, KnowledgeID: k.ID, X: x, Y: y, W: size, H: size})
		labels = append(labels, label)
		backLines = append(backLines, label+": "+k.Text)
		entities = append(entities, k.Entities...)
		knowledgeIDs = append(knowledgeIDs, k.ID)
		diffSum += clampDifficulty(difficultyParts(s.complexity, k.Text, k.Entities, k.Kind, k.Confidence).Score(s.cfg.Weights, TypeQA))
	}

	first := related[0]
	avg := diffSum / float64(len(related))
	return Card{
		ID:          uuid.NewString(),
		Type:        TypeImageHotspot,
		Front:       "Locate in the figure: " + strings.Join(labels, ", "),
		Back:        strings.Join(backLines, "\n"),
		Difficulty:  clampDifficulty(avg * typeModifier[TypeImageHotspot]),
		Entities:    entities,
		KnowledgeID: first.ID,
		Source:      sourceOf(first),
		Metadata: map[string]any{
			"kind":          string(first.Kind),
			"chapter_id":    f.ChapterID,
			"method":        first.Method,
			"image_path":    f.Image.Path,
			"image_page":    f.Image.Page,
			"caption":       f.Image.Caption,
			"regions":       regions,
			"knowledge_ids": knowledgeIDs,
		},
	}, true
}
