package cards

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/deckgest/internal/doctree"
	"github.com/dgallion1/deckgest/internal/extract"
)

func point(text string, kind extract.Kind, entities ...string) extract.Knowledge {
	return extract.Knowledge{
		ID:         "k-" + strings.Fields(text)[0],
		Text:       text,
		Kind:       kind,
		Entities:   entities,
		Confidence: 0.8,
		ChapterID:  "ch-0",
		Method:     extract.MethodRules,
		Anchors:    doctree.Anchors{Page: 1, ChapterID: "ch-0"},
	}
}

func byType(cards []Card, t Type) []Card {
	var out []Card
	for _, c := range cards {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

func TestSynthesize_DefinitionExample(t *testing.T) {
	k := point("Machine Learning is a subset of AI.", extract.KindDefinition, "Machine Learning")
	cards := New(DefaultConfig(), nil).Synthesize([]extract.Knowledge{k}, nil)

	qa := byType(cards, TypeQA)
	require.NotEmpty(t, qa)
	assert.Equal(t, "What is Machine Learning?", qa[0].Front)
	assert.Equal(t, "A subset of AI.", qa[0].Back)
	assert.Equal(t, k.ID, qa[0].KnowledgeID)

	cloze := byType(cards, TypeCloze)
	require.Len(t, cloze, 1)
	assert.Equal(t, "[1] is a subset of AI.", cloze[0].Front)
	assert.Equal(t, k.Text, cloze[0].Back)
	assert.Equal(t, []string{"Machine Learning"}, cloze[0].Metadata["answers"])
}

func TestSynthesize_ReverseCard(t *testing.T) {
	k := point("Osmosis is the movement of water across a membrane.", extract.KindDefinition, "Osmosis")
	qa := byType(New(DefaultConfig(), nil).Synthesize([]extract.Knowledge{k}, nil), TypeQA)

	require.Len(t, qa, 2)
	rev := qa[1]
	assert.Equal(t, "What term is defined as: the movement of water across a membrane?", rev.Front)
	assert.Equal(t, "Osmosis", rev.Back)
	assert.Equal(t, true, rev.Metadata["reverse"])
	assert.InDelta(t, min(qa[0].Difficulty*1.1, MaxDifficulty), rev.Difficulty, 1e-9)
}

func TestSynthesize_NoReverseWithoutEntityMatch(t *testing.T) {
	k := point("Osmosis is the movement of water across a membrane.", extract.KindDefinition)
	qa := byType(New(DefaultConfig(), nil).Synthesize([]extract.Knowledge{k}, nil), TypeQA)
	require.Len(t, qa, 1)
	assert.Equal(t, "What is Osmosis?", qa[0].Front)
}

func TestSynthesize_GenericQAForOtherKinds(t *testing.T) {
	k := point("The Pythagorean theorem relates the sides of a right triangle.", extract.KindTheorem, "Pythagorean")
	qa := byType(New(DefaultConfig(), nil).Synthesize([]extract.Knowledge{k}, nil), TypeQA)
	require.Len(t, qa, 1)
	assert.Equal(t, "What does Pythagorean state?", qa[0].Front)
	assert.Equal(t, k.Text, qa[0].Back)
}

func TestSynthesize_UnparseableDefinitionFallsBack(t *testing.T) {
	k := point("Sorting algorithms rearrange elements into order.", extract.KindDefinition)
	qa := byType(New(DefaultConfig(), nil).Synthesize([]extract.Knowledge{k}, nil), TypeQA)
	require.Len(t, qa, 1)
	assert.Equal(t, "What is sorting?", qa[0].Front)
}

func TestSplitDefinition(t *testing.T) {
	tests := []struct {
		text, term, def string
		ok              bool
	}{
		{"Machine Learning is a subset of AI.", "Machine Learning", "a subset of AI.", true},
		{"A stoma is an opening in a leaf.", "a stoma", "an opening in a leaf.", true},
		{"Entropy: a measure of disorder.", "Entropy", "a measure of disorder.", true},
		{"Latency — the delay before transfer begins.", "Latency", "the delay before transfer begins.", true},
		{"Homeostasis refers to internal balance.", "Homeostasis", "internal balance.", true},
		{"No separator here at all", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			term, def, ok := splitDefinition(tc.text)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.term, term)
			assert.Equal(t, tc.def, def)
		})
	}
}

func TestCloze_Deterministic(t *testing.T) {
	k := point("In 1905 Albert Einstein published the theory of Special Relativity in Annalen.",
		extract.KindFact, "Albert Einstein", "Special Relativity", "Annalen")
	s := New(DefaultConfig(), nil)

	first := byType(s.Synthesize([]extract.Knowledge{k}, nil), TypeCloze)
	second := byType(s.Synthesize([]extract.Knowledge{k}, nil), TypeCloze)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Front, second[0].Front)
	assert.Equal(t, first[0].Metadata["answers"], second[0].Metadata["answers"])
}

func TestCloze_LongestFirstAndFirstOccurrenceOnly(t *testing.T) {
	k := point("We study the cell. The cell membrane surrounds the cell and the membrane is thin.",
		extract.KindFact, "cell", "cell membrane")
	cloze := byType(New(DefaultConfig(), nil).Synthesize([]extract.Knowledge{k}, nil), TypeCloze)

	require.Len(t, cloze, 1)
	assert.Equal(t, "We study the [2]. The [1] surrounds the cell and the membrane is thin.", cloze[0].Front)
	assert.Equal(t, []string{"cell membrane", "cell"}, cloze[0].Metadata["answers"])
}

func TestCloze_NumericEntityNeverMatchesMarker(t *testing.T) {
	k := point("In 1969 Apollo 11 landed, 1 small step for a man.",
		extract.KindFact, "Apollo 11", "1")
	cloze := byType(New(DefaultConfig(), nil).Synthesize([]extract.Knowledge{k}, nil), TypeCloze)

	require.Len(t, cloze, 1)
	assert.Equal(t, "In 1969 [1] landed, [2] small step for a man.", cloze[0].Front)
	assert.Equal(t, []string{"Apollo 11", "1"}, cloze[0].Metadata["answers"])
}

func TestIndexFree_SkipsTakenSpans(t *testing.T) {
	text := "a cell and a cell"
	assert.Equal(t, 2, indexFree(text, "cell", nil))
	assert.Equal(t, 13, indexFree(text, "cell", []blankSpan{{start: 2, end: 6, n: 1}}))
	assert.Equal(t, -1, indexFree(text, "cell", []blankSpan{{start: 0, end: 17, n: 1}}))
}

func TestCloze_SkipsWithoutUsableEntities(t *testing.T) {
	k := point("Water boils at one hundred degrees.", extract.KindFact, "steam")
	assert.Empty(t, byType(New(DefaultConfig(), nil).Synthesize([]extract.Knowledge{k}, nil), TypeCloze))
}

func TestCloze_WholeWordsOnly(t *testing.T) {
	assert.Equal(t, -1, indexWord("said the man", "AI", 0))
	assert.Equal(t, 9, indexWord("said the AI.", "AI", 0))
	assert.Equal(t, 2, countWord("a cell, a cell, cells", "cell"))
}

func TestScoreBlank(t *testing.T) {
	text := "The mitochondrion is the powerhouse of the cell."
	s, ok := scoreBlank(text, "mitochondrion")
	require.True(t, ok)
	assert.Equal(t, BlankScores{LengthFit: 1, FrequencyFit: 1, Position: 0, WordFit: 1}, s)

	s, ok = scoreBlank(text, "cell")
	require.True(t, ok)
	assert.Equal(t, 1.0, s.Position)

	_, ok = scoreBlank(text, "nucleus")
	assert.False(t, ok)
}

func TestDifficultyBounds(t *testing.T) {
	s := New(DefaultConfig(), nil)
	texts := []string{
		"Hi.",
		"Entropy is a measure of disorder.",
		strings.Repeat("Extraordinarily complicated, multifaceted; interdisciplinary considerations abound! ", 20),
	}
	for _, text := range texts {
		for _, kind := range extract.Kinds {
			for _, conf := range []float64{0, 0.3, 0.5, 1} {
				k := point(text, kind, "Entropy", "considerations", "disorder")
				k.Confidence = conf
				for _, c := range s.Synthesize([]extract.Knowledge{k}, nil) {
					assert.GreaterOrEqual(t, c.Difficulty, MinDifficulty)
					assert.LessOrEqual(t, c.Difficulty, MaxDifficulty)
				}
			}
		}
	}
}

func TestDifficultyParts(t *testing.T) {
	p := DifficultyParts{}
	assert.InDelta(t, 1.0, p.Score(DefaultWeights(), TypeQA), 1e-9)
	assert.InDelta(t, 1.2, p.Score(DefaultWeights(), TypeCloze), 1e-9)
	assert.InDelta(t, 1.1, p.Score(DefaultWeights(), TypeImageHotspot), 1e-9)

	high := DifficultyParts{Complexity: 1, EntityDensity: 1, Length: 1, KindFactor: 0.4, Penalty: 0.5}
	assert.Equal(t, MaxDifficulty, high.Score(DefaultWeights(), TypeCloze))

	low := DifficultyParts{KindFactor: -0.1}
	assert.GreaterOrEqual(t, low.Score(Weights{Base: 0}, TypeQA), MinDifficulty)
}

func TestLowConfidencePenalty(t *testing.T) {
	scorer := fixedComplexity(0)
	sure := difficultyParts(scorer, "Entropy is disorder.", nil, extract.KindDefinition, 0.9)
	unsure := difficultyParts(scorer, "Entropy is disorder.", nil, extract.KindDefinition, 0.2)
	zero := difficultyParts(scorer, "Entropy is disorder.", nil, extract.KindDefinition, 0)

	assert.Zero(t, sure.Penalty)
	assert.InDelta(t, 0.38, unsure.Penalty, 1e-9)
	assert.InDelta(t, 0.5, zero.Penalty, 1e-9)
}

type fixedComplexity float64

func (f fixedComplexity) Complexity(string) float64 { return float64(f) }

func TestHotspot(t *testing.T) {
	points := []extract.Knowledge{
		point("The nucleus stores genetic material.", extract.KindFact, "nucleus"),
		point("Ribosomes build proteins from amino acids.", extract.KindFact, "Ribosomes"),
		point("Rain forms when vapor condenses.", extract.KindFact, "Rain"),
	}
	other := point("The Golgi apparatus packages proteins.", extract.KindFact, "Golgi")
	other.ChapterID = "ch-9"
	points = append(points, other)

	fig := Figure{
		ChapterID: "ch-0",
		Image:     doctree.ImageData{Path: "cell.png", Page: 1, Caption: "Diagram of an animal cell showing the nucleus, ribosomes and Golgi apparatus"},
	}
	cards := byType(New(DefaultConfig(), nil).Synthesize(points, []Figure{fig}), TypeImageHotspot)

	require.Len(t, cards, 1)
	c := cards[0]
	regions, ok := c.Metadata["regions"].([]Region)
	require.True(t, ok)
	require.Len(t, regions, 2)
	assert.Equal(t, "nucleus", regions[0].Label)
	assert.Equal(t, "Ribosomes", regions[1].Label)
	for _, r := range regions {
		assert.GreaterOrEqual(t, r.X, 0.0)
		assert.GreaterOrEqual(t, r.Y, 0.0)
		assert.LessOrEqual(t, r.X+r.W, 1.0)
		assert.LessOrEqual(t, r.Y+r.H, 1.0)
		assert.GreaterOrEqual(t, r.W, 0.1)
		assert.LessOrEqual(t, r.W, 0.3)
	}
	assert.Equal(t, "cell.png", c.Metadata["image_path"])
	assert.GreaterOrEqual(t, c.Difficulty, MinDifficulty)
	assert.LessOrEqual(t, c.Difficulty, MaxDifficulty)
}

func TestHotspot_CapAndNoCaption(t *testing.T) {
	var points []extract.Knowledge
	for _, w := range []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "theta"} {
		points = append(points, point(w+" is a Greek letter.", extract.KindFact, w))
	}
	s := New(DefaultConfig(), nil)

	fig := Figure{ChapterID: "ch-0", Image: doctree.ImageData{Caption: "alpha beta gamma delta epsilon zeta theta"}}
	cards := byType(s.Synthesize(points, []Figure{fig}), TypeImageHotspot)
	require.Len(t, cards, 1)
	assert.Len(t, cards[0].Metadata["regions"], 5)

	bare := Figure{ChapterID: "ch-0", Image: doctree.ImageData{Path: "x.png"}}
	assert.Empty(t, byType(s.Synthesize(points, []Figure{bare}), TypeImageHotspot))
}

func TestRegionSize(t *testing.T) {
	assert.InDelta(t, 0.1, regionSize(0), 1e-9)
	assert.InDelta(t, 0.2, regionSize(200), 1e-9)
	assert.InDelta(t, 0.3, regionSize(5000), 1e-9)

	x, y := placeRegion(0, 0.3)
	assert.InDelta(t, 0.1, x, 1e-9)
	assert.InDelta(t, 0.1, y, 1e-9)
	x, y = placeRegion(4, 0.3)
	assert.InDelta(t, 0.6, x, 1e-9)
	assert.InDelta(t, 0.6, y, 1e-9)
}
