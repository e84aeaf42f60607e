package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/deckgest/internal/cards"
	"github.com/dgallion1/deckgest/internal/doctree"
)

func card(id string, t cards.Type, front, back string) cards.Card {
	return cards.Card{
		ID:          id,
		Type:        t,
		Front:       front,
		Back:        back,
		Difficulty:  1.5,
		KnowledgeID: "k-" + id,
		Source:      cards.SourceInfo{ChapterID: "ch-" + id, Anchors: doctree.Anchors{Page: 1, ChapterID: "ch-" + id}},
		Metadata:    map[string]any{"kind": "definition"},
	}
}

// pairSim scores texts by a fixed table; unknown pairs are dissimilar.
type pairSim map[[2]string]float64

func (p pairSim) Similarity(_ context.Context, a, b string) (float64, error) {
	if s, ok := p[[2]string{a, b}]; ok {
		return s, nil
	}
	if s, ok := p[[2]string{b, a}]; ok {
		return s, nil
	}
	return 0, nil
}

type failingSim struct{}

func (failingSim) Similarity(context.Context, string, string) (float64, error) {
	return 0, errors.New("embedding service down")
}

func ids(cs []cards.Card) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestDeduplicate_CollapsesDuplicateQA(t *testing.T) {
	in := []cards.Card{
		card("a", cards.TypeQA, "What is Machine Learning?", "A subset of AI."),
		card("b", cards.TypeQA, "what is  machine learning?", "A subset of AI."),
		card("c", cards.TypeCloze, "[1] is a subset of AI.", "Machine Learning is a subset of AI."),
	}
	out, stats := New(DefaultConfig(), nil, nil).Deduplicate(context.Background(), in)

	require.Len(t, out, 2)
	assert.Equal(t, cards.TypeQA, out[0].Type)
	assert.Equal(t, cards.TypeCloze, out[1].Type)

	tr, ok := out[0].Metadata[TraceabilityKey].(Traceability)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"a", "b"}, tr.CardIDs)
	assert.ElementsMatch(t, []string{"k-a", "k-b"}, tr.KnowledgeIDs)
	assert.ElementsMatch(t, []string{"ch-a", "ch-b"}, tr.ChapterIDs)
	assert.Len(t, tr.Anchors, 2)
	assert.Equal(t, []float64{1}, tr.SimilarityScores)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Final)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 1, stats.Groups)
	assert.InDelta(t, 1.0/3, stats.Rate, 1e-9)
	assert.InDelta(t, 1.0, stats.AvgSimilarity, 1e-9)
	assert.False(t, stats.MeetsTarget)
}

func TestDeduplicate_DoesNotMutateInput(t *testing.T) {
	in := []cards.Card{
		card("a", cards.TypeQA, "Q", "A"),
		card("b", cards.TypeQA, "Q", "A"),
	}
	New(DefaultConfig(), nil, nil).Deduplicate(context.Background(), in)
	_, has := in[0].Metadata[TraceabilityKey]
	assert.False(t, has)
	_, has = in[1].Metadata[TraceabilityKey]
	assert.False(t, has)
}

func TestDeduplicate_TypesNeverCompared(t *testing.T) {
	in := []cards.Card{
		card("a", cards.TypeQA, "same", "same"),
		card("b", cards.TypeCloze, "same", "same"),
		card("c", cards.TypeImageHotspot, "same", "same"),
	}
	out, stats := New(DefaultConfig(), nil, nil).Deduplicate(context.Background(), in)
	assert.Equal(t, []string{"a", "b", "c"}, ids(out))
	assert.Zero(t, stats.Removed)
	assert.True(t, stats.MeetsTarget)
}

func TestDeduplicate_MembershipIsAnchorOnly(t *testing.T) {
	sim := pairSim{
		{"A", "B"}: 0.95,
		{"B", "C"}: 0.95,
		{"A", "C"}: 0.2,
	}
	in := []cards.Card{
		card("a", cards.TypeQA, "A", "A"),
		card("b", cards.TypeQA, "B", "B"),
		card("c", cards.TypeQA, "C", "C"),
	}
	d := New(DefaultConfig(), sim, nil)
	groups := d.FindGroups(context.Background(), in)

	require.Len(t, groups, 1)
	assert.Equal(t, 0, groups[0].Anchor)
	assert.Equal(t, []int{1}, groups[0].Members)

	out, _ := d.Deduplicate(context.Background(), in)
	assert.Len(t, out, 2)
	assert.Equal(t, "c", out[len(out)-1].ID)
}

func TestDeduplicate_PrimaryPrefersRicherCard(t *testing.T) {
	plain := card("plain", cards.TypeQA, "What is osmosis?", "Water movement.")
	rich := card("rich", cards.TypeQA, "What is osmosis?", "Water movement.")
	rich.Entities = []string{"osmosis", "water"}
	rich.Metadata["method"] = "llm"
	rich.Difficulty = 2.5

	out, _ := New(DefaultConfig(), nil, nil).Deduplicate(context.Background(), []cards.Card{plain, rich})
	require.Len(t, out, 1)
	assert.Equal(t, "rich", out[0].ID)
	tr := out[0].Metadata[TraceabilityKey].(Traceability)
	assert.Equal(t, []string{"rich", "plain"}, tr.CardIDs)
}

func TestDeduplicate_Converges(t *testing.T) {
	in := []cards.Card{
		card("a", cards.TypeQA, "What is a cell?", "The basic unit of life."),
		card("b", cards.TypeQA, "What is a cell?", "The basic unit of life."),
		card("c", cards.TypeQA, "What is a tissue?", "A group of similar cells."),
		card("d", cards.TypeCloze, "A [1] is a group of similar cells.", "A tissue is a group of similar cells."),
		card("e", cards.TypeCloze, "A [1] is a group of similar cells.", "A tissue is a group of similar cells."),
		card("f", cards.TypeQA, "What is an organ?", "A structure of tissues."),
	}
	d := New(DefaultConfig(), nil, nil)
	once, _ := d.Deduplicate(context.Background(), in)
	twice, stats := d.Deduplicate(context.Background(), once)

	assert.Equal(t, once, twice)
	assert.Zero(t, stats.Removed)
	assert.Equal(t, []string{"a", "c", "d", "f"}, ids(once))
}

func TestDeduplicate_ChainConvergesWhenMiddleCardWins(t *testing.T) {
	sim := pairSim{
		{"A", "B"}: 0.95,
		{"B", "C"}: 0.95,
		{"A", "C"}: 0.5,
	}
	b := card("b", cards.TypeQA, "B", "B")
	b.Entities = []string{"x", "y"}
	in := []cards.Card{
		card("a", cards.TypeQA, "A", "A"),
		b,
		card("c", cards.TypeQA, "C", "C"),
	}
	d := New(DefaultConfig(), sim, nil)

	once, stats := d.Deduplicate(context.Background(), in)
	require.Equal(t, []string{"b"}, ids(once))
	assert.Equal(t, 2, stats.Removed)
	assert.Equal(t, 2, stats.Groups)

	tr := once[0].Metadata[TraceabilityKey].(Traceability)
	assert.Equal(t, []string{"b", "a", "c"}, tr.CardIDs)
	assert.Equal(t, []string{"k-b", "k-a", "k-c"}, tr.KnowledgeIDs)
	assert.Len(t, tr.Anchors, 3)
	assert.Len(t, tr.SimilarityScores, 2)

	twice, stats := d.Deduplicate(context.Background(), once)
	assert.Equal(t, once, twice)
	assert.Zero(t, stats.Removed)
}

func TestDeduplicate_MergesTraceabilityOfDroppedMember(t *testing.T) {
	merged := card("x", cards.TypeQA, "What is a cell?", "The basic unit of life.")
	merged.Metadata[TraceabilityKey] = Traceability{
		CardIDs:          []string{"x", "y"},
		KnowledgeIDs:     []string{"k-x", "k-y"},
		ChapterIDs:       []string{"ch-x", "ch-y"},
		Anchors:          []doctree.Anchors{{Page: 1}, {Page: 2}},
		SimilarityScores: []float64{1},
	}
	richer := card("z", cards.TypeQA, "What is a cell?", "The basic unit of life.")
	richer.Entities = []string{"cell"}

	out, _ := New(DefaultConfig(), nil, nil).Deduplicate(context.Background(), []cards.Card{merged, richer})
	require.Equal(t, []string{"z"}, ids(out))

	tr := out[0].Metadata[TraceabilityKey].(Traceability)
	assert.Equal(t, []string{"z", "x", "y"}, tr.CardIDs)
	assert.Equal(t, []string{"k-z", "k-x", "k-y"}, tr.KnowledgeIDs)
	assert.Equal(t, []string{"ch-z", "ch-x", "ch-y"}, tr.ChapterIDs)
	assert.Len(t, tr.Anchors, 3)
	assert.Equal(t, []float64{1, 1}, tr.SimilarityScores)
}

func TestDeduplicate_OracleFailureFallsBackToLexical(t *testing.T) {
	in := []cards.Card{
		card("a", cards.TypeQA, "What does mitochondria produce energy", "ATP energy currency cells"),
		card("b", cards.TypeQA, "What does mitochondria produce energy?", "ATP energy currency cells!"),
	}
	out, stats := New(DefaultConfig(), failingSim{}, nil).Deduplicate(context.Background(), in)
	assert.Len(t, out, 1)
	assert.Equal(t, 1, stats.Removed)
}

func TestCardSimilarity_NegativeFloored(t *testing.T) {
	sim := pairSim{{"x", "y"}: -0.7}
	d := New(DefaultConfig(), sim, nil)
	a := card("a", cards.TypeQA, "x", "x")
	b := card("b", cards.TypeQA, "y", "y")
	assert.InDelta(t, 0.1/1.1, d.CardSimilarity(context.Background(), a, b), 1e-9)
}

func TestMetadataSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, MetadataSimilarity(nil, map[string]any{}))
	assert.Equal(t, 1.0, MetadataSimilarity(
		map[string]any{"kind": "fact", TraceabilityKey: Traceability{CardIDs: []string{"x"}}},
		map[string]any{"kind": "fact"},
	))
	assert.InDelta(t, 1.0/3, MetadataSimilarity(
		map[string]any{"kind": "fact", "method": "rules"},
		map[string]any{"kind": "fact", "method": "llm"},
	), 1e-9)
	assert.Equal(t, 0.0, MetadataSimilarity(
		map[string]any{"answers": []string{"x"}},
		map[string]any{"kind": "fact"},
	))
}

func TestDeduplicate_Empty(t *testing.T) {
	out, stats := New(Config{}, nil, nil).Deduplicate(context.Background(), nil)
	assert.Empty(t, out)
	assert.Equal(t, Stats{MeetsTarget: true}, stats)
}
