package nlp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("First one. Second one! Third? trailing")
	assert.Equal(t, []string{"First one.", "Second one!", "Third?", "trailing"}, got)
}

func TestSplitSentences_DecimalsStayTogether(t *testing.T) {
	got := SplitSentences("Pi is 3.14 roughly. Done.")
	assert.Equal(t, []string{"Pi is 3.14 roughly.", "Done."}, got)
}

func TestContentTokensDropsStopwordsAndNumbers(t *testing.T) {
	toks := ContentTokens("The 3 cats and the dog, 2024!")
	assert.Contains(t, toks, "cats")
	assert.Contains(t, toks, "dog")
	assert.NotContains(t, toks, "the")
	assert.NotContains(t, toks, "3")
	assert.NotContains(t, toks, "2024")
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, WordJaccard("alpha beta", "Beta alpha"))
	assert.Equal(t, 0.0, WordJaccard("", ""))
	assert.InDelta(t, 1.0/3.0, WordJaccard("a b", "b c"), 1e-9)
}

func TestWordOverlapContainment(t *testing.T) {
	assert.Equal(t, 1.0, WordOverlap("machine learning", "machine learning is a subset of statistics"))
	assert.Equal(t, 0.0, WordOverlap("", "anything"))
}

func TestHeuristicEntities(t *testing.T) {
	ents, err := HeuristicEntities{}.Extract(context.Background(), "Machine Learning is a subset of AI. It was named by Arthur Samuel.")
	require.NoError(t, err)

	texts := EntityTexts(ents)
	assert.Contains(t, texts, "Machine Learning")
	assert.Contains(t, texts, "AI")
	assert.Contains(t, texts, "Arthur Samuel")
	assert.NotContains(t, texts, "It")
}

func TestHeuristicEntities_DefinedTerm(t *testing.T) {
	ents, err := HeuristicEntities{}.Extract(context.Background(), "photosynthesis is the process plants use to make sugar.")
	require.NoError(t, err)
	assert.Contains(t, EntityTexts(ents), "photosynthesis")
}

func TestComplexityBounds(t *testing.T) {
	c := HeuristicComplexity{}
	assert.Equal(t, 0.0, c.Complexity(""))
	simple := c.Complexity("The cat sat. The dog ran.")
	hard := c.Complexity("Notwithstanding considerable methodological heterogeneity, longitudinal epidemiological investigations, conducted internationally; demonstrate correlations.")
	assert.Less(t, simple, hard)
	assert.LessOrEqual(t, hard, 1.0)
}

func TestLexicalSimilarity(t *testing.T) {
	s, err := Lexical{}.Similarity(context.Background(), "What is Go?", "what is go?")
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)
}
