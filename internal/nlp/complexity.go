package nlp

import (
	"context"
	"strings"
	"unicode"
)

// ComplexityScorer rates how hard a text is to read, in [0,1].
type ComplexityScorer interface {
	Complexity(text string) float64
}

// HeuristicComplexity combines average sentence length, vocabulary ratio and
// punctuation density.
type HeuristicComplexity struct{}

// ComplexityParts are the named sub-scores behind HeuristicComplexity.
type ComplexityParts struct {
	SentenceLength float64
	Vocabulary     float64
	Punctuation    float64
}

// Combined is 0.4·sentence + 0.4·vocabulary + 0.2·punctuation.
func (p ComplexityParts) Combined() float64 {
	return clamp01(0.4*p.SentenceLength + 0.4*p.Vocabulary + 0.2*p.Punctuation)
}

func (HeuristicComplexity) Complexity(text string) float64 {
	return ComplexityBreakdown(text).Combined()
}

// ComplexityBreakdown computes the sub-scores for text.
func ComplexityBreakdown(text string) ComplexityParts {
	text = strings.TrimSpace(text)
	if text == "" {
		return ComplexityParts{}
	}
	words := Words(text)
	if len(words) == 0 {
		return ComplexityParts{}
	}
	sentences := max(len(SplitSentences(text)), 1)

	// 30 words per sentence saturates.
	avgLen := float64(len(words)) / float64(sentences)
	sentenceScore := clamp01(avgLen / 30)

	unique := make(map[string]struct{}, len(words))
	longWords := 0
	for _, w := range words {
		unique[w] = struct{}{}
		if len([]rune(w)) >= 8 {
			longWords++
		}
	}
	ratio := float64(len(unique)) / float64(len(words))
	vocabScore := clamp01(0.6*ratio + 0.4*float64(longWords)/float64(len(words))*2)

	punct := 0
	runes := 0
	for _, r := range text {
		runes++
		if unicode.IsPunct(r) {
			punct++
		}
	}
	punctScore := clamp01(float64(punct) / float64(runes) * 10)

	return ComplexityParts{
		SentenceLength: sentenceScore,
		Vocabulary:     vocabScore,
		Punctuation:    punctScore,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Similarity scores the semantic closeness of two texts in [-1,1].
type Similarity interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

// Lexical is a Similarity based on content-token Jaccard.
type Lexical struct{}

func (Lexical) Similarity(_ context.Context, a, b string) (float64, error) {
	if strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b)) && strings.TrimSpace(a) != "" {
		return 1, nil
	}
	return ContentJaccard(a, b), nil
}
