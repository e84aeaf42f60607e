package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/deckgest/internal/nlp"
)

// RulePatterns are the regex families that classify a sentence.
type RulePatterns map[Kind][]*regexp.Regexp

// DefaultRulePatterns returns the built-in English pattern families.
func DefaultRulePatterns() RulePatterns {
	return RulePatterns{
		KindTheorem: {
			regexp.MustCompile(`(?i)^(theorem|lemma|corollary|proposition|axiom)\b[^:.]{0,60}[:.]\s*\S`),
			regexp.MustCompile(`(?i)\b(the\s+\w+\s+theorem|theorem\s+states|law\s+of\s+\w+|principle\s+of\s+\w+)\b`),
		},
		KindDefinition: {
			regexp.MustCompile(`(?i)^(?:an?\s+|the\s+)?[\p{L}][\p{L}\p{N}\- ]{1,60}?\s+(is|are)\s+(a|an|the|any|one)\s+\S`),
			regexp.MustCompile(`(?i)\b(means|refers\s+to|is\s+defined\s+as|is\s+known\s+as|is\s+called|denotes)\b`),
			regexp.MustCompile(`^[\p{Lu}][^:]{1,50}:\s+\S`),
		},
		KindProcess: {
			regexp.MustCompile(`(?i)^(step\s+\d+|first(ly)?,|second(ly)?,|next,|then,|finally,)`),
			regexp.MustCompile(`(?i)^to\s+\w+[^,]{0,80},\s*\S`),
			regexp.MustCompile(`(?i)\b(the\s+process\s+of|the\s+steps?\s+(are|is|include)|procedure\s+for)\b`),
		},
		KindFact: {
			regexp.MustCompile(`(?i)\b(research|studies|study|evidence|data|experiments?|surveys?)\s+(shows?|suggests?|indicates?|demonstrates?|found|reveals?)\b`),
			regexp.MustCompile(`(?i)\b(according\s+to|it\s+is\s+estimated|approximately|\d+(\.\d+)?\s*(%|percent))`),
			regexp.MustCompile(`\b(in|since|by|until)\s+\d{4}\b`),
		},
		KindExample: {
			regexp.MustCompile(`(?i)\b(for\s+example|for\s+instance|e\.g\.|such\s+as|consider\s+the)\b`),
		},
		KindConcept: {
			regexp.MustCompile(`(?i)\b(the\s+(concept|idea|notion|theory)\s+of|framework\s+for)\b`),
		},
	}
}

// RuleBackend classifies each sentence of a segment by pattern matching.
// It never fails and is always the last strategy.
type RuleBackend struct {
	Patterns           RulePatterns
	FallbackConfidence float64
}

// NewRuleBackend returns a rule backend with the default patterns.
func NewRuleBackend(fallbackConfidence float64) *RuleBackend {
	if fallbackConfidence <= 0 || fallbackConfidence > 1 {
		fallbackConfidence = 0.8
	}
	return &RuleBackend{Patterns: DefaultRulePatterns(), FallbackConfidence: fallbackConfidence}
}

func (r *RuleBackend) Name() string { return MethodRules }

func (r *RuleBackend) Extract(_ context.Context, in Input) ([]Candidate, error) {
	text := in.Segment.Text
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return nil, nil
	}

	var out []Candidate
	searchFrom := 0
	for _, sent := range nlp.SplitSentences(text) {
		offset := strings.Index(text[searchFrom:], sent)
		if offset >= 0 {
			offset += searchFrom
			searchFrom = offset + len(sent)
		} else {
			offset = searchFrom
		}

		kind, ok := r.classify(sent)
		if !ok {
			continue
		}
		relPos := float64(utf8.RuneCountInString(text[:offset])) / float64(total)
		sc := RuleScores{
			Specificity: kind.Specificity(),
			Length:      lengthFactor(utf8.RuneCountInString(sent)),
			Position:    1 - 0.5*relPos,
		}
		out = append(out, Candidate{
			Text:       sent,
			Kind:       kind,
			Confidence: r.FallbackConfidence * sc.Combined(),
			Entities:   entitiesIn(sent, in.Entities),
			Offset:     offset,
		})
	}
	return out, nil
}

// classify returns the most specific kind whose family matches.
func (r *RuleBackend) classify(sentence string) (Kind, bool) {
	for _, k := range Kinds {
		for _, re := range r.Patterns[k] {
			if re.MatchString(sentence) {
				return k, true
			}
		}
	}
	return "", false
}

// RuleScores are the named parts of a rule match's confidence.
type RuleScores struct {
	Specificity float64
	Length      float64
	Position    float64
}

// Combined is 0.5·specificity + 0.3·length + 0.2·position.
func (s RuleScores) Combined() float64 {
	return 0.5*s.Specificity + 0.3*s.Length + 0.2*s.Position
}

// lengthFactor favors spans of 40–300 characters.
func lengthFactor(n int) float64 {
	switch {
	case n < 20:
		return 0.2
	case n < 40:
		return 0.2 + 0.8*float64(n-20)/20
	case n <= 300:
		return 1
	case n >= 600:
		return 0.5
	default:
		return 1 - 0.5*float64(n-300)/300
	}
}

func entitiesIn(span string, ents []nlp.Entity) []string {
	lower := strings.ToLower(span)
	var out []string
	for _, e := range ents {
		if e.Text != "" && strings.Contains(lower, strings.ToLower(e.Text)) {
			out = append(out, e.Text)
		}
	}
	return out
}
