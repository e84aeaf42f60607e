package cards

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/deckgest/internal/extract"
)

// BlankScores are the named parts of an entity's suitability as a blank.
type BlankScores struct {
	LengthFit    float64
	FrequencyFit float64
	Position     float64
	WordFit      float64
}

// Total is the unweighted mean of the parts.
func (b BlankScores) Total() float64 {
	return (b.LengthFit + b.FrequencyFit + b.Position + b.WordFit) / 4
}

type blankCandidate struct {
	text  string
	score float64
}

// scoreBlank rates one entity against text. ok is false when the entity
// does not occur as a whole word.
func scoreBlank(text, entity string) (BlankScores, bool) {
	first := indexWord(text, entity, 0)
	if first < 0 {
		return BlankScores{}, false
	}
	var s BlankScores

	switch n := utf8.RuneCountInString(entity); {
	case n >= 3 && n <= 15:
		s.LengthFit = 1
	case n < 3:
		s.LengthFit = 0.2
	default:
		s.LengthFit = max(0, 1-float64(n-15)/15)
	}

	switch c := countWord(text, entity); {
	case c <= 2:
		s.FrequencyFit = 1
	case c == 3:
		s.FrequencyFit = 0.5
	default:
		s.FrequencyFit = -0.5
	}

	if float64(first) >= 0.1*float64(len(text)) {
		s.Position = 1
	}

	switch w := len(strings.Fields(entity)); w {
	case 1:
		s.WordFit = 1
	case 2:
		s.WordFit = 0.7
	case 3:
		s.WordFit = 0.4
	}
	return s, true
}

// selectBlanks returns the entities to blank, longest first.
func (s *Synthesizer) selectBlanks(text string, entities []string) []string {
	seen := make(map[string]bool)
	var cands []blankCandidate
	for _, e := range entities {
		e = strings.TrimSpace(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		sc, ok := scoreBlank(text, e)
		if !ok || sc.Total() <= 0 {
			continue
		}
		cands = append(cands, blankCandidate{text: e, score: sc.Total()})
	}
	if len(cands) < s.cfg.MinClozeBlanks {
		return nil
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].text < cands[j].text
	})
	if len(cands) > s.cfg.MaxClozeBlanks {
		cands = cands[:s.cfg.MaxClozeBlanks]
	}

	chosen := make([]string, len(cands))
	for i, c := range cands {
		chosen[i] = c.text
	}
	sort.SliceStable(chosen, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(chosen[i]), utf8.RuneCountInString(chosen[j])
		if li != lj {
			return li > lj
		}
		return chosen[i] < chosen[j]
	})
	return chosen
}

func (s *Synthesizer) cloze(k extract.Knowledge) []Card {
	chosen := s.selectBlanks(k.Text, k.Entities)
	if len(chosen) == 0 {
		return nil
	}

	// Blanks are located in the original text so a later entity never
	// matches inside an earlier [n] marker.
	var blanks []blankSpan
	var answers []string
	for _, e := range chosen {
		i := indexFree(k.Text, e, blanks)
		if i < 0 {
			continue
		}
		answers = append(answers, e)
		blanks = append(blanks, blankSpan{start: i, end: i + len(e), n: len(answers)})
	}
	front := fillBlanks(k.Text, blanks)
	if len(answers) < s.cfg.MinClozeBlanks {
		return nil
	}

	c := s.newCard(TypeCloze, k, front, k.Text)
	c.Metadata["answers"] = answers
	c.Metadata["blank_count"] = len(answers)
	return []Card{c}
}

type blankSpan struct {
	start, end int
	n          int
}

// indexFree is indexWord skipping occurrences that overlap a taken span.
func indexFree(text, word string, taken []blankSpan) int {
	for from := 0; ; {
		i := indexWord(text, word, from)
		if i < 0 {
			return -1
		}
		end := i + len(word)
		free := true
		for _, b := range taken {
			if i < b.end && b.start < end {
				free = false
				break
			}
		}
		if free {
			return i
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		from = i + size
	}
}

// fillBlanks replaces each span with its [n] marker.
func fillBlanks(text string, blanks []blankSpan) string {
	sorted := append([]blankSpan(nil), blanks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })
	var b strings.Builder
	prev := 0
	for _, bl := range sorted {
		b.WriteString(text[prev:bl.start])
		fmt.Fprintf(&b, "[%d]", bl.n)
		prev = bl.end
	}
	b.WriteString(text[prev:])
	return b.String()
}

// indexWord finds word in text at or after from, bounded by non-word runes.
func indexWord(text, word string, from int) int {
	if word == "" {
		return -1
	}
	for from <= len(text) {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(word)
		if boundaryBefore(text, i) && boundaryAfter(text, end) {
			return i
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		from = i + size
	}
	return -1
}

func countWord(text, word string) int {
	n := 0
	for i := indexWord(text, word, 0); i >= 0; i = indexWord(text, word, i+len(word)) {
		n++
	}
	return n
}

func boundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
