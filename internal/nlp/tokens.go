package nlp

import (
	"strings"
	"unicode"
)

var stopwords = func() map[string]struct{} {
	words := strings.Fields(`a an and are as at be been being but by can could did do does for from had has have
		he her his how i if in into is it its just may might more most no not of on or our over she should so
		some such than that the their them then there these they this those through to too under up was we were
		what when where which while who whom why will with would you your also about after again all am any
		because before between both each few further here himself itself me my myself nor only other out own
		same itself very s t don now`)
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// IsStopword reports whether the lowercased word is a common function word.
func IsStopword(w string) bool {
	_, ok := stopwords[strings.ToLower(w)]
	return ok
}

// Words splits text into lowercased runs of letters and digits.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// WordSet returns the set of lowercased words in text.
func WordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range Words(text) {
		set[w] = struct{}{}
	}
	return set
}

// ContentTokens returns the lowercased words of text with stopwords, numbers
// and punctuation removed.
func ContentTokens(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range Words(text) {
		if IsStopword(w) || isNumeric(w) {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func isNumeric(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return w != ""
}

// Jaccard is |a∩b| / |a∪b|. Two empty sets have similarity 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// WordJaccard compares the full lowercased word sets of two strings.
func WordJaccard(a, b string) float64 {
	return Jaccard(WordSet(a), WordSet(b))
}

// ContentJaccard compares two strings after stopword and number removal.
func ContentJaccard(a, b string) float64 {
	return Jaccard(ContentTokens(a), ContentTokens(b))
}

// WordOverlap is the overlap coefficient |a∩b| / min(|a|,|b|) over content
// tokens, so a span fully contained in another scores 1.
func WordOverlap(a, b string) float64 {
	sa, sb := ContentTokens(a), ContentTokens(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(min(len(sa), len(sb)))
}

// SplitSentences splits on terminal punctuation followed by whitespace.
// Terminal punctuation stays with its sentence.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	runes := []rune(text)

	for i, r := range runes {
		current.WriteRune(r)
		terminal := r == '.' || r == '!' || r == '?' || r == '。' || r == '！' || r == '？'
		if !terminal {
			continue
		}
		if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) || r > unicode.MaxASCII {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// CountOccurrences counts case-sensitive, non-overlapping occurrences.
func CountOccurrences(text, sub string) int {
	if sub == "" {
		return 0
	}
	return strings.Count(text, sub)
}
