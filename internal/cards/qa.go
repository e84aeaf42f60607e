package cards

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/deckgest/internal/extract"
	"github.com/dgallion1/deckgest/internal/nlp"
)

var questionTemplates = map[extract.Kind]string{
	extract.KindDefinition: "What is %s?",
	extract.KindFact:       "What is known about %s?",
	extract.KindTheorem:    "What does %s state?",
	extract.KindProcess:    "How does %s work?",
	extract.KindExample:    "What is an example of %s?",
	extract.KindConcept:    "What is the idea behind %s?",
}

// definitionSplits are tried in order; the first match wins.
var definitionSplits = []*regexp.Regexp{
	regexp.MustCompile(`^(.{1,80}?)\s+(?:means|refers to|is defined as|denotes)\s+(.+)$`),
	regexp.MustCompile(`^(.{1,80}?)\s+(?:is|are)\s+(.+)$`),
	regexp.MustCompile(`^(.{1,80}?):\s+(.+)$`),
	regexp.MustCompile(`^(.{1,80}?)\s+[—–-]\s+(.+)$`),
}

var leadingArticleRe = regexp.MustCompile(`(?i)^(a|an|the)\s+`)

const maxTermWords = 6

// splitDefinition parses "term <sep> definition". The term keeps a leading
// article, lowercased.
func splitDefinition(text string) (term, definition string, ok bool) {
	text = strings.TrimSpace(text)
	for _, re := range definitionSplits {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		term = strings.TrimSpace(m[1])
		definition = strings.TrimSpace(m[2])
		if term == "" || utf8.RuneCountInString(definition) < 2 {
			continue
		}
		if nlp.WordCount(bareTerm(term)) > maxTermWords {
			continue
		}
		if loc := leadingArticleRe.FindStringIndex(term); loc != nil {
			term = strings.ToLower(term[:loc[1]]) + term[loc[1]:]
		}
		return term, definition, true
	}
	return "", "", false
}

func bareTerm(term string) string {
	return leadingArticleRe.ReplaceAllString(term, "")
}

func (s *Synthesizer) qa(k extract.Knowledge) []Card {
	if k.Kind == extract.KindDefinition {
		if term, def, ok := splitDefinition(k.Text); ok {
			return s.definitionCards(k, term, def)
		}
	}

	term := keyTerm(k)
	if term == "" {
		return nil
	}
	tmpl, ok := questionTemplates[k.Kind]
	if !ok {
		tmpl = questionTemplates[extract.KindConcept]
	}
	return []Card{s.newCard(TypeQA, k, fmt.Sprintf(tmpl, term), k.Text)}
}

func (s *Synthesizer) definitionCards(k extract.Knowledge, term, def string) []Card {
	forward := s.newCard(TypeQA, k, fmt.Sprintf(questionTemplates[extract.KindDefinition], term), capitalize(def))
	out := []Card{forward}

	bare := bareTerm(term)
	if nlp.WordCount(bare) <= s.cfg.ReverseMaxTermWords && matchesEntity(bare, k.Entities) {
		cue := strings.TrimRight(def, ".!?;: ")
		rev := s.newCard(TypeQA, k, fmt.Sprintf("What term is defined as: %s?", cue), capitalize(bare))
		rev.Difficulty = clampDifficulty(forward.Difficulty * s.cfg.ReverseMultiplier)
		rev.Metadata["reverse"] = true
		out = append(out, rev)
	}
	return out
}

// keyTerm is the first entity, or the first content word of the text.
func keyTerm(k extract.Knowledge) string {
	for _, e := range k.Entities {
		if e = strings.TrimSpace(e); e != "" {
			return e
		}
	}
	for _, w := range nlp.Words(k.Text) {
		if !nlp.IsStopword(w) && utf8.RuneCountInString(w) > 2 {
			return w
		}
	}
	return ""
}

func matchesEntity(term string, entities []string) bool {
	lt := strings.ToLower(term)
	for _, e := range entities {
		le := strings.ToLower(strings.TrimSpace(e))
		if le == "" {
			continue
		}
		if le == lt || strings.Contains(lt, le) || strings.Contains(le, lt) {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
