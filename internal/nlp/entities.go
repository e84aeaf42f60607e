package nlp

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Entity is a named span found in text.
type Entity struct {
	Text       string  `json:"text"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// EntityExtractor finds entities in a text span.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]Entity, error)
}

// EntityTexts returns the entity strings in order.
func EntityTexts(ents []Entity) []string {
	out := make([]string, 0, len(ents))
	for _, e := range ents {
		out = append(out, e.Text)
	}
	return out
}

// Entity types produced by HeuristicEntities.
const (
	EntityProper  = "PROPER"
	EntityAcronym = "ACRONYM"
	EntityTerm    = "TERM"
	EntityQuoted  = "QUOTED"
)

var (
	acronymRe    = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,7}s?\b`)
	quotedTermRe = regexp.MustCompile(`["“']([^"”']{3,40})["”']`)
	definedRe    = regexp.MustCompile(`(?i)^(?:an?\s+|the\s+)?([a-z][a-z\- ]{2,40}?)\s+(?:is|are|means|refers to)\s+`)
)

// HeuristicEntities is a dependency-free extractor based on capitalisation,
// acronyms, quotes and definitional sentence openings.
type HeuristicEntities struct {
	MaxEntities int
}

func (h HeuristicEntities) Extract(_ context.Context, text string) ([]Entity, error) {
	limit := h.MaxEntities
	if limit <= 0 {
		limit = 20
	}

	seen := make(map[string]bool)
	var out []Entity
	add := func(t, typ string, conf float64) {
		t = strings.TrimSpace(strings.Trim(t, ".,;:()[]"))
		if len([]rune(t)) < 2 {
			return
		}
		key := strings.ToLower(t)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Entity{Text: t, Type: typ, Confidence: conf})
	}

	for _, sent := range SplitSentences(text) {
		for _, phrase := range capitalizedPhrases(sent) {
			conf := 0.6
			if strings.Contains(phrase, " ") {
				conf = 0.8
			}
			add(phrase, EntityProper, conf)
		}
		if m := definedRe.FindStringSubmatch(sent); m != nil {
			term := strings.TrimSpace(m[1])
			if WordCount(term) <= 4 && !IsStopword(term) {
				add(term, EntityTerm, 0.7)
			}
		}
	}
	for _, m := range acronymRe.FindAllString(text, -1) {
		add(m, EntityAcronym, 0.75)
	}
	for _, m := range quotedTermRe.FindAllStringSubmatch(text, -1) {
		add(m[1], EntityQuoted, 0.65)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// capitalizedPhrases returns runs of Capitalised words. A lone capitalised
// word at sentence start is skipped unless it is not a stopword and is
// followed by another capitalised word.
func capitalizedPhrases(sentence string) []string {
	words := strings.Fields(sentence)
	var phrases []string
	var run []string
	runStart := -1

	flush := func() {
		if len(run) == 0 {
			return
		}
		// Trim trailing connectors.
		for len(run) > 0 && isConnector(run[len(run)-1]) {
			run = run[:len(run)-1]
		}
		if len(run) > 1 || (len(run) == 1 && runStart > 0 && !IsStopword(run[0])) {
			phrases = append(phrases, strings.Join(run, " "))
		}
		run = nil
		runStart = -1
	}

	for i, raw := range words {
		w := strings.Trim(raw, `.,;:!?()[]"'“”`)
		if w == "" {
			flush()
			continue
		}
		switch {
		case isCapitalized(w) && !isAllUpper(w):
			if runStart < 0 {
				runStart = i
			}
			run = append(run, w)
		case len(run) > 0 && isConnector(w):
			run = append(run, w)
		default:
			flush()
		}
		if raw != w && strings.ContainsAny(raw[len(raw)-1:], ".,;:!?)") {
			flush()
		}
	}
	flush()
	return phrases
}

func isConnector(w string) bool {
	return w == "of" || w == "and" || w == "de" || w == "von"
}

func isCapitalized(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}

func isAllUpper(w string) bool {
	letters := 0
	for _, r := range w {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return letters > 1
}
