package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minPointLen    = 3
	maxPointLen    = 500
	maxEntities    = 5
	maxEntityRunes = 80
)

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions)`,
)

// ValidateCandidate checks a model-proposed point. Returns true if valid.
// Entities are trimmed and capped in place.
func ValidateCandidate(c *Candidate) bool {
	if c == nil {
		return false
	}
	c.Text = strings.TrimSpace(c.Text)
	n := utf8.RuneCountInString(c.Text)
	if n < minPointLen || n > maxPointLen {
		return false
	}
	c.Kind = Kind(strings.ToLower(strings.TrimSpace(string(c.Kind))))
	if !c.Kind.Valid() {
		return false
	}
	if injectionPattern.MatchString(c.Text) {
		return false
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return false
	}

	ents := c.Entities[:0]
	for _, e := range c.Entities {
		e = strings.TrimSpace(e)
		if e == "" || utf8.RuneCountInString(e) > maxEntityRunes || injectionPattern.MatchString(e) {
			continue
		}
		ents = append(ents, e)
		if len(ents) == maxEntities {
			break
		}
	}
	c.Entities = ents
	return true
}
