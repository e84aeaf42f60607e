package segmenter

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	pageNumberLineRe = regexp.MustCompile(`(?im)^[ \t]*(?:page[ \t]+)?[-–—]?[ \t]*\d{1,4}[ \t]*(?:of[ \t]+\d{1,4})?[ \t]*[-–—]?[ \t]*$`)
	ellipsisRe       = regexp.MustCompile(`\.{4,}|(?:\.\s){3,}\.?`)
	dashRunRe        = regexp.MustCompile(`-{4,}|[—–]{2,}`)
	bangRe           = regexp.MustCompile(`([!?])[!?]+`)
	whitespaceRe     = regexp.MustCompile(`\s+`)

	quoteReplacer = strings.NewReplacer(
		"“", `"`, "”", `"`, "„", `"`, "‟", `"`, "«", `"`, "»", `"`,
		"‘", "'", "’", "'", "‚", "'", "‛", "'", "`", "'",
	)
)

// Clean normalizes a block's raw text: page-number-only lines are dropped,
// punctuation runs are capped, quotes and compatibility characters are
// normalized, control characters are stripped and whitespace is collapsed.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	text = norm.NFKC.String(text)
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) || r == '\uFEFF' {
			return -1
		}
		return r
	}, text)
	text = pageNumberLineRe.ReplaceAllString(text, "")
	text = quoteReplacer.Replace(text)
	text = ellipsisRe.ReplaceAllString(text, "...")
	text = dashRunRe.ReplaceAllString(text, "---")
	text = bangRe.ReplaceAllString(text, "$1")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
