package chapter

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/deckgest/internal/nlp"
)

// Pattern scores for heading-likeness.
const (
	patternStrong     = 0.9
	patternSubsection = 0.7
	patternKeyword    = 0.6
	patternShortTitle = 0.4
)

var (
	markdownHeadingRe = regexp.MustCompile(`^(#{1,6})\s+\S`)
	chapterMarkerRe   = regexp.MustCompile(`(?i)^(chapter|part|unit|lesson|module|book)\s+([0-9]+|[ivxlcdm]+|one|two|three|four|five|six|seven|eight|nine|ten)\b`)
	cjkChapterRe      = regexp.MustCompile(`^第[0-9一二三四五六七八九十百]+[章节部篇]`)
	numberedChapterRe = regexp.MustCompile(`^\d{1,2}\.?\s+\p{Lu}[^.!?]{0,80}$`)
	subsectionRe      = regexp.MustCompile(`^\d{1,2}(\.\d{1,2})+\.?\s+\S`)
	sectionWordRe     = regexp.MustCompile(`(?i)^(section|§)\s*\d+(\.\d+)*\b`)
	numericPrefixRe   = regexp.MustCompile(`^(\d{1,2}(?:\.\d{1,2})*)\.?\s`)
	listItemRe        = regexp.MustCompile(`^(?:[-*•·▪‣◦]\s|\(?[a-zA-Z0-9]{1,2}\)\s|\d{1,3}[.)]\s+\p{Ll})`)
)

var headingKeywords = []string{
	"introduction", "conclusion", "conclusions", "summary", "overview", "abstract",
	"references", "appendix", "background", "methods", "methodology", "results",
	"discussion", "exercises", "bibliography", "glossary", "preface", "foreword",
	"acknowledgements", "acknowledgments", "contents", "review questions", "key terms",
}

// patternScore rates how much a line looks like a heading by its text alone.
func patternScore(text string) float64 {
	t := strings.TrimSpace(text)
	if t == "" {
		return 0
	}
	if listItemRe.MatchString(t) || isLongSentence(t) {
		return 0
	}
	switch {
	case markdownHeadingRe.MatchString(t),
		chapterMarkerRe.MatchString(t),
		cjkChapterRe.MatchString(t),
		numberedChapterRe.MatchString(t) && !subsectionRe.MatchString(t):
		return patternStrong
	case subsectionRe.MatchString(t), sectionWordRe.MatchString(t):
		return patternSubsection
	case hasHeadingKeyword(t):
		return patternKeyword
	case isShortTitleLine(t):
		return patternShortTitle
	}
	return 0
}

func isLongSentence(t string) bool {
	return strings.HasSuffix(t, ".") && nlp.WordCount(t) > 12
}

func hasHeadingKeyword(t string) bool {
	if len(t) > 60 || strings.HasSuffix(t, ".") {
		return false
	}
	lower := strings.ToLower(strings.TrimLeft(t, "0123456789. "))
	for _, kw := range headingKeywords {
		if lower == kw || strings.HasPrefix(lower, kw+" ") || strings.HasPrefix(lower, kw+":") {
			return true
		}
	}
	return false
}

// isShortTitleLine matches short capitalised lines that do not read as a
// sentence: most significant words capitalised, or all caps.
func isShortTitleLine(t string) bool {
	if len(t) > 80 || len(t) < 3 {
		return false
	}
	if strings.ContainsAny(t[len(t)-1:], ".,;:") {
		return false
	}
	words := strings.Fields(t)
	if len(words) > 10 {
		return false
	}
	first := []rune(words[0])[0]
	if !unicode.IsUpper(first) && !unicode.IsDigit(first) {
		return false
	}
	significant, capitalised := 0, 0
	for _, w := range words {
		if nlp.IsStopword(w) {
			continue
		}
		r := []rune(w)[0]
		if !unicode.IsLetter(r) {
			continue
		}
		significant++
		if unicode.IsUpper(r) {
			capitalised++
		}
	}
	return significant > 0 && float64(capitalised)/float64(significant) >= 0.6
}

// headingLevel picks a hierarchy level from the heading's syntax, then its
// font size.
func headingLevel(text string, fontSize float64) int {
	t := strings.TrimSpace(text)
	if m := markdownHeadingRe.FindStringSubmatch(t); m != nil {
		return len(m[1])
	}
	if m := numericPrefixRe.FindStringSubmatch(t); m != nil {
		return strings.Count(m[1], ".") + 1
	}
	if chapterMarkerRe.MatchString(t) || cjkChapterRe.MatchString(t) {
		return 1
	}
	switch {
	case fontSize >= 18:
		return 1
	case fontSize >= 14:
		return 2
	}
	return 3
}

// headingTitle strips Markdown heading markers.
func headingTitle(text string) string {
	t := strings.TrimSpace(text)
	if markdownHeadingRe.MatchString(t) {
		t = strings.TrimSpace(strings.TrimLeft(t, "#"))
	}
	return t
}
