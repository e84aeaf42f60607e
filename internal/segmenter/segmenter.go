package segmenter

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/deckgest/internal/doctree"
	"github.com/dgallion1/deckgest/internal/nlp"
)

// Config controls segmentation behavior. Lengths are in characters.
type Config struct {
	MinLength           int     `toml:"min_length"`           // Segments below this are merge candidates.
	MaxLength           int     `toml:"max_length"`           // Hard ceiling for packed segments.
	MinSentenceLength   int     `toml:"min_sentence_length"`  // Shorter sentences never start a new segment.
	SimilarityThreshold float64 `toml:"similarity_threshold"` // Content-token Jaccard needed to merge two segments.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinLength:           300,
		MaxLength:           600,
		MinSentenceLength:   10,
		SimilarityThreshold: 0.7,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinLength <= 0 {
		c.MinLength = d.MinLength
	}
	if c.MaxLength <= 0 {
		c.MaxLength = d.MaxLength
	}
	if c.MaxLength < c.MinLength {
		c.MaxLength = c.MinLength
	}
	if c.MinSentenceLength <= 0 {
		c.MinSentenceLength = d.MinSentenceLength
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = d.SimilarityThreshold
	}
	return c
}

// Segmenter cleans and re-chunks chapter blocks.
type Segmenter struct {
	cfg Config
}

func New(cfg Config) *Segmenter {
	return &Segmenter{cfg: cfg.withDefaults()}
}

// Segment turns a chapter's blocks into bounded-length segments. Text is
// only ever re-chunked: every cleaned character of the input ends up in
// exactly one output segment.
func (s *Segmenter) Segment(blocks []doctree.TextBlock, chapterID string) []doctree.TextSegment {
	var segs []piece
	for i, b := range blocks {
		text := Clean(b.Text)
		if text == "" {
			continue
		}
		anchors := doctree.Anchors{
			Page:       b.Page,
			ChapterID:  chapterID,
			BlockIndex: i,
			BBox:       b.BBox,
		}
		for _, part := range s.splitBlock(text) {
			segs = append(segs, piece{text: part, anchors: anchors, blocks: []int{i}})
		}
	}

	segs = s.mergeSimilar(segs)
	segs = s.optimizeSizes(segs)

	out := make([]doctree.TextSegment, 0, len(segs))
	for _, p := range segs {
		out = append(out, p.segment())
	}
	return out
}

// piece is a segment under construction.
type piece struct {
	text    string
	anchors doctree.Anchors
	blocks  []int
}

func (p piece) segment() doctree.TextSegment {
	return doctree.TextSegment{
		Text:                 p.text,
		CharCount:            charLen(p.text),
		WordCount:            nlp.WordCount(p.text),
		SentenceCount:        len(nlp.SplitSentences(p.text)),
		Anchors:              p.anchors,
		OriginalBlockIndices: p.blocks,
	}
}

func (p piece) absorb(other piece) piece {
	p.text = p.text + " " + other.text
	p.blocks = unionSorted(p.blocks, other.blocks)
	return p
}

// splitBlock emits a cleaned block as-is when it fits, otherwise packs its
// sentences greedily into buffers of at most MaxLength.
func (s *Segmenter) splitBlock(text string) []string {
	if charLen(text) <= s.cfg.MaxLength {
		return []string{text}
	}

	var result []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			result = append(result, current.String())
			current.Reset()
		}
	}

	for _, sent := range nlp.SplitSentences(text) {
		sentLen := charLen(sent)

		// Noise-length sentences ride along with their neighbor.
		if sentLen < s.cfg.MinSentenceLength && current.Len() > 0 &&
			charLen(current.String())+1+sentLen <= s.cfg.MaxLength {
			current.WriteString(" ")
			current.WriteString(sent)
			continue
		}

		if sentLen > s.cfg.MaxLength {
			flush()
			result = append(result, splitWords(sent, s.cfg.MaxLength)...)
			continue
		}

		if current.Len() > 0 && charLen(current.String())+1+sentLen > s.cfg.MaxLength {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
	}
	flush()

	return result
}

// splitWords hard-wraps a run-on sentence at word boundaries.
func splitWords(text string, maxLen int) []string {
	var result []string
	var current strings.Builder
	for _, w := range strings.Fields(text) {
		if current.Len() > 0 && charLen(current.String())+1+charLen(w) > maxLen {
			result = append(result, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(w)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// mergeSimilar folds near-duplicate segments into the first of them. Each
// anchor is compared with its original tokens, so one pass may absorb several
// neighbors but never chains through an absorbed segment.
func (s *Segmenter) mergeSimilar(segs []piece) []piece {
	if len(segs) < 2 {
		return segs
	}
	tokens := make([]map[string]struct{}, len(segs))
	for i, p := range segs {
		tokens[i] = nlp.ContentTokens(p.text)
	}

	absorbed := make([]bool, len(segs))
	var out []piece
	for i := range segs {
		if absorbed[i] {
			continue
		}
		cur := segs[i]
		for j := i + 1; j < len(segs); j++ {
			if absorbed[j] {
				continue
			}
			if nlp.Jaccard(tokens[i], tokens[j]) < s.cfg.SimilarityThreshold {
				continue
			}
			if charLen(cur.text)+1+charLen(segs[j].text) > s.cfg.MaxLength {
				continue
			}
			cur = cur.absorb(segs[j])
			absorbed[j] = true
		}
		out = append(out, cur)
	}
	return out
}

// optimizeSizes merges undersized segments forward while the pair still
// fits. Segments that cannot grow are kept rather than dropped.
func (s *Segmenter) optimizeSizes(segs []piece) []piece {
	if len(segs) < 2 {
		return segs
	}
	out := make([]piece, 0, len(segs))
	cur := segs[0]
	for _, next := range segs[1:] {
		if charLen(cur.text) < s.cfg.MinLength && charLen(cur.text)+1+charLen(next.text) <= s.cfg.MaxLength {
			cur = cur.absorb(next)
			continue
		}
		out = append(out, cur)
		cur = next
	}
	return append(out, cur)
}

func charLen(s string) int {
	return utf8.RuneCountInString(s)
}

func unionSorted(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i >= len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
