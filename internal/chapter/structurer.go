package chapter

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgallion1/deckgest/internal/doctree"
	"github.com/dgallion1/deckgest/internal/nlp"
)

// FallbackTitle names the single chapter used when no structure is found.
const FallbackTitle = "Document Content"

// Config controls heading detection.
type Config struct {
	DetectThreshold     float64 `toml:"detect_threshold"`     // Minimum confidence to become a candidate.
	KeepThreshold       float64 `toml:"keep_threshold"`       // Minimum confidence to survive deduplication.
	FontDelta           float64 `toml:"font_delta"`           // Points above the mean before font size counts.
	FontScale           float64 `toml:"font_scale"`           // Excess in points that earns the full font score.
	TopOfPageRatio      float64 `toml:"top_of_page_ratio"`    // Fraction of page height considered "top".
	ShortLineLength     int     `toml:"short_line_length"`    // Lines shorter than this earn the length bonus.
	DuplicateSimilarity float64 `toml:"duplicate_similarity"` // Title Jaccard above which candidates collide.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DetectThreshold:     0.4,
		KeepThreshold:       0.5,
		FontDelta:           2,
		FontScale:           10,
		TopOfPageRatio:      0.15,
		ShortLineLength:     100,
		DuplicateSimilarity: 0.8,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DetectThreshold <= 0 {
		c.DetectThreshold = d.DetectThreshold
	}
	if c.KeepThreshold <= 0 {
		c.KeepThreshold = d.KeepThreshold
	}
	if c.FontDelta <= 0 {
		c.FontDelta = d.FontDelta
	}
	if c.FontScale <= 0 {
		c.FontScale = d.FontScale
	}
	if c.TopOfPageRatio <= 0 {
		c.TopOfPageRatio = d.TopOfPageRatio
	}
	if c.ShortLineLength <= 0 {
		c.ShortLineLength = d.ShortLineLength
	}
	if c.DuplicateSimilarity <= 0 {
		c.DuplicateSimilarity = d.DuplicateSimilarity
	}
	return c
}

// Scores are the named parts of a heading candidate's confidence.
type Scores struct {
	Pattern  float64
	Font     float64
	Position float64
	Length   float64
}

// Confidence is 0.6·pattern + 0.25·font + 0.10·position + 0.05·length.
func (s Scores) Confidence() float64 {
	return 0.6*s.Pattern + 0.25*s.Font + 0.10*s.Position + 0.05*s.Length
}

// Candidate is a block that may open a chapter.
type Candidate struct {
	Title      string
	Level      int
	Page       int
	OrderIndex int // Index of the heading block.
	Confidence float64
	Scores     Scores
}

// Structurer splits a flat block stream into chapters.
type Structurer struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Structurer {
	if log == nil {
		log = slog.Default()
	}
	return &Structurer{cfg: cfg.withDefaults(), log: log}
}

// start marks where a chapter's content begins in (page, block) order.
type start struct {
	title      string
	level      int
	page       int
	blockIndex int
	heading    int // Heading block to exclude, or -1.
}

// Extract builds chapters from the native outline when one is usable,
// otherwise from detected headings. It never fails: any problem degrades to
// a single chapter holding every block.
func (s *Structurer) Extract(blocks []doctree.TextBlock, outline []doctree.OutlineEntry) (chapters []doctree.ExtractedChapter) {
	if len(blocks) == 0 {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("chapter detection failed, using single chapter", "error", fmt.Sprint(r))
			chapters = fallback(blocks)
		}
	}()

	var starts []start
	source := "outline"
	if len(outline) > 0 {
		starts = s.outlineStarts(blocks, outline)
	}
	if len(starts) == 0 {
		source = "headings"
		for _, c := range s.Detect(blocks) {
			starts = append(starts, start{
				title:      c.Title,
				level:      c.Level,
				page:       c.Page,
				blockIndex: c.OrderIndex,
				heading:    c.OrderIndex,
			})
		}
	}
	if len(starts) == 0 {
		s.log.Debug("no chapter structure detected, using single chapter", "blocks", len(blocks))
		return fallback(blocks)
	}

	chapters = assign(blocks, starts, source == "outline")
	s.log.Debug("chapters extracted", "source", source, "chapters", len(chapters))
	return chapters
}

// Detect scores every block as a potential heading and returns the
// surviving candidates sorted by (page, order).
func (s *Structurer) Detect(blocks []doctree.TextBlock) []Candidate {
	meanFont := meanFontSize(blocks)
	pageHeights := pageHeights(blocks)
	firstOnPage := make(map[int]int)
	for i := len(blocks) - 1; i >= 0; i-- {
		firstOnPage[blocks[i].Page] = i
	}

	var cands []Candidate
	for i, b := range blocks {
		text := strings.TrimSpace(b.Text)
		if text == "" || strings.Contains(text, "\n") && len(text) > s.cfg.ShortLineLength {
			continue
		}
		sc := Scores{Pattern: patternScore(text)}
		if sc.Pattern == 0 && b.Font == nil {
			continue
		}
		if b.Font != nil && meanFont > 0 {
			sc.Font = s.fontScore(b.Font.Size, meanFont)
		}
		if firstOnPage[b.Page] == i || s.nearTop(b, pageHeights[b.Page]) {
			sc.Position = 1
		}
		if len([]rune(text)) < s.cfg.ShortLineLength {
			sc.Length = 1
		}

		conf := sc.Confidence()
		if conf < s.cfg.DetectThreshold {
			continue
		}
		size := 0.0
		if b.Font != nil {
			size = b.Font.Size
		}
		cands = append(cands, Candidate{
			Title:      headingTitle(text),
			Level:      headingLevel(text, size),
			Page:       b.Page,
			OrderIndex: i,
			Confidence: conf,
			Scores:     sc,
		})
	}

	cands = s.dedupe(cands)

	kept := cands[:0]
	for _, c := range cands {
		if c.Confidence >= s.cfg.KeepThreshold {
			kept = append(kept, c)
		}
	}
	return kept
}

// dedupe drops near-identical titles on the same or adjacent page, keeping
// the more confident one.
func (s *Structurer) dedupe(cands []Candidate) []Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Page != cands[j].Page {
			return cands[i].Page < cands[j].Page
		}
		return cands[i].OrderIndex < cands[j].OrderIndex
	})
	dropped := make([]bool, len(cands))
	for i := range cands {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(cands); j++ {
			if cands[j].Page-cands[i].Page > 1 {
				break
			}
			if dropped[j] || nlp.WordJaccard(cands[i].Title, cands[j].Title) <= s.cfg.DuplicateSimilarity {
				continue
			}
			if cands[j].Confidence > cands[i].Confidence {
				dropped[i] = true
				break
			}
			dropped[j] = true
		}
	}
	out := make([]Candidate, 0, len(cands))
	for i, c := range cands {
		if !dropped[i] {
			out = append(out, c)
		}
	}
	return out
}

// outlineStarts resolves outline entries to block positions. Entries
// without a page are located by matching a block's text to the title.
func (s *Structurer) outlineStarts(blocks []doctree.TextBlock, outline []doctree.OutlineEntry) []start {
	var starts []start
	searchFrom := 0
	for _, e := range outline {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}
		level := max(e.Level, 1)
		if e.Page > 0 {
			idx := len(blocks)
			for i, b := range blocks {
				if b.Page >= e.Page {
					idx = i
					break
				}
			}
			starts = append(starts, start{title: title, level: level, page: e.Page, blockIndex: idx, heading: -1})
			continue
		}
		idx := findTitleBlock(blocks, title, searchFrom)
		if idx < 0 {
			s.log.Debug("outline entry not found in text", "title", title)
			continue
		}
		searchFrom = idx + 1
		starts = append(starts, start{title: title, level: level, page: blocks[idx].Page, blockIndex: idx, heading: idx})
	}
	sort.SliceStable(starts, func(i, j int) bool {
		if starts[i].page != starts[j].page {
			return starts[i].page < starts[j].page
		}
		return starts[i].blockIndex < starts[j].blockIndex
	})
	return starts
}

func findTitleBlock(blocks []doctree.TextBlock, title string, from int) int {
	for i := from; i < len(blocks); i++ {
		if strings.EqualFold(headingTitle(blocks[i].Text), title) {
			return i
		}
	}
	return -1
}

// assign distributes blocks over chapters. A chapter owns blocks from its
// start up to (excluding) the next chapter's start; blocks before the first
// start fall to the last chapter. Heading blocks are not content.
func assign(blocks []doctree.TextBlock, starts []start, outline bool) []doctree.ExtractedChapter {
	lastPage := doctree.LastPage(blocks)
	titles := make(map[string]bool, len(starts))
	headings := make(map[int]bool, len(starts))
	for _, st := range starts {
		titles[strings.TrimSpace(st.title)] = true
		if st.heading >= 0 {
			headings[st.heading] = true
		}
	}

	chapters := make([]doctree.ExtractedChapter, len(starts))
	for i, st := range starts {
		end := lastPage
		for _, next := range starts[i+1:] {
			// Outline chapters end at the next entry; detected ones at the next
			// heading of the same or higher rank.
			if outline || next.level <= st.level {
				end = next.page - 1
				break
			}
		}
		if end < st.page {
			end = st.page
		}
		chapters[i] = doctree.ExtractedChapter{
			ID:         fmt.Sprintf("ch-%d", i),
			Title:      st.title,
			Level:      st.level,
			OrderIndex: i,
			PageStart:  st.page,
			PageEnd:    end,
		}
	}

	owner := func(bi int, b doctree.TextBlock) int {
		idx := -1
		for i, st := range starts {
			if b.Page > st.page || (b.Page == st.page && bi >= st.blockIndex) {
				idx = i
				continue
			}
			break
		}
		if idx < 0 {
			return len(starts) - 1
		}
		return idx
	}

	for bi, b := range blocks {
		if headings[bi] || titles[headingTitle(b.Text)] || titles[strings.TrimSpace(b.Text)] {
			continue
		}
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		ci := owner(bi, b)
		chapters[ci].ContentBlocks = append(chapters[ci].ContentBlocks, b)
	}
	return chapters
}

func fallback(blocks []doctree.TextBlock) []doctree.ExtractedChapter {
	first := 0
	for _, b := range blocks {
		if b.Page > 0 && (first == 0 || b.Page < first) {
			first = b.Page
		}
	}
	if first == 0 {
		first = 1
	}
	content := make([]doctree.TextBlock, 0, len(blocks))
	for _, b := range blocks {
		if strings.TrimSpace(b.Text) != "" {
			content = append(content, b)
		}
	}
	return []doctree.ExtractedChapter{{
		ID:            "ch-0",
		Title:         FallbackTitle,
		Level:         1,
		OrderIndex:    0,
		PageStart:     first,
		PageEnd:       max(doctree.LastPage(blocks), first),
		ContentBlocks: content,
	}}
}

func meanFontSize(blocks []doctree.TextBlock) float64 {
	var sum float64
	n := 0
	for _, b := range blocks {
		if b.Font != nil && b.Font.Size > 0 {
			sum += b.Font.Size
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// fontScore is min(1, excess/FontScale) once the excess over the mean
// passes FontDelta.
func (s *Structurer) fontScore(size, mean float64) float64 {
	excess := size - mean
	if excess <= s.cfg.FontDelta {
		return 0
	}
	return min(1, excess/s.cfg.FontScale)
}

// nearTop reports whether b starts in the top band of a page of height h.
func (s *Structurer) nearTop(b doctree.TextBlock, h float64) bool {
	return h > 0 && b.BBox.Y <= h*s.cfg.TopOfPageRatio
}

// pageHeights estimates each page's height from the lowest block edge.
func pageHeights(blocks []doctree.TextBlock) map[int]float64 {
	h := make(map[int]float64)
	for _, b := range blocks {
		if bottom := b.BBox.Y + b.BBox.H; bottom > h[b.Page] {
			h[b.Page] = bottom
		}
	}
	return h
}
