package doctree

// Document is the output of a parser: a flat stream of text blocks plus the
// figures and native outline found in the source file.
type Document struct {
	Title    string            // Document title (from metadata or filename)
	Blocks   []TextBlock       // Text in reading order
	Images   []ImageData       // Figures, in reading order
	Outline  []OutlineEntry    // Native bookmarks, if the format has them
	Metadata map[string]string // Format-specific extras
}

// BBox is a block's bounding box in page coordinates (origin top-left).
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// FontInfo describes the dominant font of a block, when the parser knows it.
type FontInfo struct {
	Name string  `json:"name,omitempty"`
	Size float64 `json:"size"`
	Bold bool    `json:"bold,omitempty"`
}

// TextBlock is the immutable input unit produced by parsers.
type TextBlock struct {
	Text string    `json:"text"`
	Page int       `json:"page"`
	BBox BBox      `json:"bbox"`
	Font *FontInfo `json:"font,omitempty"`
}

// ImageData is a figure reference. Width and Height are in pixels when known.
type ImageData struct {
	Path    string `json:"path"`
	Page    int    `json:"page"`
	BBox    BBox   `json:"bbox"`
	Format  string `json:"format"`
	Caption string `json:"caption,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// OutlineEntry is one native bookmark. Page is 0 when the format does not
// record destinations and the entry must be located by title.
type OutlineEntry struct {
	Title string `json:"title"`
	Level int    `json:"level"`
	Page  int    `json:"page"`
}

// ExtractedChapter owns the blocks assigned to it.
type ExtractedChapter struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Level         int         `json:"level"`
	OrderIndex    int         `json:"order_index"`
	PageStart     int         `json:"page_start"`
	PageEnd       int         `json:"page_end"`
	ContentBlocks []TextBlock `json:"content_blocks"`
}

// Anchors locate a derived unit back in the source document.
type Anchors struct {
	Page       int    `json:"page"`
	ChapterID  string `json:"chapter_id"`
	BlockIndex int    `json:"block_index"`
	BBox       BBox   `json:"bbox"`
}

// TextSegment is a bounded-length span of chapter text ready for extraction.
// Blocks are referenced by index into the chapter's ContentBlocks.
type TextSegment struct {
	Text                 string  `json:"text"`
	CharCount            int     `json:"char_count"`
	WordCount            int     `json:"word_count"`
	SentenceCount        int     `json:"sentence_count"`
	Anchors              Anchors `json:"anchors"`
	OriginalBlockIndices []int   `json:"original_block_indices"`
}

// LastPage returns the highest page number among blocks, or 0.
func LastPage(blocks []TextBlock) int {
	last := 0
	for _, b := range blocks {
		if b.Page > last {
			last = b.Page
		}
	}
	return last
}
