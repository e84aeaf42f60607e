package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/deckgest/internal/doctree"
)

// Parser converts raw document bytes into a flat Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Options configure parsers that need more than the file itself.
type Options struct {
	PDFFallbackPdftotext bool
	ImageDir             string // Where extracted PDF figures are written; empty skips them.
}

// ForFile returns the appropriate parser for a filename with default options.
func ForFile(filename string) (Parser, error) {
	return Options{}.ForFile(filename)
}

// ForFile returns the appropriate parser for a filename.
func (o Options) ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: o.PDFFallbackPdftotext, ImageDir: o.ImageDir}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// builder accumulates blocks for formats without page geometry. Headings
// are written as markdown-style "#" lines so chapter detection sees them.
type builder struct {
	doc  *doctree.Document
	page int
}

func newBuilder(filename, format string) *builder {
	return &builder{
		doc: &doctree.Document{
			Title:    titleFromFilename(filename),
			Metadata: map[string]string{"format": format, "filename": filename},
		},
		page: 1,
	}
}

func (b *builder) heading(level int, text string) {
	text = collapseSpace(text)
	if text == "" {
		return
	}
	level = min(max(level, 1), 6)
	b.doc.Blocks = append(b.doc.Blocks, doctree.TextBlock{
		Text: strings.Repeat("#", level) + " " + text,
		Page: b.page,
	})
}

func (b *builder) para(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.doc.Blocks = append(b.doc.Blocks, doctree.TextBlock{Text: text, Page: b.page})
}

func (b *builder) image(path, caption string) {
	path = strings.TrimSpace(path)
	if path == "" {
		return
	}
	b.doc.Images = append(b.doc.Images, doctree.ImageData{
		Path:    path,
		Page:    b.page,
		Format:  strings.TrimPrefix(strings.ToLower(filepath.Ext(stripQuery(path))), "."),
		Caption: collapseSpace(caption),
	})
}

func stripQuery(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i]
	}
	return path
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
