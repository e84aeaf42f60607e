package parser

import (
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dgallion1/deckgest/internal/doctree"
)

const defaultPageHeight = 792.0

// PDFParser handles PDF files. Text comes from ledongthuc/pdf with font
// size and position per line; pdftotext is the optional fallback.
type PDFParser struct {
	FallbackPdftotext bool
	// ImageDir, when set, receives figures extracted with pdfcpu.
	ImageDir string
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a temp file.
	tmp, err := os.CreateTemp("", "deckgest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	doc := &doctree.Document{
		Title:    titleFromFilename(filename),
		Metadata: map[string]string{"format": "pdf", "filename": filename},
	}
	if ctx, err := api.ReadContextFile(tmpPath); err == nil {
		doc.Metadata["page_count"] = strconv.Itoa(ctx.PageCount)
		doc.Metadata["encrypted"] = strconv.FormatBool(ctx.Encrypt != nil)
	}

	err = readPDF(tmpPath, doc)
	if err != nil && p.FallbackPdftotext {
		var text string
		if text, err = extractPdftotext(tmpPath); err == nil {
			doc.Blocks = plainTextBlocks(text)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	if p.ImageDir != "" {
		doc.Images = extractPDFImages(tmpPath, p.ImageDir)
	}
	return doc, nil
}

// readPDF fills blocks, outline and title. The library panics on some
// malformed content streams; that is reported as an error.
func readPDF(path string, doc *doctree.Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if t := reader.Trailer().Key("Info").Key("Title").Text(); strings.TrimSpace(t) != "" {
		doc.Title = strings.TrimSpace(t)
	}
	doc.Outline = flattenOutline(reader.Outline().Child, 1, nil)

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		blocks := pageBlocks(page, i)
		if len(blocks) == 0 {
			// Fall back to the plain-text extractor for this page.
			if text, err := page.GetPlainText(nil); err == nil {
				for _, b := range plainTextBlocks(text) {
					b.Page = i
					blocks = append(blocks, b)
				}
			}
		}
		doc.Blocks = append(doc.Blocks, blocks...)
	}
	return nil
}

func flattenOutline(items []pdflib.Outline, level int, out []doctree.OutlineEntry) []doctree.OutlineEntry {
	for _, o := range items {
		if t := collapseSpace(o.Title); t != "" {
			out = append(out, doctree.OutlineEntry{Title: t, Level: level})
		}
		out = flattenOutline(o.Child, level+1, out)
	}
	return out
}

type pdfLine struct {
	text     strings.Builder
	font     string
	size     float64
	x        float64
	right    float64
	baseline float64 // PDF user space, origin bottom-left.
}

// pageBlocks groups glyphs into lines by baseline, then lines into
// paragraphs of the same font size separated by normal leading.
func pageBlocks(page pdflib.Page, pageNum int) []doctree.TextBlock {
	texts := page.Content().Text
	if len(texts) == 0 {
		return nil
	}
	height := pageHeight(page)

	var lines []*pdfLine
	var cur *pdfLine
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		if cur == nil || math.Abs(t.Y-cur.baseline) > max(cur.size, t.FontSize)*0.5 {
			cur = &pdfLine{font: t.Font, size: t.FontSize, x: t.X, baseline: t.Y, right: t.X}
			lines = append(lines, cur)
		} else if gap := t.X - cur.right; gap > t.FontSize*0.2 && !strings.HasSuffix(cur.text.String(), " ") && t.S != " " {
			cur.text.WriteByte(' ')
		}
		cur.text.WriteString(t.S)
		cur.right = t.X + t.W
		cur.size = max(cur.size, t.FontSize)
	}

	var blocks []doctree.TextBlock
	var para []*pdfLine
	flush := func() {
		if len(para) == 0 {
			return
		}
		var sb strings.Builder
		minX, top, right, bottom := math.MaxFloat64, math.MaxFloat64, 0.0, 0.0
		for _, l := range para {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strings.TrimSpace(l.text.String()))
			lineTop := height - l.baseline - l.size
			minX = min(minX, l.x)
			top = min(top, lineTop)
			right = max(right, l.right)
			bottom = max(bottom, lineTop+l.size)
		}
		if text := collapseSpace(sb.String()); text != "" {
			first := para[0]
			blocks = append(blocks, doctree.TextBlock{
				Text: text,
				Page: pageNum,
				BBox: doctree.BBox{X: minX, Y: max(top, 0), W: right - minX, H: bottom - top},
				Font: &doctree.FontInfo{
					Name: first.font,
					Size: math.Round(first.size*10) / 10,
					Bold: strings.Contains(strings.ToLower(first.font), "bold"),
				},
			})
		}
		para = nil
	}

	for _, l := range lines {
		if strings.TrimSpace(l.text.String()) == "" {
			continue
		}
		if len(para) > 0 {
			prev := para[len(para)-1]
			gap := prev.baseline - l.baseline
			if math.Abs(prev.size-l.size) > 0.5 || gap <= 0 || gap > prev.size*1.8 {
				flush()
			}
		}
		para = append(para, l)
	}
	flush()
	return blocks
}

// pageHeight reads the (possibly inherited) MediaBox.
func pageHeight(page pdflib.Page) float64 {
	v := page.V
	for depth := 0; depth < 16 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if !box.IsNull() && box.Len() == 4 {
			if h := box.Index(3).Float64() - box.Index(1).Float64(); h > 0 {
				return h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageHeight
}

func plainTextBlocks(text string) []doctree.TextBlock {
	var blocks []doctree.TextBlock
	for i, page := range strings.Split(text, "\f") {
		for _, para := range splitParagraphs(page) {
			blocks = append(blocks, doctree.TextBlock{Text: para, Page: i + 1})
		}
	}
	return blocks
}

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range blankLineRe.Split(text, -1) {
		if p = collapseSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func extractPdftotext(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return string(out), nil
}

var imagePageRe = regexp.MustCompile(`_(\d+)_`)

// extractPDFImages writes embedded images to a fresh directory under dir.
// Failures leave the document without figures.
func extractPDFImages(pdfPath, dir string) []doctree.ImageData {
	outDir, err := os.MkdirTemp(dir, "figures-*")
	if err != nil {
		return nil
	}
	if err := api.ExtractImagesFile(pdfPath, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		return nil
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil
	}

	var images []doctree.ImageData
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		page := 0
		if m := imagePageRe.FindStringSubmatch(name); m != nil {
			page, _ = strconv.Atoi(m[1])
		}
		images = append(images, doctree.ImageData{
			Path:   filepath.Join(outDir, name),
			Page:   page,
			Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
		})
	}
	sort.SliceStable(images, func(i, j int) bool { return images[i].Page < images[j].Page })
	return images
}
