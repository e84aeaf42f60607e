package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/deckgest/internal/cards"
	"github.com/dgallion1/deckgest/internal/chapter"
	"github.com/dgallion1/deckgest/internal/dedup"
	"github.com/dgallion1/deckgest/internal/doctree"
	"github.com/dgallion1/deckgest/internal/embedding"
	"github.com/dgallion1/deckgest/internal/extract"
	"github.com/dgallion1/deckgest/internal/nlp"
	"github.com/dgallion1/deckgest/internal/segmenter"
)

// Deps are the pluggable scoring oracles and extraction backends.
type Deps struct {
	Entities   nlp.EntityExtractor
	Complexity nlp.ComplexityScorer
	Backends   []extract.Backend  // Tried in order before the rule backend.
	Embedder   embedding.Embedder // nil compares card text lexically.
}

// Result is everything one document produced.
type Result struct {
	Chapters       []doctree.ExtractedChapter `json:"chapters"`
	Knowledge      []extract.Knowledge        `json:"knowledge"`
	Cards          []cards.Card               `json:"cards"`
	Stats          dedup.Stats                `json:"stats"`
	Segments       int                        `json:"segments"`
	FailedChapters []string                   `json:"failed_chapters,omitempty"`
}

// Pipeline turns a parsed document into a deduplicated deck.
type Pipeline struct {
	settings   Settings
	structurer *chapter.Structurer
	segmenter  *segmenter.Segmenter
	extractor  *extract.Extractor
	synth      *cards.Synthesizer
	embedder   embedding.Embedder
	log        *slog.Logger
}

func New(settings Settings, deps Deps, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	settings = settings.withDefaults()
	t := settings.Tuning
	return &Pipeline{
		settings:   settings,
		structurer: chapter.New(t.Chapter, log),
		segmenter:  segmenter.New(t.Segmenter),
		extractor:  extract.New(t.Extract, deps.Entities, log, deps.Backends...),
		synth:      cards.New(t.Cards, deps.Complexity),
		embedder:   deps.Embedder,
		log:        log,
	}
}

// tracker receives progress from a run. Jobs implement it.
type tracker interface {
	SetStatus(status JobStatus, phase string)
	SetTotalChapters(n int)
	ChapterDone(knowledge, cards int, err error)
}

type noopTracker struct{}

func (noopTracker) SetStatus(JobStatus, string) {}
func (noopTracker) SetTotalChapters(int) {}
func (noopTracker) ChapterDone(int, int, error) {}

// Run executes the content pipeline on one document. It never fails: empty
// input gives an empty result, and chapters that fail or are cancelled are
// dropped from the deck and listed in FailedChapters.
func (p *Pipeline) Run(ctx context.Context, doc *doctree.Document) Result {
	return p.run(ctx, doc, noopTracker{})
}

type unitResult struct {
	segments  int
	knowledge []extract.Knowledge
	cards     []cards.Card
	err       error
}

func (p *Pipeline) run(ctx context.Context, doc *doctree.Document, tr tracker) Result {
	if doc == nil || len(doc.Blocks) == 0 {
		return Result{Stats: dedup.Stats{MeetsTarget: true}}
	}
	ctx, cancel := context.WithTimeout(ctx, p.settings.DocumentTimeout)
	defer cancel()

	tr.SetStatus(StatusStructuring, "structuring")
	chapters := p.structurer.Extract(doc.Blocks, doc.Outline)
	tr.SetTotalChapters(len(chapters))

	tr.SetStatus(StatusGenerating, "generating")
	units := make([]unitResult, len(chapters))
	var g errgroup.Group
	g.SetLimit(p.settings.MaxConcurrentChapters)
	for i := range chapters {
		g.Go(func() error {
			units[i] = p.unit(ctx, chapters[i], doc.Images)
			tr.ChapterDone(len(units[i].knowledge), len(units[i].cards), units[i].err)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Chapters: chapters}
	var generated []cards.Card
	for i, u := range units {
		if u.err != nil {
			p.log.Warn("chapter dropped", "chapter_id", chapters[i].ID, "title", chapters[i].Title, "error", u.err)
			res.FailedChapters = append(res.FailedChapters, chapters[i].ID)
			continue
		}
		res.Segments += u.segments
		res.Knowledge = append(res.Knowledge, u.knowledge...)
		generated = append(generated, u.cards...)
	}

	tr.SetStatus(StatusDeduplicating, "deduplicating")
	var sim nlp.Similarity
	if p.embedder != nil {
		sim = embedding.NewSimilarity(p.embedder)
	}
	res.Cards, res.Stats = dedup.New(p.settings.Tuning.Dedup, sim, p.log).Deduplicate(ctx, generated)

	p.log.Info("deck generated",
		"chapters", len(chapters),
		"failed_chapters", len(res.FailedChapters),
		"segments", res.Segments,
		"knowledge", len(res.Knowledge),
		"cards_generated", res.Stats.Total,
		"cards_final", res.Stats.Final,
		"duplicate_rate", res.Stats.Rate,
	)
	return res
}

// unit runs segment, extract and synthesize for one chapter. A chapter whose
// context ends mid-flight is discarded as a whole.
func (p *Pipeline) unit(ctx context.Context, ch doctree.ExtractedChapter, images []doctree.ImageData) (res unitResult) {
	defer func() {
		if r := recover(); r != nil {
			res = unitResult{err: fmt.Errorf("chapter %s panicked: %v", ch.ID, r)}
		}
	}()
	if err := ctx.Err(); err != nil {
		return unitResult{err: err}
	}

	segs := p.segmenter.Segment(ch.ContentBlocks, ch.ID)
	knowledge := p.extractor.Extract(ctx, segs, ch.ID)
	if err := ctx.Err(); err != nil {
		return unitResult{err: err}
	}
	generated := p.synth.Synthesize(knowledge, figuresFor(ch, images))
	return unitResult{segments: len(segs), knowledge: knowledge, cards: generated}
}

// figuresFor returns the images that fall inside a chapter's page range.
func figuresFor(ch doctree.ExtractedChapter, images []doctree.ImageData) []cards.Figure {
	var out []cards.Figure
	for _, img := range images {
		if img.Page >= ch.PageStart && img.Page <= ch.PageEnd {
			out = append(out, cards.Figure{Image: img, ChapterID: ch.ID})
		}
	}
	return out
}
