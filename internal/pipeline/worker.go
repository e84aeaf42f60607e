package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/deckgest/internal/deckstore"
	"github.com/dgallion1/deckgest/internal/doctree"
	"github.com/dgallion1/deckgest/internal/parser"
)

// Worker processes a single document job.
type Worker struct {
	pipeline *Pipeline
	store    deckstore.Store
	parsers  parser.Options
	log      *slog.Logger
	timeout  time.Duration
}

func NewWorker(p *Pipeline, store deckstore.Store, parsers parser.Options, log *slog.Logger, timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Worker{
		pipeline: p,
		store:    store,
		parsers:  parsers,
		log:      log,
		timeout:  timeout,
	}
}

// Process parses the job's file, generates its deck and stores it.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "user_id", job.UserID)
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	doc, err := w.parse(job)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.SetFileData(nil)
	if job.Title != "" {
		doc.Title = job.Title
	}

	text := DocumentText(doc)
	if text == "" {
		log.Warn("no text in document")
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.ContentHash = ContentHashHex([]byte(text))

	// Phase 1.5: Duplicate document check
	if !job.Force {
		existing, err := w.store.FindByHash(ctx, job.UserID, job.ContentHash)
		if err != nil {
			log.Warn("duplicate check failed, proceeding", "error", err)
		} else if existing != "" {
			log.Info("duplicate document, skipping", "existing_doc_id", existing)
			job.MarkDuplicate(existing)
			return
		}
	}

	// Phase 2: Structure, generate and deduplicate
	res := w.pipeline.run(ctx, doc, job)
	job.SetResult(res)
	for _, id := range res.FailedChapters {
		job.AddError(fmt.Sprintf("chapter %s dropped", id))
	}
	log.Info("deck generated", "cards", len(res.Cards), "failed_chapters", len(res.FailedChapters))

	if len(res.Cards) == 0 && len(res.FailedChapters) > 0 {
		job.SetStatus(StatusFailed, "generating")
		return
	}

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	deck := deckstore.Deck{
		Meta: deckstore.Meta{
			DocID:       job.DocID,
			UserID:      job.UserID,
			Filename:    job.Filename,
			Title:       doc.Title,
			ContentHash: job.ContentHash,
			Chapters:    len(res.Chapters),
			Knowledge:   len(res.Knowledge),
			Cards:       len(res.Cards),
			Dedup:       res.Stats,
			CreatedAt:   job.CreatedAt,
		},
		Chapters:  deckstore.ChaptersOf(res.Chapters),
		Knowledge: res.Knowledge,
		Cards:     res.Cards,
	}
	storeErr := w.store.SaveDeck(ctx, deck)
	if storeErr != nil {
		log.Error("store failed", "error", storeErr)
		job.AddError(fmt.Sprintf("store: %s", storeErr))
	}

	switch {
	case storeErr != nil || len(res.FailedChapters) > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
}

func (w *Worker) parse(job *Job) (*doctree.Document, error) {
	p, err := w.parsers.ForFile(job.Filename)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return doc, nil
}
