package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/deckgest/internal/cards"
	"github.com/dgallion1/deckgest/internal/doctree"
)

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	// SHA-256 of "hello world" is well-known.
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestContentHashHex_DifferentInputs(t *testing.T) {
	h1 := ContentHashHex([]byte("aaa"))
	h2 := ContentHashHex([]byte("bbb"))
	if h1 == h2 {
		t.Error("expected different hashes for different inputs")
	}
}

func TestContentHashHex_EmptyInput(t *testing.T) {
	h := ContentHashHex([]byte{})
	// SHA-256 of empty input is well-known.
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if h != want {
		t.Errorf("expected hash %q, got %q", want, h)
	}
}

func TestDocumentText(t *testing.T) {
	doc := &doctree.Document{Blocks: []doctree.TextBlock{
		{Text: "# Title"}, {Text: ""}, {Text: "Body text."},
	}}
	if got := DocumentText(doc); got != "# Title\nBody text." {
		t.Errorf("unexpected document text %q", got)
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := &Job{
		ID:        "test-1",
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	transitions := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing document"},
		{StatusStructuring, "finding chapters"},
		{StatusGenerating, "generating cards"},
		{StatusDeduplicating, "removing duplicates"},
		{StatusStoring, "storing results"},
		{StatusCompleted, "done"},
	}

	for _, tr := range transitions {
		before := job.UpdatedAt
		// Small sleep to ensure time difference is detectable.
		time.Sleep(time.Millisecond)
		job.SetStatus(tr.status, tr.phase)

		if job.Status != tr.status {
			t.Errorf("expected status %q, got %q", tr.status, job.Status)
		}
		if job.Phase != tr.phase {
			t.Errorf("expected phase %q, got %q", tr.phase, job.Phase)
		}
		if !job.UpdatedAt.After(before) {
			t.Errorf("expected UpdatedAt to advance after SetStatus(%q)", tr.status)
		}
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	terminal := map[JobStatus]bool{
		StatusQueued:        false,
		StatusParsing:       false,
		StatusStructuring:   false,
		StatusGenerating:    false,
		StatusDeduplicating: false,
		StatusStoring:       false,
		StatusCompleted:     true,
		StatusPartial:       true,
		StatusFailed:        true,
		StatusDupSkipped:    true,
	}
	for s, want := range terminal {
		if s.Terminal() != want {
			t.Errorf("%q.Terminal() = %v, want %v", s, !want, want)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("chapter ch-3 dropped")
	job.AddError("chapter ch-7 dropped")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "chapter ch-3 dropped" {
		t.Errorf("expected first error %q, got %q", "chapter ch-3 dropped", snap.Progress.Errors[0])
	}
}

func TestJob_ChapterProgress(t *testing.T) {
	job := &Job{ID: "progress-test", UpdatedAt: time.Now()}
	job.SetTotalChapters(3)
	job.ChapterDone(4, 9, nil)
	job.ChapterDone(2, 5, nil)
	job.ChapterDone(7, 7, errors.New("cancelled"))

	snap := job.Snapshot()
	if snap.Progress.TotalChapters != 3 || snap.Progress.ChaptersProcessed != 3 {
		t.Errorf("unexpected chapter counts %+v", snap.Progress)
	}
	if snap.Progress.ChaptersFailed != 1 {
		t.Errorf("expected 1 failed chapter, got %d", snap.Progress.ChaptersFailed)
	}
	if snap.Progress.Knowledge != 6 || snap.Progress.CardsGenerated != 14 {
		t.Errorf("failed chapters must not count toward totals, got %+v", snap.Progress)
	}
}

func TestJob_Result(t *testing.T) {
	job := &Job{ID: "result-test"}
	if job.Result() != nil {
		t.Fatal("expected nil result before generation")
	}
	job.SetResult(Result{Cards: []cards.Card{{ID: "a"}, {ID: "b"}}})
	if r := job.Result(); r == nil || len(r.Cards) != 2 {
		t.Fatalf("expected stored result, got %+v", r)
	}
	if job.Snapshot().Progress.CardsFinal != 2 {
		t.Errorf("expected CardsFinal 2, got %d", job.Snapshot().Progress.CardsFinal)
	}
}

func TestJob_MarkDuplicate(t *testing.T) {
	job := &Job{ID: "dup-test", Status: StatusParsing}
	job.MarkDuplicate("doc-9")
	snap := job.Snapshot()
	if snap.Status != StatusDupSkipped || snap.DuplicateOf != "doc-9" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestJob_FileData(t *testing.T) {
	job := &Job{ID: "data-test"}
	data := []byte("file content here")
	job.SetFileData(data)
	got := job.FileData()
	if string(got) != string(data) {
		t.Errorf("expected file data %q, got %q", data, got)
	}
}

func TestJob_SnapshotErrorsNotNil(t *testing.T) {
	// Snapshot should always return non-nil errors slice.
	job := &Job{ID: "snap-test", UpdatedAt: time.Now()}
	snap := job.Snapshot()
	if snap.Progress.Errors == nil {
		t.Error("expected non-nil errors slice in snapshot")
	}
	if len(snap.Progress.Errors) != 0 {
		t.Errorf("expected empty errors, got %d", len(snap.Progress.Errors))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := &Job{ID: "store-1", UpdatedAt: time.Now()}
	store.Put(job)

	got := store.Get("store-1")
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != "store-1" {
		t.Errorf("expected ID %q, got %q", "store-1", got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := &Job{ID: "old", UpdatedAt: time.Now()}
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	// Add a fresh job.
	fresh := &Job{ID: "new", UpdatedAt: time.Now()}
	store.Put(fresh)

	store.Cleanup()

	if store.Get("old") != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get("new") == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
