package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/deckgest/internal/nlp"
)

// Completer turns a prompt into model text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// LLMBackend asks a language model for knowledge points and validates
// what comes back. Transient failures are retried with backoff.
type LLMBackend struct {
	client    Completer
	maxPoints int
	backoff   func(attempt int) time.Duration
}

// NewLLMBackend wraps a completer. maxPoints bounds how many points the
// prompt requests per segment.
func NewLLMBackend(client Completer, maxPoints int) *LLMBackend {
	if maxPoints <= 0 {
		maxPoints = 3
	}
	return &LLMBackend{client: client, maxPoints: maxPoints, backoff: Backoff}
}

func (b *LLMBackend) Name() string { return MethodLLM }

func (b *LLMBackend) Extract(ctx context.Context, in Input) ([]Candidate, error) {
	prompt := BuildSegmentPrompt(in.ChapterID, b.maxPoints, nlp.EntityTexts(in.Entities), in.Segment.Text)

	var raw string
	var err error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		raw, err = b.client.Complete(ctx, SystemPrompt, prompt)
		if err == nil || !IsRetryable(err) || attempt == MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.backoff(attempt)):
		}
	}
	if err != nil {
		return nil, err
	}
	return parseCandidates(raw, in.Segment.Text)
}

// parseCandidates decodes the model's JSON array and keeps valid entries.
// Spans found verbatim in the segment get their offset; the rest sort after.
func parseCandidates(raw, segment string) ([]Candidate, error) {
	raw = stripCodeBlock(raw)
	var cands []Candidate
	if err := json.Unmarshal([]byte(raw), &cands); err != nil {
		return nil, fmt.Errorf("parse llm response: %w", err)
	}

	out := make([]Candidate, 0, len(cands))
	for i := range cands {
		c := cands[i]
		if !ValidateCandidate(&c) {
			continue
		}
		if off := strings.Index(segment, c.Text); off >= 0 {
			c.Offset = off
		} else {
			c.Offset = len(segment) + i
		}
		out = append(out, c)
	}
	return out, nil
}
