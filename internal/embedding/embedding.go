// Package embedding scores text similarity by cosine distance between
// embedding vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbedder uses an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an embedder. An empty baseURL uses the public API.
func NewOpenAIEmbedder(apiKey, baseURL, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("embedding api key not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i := range d.Embedding {
			v[i] = float32(d.Embedding[i])
		}
		l2normalize(v)
		out[d.Index] = v
	}
	return out, nil
}

// Similarity caches vectors by text and compares them by cosine.
type Similarity struct {
	embedder Embedder

	mu    sync.Mutex
	cache map[string][]float32
}

func NewSimilarity(e Embedder) *Similarity {
	return &Similarity{embedder: e, cache: make(map[string][]float32)}
}

// Similarity returns the cosine of the two texts' embeddings, in [-1,1].
func (s *Similarity) Similarity(ctx context.Context, a, b string) (float64, error) {
	vecs, err := s.vectors(ctx, a, b)
	if err != nil {
		return 0, err
	}
	return Cosine(vecs[0], vecs[1]), nil
}

func (s *Similarity) vectors(ctx context.Context, texts ...string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string

	s.mu.Lock()
	for i, t := range texts {
		if v, ok := s.cache[t]; ok {
			out[i] = v
		} else if !contains(missing, t) {
			missing = append(missing, t)
		}
	}
	s.mu.Unlock()

	if len(missing) > 0 {
		vecs, err := s.embedder.Embed(ctx, missing)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(missing) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missing))
		}
		s.mu.Lock()
		for i, t := range missing {
			s.cache[t] = vecs[i]
		}
		for i, t := range texts {
			out[i] = s.cache[t]
		}
		s.mu.Unlock()
	}
	return out, nil
}

// Reset drops cached vectors.
func (s *Similarity) Reset() {
	s.mu.Lock()
	s.cache = make(map[string][]float32)
	s.mu.Unlock()
}

// Cosine returns the cosine of the angle between a and b. Mismatched or
// zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
