package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dgallion1/deckgest/internal/cards"
	"github.com/dgallion1/deckgest/internal/doctree"
	"github.com/dgallion1/deckgest/internal/nlp"
)

// TraceabilityKey is the metadata key a primary card records its group under.
const TraceabilityKey = "source_traceability"

// PrimaryWeights rank cards within a duplicate group.
type PrimaryWeights struct {
	Length     float64 `toml:"length"`
	Difficulty float64 `toml:"difficulty"`
	Metadata   float64 `toml:"metadata"`
	Entities   float64 `toml:"entities"`
}

// Config controls duplicate detection.
type Config struct {
	Threshold        float64        `toml:"threshold"`
	MaxDuplicateRate float64        `toml:"max_duplicate_rate"`
	FrontWeight      float64        `toml:"front_weight"`
	BackWeight       float64        `toml:"back_weight"`
	MetadataWeight   float64        `toml:"metadata_weight"`
	Primary          PrimaryWeights `toml:"primary"`
	CallTimeout      time.Duration  `toml:"-"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:        0.9,
		MaxDuplicateRate: 0.05,
		FrontWeight:      0.6,
		BackWeight:       0.4,
		MetadataWeight:   0.1,
		Primary:          PrimaryWeights{Length: 0.3, Difficulty: 0.2, Metadata: 0.2, Entities: 0.3},
		CallTimeout:      30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.MaxDuplicateRate <= 0 {
		c.MaxDuplicateRate = d.MaxDuplicateRate
	}
	if c.FrontWeight+c.BackWeight+c.MetadataWeight <= 0 {
		c.FrontWeight, c.BackWeight, c.MetadataWeight = d.FrontWeight, d.BackWeight, d.MetadataWeight
	}
	if c.Primary == (PrimaryWeights{}) {
		c.Primary = d.Primary
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	return c
}

// Stats summarizes one deduplication run.
type Stats struct {
	Total         int     `json:"total"`
	Final         int     `json:"final"`
	Removed       int     `json:"removed"`
	Groups        int     `json:"groups"` // Summed over passes.
	Rate          float64 `json:"duplicate_rate"`
	AvgSimilarity float64 `json:"avg_similarity"`
	MeetsTarget   bool    `json:"meets_target"`
}

// Group is a set of near-identical cards found by comparison to Anchor.
type Group struct {
	Anchor  int       // Index of the first card scanned.
	Members []int     // Indices of cards that matched the anchor.
	Scores  []float64 // Similarity of each member to the anchor.
}

// Deduplicator collapses near-identical cards of the same type.
type Deduplicator struct {
	cfg     Config
	sim     nlp.Similarity
	lexical nlp.Similarity
	log     *slog.Logger
}

// New builds a deduplicator. A nil similarity uses lexical Jaccard.
func New(cfg Config, sim nlp.Similarity, log *slog.Logger) *Deduplicator {
	if sim == nil {
		sim = nlp.Lexical{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Deduplicator{cfg: cfg.withDefaults(), sim: sim, lexical: nlp.Lexical{}, log: log}
}

// Deduplicate returns the surviving cards in input order. The input slice
// and its cards are not modified. Passes repeat over the survivors until one
// finds no group, so a second call removes nothing.
func (d *Deduplicator) Deduplicate(ctx context.Context, in []cards.Card) ([]cards.Card, Stats) {
	stats := Stats{Total: len(in)}
	if len(in) == 0 {
		stats.MeetsTarget = true
		return nil, stats
	}

	cur := in
	var simSum float64
	var simCount int
	for {
		groups := d.FindGroups(ctx, cur)
		if len(groups) == 0 {
			break
		}
		cur = d.collapse(cur, groups)
		stats.Groups += len(groups)
		for _, g := range groups {
			for _, s := range g.Scores {
				simSum += s
				simCount++
			}
		}
	}

	out := make([]cards.Card, len(cur))
	copy(out, cur)

	stats.Final = len(out)
	stats.Removed = stats.Total - stats.Final
	stats.Rate = float64(stats.Removed) / float64(stats.Total)
	if simCount > 0 {
		stats.AvgSimilarity = simSum / float64(simCount)
	}
	stats.MeetsTarget = stats.Rate <= d.cfg.MaxDuplicateRate
	return out, stats
}

// collapse keeps one primary per group, in input order. Every group removes
// at least one card.
func (d *Deduplicator) collapse(in []cards.Card, groups []Group) []cards.Card {
	drop := make([]bool, len(in))
	replaced := make(map[int]cards.Card)
	for _, g := range groups {
		all := append([]int{g.Anchor}, g.Members...)
		primary := d.pickPrimary(in, all)
		for _, idx := range all {
			if idx != primary {
				drop[idx] = true
			}
		}
		replaced[primary] = withTraceability(in, primary, all, g.Scores)
	}

	out := make([]cards.Card, 0, len(in))
	for i, c := range in {
		if drop[i] {
			continue
		}
		if r, ok := replaced[i]; ok {
			c = r
		}
		out = append(out, c)
	}
	return out
}

// FindGroups scans each card type separately. An unprocessed card anchors a
// group and collects every later unprocessed card similar to it; members
// are never compared with each other.
func (d *Deduplicator) FindGroups(ctx context.Context, in []cards.Card) []Group {
	var typeOrder []cards.Type
	byType := make(map[cards.Type][]int)
	for i, c := range in {
		if _, ok := byType[c.Type]; !ok {
			typeOrder = append(typeOrder, c.Type)
		}
		byType[c.Type] = append(byType[c.Type], i)
	}

	var groups []Group
	for _, t := range typeOrder {
		idxs := byType[t]
		processed := make([]bool, len(idxs))
		for a := range idxs {
			if processed[a] {
				continue
			}
			processed[a] = true
			g := Group{Anchor: idxs[a]}
			for b := a + 1; b < len(idxs); b++ {
				if processed[b] {
					continue
				}
				s := d.CardSimilarity(ctx, in[idxs[a]], in[idxs[b]])
				if s >= d.cfg.Threshold {
					processed[b] = true
					g.Members = append(g.Members, idxs[b])
					g.Scores = append(g.Scores, s)
				}
			}
			if len(g.Members) > 0 {
				groups = append(groups, g)
			}
		}
	}
	return groups
}

// CardSimilarity is the weighted front/back/metadata similarity in [0,1].
// Identical normalized front and back score 1.
func (d *Deduplicator) CardSimilarity(ctx context.Context, a, b cards.Card) float64 {
	if normalize(a.Front) == normalize(b.Front) && normalize(a.Back) == normalize(b.Back) {
		return 1
	}
	w := d.cfg
	total := w.FrontWeight + w.BackWeight + w.MetadataWeight
	s := w.FrontWeight*d.textSimilarity(ctx, a.Front, b.Front) +
		w.BackWeight*d.textSimilarity(ctx, a.Back, b.Back) +
		w.MetadataWeight*MetadataSimilarity(a.Metadata, b.Metadata)
	return s / total
}

func (d *Deduplicator) textSimilarity(ctx context.Context, a, b string) float64 {
	if normalize(a) == normalize(b) {
		return 1
	}
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
	defer cancel()
	s, err := d.sim.Similarity(callCtx, a, b)
	if err != nil {
		d.log.Debug("similarity oracle failed, using lexical", "error", err)
		s, _ = d.lexical.Similarity(ctx, a, b)
	}
	return min(max(s, 0), 1)
}

// MetadataSimilarity is the Jaccard index over key=value pairs of scalar
// metadata. Traceability is ignored. Two empty maps are identical.
func MetadataSimilarity(a, b map[string]any) float64 {
	pa, pb := metadataPairs(a), metadataPairs(b)
	if len(pa) == 0 && len(pb) == 0 {
		return 1
	}
	return nlp.Jaccard(pa, pb)
}

func metadataPairs(m map[string]any) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k, v := range m {
		if k == TraceabilityKey {
			continue
		}
		switch v.(type) {
		case string, bool, int, int64, float64:
			out[fmt.Sprintf("%s=%v", k, v)] = struct{}{}
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// PrimaryScore is the named breakdown of a card's claim to survive.
type PrimaryScore struct {
	Length     float64
	Difficulty float64
	Metadata   float64
	Entities   float64
}

func (p PrimaryScore) Combined(w PrimaryWeights) float64 {
	return w.Length*p.Length + w.Difficulty*p.Difficulty + w.Metadata*p.Metadata + w.Entities*p.Entities
}

// pickPrimary returns the highest-scoring index; ties keep the earliest.
// Length, metadata and entity counts are normalized to the group maximum.
func (d *Deduplicator) pickPrimary(in []cards.Card, idxs []int) int {
	var maxLen, maxMeta, maxEnt int
	for _, i := range idxs {
		maxLen = max(maxLen, contentLength(in[i]))
		maxMeta = max(maxMeta, len(in[i].Metadata))
		maxEnt = max(maxEnt, len(in[i].Entities))
	}

	best, bestScore := idxs[0], -1.0
	for _, i := range idxs {
		c := in[i]
		p := PrimaryScore{
			Length:     ratio(contentLength(c), maxLen),
			Difficulty: c.Difficulty / cards.MaxDifficulty,
			Metadata:   ratio(len(c.Metadata), maxMeta),
			Entities:   ratio(len(c.Entities), maxEnt),
		}
		if s := p.Combined(d.cfg.Primary); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

func contentLength(c cards.Card) int {
	return utf8.RuneCountInString(c.Front) + utf8.RuneCountInString(c.Back)
}

func ratio(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of)
}

// Traceability records where a surviving card's group came from.
type Traceability struct {
	CardIDs          []string          `json:"card_ids"`
	KnowledgeIDs     []string          `json:"knowledge_ids"`
	ChapterIDs       []string          `json:"chapter_ids"`
	Anchors          []doctree.Anchors `json:"anchors"`
	SimilarityScores []float64         `json:"similarity_scores"`
}

// withTraceability copies the primary card and records every group member
// on it. Traceability any member gathered in an earlier pass or run is
// carried over.
func withTraceability(in []cards.Card, primary int, all []int, scores []float64) cards.Card {
	c := in[primary]
	meta := make(map[string]any, len(c.Metadata)+1)
	for k, v := range c.Metadata {
		meta[k] = v
	}

	var tr Traceability
	for _, i := range append([]int{primary}, without(all, primary)...) {
		tr.add(in[i])
	}
	tr.SimilarityScores = append(tr.SimilarityScores, scores...)
	meta[TraceabilityKey] = tr
	c.Metadata = meta
	return c
}

// add records a card, or the group it already stands for.
func (tr *Traceability) add(c cards.Card) {
	prev, ok := c.Metadata[TraceabilityKey].(Traceability)
	if !ok {
		tr.record(c.ID, c.Source.Anchors)
		tr.KnowledgeIDs = appendUnique(tr.KnowledgeIDs, c.KnowledgeID)
		tr.ChapterIDs = appendUnique(tr.ChapterIDs, c.Source.ChapterID)
		return
	}
	for i, id := range prev.CardIDs {
		var a doctree.Anchors
		if i < len(prev.Anchors) {
			a = prev.Anchors[i]
		}
		tr.record(id, a)
	}
	for _, k := range prev.KnowledgeIDs {
		tr.KnowledgeIDs = appendUnique(tr.KnowledgeIDs, k)
	}
	for _, ch := range prev.ChapterIDs {
		tr.ChapterIDs = appendUnique(tr.ChapterIDs, ch)
	}
	tr.SimilarityScores = append(tr.SimilarityScores, prev.SimilarityScores...)
}

// record adds a card's ID and anchor once.
func (tr *Traceability) record(id string, a doctree.Anchors) {
	if id != "" && slices.Contains(tr.CardIDs, id) {
		return
	}
	if id != "" {
		tr.CardIDs = append(tr.CardIDs, id)
	}
	tr.Anchors = append(tr.Anchors, a)
}

func without(idxs []int, drop int) []int {
	out := make([]int, 0, len(idxs))
	for _, i := range idxs {
		if i != drop {
			out = append(out, i)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
