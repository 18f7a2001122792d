// Package decay implements the dual-phase decay and compression sweep (C7):
// a periodic pass over every memory that lowers salience, compresses vectors
// of cold memories, and fingerprints deep-cold ones.
package decay

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hsgraph/hsg/pkg/memory/embed"
	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/store"
	"github.com/hsgraph/hsg/pkg/memory/vector"
)

const (
	lambdaFast    = 0.015
	lambdaSlow    = 0.002
	theta         = 0.4
	warmColdR     = 0.7
	deepColdR     = 0.3
	changeEpsilon = 0.001
	pageSize      = 1000
	yieldEvery    = 5000
	fingerprintDim = 32
	minVecDim     = 64
)

// Retention computes R(t_days) per §4.6, clamped to [0,1].
func Retention(tDays float64) float64 {
	r := math.Exp(-lambdaFast*tDays) + theta*math.Exp(-lambdaSlow*tDays)
	return model.Clamp01(r)
}

// ActiveQueries is an atomic counter the retrieval engine bumps around every
// query; the sweep refuses to run while it is non-zero (§5 quiescence).
type ActiveQueries struct{ n int64 }

func (a *ActiveQueries) Enter() { atomic.AddInt64(&a.n, 1) }
func (a *ActiveQueries) Leave() { atomic.AddInt64(&a.n, -1) }
func (a *ActiveQueries) Idle() bool { return atomic.LoadInt64(&a.n) == 0 }

// Sweeper runs the periodic decay pass.
type Sweeper struct {
	Store   store.Store
	Active  *ActiveQueries
	NowFn   func() time.Time
	Sleep   func(time.Duration)
}

func NewSweeper(s store.Store, active *ActiveQueries) *Sweeper {
	return &Sweeper{Store: s, Active: active, NowFn: time.Now, Sleep: time.Sleep}
}

func (sw *Sweeper) now() time.Time {
	if sw.NowFn != nil {
		return sw.NowFn()
	}
	return time.Now()
}

// Run sweeps every memory once, skipping entirely if a query is in flight.
// It returns the number of rows changed.
func (sw *Sweeper) Run(ctx context.Context) (int, error) {
	if sw.Active != nil && !sw.Active.Idle() {
		return 0, nil
	}
	changed := 0
	offset := 0
	processed := 0
	for {
		page, err := sw.Store.PageMemories(ctx, offset, pageSize)
		if err != nil {
			return changed, err
		}
		if len(page) == 0 {
			break
		}
		for i := range page {
			did, err := sw.applyOne(ctx, &page[i])
			if err != nil {
				return changed, err
			}
			if did {
				changed++
			}
			processed++
			if processed%yieldEvery == 0 && sw.Sleep != nil {
				sw.Sleep(time.Millisecond)
			}
		}
		offset += len(page)
		if len(page) < pageSize {
			break
		}
	}
	return changed, nil
}

func (sw *Sweeper) applyOne(ctx context.Context, m *model.Memory) (bool, error) {
	now := sw.now().UTC()
	tMs := now.Sub(m.LastSeenAt).Milliseconds()
	if tMs < 0 {
		tMs = 0
	}
	tDays := float64(tMs) / 86_400_000
	r := Retention(tDays)

	newSalience := model.Clamp01(m.Salience * r)
	changed := absFloat(newSalience-m.Salience) > changeEpsilon
	m.Salience = newSalience

	if r < deepColdR {
		if err := sw.fingerprint(ctx, m); err != nil {
			return false, err
		}
		changed = true
	} else if r < warmColdR {
		if err := sw.compress(ctx, m, r); err != nil {
			return false, err
		}
		changed = true
	}

	if changed {
		m.UpdatedAt = now
		if err := sw.Store.UpdateMemory(ctx, m); err != nil {
			return false, err
		}
	}
	return changed, nil
}

// compress shrinks the stored vector toward floor(len*R) and re-summarizes
// with increasing aggressiveness as R drops.
func (sw *Sweeper) compress(ctx context.Context, m *model.Memory, r float64) error {
	v, err := sw.Store.GetVector(ctx, m.ID, m.PrimarySector, m.UserID)
	if err != nil {
		if model.KindOf(err) == model.NotFound {
			return nil
		}
		return err
	}
	target := int(float64(len(v.Values)) * r)
	if target < minVecDim {
		target = minVecDim
	}
	if target > len(v.Values) {
		target = len(v.Values)
	}
	if target < len(v.Values) {
		compressed, err := vector.Compress(v.Values, target)
		if err != nil {
			return err
		}
		v.Values = compressed
		v.Dim = len(compressed)
		if err := sw.Store.UpsertVector(ctx, *v); err != nil {
			return err
		}
	}
	m.CompressedVec = v.Values
	m.Summary = summarize(m.Content, r)
	return nil
}

// fingerprint replaces the vector with a 32-dim deterministic hash and the
// summary with its top-3 keywords (§4.6 "deep cold").
func (sw *Sweeper) fingerprint(ctx context.Context, m *model.Memory) error {
	seed := m.ID + "|" + firstN(m.Summary+m.Content, 512)
	fp := embed.HashToVector(seed, "fingerprint", fingerprintDim)
	if err := sw.Store.UpsertVector(ctx, model.Vector{
		MemoryID: m.ID,
		Sector:   m.PrimarySector,
		UserID:   m.UserID,
		Values:   fp,
		Dim:      fingerprintDim,
	}); err != nil {
		return err
	}
	m.CompressedVec = fp
	m.Summary = topKeywords(m.Content, 3)
	return nil
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// summarize produces an increasingly aggressive summary as R drops:
// truncate above 0.5, extractive sentence scoring above 0.3, else keywords.
func summarize(content string, r float64) string {
	switch {
	case r >= warmColdR:
		return content
	case r >= 0.5:
		return firstN(content, 300)
	case r >= deepColdR:
		return extractiveSummary(content)
	default:
		return topKeywords(content, 3)
	}
}

func extractiveSummary(content string) string {
	sentences := splitSentences(content)
	if len(sentences) == 0 {
		return firstN(content, 200)
	}
	freq := wordFreq(content)
	best := sentences[0]
	bestScore := -1.0
	for _, s := range sentences {
		score := 0.0
		for _, w := range strings.Fields(strings.ToLower(s)) {
			score += freq[w]
		}
		if len(s) > 0 {
			score /= float64(len(strings.Fields(s)) + 1)
		}
		if score > bestScore {
			bestScore = score
			best = s
		}
	}
	return strings.TrimSpace(best)
}

func splitSentences(content string) []string {
	raw := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	var out []string
	for _, s := range raw {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func wordFreq(content string) map[string]float64 {
	freq := make(map[string]float64)
	for _, w := range strings.Fields(strings.ToLower(content)) {
		freq[w]++
	}
	return freq
}

func topKeywords(content string, k int) string {
	freq := wordFreq(content)
	type kv struct {
		word  string
		count float64
	}
	kvs := make([]kv, 0, len(freq))
	for w, c := range freq {
		if len(w) < 4 {
			continue
		}
		kvs = append(kvs, kv{w, c})
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].count > kvs[j].count })
	if len(kvs) > k {
		kvs = kvs[:k]
	}
	words := make([]string, len(kvs))
	for i, e := range kvs {
		words[i] = e.word
	}
	return strings.Join(words, ", ")
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
