// Package reflect implements the per-user reflection task (C9): periodic
// clustering of recent memories into a single rolling summary.
package reflect

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/store"
)

const (
	maxMemoriesRead    = 100
	clusterThreshold   = 0.75
	recencyHalfLife    = 7 * 24 * time.Hour
	defaultInterval    = 30 * time.Minute
)

// Generator runs the per-user summary task on a timer.
type Generator struct {
	Store    store.Store
	Interval time.Duration
	NowFn    func() time.Time
}

func New(s store.Store) *Generator {
	return &Generator{Store: s, Interval: defaultInterval, NowFn: time.Now}
}

func (g *Generator) now() time.Time {
	if g.NowFn != nil {
		return g.NowFn()
	}
	return time.Now()
}

// RegenerateSummary reads up to 100 of the user's memories, clusters them by
// bag-of-words cosine similarity, scores each cluster's saliency, and writes
// the highest-saliency cluster's digest as the user's summary (§4.9).
func (g *Generator) RegenerateSummary(ctx context.Context, userID string) (*model.UserProfile, error) {
	memories, err := g.Store.ListMemories(ctx, userID, "", maxMemoriesRead, 0)
	if err != nil {
		return nil, err
	}
	existing, err := g.Store.GetUserProfile(ctx, userID)
	reflectionCount := 0
	if err == nil && existing != nil {
		reflectionCount = existing.ReflectionCount
	}

	summary := ""
	if len(memories) > 0 {
		clusters := cluster(memories, clusterThreshold)
		best := bestCluster(clusters, g.now())
		summary = digest(best)
	}

	profile := model.UserProfile{
		UserID:          userID,
		Summary:         summary,
		ReflectionCount: reflectionCount + 1,
		UpdatedAt:       g.now().UTC(),
	}
	if err := g.Store.UpsertUserProfile(ctx, profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// cluster groups memories using bag-of-words cosine similarity against a
// running centroid, grounded on the teacher's clusterRecords (pkg/memory/
// engine.go) but generalized from dense embeddings to word-frequency maps
// since §4.9 specifies "bag-of-words", not the router's dense vectors.
func cluster(memories []model.Memory, threshold float64) [][]model.Memory {
	if threshold <= 0 {
		threshold = clusterThreshold
	}
	type bucket struct {
		centroid map[string]float64
		members  []model.Memory
	}
	var buckets []bucket
	for _, m := range memories {
		bow := bagOfWords(m.Content)
		placed := false
		for i := range buckets {
			if cosineBOW(bow, buckets[i].centroid) >= threshold {
				buckets[i].members = append(buckets[i].members, m)
				buckets[i].centroid = mergeBOW(buckets[i].centroid, bow)
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, bucket{centroid: bow, members: []model.Memory{m}})
		}
	}
	out := make([][]model.Memory, len(buckets))
	for i, b := range buckets {
		out[i] = b.members
	}
	return out
}

func bagOfWords(text string) map[string]float64 {
	bow := make(map[string]float64)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		bow[w]++
	}
	return bow
}

func mergeBOW(a, b map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(a)+len(b))
	for k, v := range a {
		out[k] += v
	}
	for k, v := range b {
		out[k] += v
	}
	return out
}

func cosineBOW(a, b map[string]float64) float64 {
	var dot, magA, magB float64
	for k, v := range a {
		dot += v * b[k]
		magA += v * v
	}
	for _, v := range b {
		magB += v * v
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (sqrt(magA) * sqrt(magB))
}

func sqrt(v float64) float64 {
	if v <= 0 {
		return 0
	}
	x := v
	for i := 0; i < 20; i++ {
		x = 0.5 * (x + v/x)
	}
	return x
}

// saliency computes §4.9's cluster score: s = 0.6*(n/10) + 0.3*recency +
// 0.1*[has_emotional].
func saliency(cluster []model.Memory, now time.Time) float64 {
	n := float64(len(cluster))
	sizeTerm := 0.6 * (n / 10)

	var newest time.Time
	hasEmotional := false
	for _, m := range cluster {
		if m.LastSeenAt.After(newest) {
			newest = m.LastSeenAt
		}
		if m.PrimarySector == model.SectorEmotional {
			hasEmotional = true
		}
	}
	age := now.Sub(newest)
	recency := 0.0
	if age >= 0 {
		recency = 1.0 / (1.0 + age.Hours()/recencyHalfLife.Hours())
	}
	recencyTerm := 0.3 * recency

	emotionalTerm := 0.0
	if hasEmotional {
		emotionalTerm = 0.1
	}
	return sizeTerm + recencyTerm + emotionalTerm
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func bestCluster(clusters [][]model.Memory, now time.Time) []model.Memory {
	if len(clusters) == 0 {
		return nil
	}
	sort.Slice(clusters, func(i, j int) bool {
		return saliency(clusters[i], now) > saliency(clusters[j], now)
	})
	return clusters[0]
}

func digest(cluster []model.Memory) string {
	if len(cluster) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cluster))
	for _, m := range cluster {
		c := m.Content
		if len(c) > 140 {
			c = c[:140]
		}
		parts = append(parts, c)
	}
	return strings.Join(parts, " ")
}
