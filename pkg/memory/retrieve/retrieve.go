// Package retrieve implements the query engine (C8): vector shortlist,
// resonance reweighting, spreading activation, energy thresholding, MMR
// diversification, and on_query_hit reinforcement.
package retrieve

import (
	"context"
	"math"
	"sort"

	"github.com/hsgraph/hsg/pkg/memory/decay"
	"github.com/hsgraph/hsg/pkg/memory/embed"
	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/store"
)

const (
	shortlistSize    = 100
	minSalience      = 0.01
	activationHops   = 3
	gamma            = 0.35
	activationWeight = 0.3
	defaultTau       = 0.4
	tauMin           = 0.1
	tauMax           = 0.9
	seedCount        = 5
	reinforceEta     = 0.18
	regenDimFloor    = 64
)

// Filter narrows a query (§4.8's `filter` argument).
type Filter struct {
	Sector   model.Sector
	MinScore float64
	UserID   string
}

// Result is one hydrated hit (§4.8 step 8).
type Result struct {
	ID            string
	Content       string
	Score         float64
	Sectors       []model.Sector
	PrimarySector model.Sector
	Path          []string
	Salience      float64
	LastSeenAt    int64
}

// Options configures one call to Query.
type Options struct {
	Tau                   float64
	ReinforceOnQuery      bool
	RegenerationEnabled   bool
	MMRLambda             float64
}

func (o Options) withDefaults() Options {
	if o.Tau <= 0 {
		o.Tau = defaultTau
	}
	if o.MMRLambda <= 0 {
		o.MMRLambda = 0.7
	}
	return o
}

// Engine wires the router (C3), store (C4), and the decay engine's active
// query counter together for query-time quiescence signalling (§5).
type Engine struct {
	Store  store.Store
	Router *embed.Router
	Active *decay.ActiveQueries
}

func New(s store.Store, r *embed.Router) *Engine {
	return &Engine{Store: s, Router: r}
}

type candidate struct {
	memory     model.Memory
	cosSim     float64
	score      float64
	activation float64
	final      float64
}

// Query implements hsg_query (§4.8 steps 1-8). on_query_hit reinforcement
// (step 9) is launched asynchronously at the end of this call, one goroutine
// per result; Query returns without waiting for it to finish.
func (e *Engine) Query(ctx context.Context, queryText string, k int, filter Filter, opts Options) ([]Result, error) {
	opts = opts.withDefaults()
	if e.Active != nil {
		e.Active.Enter()
		defer e.Active.Leave()
	}

	sector := filter.Sector
	if sector == "" {
		sector = model.SectorSemantic
	}

	var queryVec []float32
	if e.Router != nil {
		v, err := e.Router.EmbedForSector(ctx, queryText, sector)
		if err != nil {
			return nil, err
		}
		queryVec = v
	}

	matches, err := e.Store.SearchVectors(ctx, filter.UserID, "", queryVec, shortlistSize)
	if err != nil {
		return nil, err
	}

	candidates := make(map[string]*candidate, len(matches))
	for _, m := range matches {
		if m.CosSim < filter.MinScore {
			continue
		}
		mem, err := e.Store.GetMemory(ctx, filter.UserID, m.MemoryID)
		if err != nil {
			continue
		}
		if mem.Salience <= minSalience {
			continue
		}
		cross := m.CosSim * model.Resonance(mem.PrimarySector, sector)
		score := cross * mem.Salience
		candidates[mem.ID] = &candidate{memory: *mem, cosSim: m.CosSim, score: score}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	seeds := topSeeds(candidates, seedCount)
	activation := spreadActivation(ctx, e.Store, filter.UserID, seeds, activationHops)
	for id, a := range activation {
		if c, ok := candidates[id]; ok && a > c.activation {
			c.activation = a
		}
	}

	var totalEnergy float64
	list := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		c.final = c.score + activationWeight*c.activation
		totalEnergy += c.final
		list = append(list, c)
	}

	tauEff := clamp(opts.Tau*(1+math.Log(totalEnergy+1)), tauMin, tauMax)
	kept := make([]*candidate, 0, len(list))
	for _, c := range list {
		if c.final > tauEff {
			kept = append(kept, c)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].final > kept[j].final })

	diversified := mmrSelect(kept, queryVec, k, opts.MMRLambda)

	results := make([]Result, 0, len(diversified))
	for _, c := range diversified {
		results = append(results, Result{
			ID:            c.memory.ID,
			Content:       c.memory.Content,
			Score:         c.final,
			Sectors:       []model.Sector{c.memory.PrimarySector},
			PrimarySector: c.memory.PrimarySector,
			Salience:      c.memory.Salience,
			LastSeenAt:    c.memory.LastSeenAt.Unix(),
		})
	}

	if opts.ReinforceOnQuery {
		for _, r := range results {
			go e.onQueryHit(r.ID, filter.UserID, opts.RegenerationEnabled)
		}
	}

	return results, nil
}

func topSeeds(candidates map[string]*candidate, n int) []string {
	list := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].score > list[j].score })
	if len(list) > n {
		list = list[:n]
	}
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.memory.ID
	}
	return ids
}

// spreadActivation implements §4.8 step 5: breadth-first propagation with
// exponential per-hop attenuation, keeping the maximum activation seen.
func spreadActivation(ctx context.Context, s store.Store, userID string, seeds []string, hops int) map[string]float64 {
	activation := make(map[string]float64, len(seeds))
	for _, id := range seeds {
		activation[id] = 1.0
	}
	frontier := append([]string(nil), seeds...)
	attenuation := math.Exp(-gamma)
	for hop := 0; hop < hops && len(frontier) > 0; hop++ {
		var next []string
		for _, src := range frontier {
			edges, err := s.Neighbors(ctx, userID, src)
			if err != nil {
				continue
			}
			srcActivation := activation[src]
			for _, edge := range edges {
				dst := edge.DstID
				if dst == src {
					dst = edge.SrcID
				}
				e := edge.Weight * srcActivation * attenuation
				if e > activation[dst] {
					activation[dst] = e
					next = append(next, dst)
				}
			}
		}
		frontier = next
	}
	return activation
}

// mmrSelect diversifies kept candidates, grounded on the teacher's
// mmrSelect (pkg/memory/engine.go): greedy pick of max(lambda*relevance -
// (1-lambda)*maxSimToSelected), generalized from []MemoryRecord to
// []*candidate and from a precomputed WeightedScore to `final`.
func mmrSelect(candidates []*candidate, query []float32, limit int, lambda float64) []*candidate {
	if limit <= 0 || limit >= len(candidates) {
		return candidates
	}
	if lambda < 0 {
		lambda = 0
	}
	if lambda > 1 {
		lambda = 1
	}
	remaining := append([]*candidate(nil), candidates...)
	selected := make([]*candidate, 0, limit)
	for len(selected) < limit && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			relevance := cand.final
			var maxSim float64
			for _, sel := range selected {
				if sim := sectorAwareSimilarity(cand, sel); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*relevance - (1-lambda)*maxSim
			if lambda == 0 {
				score = -maxSim
			}
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	_ = query
	return selected
}

// sectorAwareSimilarity approximates redundancy between two already-scored
// candidates using cross-sector resonance as a cheap proxy for content
// similarity, avoiding a second embedding fetch during selection.
func sectorAwareSimilarity(a, b *candidate) float64 {
	return model.Resonance(a.memory.PrimarySector, b.memory.PrimarySector) * (1 - absDiff(a.cosSim, b.cosSim))
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// onQueryHit reinforces salience toward 1 and opportunistically regenerates
// a cold vector (§4.6 "on_query_hit", §4.8 step 9).
func (e *Engine) onQueryHit(id, userID string, regenerate bool) {
	ctx := context.Background()
	m, err := e.Store.GetMemory(ctx, userID, id)
	if err != nil {
		return
	}
	m.Salience = model.Clamp01(m.Salience + reinforceEta*(1-m.Salience))

	if regenerate && e.Router != nil {
		v, err := e.Store.GetVector(ctx, id, m.PrimarySector, userID)
		if err == nil && len(v.Values) <= regenDimFloor {
			if fresh, err := e.Router.EmbedForSector(ctx, m.Content, m.PrimarySector); err == nil {
				_ = e.Store.UpsertVector(ctx, model.Vector{MemoryID: id, Sector: m.PrimarySector, UserID: userID, Values: fresh, Dim: len(fresh)})
			}
		}
	}
	_ = e.Store.UpdateMemory(ctx, m)
}

// Reinforce implements POST /memory/reinforce's lightweight path: a direct
// boost rather than the query-hit formula, using the spec's alternative
// clamp01(s+boost) formulation.
func Reinforce(m *model.Memory, boost float64) {
	if boost <= 0 {
		boost = 0.5
	}
	m.Salience = model.Clamp01(m.Salience + boost)
}
