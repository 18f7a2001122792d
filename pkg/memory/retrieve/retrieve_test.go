package retrieve

import (
	"context"
	"testing"
	"time"

	"github.com/hsgraph/hsg/pkg/memory/embed"
	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/store"
)

func seedMemory(t *testing.T, s store.Store, r *embed.Router, content string, sec model.Sector, salience float64) string {
	t.Helper()
	m := &model.Memory{
		Content:       content,
		PrimarySector: sec,
		Salience:      salience,
		LastSeenAt:    time.Now(),
		CreatedAt:     time.Now(),
	}
	if err := s.CreateMemory(context.Background(), m); err != nil {
		t.Fatalf("create memory: %v", err)
	}
	vec, err := r.EmbedForSector(context.Background(), content, sec)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if err := s.UpsertVector(context.Background(), model.Vector{MemoryID: m.ID, Sector: sec, Values: vec, Dim: len(vec)}); err != nil {
		t.Fatalf("upsert vector: %v", err)
	}
	return m.ID
}

func TestQueryReturnsRelevantMemory(t *testing.T) {
	s := store.NewInMemoryStore()
	r := embed.NewRouter(64, embed.TierFast, nil)
	id := seedMemory(t, s, r, "the quarterly deployment plan is ready for review", model.SectorSemantic, 0.9)
	seedMemory(t, s, r, "a completely unrelated memory about gardening", model.SectorSemantic, 0.9)

	eng := New(s, r)
	results, err := eng.Query(context.Background(), "deployment plan review", 5, Filter{Sector: model.SectorSemantic}, Options{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one result")
	}
	found := false
	for _, res := range results {
		if res.ID == id {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected seeded memory in results")
	}
}

func TestQueryFiltersLowSalience(t *testing.T) {
	s := store.NewInMemoryStore()
	r := embed.NewRouter(64, embed.TierFast, nil)
	seedMemory(t, s, r, "low salience memory about the same topic as the query", model.SectorSemantic, 0.001)

	eng := New(s, r)
	results, err := eng.Query(context.Background(), "the same topic as the query", 5, Filter{Sector: model.SectorSemantic}, Options{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results for memory below salience floor, got %d", len(results))
	}
}

func TestReinforceRaisesSalienceTowardOne(t *testing.T) {
	m := &model.Memory{Salience: 0.5}
	Reinforce(m, 0.2)
	if m.Salience <= 0.5 || m.Salience > 1 {
		t.Fatalf("expected salience in (0.5, 1], got %v", m.Salience)
	}
}

func TestMMRSelectReturnsAllWhenLimitExceedsCandidates(t *testing.T) {
	cands := []*candidate{{final: 0.9}, {final: 0.5}}
	out := mmrSelect(cands, nil, 5, 0.7)
	if len(out) != 2 {
		t.Fatalf("expected all candidates returned, got %d", len(out))
	}
}

func TestSpreadActivationAttenuatesWithHops(t *testing.T) {
	s := store.NewInMemoryStore()
	ctx := context.Background()
	a := &model.Memory{PrimarySector: model.SectorSemantic}
	b := &model.Memory{PrimarySector: model.SectorSemantic}
	c := &model.Memory{PrimarySector: model.SectorSemantic}
	for _, m := range []*model.Memory{a, b, c} {
		if err := s.CreateMemory(ctx, m); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := s.UpsertWaypoint(ctx, model.Waypoint{SrcID: a.ID, DstID: b.ID, Weight: 1.0}); err != nil {
		t.Fatalf("waypoint: %v", err)
	}
	if err := s.UpsertWaypoint(ctx, model.Waypoint{SrcID: b.ID, DstID: c.ID, Weight: 1.0}); err != nil {
		t.Fatalf("waypoint: %v", err)
	}
	activation := spreadActivation(ctx, s, "", []string{a.ID}, 3)
	if activation[b.ID] <= 0 || activation[b.ID] >= activation[a.ID] {
		t.Fatalf("expected one-hop activation strictly less than seed, got a=%v b=%v", activation[a.ID], activation[b.ID])
	}
	if activation[c.ID] >= activation[b.ID] {
		t.Fatalf("expected two-hop activation less than one-hop, got b=%v c=%v", activation[b.ID], activation[c.ID])
	}
}
