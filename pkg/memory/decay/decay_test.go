package decay

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/store"
)

func TestRetentionMonotonicDecreasing(t *testing.T) {
	r0 := Retention(0)
	r30 := Retention(30)
	r365 := Retention(365)
	if !(r0 >= r30 && r30 >= r365) {
		t.Fatalf("expected monotonically decreasing retention, got r0=%v r30=%v r365=%v", r0, r30, r365)
	}
	if r0 < 0 || r0 > 1+1e-9 {
		t.Fatalf("expected r0 in [0,1], got %v", r0)
	}
}

func TestRetentionClampedToUnitInterval(t *testing.T) {
	for _, days := range []float64{0, 1, 10, 100, 10000} {
		r := Retention(days)
		if r < 0 || r > 1 {
			t.Fatalf("retention out of [0,1] at %v days: %v", days, r)
		}
	}
}

func TestSweepLowersSalienceForStaleMemory(t *testing.T) {
	s := store.NewInMemoryStore()
	ctx := context.Background()
	old := time.Now().Add(-400 * 24 * time.Hour)
	m := &model.Memory{
		PrimarySector: model.SectorSemantic,
		Content:       "a stale memory about nothing in particular",
		Salience:      0.9,
		LastSeenAt:    old,
		CreatedAt:     old,
	}
	if err := s.CreateMemory(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}

	sw := NewSweeper(s, nil)
	changed, err := sw.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if changed == 0 {
		t.Fatalf("expected at least one changed row")
	}

	got, err := s.GetMemory(ctx, "", m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Salience >= 0.9 {
		t.Fatalf("expected salience to drop below 0.9, got %v", got.Salience)
	}
}

func TestSweepSkippedWhileQueryInFlight(t *testing.T) {
	s := store.NewInMemoryStore()
	ctx := context.Background()
	old := time.Now().Add(-400 * 24 * time.Hour)
	m := &model.Memory{
		PrimarySector: model.SectorSemantic,
		Content:       "another stale memory",
		Salience:      0.9,
		LastSeenAt:    old,
	}
	if err := s.CreateMemory(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}

	active := &ActiveQueries{}
	active.Enter()
	sw := NewSweeper(s, active)
	changed, err := sw.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if changed != 0 {
		t.Fatalf("expected sweep to be skipped while active, got %d changed", changed)
	}
}

func TestSweepIsIdempotentOnRepeatedRuns(t *testing.T) {
	s := store.NewInMemoryStore()
	ctx := context.Background()
	old := time.Now().Add(-500 * 24 * time.Hour)
	m := &model.Memory{
		PrimarySector: model.SectorSemantic,
		Content:       "memory that will decay twice in a row during the test",
		Salience:      0.9,
		LastSeenAt:    old,
	}
	if err := s.CreateMemory(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}
	sw := NewSweeper(s, nil)
	if _, err := sw.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := s.GetMemory(ctx, "", m.ID)

	if _, err := sw.Run(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, _ := s.GetMemory(ctx, "", m.ID)

	if second.Salience > first.Salience {
		t.Fatalf("expected salience to not increase on re-sweep: first=%v second=%v", first.Salience, second.Salience)
	}
}

func TestFingerprintProducesUnitLength32Dim(t *testing.T) {
	s := store.NewInMemoryStore()
	ctx := context.Background()
	old := time.Now().Add(-10000 * 24 * time.Hour)
	m := &model.Memory{
		PrimarySector: model.SectorSemantic,
		Content:       "ancient memory deep in the cold tier",
		Salience:      0.9,
		LastSeenAt:    old,
	}
	if err := s.CreateMemory(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.UpsertVector(ctx, model.Vector{MemoryID: m.ID, Sector: m.PrimarySector, Values: make([]float32, 256), Dim: 256}); err != nil {
		t.Fatalf("upsert vector: %v", err)
	}

	sw := NewSweeper(s, nil)
	if _, err := sw.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	v, err := s.GetVector(ctx, m.ID, m.PrimarySector, "")
	if err != nil {
		t.Fatalf("get vector: %v", err)
	}
	if len(v.Values) != fingerprintDim {
		t.Fatalf("expected fingerprint dim %d, got %d", fingerprintDim, len(v.Values))
	}
	var sumSq float64
	for _, f := range v.Values {
		sumSq += float64(f) * float64(f)
	}
	if math.Abs(sumSq-1) > 1e-4 {
		t.Fatalf("expected unit-length fingerprint, got squared norm %v", sumSq)
	}
}
