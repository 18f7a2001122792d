package embed

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

type fakeProvider struct {
	name    string
	vec     []float32
	err     error
	calls   int
	failFor int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failFor {
		return nil, f.err
	}
	return f.vec, nil
}

func TestRouterFastTierReturnsSynthetic(t *testing.T) {
	r := NewRouter(64, TierFast, nil)
	v, err := r.EmbedForSector(context.Background(), "hello world", model.SectorSemantic)
	if err != nil {
		t.Fatalf("embed_for_sector: %v", err)
	}
	if len(v) != 64 {
		t.Fatalf("expected dim 64, got %d", len(v))
	}
}

func TestRouterDimReconciliationFallsBackToSynthetic(t *testing.T) {
	p := &fakeProvider{name: "test", vec: make([]float32, 10)} // way off from D=64
	r := NewRouter(64, TierSemantic, p)
	r.FallbackOnFail = true
	v, err := r.EmbedForSector(context.Background(), "hello", model.SectorEpisodic)
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if len(v) != 64 {
		t.Fatalf("expected fallback dim 64, got %d", len(v))
	}
}

func TestRouterDimReconciliationFailsWithoutFallback(t *testing.T) {
	p := &fakeProvider{name: "test", vec: make([]float32, 10)}
	r := NewRouter(64, TierSemantic, p)
	r.FallbackOnFail = false
	_, err := r.EmbedForSector(context.Background(), "hello", model.SectorEpisodic)
	if model.KindOf(err) != model.DimIncompatible {
		t.Fatalf("expected DimIncompatible, got %v", err)
	}
}

func TestRouterRetriesThenSucceeds(t *testing.T) {
	p := &fakeProvider{name: "test", vec: make([]float32, 64), err: errors.New("rate limited"), failFor: 2}
	r := NewRouter(64, TierSemantic, p)
	r.Retry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	v, err := r.EmbedForSector(context.Background(), "hello", model.SectorEpisodic)
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if len(v) != 64 {
		t.Fatalf("expected dim 64, got %d", len(v))
	}
	if p.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", p.calls)
	}
}

func TestFuseConcatProducesUnitLength(t *testing.T) {
	synth := make([]float32, 32)
	sem := make([]float32, 128)
	for i := range synth {
		synth[i] = 1
	}
	for i := range sem {
		sem[i] = 1
	}
	out := FuseConcat(synth, sem, 0.6, 0.4)
	if len(out) != 160 {
		t.Fatalf("expected concatenated length 160, got %d", len(out))
	}
	var sumSq float64
	for _, f := range out {
		sumSq += float64(f) * float64(f)
	}
	if math.Abs(sumSq-1) > 1e-4 {
		t.Fatalf("expected unit length, got sum of squares %v", sumSq)
	}
}

func TestHashEmbedDeterministic(t *testing.T) {
	a := HashEmbed("same text", model.SectorReflective, 48)
	b := HashEmbed("same text", model.SectorReflective, 48)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected deterministic hash embedding at %d", i)
		}
	}
}
