package embed

import (
	"math"
	"testing"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

func TestGenSynthDeterministic(t *testing.T) {
	a := GenSynth("production outage impacting users", model.SectorEpisodic, 256)
	b := GenSynth("production outage impacting users", model.SectorEpisodic, 256)
	if len(a) != 256 {
		t.Fatalf("expected dim 256, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected bit-identical output at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestGenSynthEmptyTextYieldsUnitVector(t *testing.T) {
	v := GenSynth("   ", model.SectorSemantic, 64)
	want := float32(1 / math.Sqrt(64))
	for i, f := range v {
		if math.Abs(float64(f-want)) > 1e-6 {
			t.Fatalf("expected uniform unit vector at %d: got %v want %v", i, f, want)
		}
	}
}

func TestGenSynthIsUnitLength(t *testing.T) {
	v := GenSynth("the quick brown fox jumps over the lazy dog", model.SectorProcedural, 128)
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if math.Abs(sumSq-1) > 1e-4 {
		t.Fatalf("expected normalized vector, sum of squares = %v", sumSq)
	}
}

func TestGenSynthSectorSensitivity(t *testing.T) {
	a := GenSynth("a shared piece of text", model.SectorEmotional, 128)
	b := GenSynth("a shared piece of text", model.SectorProcedural, 128)
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("expected sector to influence the embedding")
	}
}
