package vector

import (
	"math"
	"testing"
)

func TestToBlobFromBlobRoundTrip(t *testing.T) {
	v := []float32{0.5, -1.25, 3.0, 0}
	blob := ToBlob(v)
	if len(blob) != 4*len(v) {
		t.Fatalf("expected blob length %d, got %d", 4*len(v), len(blob))
	}
	back, err := FromBlob(blob)
	if err != nil {
		t.Fatalf("from_blob: %v", err)
	}
	for i := range v {
		if back[i] != v[i] {
			t.Fatalf("round trip mismatch at %d: want %v got %v", i, v[i], back[i])
		}
	}
}

func TestFromBlobRejectsMisalignedLength(t *testing.T) {
	if _, err := FromBlob([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for non-multiple-of-4 blob length")
	}
}

func TestNormalizeUnitLength(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if math.Abs(sumSq-1) > 1e-6 {
		t.Fatalf("expected unit length, got sum of squares %v", sumSq)
	}
}

func TestNormalizeZeroVectorUnchanged(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v)
	for _, f := range v {
		if f != 0 {
			t.Fatalf("expected zero vector to remain zero, got %v", v)
		}
	}
}

func TestResizeTruncateAndPad(t *testing.T) {
	v := []float32{1, 2, 3}
	short := Resize(v, 2)
	if len(short) != 2 || short[0] != 1 || short[1] != 2 {
		t.Fatalf("unexpected truncation: %v", short)
	}
	long := Resize(v, 5)
	if len(long) != 5 || long[3] != 0 || long[4] != 0 {
		t.Fatalf("unexpected padding: %v", long)
	}
	same := Resize(v, 3)
	if len(same) != 3 {
		t.Fatalf("unexpected resize to same length: %v", same)
	}
}

func TestCompressRejectsDimBelowFloor(t *testing.T) {
	v := make([]float32, 256)
	if _, err := Compress(v, 32); err == nil {
		t.Fatalf("expected error for target dim below policy floor")
	}
}

func TestCompressRejectsDimAboveSource(t *testing.T) {
	v := make([]float32, 100)
	if _, err := Compress(v, 128); err == nil {
		t.Fatalf("expected error for target dim exceeding source length")
	}
}

func TestCompressMeanPoolsAndNormalizes(t *testing.T) {
	v := make([]float32, 256)
	for i := range v {
		v[i] = 1
	}
	out, err := Compress(v, 64)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if len(out) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(out))
	}
	var sumSq float64
	for _, f := range out {
		sumSq += float64(f) * float64(f)
	}
	if math.Abs(sumSq-1) > 1e-6 {
		t.Fatalf("expected compressed vector to be unit length, got %v", sumSq)
	}
}
