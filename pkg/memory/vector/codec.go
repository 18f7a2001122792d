// Package vector implements the binary vector codec (C1): packing dense
// float32 vectors to/from a little-endian blob, in-place normalization,
// resizing, and mean-pool compression to a smaller dimension.
package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ToBlob packs v as little-endian float32 bytes, 4*len(v) bytes total.
func ToBlob(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// FromBlob unpacks a little-endian float32 blob. The blob length must be a
// multiple of 4.
func FromBlob(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector: blob length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// Normalize L2-normalizes v in place. A zero vector is left unchanged.
func Normalize(v []float32) {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i, f := range v {
		v[i] = float32(float64(f) / norm)
	}
}

// Resize returns v adjusted to exactly target length: truncated if longer,
// right-padded with zeros if shorter, returned as-is if equal. No
// renormalization is performed.
func Resize(v []float32, target int) []float32 {
	if len(v) == target {
		return v
	}
	out := make([]float32, target)
	copy(out, v)
	return out
}

// minCompressDim is the policy floor below which compression is refused.
const minCompressDim = 64

// Compress mean-pools v into targetDim contiguous buckets and L2-normalizes
// the result. Requires targetDim <= len(v) and targetDim >= 64.
func Compress(v []float32, targetDim int) ([]float32, error) {
	if targetDim < minCompressDim {
		return nil, fmt.Errorf("vector: target dim %d below policy floor %d", targetDim, minCompressDim)
	}
	if targetDim > len(v) {
		return nil, fmt.Errorf("vector: target dim %d exceeds source length %d", targetDim, len(v))
	}
	out := make([]float32, targetDim)
	n := len(v)
	for i := 0; i < targetDim; i++ {
		start := i * n / targetDim
		end := (i + 1) * n / targetDim
		if end <= start {
			end = start + 1
		}
		var sum float64
		count := 0
		for j := start; j < end && j < n; j++ {
			sum += float64(v[j])
			count++
		}
		if count > 0 {
			out[i] = float32(sum / float64(count))
		}
	}
	Normalize(out)
	return out, nil
}
