package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

// LocalHashProvider implements the `local_hash` provider (§4.3): a
// deterministic hash-to-vector expansion over sha256(text||sector).
type LocalHashProvider struct {
	Dim    int
	Sector model.Sector
}

func (p LocalHashProvider) Name() string { return "local_hash" }

func (p LocalHashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return HashToVector(text, string(p.Sector), p.Dim), nil
}

// HashEmbed hashes text under a given sector label, matching the §4.3
// local_hash contract sha256(text||sector).
func HashEmbed(text string, sector model.Sector, dim int) []float32 {
	return HashToVector(text, string(sector), dim)
}

// HashToVector expands sha256(text||suffix) into a deterministic dim-length
// unit vector via xorshift-style expansion of the digest bytes. Also used by
// the decay engine's deep-cold fingerprint (§4.6), generalized to arbitrary
// target dimensions.
func HashToVector(text, suffix string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text + suffix))
	state := binary.LittleEndian.Uint64(sum[0:8]) ^ binary.LittleEndian.Uint64(sum[8:16]) ^
		binary.LittleEndian.Uint64(sum[16:24]) ^ binary.LittleEndian.Uint64(sum[24:32])
	out := make([]float32, dim)
	for i := range out {
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		// map to [-1, 1]
		out[i] = float32(float64(state%2_000_001)/1_000_000 - 1)
	}
	var sumSq float64
	for _, f := range out {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return out
	}
	norm := math.Sqrt(sumSq)
	for i, f := range out {
		out[i] = float32(float64(f) / norm)
	}
	return out
}
