package embed

import (
	"context"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

// SyntheticProvider wraps GenSynth as a Provider for the `synthetic`
// in-process backend (§4.3).
type SyntheticProvider struct {
	Sector model.Sector
	Dim    int
}

func (p SyntheticProvider) Name() string { return "synthetic" }

func (p SyntheticProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return GenSynth(text, p.Sector, p.Dim), nil
}
