package embed

import (
	"context"
	"fmt"
	"runtime"

	fastembed "github.com/anush008/fastembed-go"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

// FastEmbedOptions configures the local ONNX embedding model.
type FastEmbedOptions struct {
	Model     fastembed.EmbeddingModel
	CacheDir  string
	MaxLength int
	BatchSize int
}

// FastEmbedProvider wraps a local ONNX model as the `router_cpu` per-sector
// local provider. On model failure it falls back to synthetic when enabled,
// which the Router already handles via FallbackOnFail.
type FastEmbedProvider struct {
	m   *fastembed.FlagEmbedding
	dim int
	bs  int
}

func NewFastEmbedProvider(opt *FastEmbedOptions) (*FastEmbedProvider, error) {
	var init *fastembed.InitOptions
	if opt != nil {
		init = &fastembed.InitOptions{Model: opt.Model, CacheDir: opt.CacheDir, MaxLength: opt.MaxLength}
	}
	m, err := fastembed.NewFlagEmbedding(init)
	if err != nil {
		return nil, err
	}
	bs := 64
	if opt != nil && opt.BatchSize > 0 {
		bs = opt.BatchSize
	}
	if cap := 4 * runtime.GOMAXPROCS(0); bs > cap {
		bs = cap
	}
	return &FastEmbedProvider{m: m, dim: 768, bs: bs}, nil
}

func (p *FastEmbedProvider) Name() string { return "router_cpu:fastembed" }

func (p *FastEmbedProvider) Close() error {
	if p.m != nil {
		p.m.Destroy()
	}
	return nil
}

func (p *FastEmbedProvider) Embed(_ context.Context, text string) ([]float32, error) {
	v, err := p.m.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("fastembed query embed: %w", err)
	}
	return v, nil
}

// EmbedPassages batch-embeds document passages. The ingestion pipeline does
// not call it; ingestion embeds through the Router.
func (p *FastEmbedProvider) EmbedPassages(_ context.Context, docs []string) ([][]float32, error) {
	inputs := make([]string, len(docs))
	for i, d := range docs {
		inputs[i] = "passage: " + d
	}
	out, err := p.m.PassageEmbed(inputs, p.bs)
	if err != nil {
		return nil, fmt.Errorf("fastembed passage embed: %w", err)
	}
	return out, nil
}

// RouterCPUProviderFor selects a FastEmbedProvider by model name for a given sector
// (§4.3 router_cpu: "per-sector chooses a local model by name").
func RouterCPUProviderFor(sector model.Sector, opts map[model.Sector]*FastEmbedOptions) (*FastEmbedProvider, error) {
	opt := opts[sector]
	return NewFastEmbedProvider(opt)
}
