package embed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/vector"
)

// Provider is a pluggable remote/local semantic embedding backend (§4.3).
// Implementations live in provider_*.go files, grounded on the teacher's
// per-backend embedder types.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Tier selects how embed_for_sector combines synthetic and semantic vectors.
type Tier string

const (
	TierFast     Tier = "fast"
	TierHybrid   Tier = "hybrid"
	TierSmart    Tier = "smart"
	TierSemantic Tier = "semantic"
)

const semanticCompressDim = 128

// RetryPolicy mirrors the teacher's uploads.RetryOptions shape, generalized
// to the router's network providers.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.BaseDelay <= 0 {
		r.BaseDelay = time.Second
	}
	return r
}

// Router implements embed_for_sector and embed_multi_sector (§4.3).
type Router struct {
	Dim            int
	Tier           Tier
	Provider       Provider
	FallbackOnFail bool
	Retry          RetryPolicy
	Logs           EmbedLogSink

	// singleFlight serializes calls into providers (like Gemini) that 429
	// under concurrency, grounded on the teacher's note about Gemini/Ollama
	// serialization.
	singleFlight sync.Mutex

	cacheMu sync.RWMutex
	cache   map[string]cachedDecision
	cacheTTL time.Duration
}

type cachedDecision struct {
	tier      Tier
	expiresAt time.Time
}

// EmbedLogSink records embed_logs rows (§4.4); satisfied by store.Store.
type EmbedLogSink interface {
	WriteEmbedLog(ctx context.Context, log model.EmbedLog) error
}

func NewRouter(dim int, tier Tier, provider Provider) *Router {
	return &Router{
		Dim:            dim,
		Tier:           tier,
		Provider:       provider,
		FallbackOnFail: true,
		Retry:          RetryPolicy{}.withDefaults(),
		cache:          make(map[string]cachedDecision),
		cacheTTL:       30 * time.Second,
	}
}

// cachedTier returns the router's decision for a sector, honoring the
// default 30s TTL cache (§4.3 "Caching").
func (r *Router) cachedTier(sector model.Sector) Tier {
	key := string(sector)
	r.cacheMu.RLock()
	d, ok := r.cache[key]
	r.cacheMu.RUnlock()
	if ok && time.Now().Before(d.expiresAt) {
		return d.tier
	}
	r.cacheMu.Lock()
	r.cache[key] = cachedDecision{tier: r.Tier, expiresAt: time.Now().Add(r.cacheTTL)}
	r.cacheMu.Unlock()
	return r.Tier
}

// EmbedForSector implements embed_for_sector(text, sector) -> [f32].
func (r *Router) EmbedForSector(ctx context.Context, text string, sector model.Sector) ([]float32, error) {
	tier := r.cachedTier(sector)
	switch tier {
	case TierFast, "":
		return GenSynth(text, sector, r.Dim), nil
	case TierSemantic:
		sem, err := r.semanticWithFallback(ctx, text, sector)
		if err != nil {
			return nil, err
		}
		return vector.Resize(sem, r.Dim), nil
	case TierHybrid, TierSmart:
		synth := GenSynth(text, sector, r.Dim)
		sem, err := r.semanticWithFallback(ctx, text, sector)
		if err != nil {
			// provider exhausted: synthetic-only is still a valid result.
			return synth, nil
		}
		compressed, cErr := vector.Compress(sem, semanticCompressDim)
		if cErr != nil {
			compressed = vector.Resize(sem, semanticCompressDim)
		}
		wa, wb := model.FusionWeights(sector)
		return FuseConcat(synth, compressed, wa, wb), nil
	default:
		return GenSynth(text, sector, r.Dim), nil
	}
}

// semanticWithFallback calls the provider with retry/backoff, reconciles
// dimension, and falls back to synthetic when exhausted.
func (r *Router) semanticWithFallback(ctx context.Context, text string, sector model.Sector) ([]float32, error) {
	if r.Provider == nil {
		return nil, model.NewError(model.ProviderFailure, "embed.router", errors.New("no provider configured"))
	}
	raw, err := r.callWithRetry(ctx, text)
	if err != nil {
		if r.FallbackOnFail {
			return GenSynth(text, sector, r.Dim), nil
		}
		return nil, model.NewError(model.ProviderFailure, "embed.router", err)
	}
	return r.reconcileDim(raw, text, sector)
}

// reconcileDim implements §4.3 dimension reconciliation: r = |n-D|/D.
func (r *Router) reconcileDim(v []float32, text string, sector model.Sector) ([]float32, error) {
	n := len(v)
	ratio := math.Abs(float64(n-r.Dim)) / float64(r.Dim)
	if ratio > 0.5 {
		if r.FallbackOnFail {
			return GenSynth(text, sector, r.Dim), nil
		}
		return nil, model.NewError(model.DimIncompatible, "embed.router",
			fmt.Errorf("provider returned dim %d, expected %d (ratio %.2f)", n, r.Dim, ratio))
	}
	return vector.Resize(v, r.Dim), nil
}

// callWithRetry calls the provider with up to MaxAttempts attempts and
// exponential backoff (base, doubling), serialized through a single-flight
// mutex for providers prone to 429 amplification under concurrency.
func (r *Router) callWithRetry(ctx context.Context, text string) ([]float32, error) {
	policy := r.Retry.withDefaults()
	r.singleFlight.Lock()
	defer r.singleFlight.Unlock()

	delay := policy.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		v, err := r.Provider.Embed(ctx, text)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

// Fuse implements fuse(a, b, (wa, wb)) for same-length vectors (§4.3).
func Fuse(a, b []float32, wa, wb float64) []float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = float32(wa*float64(a[i]) + wb*float64(b[i]))
	}
	normalizeInPlace(out)
	return out
}

// FuseConcat implements the concatenation fusion form used when fusing the
// synthetic vector (length D) with a compressed semantic vector (length
// 128): weighted-scale each half, concatenate, then renormalize.
func FuseConcat(synth, semCompressed []float32, wa, wb float64) []float32 {
	out := make([]float32, len(synth)+len(semCompressed))
	for i, f := range synth {
		out[i] = float32(wa * float64(f))
	}
	for i, f := range semCompressed {
		out[len(synth)+i] = float32(wb * float64(f))
	}
	normalizeInPlace(out)
	return out
}

// EmbedMultiSector implements embed_multi_sector (§4.3).
func (r *Router) EmbedMultiSector(ctx context.Context, id, text string, sectors []model.Sector, chunks []string, userID string) (map[model.Sector][]float32, error) {
	if r.Logs != nil {
		_ = r.Logs.WriteEmbedLog(ctx, model.EmbedLog{ID: id, Kind: "multi_sector", Status: model.EmbedPending, CreatedAt: time.Now().UTC()})
	}

	out := make(map[model.Sector][]float32, len(sectors))
	failures := 0
	var lastErr error

	for _, sector := range sectors {
		var vec []float32
		var err error
		if len(chunks) > 1 {
			vec, err = r.embedAggregated(ctx, chunks, sector)
		} else {
			vec, err = r.EmbedForSector(ctx, text, sector)
		}
		if err != nil {
			failures++
			lastErr = err
			if failures >= 3 {
				if r.Logs != nil {
					_ = r.Logs.WriteEmbedLog(ctx, model.EmbedLog{ID: id, Kind: "multi_sector", Status: model.EmbedFailed, CreatedAt: time.Now().UTC(), Error: lastErr.Error()})
				}
				return nil, lastErr
			}
			continue
		}
		out[sector] = vector.Resize(vec, r.Dim)
	}

	if r.Logs != nil {
		_ = r.Logs.WriteEmbedLog(ctx, model.EmbedLog{ID: id, Kind: "multi_sector", Status: model.EmbedCompleted, CreatedAt: time.Now().UTC()})
	}
	return out, nil
}

// embedAggregated embeds each chunk independently then aggregates per-dim
// mean followed by L2-normalization (§4.3 step 2).
func (r *Router) embedAggregated(ctx context.Context, chunks []string, sector model.Sector) ([]float32, error) {
	sum := make([]float64, r.Dim)
	count := 0
	for _, c := range chunks {
		v, err := r.EmbedForSector(ctx, c, sector)
		if err != nil {
			return nil, err
		}
		for i := 0; i < r.Dim && i < len(v); i++ {
			sum[i] += float64(v[i])
		}
		count++
	}
	if count == 0 {
		return nil, errors.New("embed: no chunks to aggregate")
	}
	out := make([]float32, r.Dim)
	for i := range out {
		out[i] = float32(sum[i] / float64(count))
	}
	normalizeInPlace(out)
	return out, nil
}
