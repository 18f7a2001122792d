// Package engine wires the router (C3), classifier (C5), storage (C4),
// ingestion (C6), decay (C7), retrieval (C8) and reflection (C9) components
// into the single library-boundary surface described in §6.
package engine

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/hsgraph/hsg/pkg/memory/decay"
	"github.com/hsgraph/hsg/pkg/memory/embed"
	"github.com/hsgraph/hsg/pkg/memory/ingest"
	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/reflect"
	"github.com/hsgraph/hsg/pkg/memory/retrieve"
	"github.com/hsgraph/hsg/pkg/memory/sector"
	"github.com/hsgraph/hsg/pkg/memory/session"
	"github.com/hsgraph/hsg/pkg/memory/store"
)

// Engine is the top-level HSG facade. Runtime config overrides are applied
// behind an RWMutex (§5 "writer-exclusive, reader-shared"); every other
// field is wired once at construction and never mutated.
type Engine struct {
	store  store.Store
	router *embed.Router
	ingest *ingest.Pipeline
	query  *retrieve.Engine
	reflct *reflect.Generator
	active *decay.ActiveQueries
	sweep  *decay.Sweeper
	spaces *session.SpaceRegistry

	logger  *log.Logger
	metrics *Metrics

	mu  sync.RWMutex
	cfg Config

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New constructs an Engine over the given store and an embedding Provider
// (nil selects the synthetic fallback used by dev/test).
func New(s store.Store, provider embed.Provider, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	router := embed.NewRouter(cfg.VectorDim, embed.Tier(cfg.Tier), provider)
	active := &decay.ActiveQueries{}

	e := &Engine{
		store:   s,
		router:  router,
		ingest:  ingest.New(s, router),
		query:   retrieve.New(s, router),
		reflct:  reflect.New(s),
		active:  active,
		sweep:   decay.NewSweeper(s, active),
		spaces:  session.NewSpaceRegistry(0),
		logger:  log.New(os.Stderr, "hsg: ", log.LstdFlags),
		metrics: &Metrics{},
		cfg:     cfg,
		stopCh:  make(chan struct{}),
	}
	e.query.Active = active
	return e
}

// WithLogger overrides the default stderr logger.
func (e *Engine) WithLogger(l *log.Logger) *Engine {
	e.logger = l
	return e
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// Config returns a copy of the current runtime configuration.
func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// SetConfig applies a runtime-config override (§6), taking the writer-
// exclusive lock.
func (e *Engine) SetConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg.withDefaults()
}

// MetricsSnapshot returns a copy of the runtime counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// Close releases the background scheduler and the underlying store.
func (e *Engine) Close() error {
	e.Stop()
	return e.store.Close()
}

// Add stores a single memory (primary sector always auto-classified from the
// content via C5), embeds it via the router, and persists memory+vector in
// one transaction.
func (e *Engine) Add(ctx context.Context, userID, content string, tags []string, meta map[string]any) (*model.Memory, error) {
	sec := sector.Classify(content)
	now := time.Now().UTC()
	m := &model.Memory{
		UserID:        userID,
		Content:       content,
		PrimarySector: sec,
		Tags:          tags,
		Metadata:      meta,
		Salience:      1.0,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastSeenAt:    now,
	}

	if cfg := e.Config(); cfg.StrictTenant {
		e.spaces.EnsureOwner(userID)
	}

	vec, err := e.router.EmbedForSector(ctx, content, sec)
	if err != nil {
		return nil, err
	}

	err = e.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateMemory(ctx, m); err != nil {
			return err
		}
		return tx.UpsertVector(ctx, model.Vector{MemoryID: m.ID, Sector: sec, UserID: userID, Values: vec, Dim: len(vec)})
	})
	if err != nil {
		return nil, err
	}
	e.metrics.IncStored()
	return m, nil
}

// Query runs the full C8 retrieval pipeline.
func (e *Engine) Query(ctx context.Context, userID, queryText string, k int, filter retrieve.Filter) ([]retrieve.Result, error) {
	cfg := e.Config()
	filter.UserID = userID
	opts := retrieve.Options{
		Tau:                 cfg.Tau,
		ReinforceOnQuery:    cfg.DecayReinforceOnQuery,
		RegenerationEnabled: cfg.RegenerationEnabled,
		MMRLambda:           cfg.MMRLambda,
	}
	results, err := e.query.Query(ctx, queryText, k, filter, opts)
	if err != nil {
		return nil, err
	}
	e.metrics.IncQueried(len(results))
	return results, nil
}

// Reinforce boosts a memory's salience directly (POST /memory/reinforce).
func (e *Engine) Reinforce(ctx context.Context, userID, id string, boost float64) (*model.Memory, error) {
	m, err := e.store.GetMemory(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	retrieve.Reinforce(m, boost)
	if err := e.store.UpdateMemory(ctx, m); err != nil {
		return nil, err
	}
	e.metrics.IncReinforced()
	return m, nil
}

// Get fetches a single memory.
func (e *Engine) Get(ctx context.Context, userID, id string) (*model.Memory, error) {
	return e.store.GetMemory(ctx, userID, id)
}

// Patch applies partial field updates (content/tags/metadata) to a memory.
func (e *Engine) Patch(ctx context.Context, userID, id string, content *string, tags []string, meta map[string]any) (*model.Memory, error) {
	m, err := e.store.GetMemory(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if content != nil {
		m.Content = *content
		vec, err := e.router.EmbedForSector(ctx, *content, m.PrimarySector)
		if err != nil {
			return nil, err
		}
		if err := e.store.UpsertVector(ctx, model.Vector{MemoryID: m.ID, Sector: m.PrimarySector, UserID: userID, Values: vec, Dim: len(vec)}); err != nil {
			return nil, err
		}
	}
	if tags != nil {
		m.Tags = tags
	}
	if meta != nil {
		m.Metadata = meta
	}
	m.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateMemory(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes a memory and its vectors/waypoints.
func (e *Engine) Delete(ctx context.Context, userID, id string) error {
	if err := e.store.DeleteVectors(ctx, id); err != nil {
		return err
	}
	if err := e.store.DeleteWaypoints(ctx, userID, id); err != nil {
		return err
	}
	if err := e.store.DeleteMemory(ctx, userID, id); err != nil {
		return err
	}
	e.metrics.IncDeleted()
	return nil
}

// Ingest implements ingest_document (§4.7).
func (e *Engine) Ingest(ctx context.Context, userID, contentType string, data []byte, meta map[string]any, forceRoot bool) (*ingest.Result, error) {
	cfg := e.Config()
	opts := ingest.Options{LargeThreshold: cfg.IngestLargeThreshold, SectionSize: cfg.IngestSectionSize, ForceRoot: forceRoot}
	res, err := e.ingest.IngestDocument(ctx, contentType, data, meta, opts, userID)
	if err != nil {
		return nil, err
	}
	e.metrics.IncIngested()
	e.metrics.IncIngestedChildren(res.ChildCount)
	return res, nil
}

// IngestURL fetches rawURL under SSRF protections and ingests the result.
func (e *Engine) IngestURL(ctx context.Context, userID, rawURL string, meta map[string]any, forceRoot bool) (*ingest.Result, error) {
	cfg := e.Config()
	opts := ingest.Options{LargeThreshold: cfg.IngestLargeThreshold, SectionSize: cfg.IngestSectionSize, ForceRoot: forceRoot}
	res, err := e.ingest.IngestURL(ctx, rawURL, meta, opts, userID)
	if err != nil {
		return nil, err
	}
	e.metrics.IncIngested()
	e.metrics.IncIngestedChildren(res.ChildCount)
	return res, nil
}

// UserMemories lists a user's memories, optionally filtered by sector.
func (e *Engine) UserMemories(ctx context.Context, userID string, sec model.Sector, limit, offset int) ([]model.Memory, error) {
	return e.store.ListMemories(ctx, userID, sec, limit, offset)
}

// UserSummary returns the user's current reflective profile, regenerating
// it on demand if none exists yet.
func (e *Engine) UserSummary(ctx context.Context, userID string) (*model.UserProfile, error) {
	p, err := e.store.GetUserProfile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if model.KindOf(err) != model.NotFound {
		return nil, err
	}
	return e.RegenerateSummary(ctx, userID)
}

// RegenerateSummary forces an immediate reflection pass for one user (C9).
func (e *Engine) RegenerateSummary(ctx context.Context, userID string) (*model.UserProfile, error) {
	p, err := e.reflct.RegenerateSummary(ctx, userID)
	if err != nil {
		return nil, err
	}
	e.metrics.IncReflected()
	return p, nil
}

// Wipe deletes all memories for a user, together with their vectors and
// waypoints (§4.4's per-user tenant scoping makes this safe to run without
// touching other tenants). The user's reflective profile row is not removed.
func (e *Engine) Wipe(ctx context.Context, userID string) error {
	return e.store.DeleteUserMemories(ctx, userID)
}

// Sweep runs one decay-and-compression pass (§4.6) immediately, outside the
// background scheduler.
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	n, err := e.sweep.Run(ctx)
	if err != nil {
		return n, err
	}
	e.metrics.IncDecaySwept(n)
	return n, nil
}

var errAlreadyRunning = errors.New("hsg: background scheduler already running")

// Start launches the decay-sweep and reflection background loops on their
// configured intervals. §5 requires at most one instance of each to run at
// a time; both loops skip their own tick if the previous one is still in
// flight rather than overlapping.
func (e *Engine) Start(ctx context.Context) error {
	cfg := e.Config()
	e.wg.Add(2)
	go e.runLoop(ctx, cfg.DecaySweepInterval, func(ctx context.Context) { e.Sweep(ctx) })
	go e.runLoop(ctx, cfg.ReflectionInterval, e.reflectAllUsers)
	return nil
}

// Stop signals the background loops to exit and waits for them to return.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
	e.wg.Wait()
}

func (e *Engine) runLoop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	defer e.wg.Done()
	if interval <= 0 {
		return
	}
	var running sync.Mutex
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			if !running.TryLock() {
				continue
			}
			func() {
				defer running.Unlock()
				tick(ctx)
			}()
		}
	}
}

func (e *Engine) reflectAllUsers(ctx context.Context) {
	n, err := e.store.CountMemories(ctx)
	if err != nil || n == 0 {
		return
	}
	memories, err := e.store.PageMemories(ctx, 0, n)
	if err != nil {
		return
	}
	seen := make(map[string]struct{})
	for _, m := range memories {
		if m.UserID == "" {
			continue
		}
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		if _, err := e.RegenerateSummary(ctx, m.UserID); err != nil {
			e.logf("reflect user %s: %v", m.UserID, err)
		}
	}
}
