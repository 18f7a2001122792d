package engine

import (
	"context"
	"testing"

	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/retrieve"
	"github.com/hsgraph/hsg/pkg/memory/session"
	"github.com/hsgraph/hsg/pkg/memory/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(store.NewInMemoryStore(), nil, Config{VectorDim: 64})
}

func TestAddStoresMemoryAndVector(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m, err := e.Add(ctx, "u1", "deploying the new release to staging", nil, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if m.ID == "" {
		t.Fatalf("expected generated id")
	}
	fetched, err := e.Get(ctx, "u1", m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Content != m.Content {
		t.Fatalf("content mismatch")
	}
}

func TestQueryReturnsStoredMemory(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m, err := e.Add(ctx, "u1", "the quarterly roadmap review is scheduled", nil, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	results, err := e.Query(ctx, "u1", "quarterly roadmap review", 5, retrieve.Filter{Sector: m.PrimarySector})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	found := false
	for _, r := range results {
		if r.ID == m.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected to find stored memory in query results")
	}
}

func TestReinforceIncreasesSalience(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m, err := e.Add(ctx, "u1", "a note about something", nil, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	m.Salience = 0.5
	if err := e.store.UpdateMemory(ctx, m); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := e.Reinforce(ctx, "u1", m.ID, 0.2)
	if err != nil {
		t.Fatalf("reinforce: %v", err)
	}
	if updated.Salience <= 0.5 {
		t.Fatalf("expected salience to increase, got %v", updated.Salience)
	}
}

func TestDeleteRemovesMemory(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	m, err := e.Add(ctx, "u1", "ephemeral note", nil, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.Delete(ctx, "u1", m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.Get(ctx, "u1", m.ID); model.KindOf(err) != model.NotFound {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestIngestSmallDocumentUsesSingleStrategy(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	res, err := e.Ingest(ctx, "u1", "text/plain", []byte("a short document"), nil, false)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Strategy != "single" {
		t.Fatalf("expected single strategy, got %s", res.Strategy)
	}
}

func TestUserSummaryRegeneratesWhenAbsent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.Add(ctx, "u1", "first memory for the digest", nil, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	profile, err := e.UserSummary(ctx, "u1")
	if err != nil {
		t.Fatalf("user summary: %v", err)
	}
	if profile.ReflectionCount != 1 {
		t.Fatalf("expected first reflection, got %d", profile.ReflectionCount)
	}
}

func TestWipeDeletesAllUserMemories(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.Add(ctx, "u1", "note one", nil, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.Add(ctx, "u1", "note two", nil, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := e.Wipe(ctx, "u1"); err != nil {
		t.Fatalf("wipe: %v", err)
	}
	remaining, err := e.UserMemories(ctx, "u1", "", 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected no remaining memories, got %d", len(remaining))
	}
}

func TestGetSharedRequiresGrant(t *testing.T) {
	e := newTestEngine(t)
	e.SetConfig(Config{VectorDim: 64, StrictTenant: true})
	ctx := context.Background()
	m, err := e.Add(ctx, "owner", "a shared note", nil, nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.GetShared(ctx, "collaborator", "owner", m.ID); model.KindOf(err) != model.Forbidden {
		t.Fatalf("expected forbidden before grant, got %v", err)
	}
	if err := e.ShareMemories("owner", "collaborator", session.SpaceRoleReader); err != nil {
		t.Fatalf("share: %v", err)
	}
	fetched, err := e.GetShared(ctx, "collaborator", "owner", m.ID)
	if err != nil {
		t.Fatalf("get shared: %v", err)
	}
	if fetched.ID != m.ID {
		t.Fatalf("id mismatch")
	}
}

func TestSweepRunsWithoutError(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if _, err := e.Add(ctx, "u1", "memory to be swept eventually", nil, nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := e.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
}
