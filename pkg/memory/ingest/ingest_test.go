package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/hsgraph/hsg/pkg/memory/embed"
	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/store"
)

func newTestPipeline() (*Pipeline, store.Store) {
	s := store.NewInMemoryStore()
	r := embed.NewRouter(64, embed.TierFast, nil)
	return New(s, r), s
}

func TestIngestDocumentSmallTextUsesSingleStrategy(t *testing.T) {
	p, s := newTestPipeline()
	res, err := p.IngestDocument(context.Background(), "text/plain", []byte("a short note about the weekend"), nil, Options{}, "u1")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Strategy != "single" {
		t.Fatalf("expected single strategy, got %s", res.Strategy)
	}
	m, err := s.GetMemory(context.Background(), "u1", res.RootID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if m.Content != "a short note about the weekend" {
		t.Fatalf("unexpected content %q", m.Content)
	}
}

func TestIngestDocumentLargeTextUsesRootChildStrategy(t *testing.T) {
	p, s := newTestPipeline()
	big := strings.Repeat("this is a fairly long sentence about something important. ", 800)
	res, err := p.IngestDocument(context.Background(), "text/plain", []byte(big), nil, Options{SectionSize: 500}, "u1")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Strategy != "root-child" {
		t.Fatalf("expected root-child strategy, got %s", res.Strategy)
	}
	if res.ChildCount == 0 {
		t.Fatalf("expected at least one child")
	}
	root, err := s.GetMemory(context.Background(), "u1", res.RootID)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if root.PrimarySector != model.SectorReflective {
		t.Fatalf("expected root in reflective sector, got %s", root.PrimarySector)
	}
	neighbors, err := s.Neighbors(context.Background(), "u1", res.RootID)
	if err != nil {
		t.Fatalf("neighbors: %v", err)
	}
	if len(neighbors) != res.ChildCount {
		t.Fatalf("expected %d waypoints, got %d", res.ChildCount, len(neighbors))
	}
}

func TestIngestDocumentForceRootForcesRootChild(t *testing.T) {
	p, _ := newTestPipeline()
	res, err := p.IngestDocument(context.Background(), "text/plain", []byte("tiny"), nil, Options{ForceRoot: true}, "u1")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Strategy != "root-child" {
		t.Fatalf("expected forced root-child, got %s", res.Strategy)
	}
}

func TestIngestDocumentRunTwiceProducesIndependentRoots(t *testing.T) {
	p, _ := newTestPipeline()
	res1, err := p.IngestDocument(context.Background(), "text/plain", []byte("repeatable content"), nil, Options{}, "u1")
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	res2, err := p.IngestDocument(context.Background(), "text/plain", []byte("repeatable content"), nil, Options{}, "u1")
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if res1.RootID == res2.RootID {
		t.Fatalf("expected independent ids across runs")
	}
}

func TestIngestURLRejectsPrivateHost(t *testing.T) {
	p, _ := newTestPipeline()
	_, err := p.IngestURL(context.Background(), "http://127.0.0.1:8080/doc", nil, Options{}, "u1")
	if model.KindOf(err) != model.SsrfBlocked {
		t.Fatalf("expected SsrfBlocked, got %v", err)
	}
}

func TestIngestURLRejectsNonHTTPScheme(t *testing.T) {
	p, _ := newTestPipeline()
	_, err := p.IngestURL(context.Background(), "file:///etc/passwd", nil, Options{}, "u1")
	if model.KindOf(err) != model.SsrfBlocked {
		t.Fatalf("expected SsrfBlocked, got %v", err)
	}
}
