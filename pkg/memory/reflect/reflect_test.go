package reflect

import (
	"context"
	"testing"
	"time"

	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/store"
)

func TestRegenerateSummaryFirstRunInsertsProfile(t *testing.T) {
	s := store.NewInMemoryStore()
	ctx := context.Background()
	m := &model.Memory{UserID: "u1", Content: "meeting notes about the quarterly roadmap", LastSeenAt: time.Now()}
	if err := s.CreateMemory(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}

	g := New(s)
	profile, err := g.RegenerateSummary(ctx, "u1")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if profile.ReflectionCount != 1 {
		t.Fatalf("expected reflection count 1, got %d", profile.ReflectionCount)
	}
	if profile.Summary == "" {
		t.Fatalf("expected non-empty summary")
	}
}

func TestRegenerateSummaryIncrementsOnRepeatedRuns(t *testing.T) {
	s := store.NewInMemoryStore()
	ctx := context.Background()
	m := &model.Memory{UserID: "u1", Content: "a note", LastSeenAt: time.Now()}
	if err := s.CreateMemory(ctx, m); err != nil {
		t.Fatalf("create: %v", err)
	}
	g := New(s)
	if _, err := g.RegenerateSummary(ctx, "u1"); err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := g.RegenerateSummary(ctx, "u1")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.ReflectionCount != 2 {
		t.Fatalf("expected reflection count 2, got %d", second.ReflectionCount)
	}
}

func TestRegenerateSummaryWithNoMemoriesYieldsEmptySummary(t *testing.T) {
	s := store.NewInMemoryStore()
	g := New(s)
	profile, err := g.RegenerateSummary(context.Background(), "ghost-user")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if profile.Summary != "" {
		t.Fatalf("expected empty summary for user with no memories, got %q", profile.Summary)
	}
}

func TestSaliencyRewardsClusterSizeAndEmotion(t *testing.T) {
	now := time.Now()
	small := []model.Memory{{LastSeenAt: now, PrimarySector: model.SectorSemantic}}
	large := []model.Memory{{LastSeenAt: now, PrimarySector: model.SectorSemantic}, {LastSeenAt: now, PrimarySector: model.SectorSemantic}}
	emotional := []model.Memory{{LastSeenAt: now, PrimarySector: model.SectorEmotional}}
	if saliency(large, now) <= saliency(small, now) {
		t.Fatalf("expected larger cluster to score higher")
	}
	if saliency(emotional, now) <= saliency(small, now) {
		t.Fatalf("expected emotional cluster to score higher")
	}
}

func TestClusterGroupsSimilarContent(t *testing.T) {
	memories := []model.Memory{
		{Content: "deploy the service to production", LastSeenAt: time.Now()},
		{Content: "deploy the service to production again", LastSeenAt: time.Now()},
		{Content: "completely different topic about gardening", LastSeenAt: time.Now()},
	}
	clusters := cluster(memories, 0.6)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
}
