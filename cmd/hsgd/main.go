// Command hsgd is a library-boundary CLI exercising the HSG engine end to
// end: add, query, ingest a file, and print a user's reflective summary.
// Grounded on the teacher's examples/uploads/ingest_pdf CLI pattern.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hsgraph/hsg/pkg/memory/engine"
	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/retrieve"
	"github.com/hsgraph/hsg/pkg/memory/store"
)

func main() {
	var (
		cmd     = flag.String("cmd", "", "one of: add, query, ingest, summary")
		userID  = flag.String("user", "cli", "user_id")
		text    = flag.String("text", "", "content for add/query")
		file    = flag.String("file", "", "file path for ingest")
		limit   = flag.Int("limit", 5, "result limit for query")
		pgConn  = flag.String("postgres", "", "Postgres connection string; empty uses an in-memory store")
		strict  = flag.Bool("strict-tenant", false, "require user_id on every operation")
	)
	flag.Parse()

	s, closeFn := openStore(*pgConn, *strict)
	defer closeFn()

	cfg := engine.DefaultConfig()
	cfg.StrictTenant = *strict
	e := engine.New(s, nil, cfg)
	ctx := context.Background()

	switch *cmd {
	case "add":
		if *text == "" {
			log.Fatal("--text is required for add")
		}
		m, err := e.Add(ctx, *userID, *text, nil, nil)
		if err != nil {
			log.Fatalf("add: %v", err)
		}
		fmt.Printf("stored %s sector=%s\n", m.ID, m.PrimarySector)

	case "query":
		if *text == "" {
			log.Fatal("--text is required for query")
		}
		results, err := e.Query(ctx, *userID, *text, *limit, retrieve.Filter{Sector: model.SectorSemantic})
		if err != nil {
			log.Fatalf("query: %v", err)
		}
		for _, r := range results {
			fmt.Printf("%.4f  %s  %s\n", r.Score, r.ID, truncate(r.Content, 80))
		}

	case "ingest":
		if *file == "" {
			log.Fatal("--file is required for ingest")
		}
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatalf("read file: %v", err)
		}
		res, err := e.Ingest(ctx, *userID, contentTypeFor(*file), data, nil, false)
		if err != nil {
			log.Fatalf("ingest: %v", err)
		}
		fmt.Printf("strategy=%s root=%s children=%d\n", res.Strategy, res.RootID, res.ChildCount)

	case "summary":
		p, err := e.UserSummary(ctx, *userID)
		if err != nil {
			log.Fatalf("summary: %v", err)
		}
		fmt.Printf("reflections=%d\n%s\n", p.ReflectionCount, p.Summary)

	default:
		log.Fatalf("unknown -cmd %q, want one of: add, query, ingest, summary", *cmd)
	}
}

func openStore(conn string, strict bool) (store.Store, func()) {
	if conn == "" {
		s := store.NewInMemoryStore()
		return s, func() { s.Close() }
	}
	s, err := store.NewPostgresStore(context.Background(), conn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	s.StrictTenant = strict
	if err := s.CreateSchema(context.Background()); err != nil {
		log.Fatalf("create schema: %v", err)
	}
	return s, func() { s.Close() }
}

func contentTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".pdf":
		return "application/pdf"
	default:
		return "text/plain"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
