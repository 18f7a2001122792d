// Package ingest implements the document ingestion pipeline (C6): extract,
// decide single-vs-root-child strategy, split, and write root+child memories
// linked by waypoints inside a single transaction.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hsgraph/hsg/pkg/memory/embed"
	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/sector"
	"github.com/hsgraph/hsg/pkg/memory/store"
	"github.com/hsgraph/hsg/pkg/uploads"
)

// Options configures one call to IngestDocument; zero value uses the spec
// defaults (§6 configuration table).
type Options struct {
	LargeThreshold int // ingest_large_threshold, default 8000 tokens
	SectionSize    int // ingest_section_size, default 3000 chars
	ForceRoot      bool
}

func (o Options) withDefaults() Options {
	if o.LargeThreshold <= 0 {
		o.LargeThreshold = 8000
	}
	if o.SectionSize <= 0 {
		o.SectionSize = defaultSectionSize
	}
	return o
}

// Result is the return value of IngestDocument (§4.7).
type Result struct {
	RootID         string
	ChildCount     int
	Strategy       string
	ExtractionMeta map[string]any
}

// Pipeline wires the router (C3), classifier (C5), and store (C4) together
// to implement ingest_document.
type Pipeline struct {
	Store  store.Store
	Router *embed.Router
}

func New(s store.Store, r *embed.Router) *Pipeline {
	return &Pipeline{Store: s, Router: r}
}

// IngestDocument implements §4.7's steps 1-5.
func (p *Pipeline) IngestDocument(ctx context.Context, contentType string, data []byte, meta map[string]any, opts Options, userID string) (*Result, error) {
	opts = opts.withDefaults()

	text, extractionMeta, err := extract(contentType, data)
	if err != nil {
		return nil, model.NewError(model.InvalidRequest, "ingest", err)
	}
	estimatedTokens := len(text) / 4
	extractionMeta["estimated_tokens"] = estimatedTokens

	if estimatedTokens <= opts.LargeThreshold && !opts.ForceRoot {
		id, err := p.ingestSingle(ctx, text, meta, userID)
		if err != nil {
			return nil, err
		}
		return &Result{RootID: id, ChildCount: 0, Strategy: "single", ExtractionMeta: extractionMeta}, nil
	}

	return p.ingestRootChild(ctx, contentType, text, meta, opts, userID, extractionMeta)
}

// IngestURL fetches a remote document under SSRF protections, then ingests
// it exactly like IngestDocument (§4.7 final paragraph).
func (p *Pipeline) IngestURL(ctx context.Context, rawURL string, meta map[string]any, opts Options, userID string) (*Result, error) {
	body, contentType, err := FetchURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta[model.MetaSourceURL] = rawURL
	return p.IngestDocument(ctx, contentType, []byte(body), meta, opts, userID)
}

func (p *Pipeline) ingestSingle(ctx context.Context, text string, meta map[string]any, userID string) (string, error) {
	m := &model.Memory{
		UserID:        userID,
		Content:       text,
		PrimarySector: sector.Classify(text),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
		LastSeenAt:    time.Now().UTC(),
		Salience:      0.8,
	}
	cleanMeta, _ := model.NormalizeMetadata(meta)
	m.Metadata = cleanMeta

	var vec []float32
	var err error
	if p.Router != nil {
		vec, err = p.Router.EmbedForSector(ctx, text, m.PrimarySector)
		if err != nil {
			return "", err
		}
	}

	err = p.Store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateMemory(ctx, m); err != nil {
			return err
		}
		if vec != nil {
			return tx.UpsertVector(ctx, model.Vector{MemoryID: m.ID, Sector: m.PrimarySector, UserID: userID, Values: vec, Dim: len(vec)})
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (p *Pipeline) ingestRootChild(ctx context.Context, contentType, text string, meta map[string]any, opts Options, userID string, extractionMeta map[string]any) (*Result, error) {
	sections := SplitSections(text, opts.SectionSize)
	if len(sections) == 0 {
		return nil, model.NewError(model.InvalidRequest, "ingest", fmt.Errorf("no content extracted"))
	}

	summary := text
	if len(summary) > 500 {
		summary = summary[:500]
	}
	rootContent := fmt.Sprintf("[Document: %s]\n\n%s…\n\n[Full content split across %d sections]", contentType, summary, len(sections))

	now := time.Now().UTC()
	root := &model.Memory{
		UserID:        userID,
		Content:       rootContent,
		PrimarySector: model.SectorReflective,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastSeenAt:    now,
		Salience:      0.8,
	}
	rootMeta, _ := model.NormalizeMetadata(map[string]any{
		model.MetaIsRoot:      true,
		"ingestion_strategy":  "root-child",
		"ingested_at":         now.Format(time.RFC3339Nano),
	})
	for k, v := range meta {
		rootMeta[k] = v
	}
	root.Metadata = rootMeta

	var rootVec []float32
	if p.Router != nil {
		var err error
		rootVec, err = p.Router.EmbedForSector(ctx, rootContent, root.PrimarySector)
		if err != nil {
			return nil, err
		}
	}

	type childPlan struct {
		memory *model.Memory
		vec    []float32
	}
	children := make([]childPlan, 0, len(sections))
	for i, sec := range sections {
		childSector := sector.Classify(sec)
		childMeta, _ := model.NormalizeMetadata(map[string]any{
			model.MetaIsChild:        true,
			model.MetaSectionIndex:   i,
			model.MetaTotalSections:  len(sections),
		})
		child := &model.Memory{
			UserID:        userID,
			Content:       sec,
			PrimarySector: childSector,
			CreatedAt:     now,
			UpdatedAt:     now,
			LastSeenAt:    now,
			Salience:      0.7,
			Metadata:      childMeta,
		}
		var vec []float32
		if p.Router != nil {
			v, err := p.Router.EmbedForSector(ctx, sec, childSector)
			if err != nil {
				return nil, err
			}
			vec = v
		}
		children = append(children, childPlan{memory: child, vec: vec})
	}

	err := p.Store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.CreateMemory(ctx, root); err != nil {
			return err
		}
		if rootVec != nil {
			if err := tx.UpsertVector(ctx, model.Vector{MemoryID: root.ID, Sector: root.PrimarySector, UserID: userID, Values: rootVec, Dim: len(rootVec)}); err != nil {
				return err
			}
		}
		for i := range children {
			c := &children[i]
			c.memory.Metadata[model.MetaParentID] = root.ID
			if err := tx.CreateMemory(ctx, c.memory); err != nil {
				return err
			}
			if c.vec != nil {
				if err := tx.UpsertVector(ctx, model.Vector{MemoryID: c.memory.ID, Sector: c.memory.PrimarySector, UserID: userID, Values: c.vec, Dim: len(c.vec)}); err != nil {
					return err
				}
			}
			if err := tx.UpsertWaypoint(ctx, model.Waypoint{SrcID: root.ID, DstID: c.memory.ID, UserID: userID, Weight: 1.0, CreatedAt: now, UpdatedAt: now}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		RootID:         root.ID,
		ChildCount:     len(children),
		Strategy:       "root-child",
		ExtractionMeta: extractionMeta,
	}, nil
}

// extract dispatches on content_type to the appropriate uploads chunker and
// reassembles its chunk stream into plain text (§4.7 step 1). The uploads
// chunkers retain their own token-aware splitting only for extraction
// fidelity; the actual root-child section split is SplitSections in split.go.
func extract(contentType string, data []byte) (string, map[string]any, error) {
	name := "ingest"
	reader := uploads.ReaderWithName{Name: name, Reader: bytes.NewReader(data)}
	src := uploads.Source{Name: name}

	var chunker uploads.Chunker
	switch {
	case strings.Contains(contentType, "markdown"):
		chunker = uploads.MarkdownChunker{MaxTokens: 1 << 20}
	case strings.Contains(contentType, "pdf"):
		chunker = uploads.PDFChunker{}
	default:
		chunker = uploads.TextChunker{MaxTokens: 1 << 20}
	}

	chunks, err := chunker.Chunk(reader, src)
	if err != nil {
		return "", nil, err
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	text := strings.TrimSpace(strings.Join(parts, "\n\n"))
	return text, map[string]any{"content_type": contentType}, nil
}
