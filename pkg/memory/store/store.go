// Package store implements the HSG storage layer (C4): the logical tables
// from §4.4 (memories, vectors, waypoints, embed_logs, users), transactional
// multi-statement mutations, and tenant scoping.
package store

import (
	"context"
	"time"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

// VectorMatch is a vector shortlist hit (§4.8 step 2): the owning memory id
// and its cosine similarity to the query.
type VectorMatch struct {
	MemoryID string
	Sector   model.Sector
	CosSim   float64
}

// MemoryStore persists and queries Memory rows, scoped by user_id per §4.4's
// tenant-scoping contract.
type MemoryStore interface {
	CreateMemory(ctx context.Context, m *model.Memory) error
	GetMemory(ctx context.Context, userID, id string) (*model.Memory, error)
	UpdateMemory(ctx context.Context, m *model.Memory) error
	DeleteMemory(ctx context.Context, userID, id string) error
	ListMemories(ctx context.Context, userID string, sector model.Sector, limit, offset int) ([]model.Memory, error)
	// PageMemories streams memories in pages of up to limit rows in a stable
	// order (by id in Postgres, insertion order in memory), for the decay
	// sweep (§4.6) and reflection reads (§4.9).
	PageMemories(ctx context.Context, offset, limit int) ([]model.Memory, error)
	CountMemories(ctx context.Context) (int, error)
}

// VectorStore persists and searches per-(memory,sector,user) embeddings.
type VectorStore interface {
	UpsertVector(ctx context.Context, v model.Vector) error
	GetVector(ctx context.Context, memoryID string, sector model.Sector, userID string) (*model.Vector, error)
	// SearchVectors scans up to limit candidates in the tenant's scope,
	// ordered by cosine similarity descending (§4.8 step 2).
	SearchVectors(ctx context.Context, userID string, sector model.Sector, query []float32, limit int) ([]VectorMatch, error)
	DeleteVectors(ctx context.Context, memoryID string) error
}

// GraphStore persists waypoints and answers neighborhood queries for
// spreading activation (§4.8 step 5).
type GraphStore interface {
	UpsertWaypoint(ctx context.Context, w model.Waypoint) error
	Neighbors(ctx context.Context, userID, memoryID string) ([]model.Waypoint, error)
	DeleteWaypoints(ctx context.Context, userID, memoryID string) error
}

// EmbedLogStore records embedding-operation observability rows.
type EmbedLogStore interface {
	WriteEmbedLog(ctx context.Context, log model.EmbedLog) error
}

// UserStore persists per-user reflective summaries (§4.9).
type UserStore interface {
	UpsertUserProfile(ctx context.Context, p model.UserProfile) error
	GetUserProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	DeleteUserMemories(ctx context.Context, userID string) error
}

// SchemaInitializer allows stores to bootstrap their physical schema.
type SchemaInitializer interface {
	CreateSchema(ctx context.Context) error
}

// Transactor runs fn against a Store bound to a single transaction,
// rolling back on any returned error (§4.4 "begin/commit/rollback").
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// Store is the full C4 contract, implemented by both PostgresStore and
// InMemoryStore.
type Store interface {
	MemoryStore
	VectorStore
	GraphStore
	EmbedLogStore
	UserStore
	Transactor
	Close() error
}

// ErrUserIDRequired is returned in strict-tenant mode when an operation is
// attempted without a user_id (§4.4 "USER_ID_REQUIRED").
var ErrUserIDRequired = model.NewError(model.InvalidRequest, "store", errUserIDRequired{})

type errUserIDRequired struct{}

func (errUserIDRequired) Error() string { return "user_id is required in strict-tenant mode" }

func now() time.Time { return time.Now().UTC() }
