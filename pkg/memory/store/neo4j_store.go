package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

// Neo4jAccessMode controls whether a session is opened for read or write operations.
type Neo4jAccessMode string

const (
	AccessModeWrite Neo4jAccessMode = "write"
	AccessModeRead  Neo4jAccessMode = "read"
)

type Neo4jSessionConfig struct {
	AccessMode   Neo4jAccessMode
	DatabaseName string
}

// neo4jDriver abstracts the driver capabilities the store needs, grounded on
// the teacher's src/memory/store/neo4j_store.go: the real driver import
// lives behind the "neo4j" build tag in neo4j_driver_adapter.go, so a caller
// who never builds with that tag pays no dependency cost.
type neo4jDriver interface {
	NewSession(ctx context.Context, config Neo4jSessionConfig) (neo4jSession, error)
	Close(ctx context.Context) error
}

type neo4jSession interface {
	BeginTransaction(ctx context.Context) (neo4jTransaction, error)
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Close(ctx context.Context) error
}

type neo4jTransaction interface {
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

type neo4jResult interface {
	Next(ctx context.Context) bool
	Record() neo4jRecord
	Err() error
	Close(ctx context.Context) error
}

type neo4jRecord interface {
	Get(key string) (any, bool)
}

// Neo4jGraphStore is the GraphStore alt backend named in the domain-stack
// wiring table (§4.4 waypoints, graph-native): a knowledge-graph database
// suits spreading activation's hop queries (§4.8 step 5) better than
// adjacency rows in a relational table.
type Neo4jGraphStore struct {
	driver   neo4jDriver
	database string
	nowFn    func() time.Time
}

var _ GraphStore = (*Neo4jGraphStore)(nil)

var ErrNeo4jUnavailable = errors.New("neo4j driver not configured")

func NewNeo4jGraphStore(driver neo4jDriver, database string) (*Neo4jGraphStore, error) {
	if driver == nil {
		return nil, errors.New("neo4j driver is nil")
	}
	return &Neo4jGraphStore{driver: driver, database: database, nowFn: time.Now}, nil
}

func (s *Neo4jGraphStore) CreateSchema(ctx context.Context) error {
	if s.driver == nil {
		return ErrNeo4jUnavailable
	}
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: s.database})
	if err != nil {
		return fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	queries := []string{
		"CREATE CONSTRAINT IF NOT EXISTS FOR (m:Memory) REQUIRE m.id IS UNIQUE",
		"CREATE INDEX IF NOT EXISTS FOR (m:Memory) ON (m.user_id)",
		"CREATE INDEX IF NOT EXISTS FOR ()-[r:WAYPOINT]-() ON (r.weight)",
	}
	for _, query := range queries {
		res, runErr := session.Run(ctx, query, nil)
		if runErr != nil {
			return fmt.Errorf("neo4j schema query: %w", runErr)
		}
		if res != nil {
			_ = res.Close(ctx)
		}
	}
	return nil
}

func (s *Neo4jGraphStore) Close() error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Close(context.Background())
}

// UpsertWaypoint merges both endpoints and refreshes the WAYPOINT edge weight.
func (s *Neo4jGraphStore) UpsertWaypoint(ctx context.Context, w model.Waypoint) error {
	if s.driver == nil {
		return ErrNeo4jUnavailable
	}
	if w.SrcID == w.DstID {
		return model.NewError(model.InvalidRequest, "store", errors.New("src and dst must differ"))
	}
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: s.database})
	if err != nil {
		return fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	tx, err := session.BeginTransaction(ctx)
	if err != nil {
		return fmt.Errorf("neo4j begin tx: %w", err)
	}
	defer tx.Close(ctx)
	now := s.now()
	createdAt := w.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	params := map[string]any{
		"src":        w.SrcID,
		"dst":        w.DstID,
		"user_id":    w.UserID,
		"weight":     w.Weight,
		"created_at": createdAt.UTC().Format(time.RFC3339Nano),
		"updated_at": now.UTC().Format(time.RFC3339Nano),
	}
	res, err := tx.Run(ctx, neo4jUpsertWaypointCypher, params)
	if err != nil {
		tx.Rollback(ctx)
		return fmt.Errorf("neo4j upsert waypoint: %w", err)
	}
	if res != nil {
		_ = res.Close(ctx)
	}
	if err := tx.Commit(ctx); err != nil {
		tx.Rollback(ctx)
		return fmt.Errorf("neo4j commit: %w", err)
	}
	return nil
}

// Neighbors returns the one-hop waypoints touching memoryID, for spreading
// activation's seed expansion.
func (s *Neo4jGraphStore) Neighbors(ctx context.Context, userID, memoryID string) ([]model.Waypoint, error) {
	if s.driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeRead, DatabaseName: s.database})
	if err != nil {
		return nil, fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	params := map[string]any{"id": memoryID, "user_id": userID}
	result, err := session.Run(ctx, neo4jNeighborsQuery, params)
	if err != nil {
		return nil, fmt.Errorf("neo4j neighbors: %w", err)
	}
	defer result.Close(ctx)
	var out []model.Waypoint
	for result.Next(ctx) {
		w, err := mapNeo4jWaypoint(result.Record())
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Neo4jGraphStore) DeleteWaypoints(ctx context.Context, userID, memoryID string) error {
	if s.driver == nil {
		return ErrNeo4jUnavailable
	}
	session, err := s.driver.NewSession(ctx, Neo4jSessionConfig{AccessMode: AccessModeWrite, DatabaseName: s.database})
	if err != nil {
		return fmt.Errorf("neo4j new session: %w", err)
	}
	defer session.Close(ctx)
	params := map[string]any{"id": memoryID, "user_id": userID}
	res, err := session.Run(ctx, neo4jDeleteWaypointsCypher, params)
	if err != nil {
		return fmt.Errorf("neo4j delete waypoints: %w", err)
	}
	if res != nil {
		_ = res.Close(ctx)
	}
	return nil
}

func (s *Neo4jGraphStore) now() time.Time {
	if s == nil || s.nowFn == nil {
		return time.Now().UTC()
	}
	return s.nowFn().UTC()
}

const (
	neo4jUpsertWaypointCypher = `
MERGE (a:Memory {id: $src})
MERGE (b:Memory {id: $dst})
MERGE (a)-[r:WAYPOINT {user_id: $user_id}]->(b)
ON CREATE SET r.created_at = $created_at
SET r.weight = $weight, r.updated_at = $updated_at
`
	neo4jNeighborsQuery = `
MATCH (m:Memory {id: $id})-[r:WAYPOINT {user_id: $user_id}]-(n:Memory)
RETURN m.id AS src, n.id AS dst, r.user_id AS user_id, r.weight AS weight,
       r.created_at AS created_at, r.updated_at AS updated_at
`
	neo4jDeleteWaypointsCypher = `
MATCH (m:Memory {id: $id})-[r:WAYPOINT {user_id: $user_id}]-()
DELETE r
`
)

func mapNeo4jWaypoint(rec neo4jRecord) (model.Waypoint, error) {
	if rec == nil {
		return model.Waypoint{}, errors.New("neo4j record is nil")
	}
	var w model.Waypoint
	if v, ok := rec.Get("src"); ok {
		w.SrcID = toString(v)
	}
	if v, ok := rec.Get("dst"); ok {
		w.DstID = toString(v)
	}
	if v, ok := rec.Get("user_id"); ok {
		w.UserID = toString(v)
	}
	if v, ok := rec.Get("weight"); ok {
		w.Weight = toFloat64(v)
	}
	if v, ok := rec.Get("created_at"); ok {
		w.CreatedAt = parseTime(toString(v))
	}
	if v, ok := rec.Get("updated_at"); ok {
		w.UpdatedAt = parseTime(toString(v))
	}
	return w, nil
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toFloat64(v any) float64 {
	switch t := v.(type) {
	case float32:
		return float64(t)
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case jsonNumber:
		if f, err := t.Float64(); err == nil {
			return f
		}
	}
	return 0
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

type jsonNumber interface {
	Int64() (int64, error)
	Float64() (float64, error)
}
