package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	json "github.com/alpkeskin/gotoon"

	"github.com/hsgraph/hsg/pkg/memory/model"
	"github.com/hsgraph/hsg/pkg/memory/vector"
)

// PostgresStore implements Store using Postgres + pgvector, grounded on the
// teacher's store.PostgresStore but generalized to the HSG schema (§4.4):
// memories, vectors, waypoints, embed_logs, users.
type PostgresStore struct {
	DB           *pgxpool.Pool
	StrictTenant bool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres store: connect: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

func (ps *PostgresStore) requireTenant(userID string) error {
	if ps.StrictTenant && userID == "" {
		return ErrUserIDRequired
	}
	return nil
}

func (ps *PostgresStore) CreateMemory(ctx context.Context, m *model.Memory) error {
	if err := ps.requireTenant(m.UserID); err != nil {
		return err
	}
	_, metaJSON := model.NormalizeMetadata(m.Metadata)
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	m.LastSeenAt = now
	tagsJSON, _ := json.Marshal(m.Tags)
	row := ps.DB.QueryRow(ctx, `
		INSERT INTO memories (id, user_id, segment, content, primary_sector, tags, meta, created_at, updated_at, last_seen_at, salience, decay_lambda, version)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9, $10, $11, 1)
		RETURNING id;
	`, nullable(m.UserID), m.Segment, m.Content, string(m.PrimarySector), string(tagsJSON), metaJSON, m.CreatedAt, m.UpdatedAt, m.LastSeenAt, m.Salience, m.DecayLambda)
	return row.Scan(&m.ID)
}

func (ps *PostgresStore) GetMemory(ctx context.Context, userID, id string) (*model.Memory, error) {
	row := ps.DB.QueryRow(ctx, `
		SELECT id, user_id, content, primary_sector, tags::text, meta::text, salience, decay_lambda,
		       created_at, updated_at, last_seen_at, version, segment, summary, feedback_score
		FROM memories WHERE id = $1
	`, id)
	m, err := scanMemory(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, model.NewError(model.NotFound, "store", nil).WithContext(userID, id)
		}
		return nil, err
	}
	if m.UserID != "" && userID != "" && m.UserID != userID {
		return nil, model.NewError(model.Forbidden, "store", nil).WithContext(userID, id)
	}
	return m, nil
}

func scanMemory(row pgx.Row) (*model.Memory, error) {
	var m model.Memory
	var userID, tagsText, metaText, primarySector *string
	if err := row.Scan(&m.ID, &userID, &m.Content, &primarySector, &tagsText, &metaText, &m.Salience,
		&m.DecayLambda, &m.CreatedAt, &m.UpdatedAt, &m.LastSeenAt, &m.Version, &m.Segment, &m.Summary, &m.FeedbackScore); err != nil {
		return nil, err
	}
	if userID != nil {
		m.UserID = *userID
	}
	if primarySector != nil {
		m.PrimarySector = model.Sector(*primarySector)
	}
	if tagsText != nil {
		_ = json.Unmarshal([]byte(*tagsText), &m.Tags)
	}
	if metaText != nil {
		m.Metadata = model.DecodeMetadata(*metaText)
	}
	return &m, nil
}

func (ps *PostgresStore) UpdateMemory(ctx context.Context, m *model.Memory) error {
	if err := ps.requireTenant(m.UserID); err != nil {
		return err
	}
	_, metaJSON := model.NormalizeMetadata(m.Metadata)
	tagsJSON, _ := json.Marshal(m.Tags)
	m.UpdatedAt = time.Now().UTC()
	m.Version++
	ct, err := ps.DB.Exec(ctx, `
		UPDATE memories SET content=$2, primary_sector=$3, tags=$4::jsonb, meta=$5::jsonb, salience=$6,
		       decay_lambda=$7, updated_at=$8, last_seen_at=$9, version=$10, segment=$11, summary=$12, feedback_score=$13
		WHERE id=$1
	`, m.ID, m.Content, string(m.PrimarySector), string(tagsJSON), metaJSON, model.Clamp01(m.Salience),
		m.DecayLambda, m.UpdatedAt, m.LastSeenAt, m.Version, m.Segment, m.Summary, m.FeedbackScore)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return model.NewError(model.NotFound, "store", nil).WithContext(m.UserID, m.ID)
	}
	return nil
}

func (ps *PostgresStore) DeleteMemory(ctx context.Context, userID, id string) error {
	if err := ps.requireTenant(userID); err != nil {
		return err
	}
	_, err := ps.DB.Exec(ctx, `DELETE FROM memories WHERE id=$1 AND ($2 = '' OR user_id = $2)`, id, userID)
	return err
}

func (ps *PostgresStore) ListMemories(ctx context.Context, userID string, sector model.Sector, limit, offset int) ([]model.Memory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := ps.DB.Query(ctx, `
		SELECT id, user_id, content, primary_sector, tags::text, meta::text, salience, decay_lambda,
		       created_at, updated_at, last_seen_at, version, segment, summary, feedback_score
		FROM memories
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR primary_sector = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, userID, string(sector), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemories(rows)
}

func (ps *PostgresStore) PageMemories(ctx context.Context, offset, limit int) ([]model.Memory, error) {
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	rows, err := ps.DB.Query(ctx, `
		SELECT id, user_id, content, primary_sector, tags::text, meta::text, salience, decay_lambda,
		       created_at, updated_at, last_seen_at, version, segment, summary, feedback_score
		FROM memories ORDER BY id LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemories(rows)
}

func collectMemories(rows pgx.Rows) ([]model.Memory, error) {
	var out []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) CountMemories(ctx context.Context) (int, error) {
	var n int
	err := ps.DB.QueryRow(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n)
	return n, err
}

func (ps *PostgresStore) UpsertVector(ctx context.Context, v model.Vector) error {
	blob := vector.ToBlob(v.Values)
	_, err := ps.DB.Exec(ctx, `
		INSERT INTO vectors (memory_id, sector, user_id, vec_blob, dim)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (memory_id, sector, user_id) DO UPDATE SET vec_blob=EXCLUDED.vec_blob, dim=EXCLUDED.dim
	`, v.MemoryID, string(v.Sector), nullable(v.UserID), blob, len(v.Values))
	return err
}

func (ps *PostgresStore) GetVector(ctx context.Context, memoryID string, sector model.Sector, userID string) (*model.Vector, error) {
	var blob []byte
	var dim int
	row := ps.DB.QueryRow(ctx, `
		SELECT vec_blob, dim FROM vectors WHERE memory_id=$1 AND sector=$2 AND ($3='' OR user_id=$3)
	`, memoryID, string(sector), userID)
	if err := row.Scan(&blob, &dim); err != nil {
		if err == pgx.ErrNoRows {
			return nil, model.NewError(model.NotFound, "store", nil)
		}
		return nil, err
	}
	values, err := vector.FromBlob(blob)
	if err != nil {
		return nil, err
	}
	return &model.Vector{MemoryID: memoryID, Sector: sector, UserID: userID, Values: values, Dim: dim}, nil
}

// SearchVectors loads up to 1000 vec_blob rows in the tenant/sector scope,
// computes cosine similarity in application code, and returns the top limit
// matches (at most 100) by similarity descending. No pgvector column or index
// is queried.
func (ps *PostgresStore) SearchVectors(ctx context.Context, userID string, sector model.Sector, query []float32, limit int) ([]VectorMatch, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	rows, err := ps.DB.Query(ctx, `
		SELECT memory_id, sector, vec_blob FROM vectors
		WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR sector = $2)
		LIMIT 1000
	`, userID, string(sector))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []VectorMatch
	for rows.Next() {
		var memID, sec string
		var blob []byte
		if err := rows.Scan(&memID, &sec, &blob); err != nil {
			return nil, err
		}
		values, err := vector.FromBlob(blob)
		if err != nil {
			continue
		}
		matches = append(matches, VectorMatch{MemoryID: memID, Sector: model.Sector(sec), CosSim: model.CosineSimilarity(query, values)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortMatchesDesc(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func sortMatchesDesc(m []VectorMatch) {
	for i := 1; i < len(m); i++ {
		for j := i; j > 0 && m[j].CosSim > m[j-1].CosSim; j-- {
			m[j], m[j-1] = m[j-1], m[j]
		}
	}
}

func (ps *PostgresStore) DeleteVectors(ctx context.Context, memoryID string) error {
	_, err := ps.DB.Exec(ctx, `DELETE FROM vectors WHERE memory_id=$1`, memoryID)
	return err
}

func (ps *PostgresStore) UpsertWaypoint(ctx context.Context, w model.Waypoint) error {
	if w.SrcID == w.DstID {
		return model.NewError(model.InvalidRequest, "store", nil)
	}
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	_, err := ps.DB.Exec(ctx, `
		INSERT INTO waypoints (src_id, dst_id, user_id, weight, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (src_id, dst_id, user_id) DO UPDATE SET weight=EXCLUDED.weight, updated_at=EXCLUDED.updated_at
	`, w.SrcID, w.DstID, nullable(w.UserID), w.Weight, w.CreatedAt, w.UpdatedAt)
	return err
}

func (ps *PostgresStore) Neighbors(ctx context.Context, userID, memoryID string) ([]model.Waypoint, error) {
	rows, err := ps.DB.Query(ctx, `
		SELECT src_id, dst_id, user_id, weight, created_at, updated_at FROM waypoints
		WHERE (src_id=$1 OR dst_id=$1) AND ($2='' OR user_id=$2)
	`, memoryID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Waypoint
	for rows.Next() {
		var w model.Waypoint
		var uid *string
		if err := rows.Scan(&w.SrcID, &w.DstID, &uid, &w.Weight, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		if uid != nil {
			w.UserID = *uid
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) DeleteWaypoints(ctx context.Context, userID, memoryID string) error {
	if err := ps.requireTenant(userID); err != nil {
		return err
	}
	_, err := ps.DB.Exec(ctx, `DELETE FROM waypoints WHERE (src_id=$1 OR dst_id=$1) AND ($2='' OR user_id=$2)`, memoryID, userID)
	return err
}

func (ps *PostgresStore) WriteEmbedLog(ctx context.Context, log model.EmbedLog) error {
	_, err := ps.DB.Exec(ctx, `
		INSERT INTO embed_logs (id, kind, status, created_at, error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET status=EXCLUDED.status, error=EXCLUDED.error
	`, log.ID, log.Kind, string(log.Status), log.CreatedAt, log.Error)
	return err
}

func (ps *PostgresStore) UpsertUserProfile(ctx context.Context, p model.UserProfile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := ps.DB.Exec(ctx, `
		INSERT INTO users (user_id, summary, reflection_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET summary=EXCLUDED.summary, reflection_count=EXCLUDED.reflection_count, updated_at=EXCLUDED.updated_at
	`, p.UserID, p.Summary, p.ReflectionCount, p.CreatedAt, p.UpdatedAt)
	return err
}

func (ps *PostgresStore) GetUserProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var p model.UserProfile
	p.UserID = userID
	row := ps.DB.QueryRow(ctx, `SELECT summary, reflection_count, created_at, updated_at FROM users WHERE user_id=$1`, userID)
	if err := row.Scan(&p.Summary, &p.ReflectionCount, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, model.NewError(model.NotFound, "store", nil).WithContext(userID, "")
		}
		return nil, err
	}
	return &p, nil
}

func (ps *PostgresStore) DeleteUserMemories(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserIDRequired
	}
	_, err := ps.DB.Exec(ctx, `DELETE FROM memories WHERE user_id=$1`, userID)
	return err
}

// WithTx implements the §4.4 transactional mutation contract: begin/commit,
// rollback on any error from fn.
func (ps *PostgresStore) WithTx(ctx context.Context, fn func(tx Store) error) (err error) {
	tx, err := ps.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	bound := &txBoundStore{PostgresStore: ps, tx: tx}
	if err = fn(bound); err != nil {
		return model.NewError(model.TransactionAborted, "store", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return err
	}
	return nil
}

func (ps *PostgresStore) CreateSchema(ctx context.Context) error {
	_, err := ps.DB.Exec(ctx, defaultPostgresSchema)
	return err
}

func (ps *PostgresStore) Close() error {
	ps.DB.Close()
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const defaultPostgresSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS memories (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id TEXT,
    segment INT NOT NULL DEFAULT 0,
    content TEXT NOT NULL,
    simhash BIGINT,
    primary_sector TEXT NOT NULL,
    tags JSONB NOT NULL DEFAULT '[]',
    meta JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    salience DOUBLE PRECISION NOT NULL DEFAULT 0.5,
    decay_lambda DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    version BIGINT NOT NULL DEFAULT 1,
    mean_dim INT,
    mean_vec BYTEA,
    compressed_vec BYTEA,
    summary TEXT NOT NULL DEFAULT '',
    feedback_score DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS memories_user_idx ON memories (user_id);
CREATE INDEX IF NOT EXISTS memories_sector_idx ON memories (primary_sector);

CREATE TABLE IF NOT EXISTS vectors (
    memory_id UUID NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
    sector TEXT NOT NULL,
    user_id TEXT,
    vec_blob BYTEA NOT NULL,
    dim INT NOT NULL,
    PRIMARY KEY (memory_id, sector, user_id)
);

CREATE TABLE IF NOT EXISTS waypoints (
    src_id UUID NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
    dst_id UUID NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
    user_id TEXT,
    weight DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (src_id, dst_id, user_id)
);

CREATE INDEX IF NOT EXISTS waypoints_dst_idx ON waypoints (dst_id);

CREATE TABLE IF NOT EXISTS embed_logs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    error TEXT
);

CREATE TABLE IF NOT EXISTS users (
    user_id TEXT PRIMARY KEY,
    summary TEXT NOT NULL DEFAULT '',
    reflection_count INT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// txBoundStore routes CreateMemory, UpsertWaypoint, UpsertVector and
// DeleteMemory through an active pgx.Tx; every other call, reads and the
// remaining writes alike, goes to the pool; this mirrors the teacher's
// ensureNodeTx-inside-BeginTx pattern generalized across the whole store.
type txBoundStore struct {
	*PostgresStore
	tx pgx.Tx
}

func (b *txBoundStore) CreateMemory(ctx context.Context, m *model.Memory) error {
	_, metaJSON := model.NormalizeMetadata(m.Metadata)
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	m.LastSeenAt = now
	tagsJSON, _ := json.Marshal(m.Tags)
	row := b.tx.QueryRow(ctx, `
		INSERT INTO memories (id, user_id, segment, content, primary_sector, tags, meta, created_at, updated_at, last_seen_at, salience, decay_lambda, version)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9, $10, $11, 1)
		RETURNING id;
	`, nullable(m.UserID), m.Segment, m.Content, string(m.PrimarySector), string(tagsJSON), metaJSON, m.CreatedAt, m.UpdatedAt, m.LastSeenAt, m.Salience, m.DecayLambda)
	return row.Scan(&m.ID)
}

func (b *txBoundStore) UpsertWaypoint(ctx context.Context, w model.Waypoint) error {
	if w.SrcID == w.DstID {
		return model.NewError(model.InvalidRequest, "store", nil)
	}
	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	_, err := b.tx.Exec(ctx, `
		INSERT INTO waypoints (src_id, dst_id, user_id, weight, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (src_id, dst_id, user_id) DO UPDATE SET weight=EXCLUDED.weight, updated_at=EXCLUDED.updated_at
	`, w.SrcID, w.DstID, nullable(w.UserID), w.Weight, w.CreatedAt, w.UpdatedAt)
	return err
}

func (b *txBoundStore) UpsertVector(ctx context.Context, v model.Vector) error {
	blob := vector.ToBlob(v.Values)
	_, err := b.tx.Exec(ctx, `
		INSERT INTO vectors (memory_id, sector, user_id, vec_blob, dim)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (memory_id, sector, user_id) DO UPDATE SET vec_blob=EXCLUDED.vec_blob, dim=EXCLUDED.dim
	`, v.MemoryID, string(v.Sector), nullable(v.UserID), blob, len(v.Values))
	return err
}

func (b *txBoundStore) DeleteMemory(ctx context.Context, userID, id string) error {
	_, err := b.tx.Exec(ctx, `DELETE FROM memories WHERE id=$1 AND ($2 = '' OR user_id = $2)`, id, userID)
	return err
}
