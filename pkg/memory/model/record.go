package model

import "time"

// Memory is the unit of storage (§3). Content may be stored encrypted by the
// backing store; the engine always sees plaintext.
type Memory struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id,omitempty"`
	Content       string         `json:"content"`
	PrimarySector Sector         `json:"primary_sector"`
	Tags          []string       `json:"tags,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Salience      float64        `json:"salience"`
	DecayLambda   float64        `json:"decay_lambda"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	LastSeenAt    time.Time      `json:"last_seen_at"`
	Version       int64          `json:"version"`
	Segment       int            `json:"segment"`
	CompressedVec []float32      `json:"compressed_vec,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	FeedbackScore float64        `json:"feedback_score,omitempty"`
}

// ClampSalience enforces the salience ∈ [0,1] invariant; call after every mutation.
func (m *Memory) ClampSalience() {
	m.Salience = Clamp01(m.Salience)
}

func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Vector is one embedding per (memory_id, sector, user_id).
type Vector struct {
	MemoryID string    `json:"memory_id"`
	Sector   Sector    `json:"sector"`
	UserID   string    `json:"user_id,omitempty"`
	Values   []float32 `json:"values"`
	Dim      int       `json:"dim"`
}

// Waypoint is a directed weighted edge between two memories owned by the
// same user (or both global). Self-loops are disallowed by construction.
type Waypoint struct {
	SrcID     string    `json:"src_id"`
	DstID     string    `json:"dst_id"`
	UserID    string    `json:"user_id,omitempty"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmbedLogStatus is the lifecycle state of an embedding operation.
type EmbedLogStatus string

const (
	EmbedPending   EmbedLogStatus = "pending"
	EmbedCompleted EmbedLogStatus = "completed"
	EmbedFailed    EmbedLogStatus = "failed"
)

// EmbedLog records one embedding operation for observability.
type EmbedLog struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Status    EmbedLogStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	Error     string         `json:"error,omitempty"`
}

// UserProfile aggregates per-user reflective summaries (C9).
type UserProfile struct {
	UserID          string    `json:"user_id"`
	Summary         string    `json:"summary_text"`
	ReflectionCount int       `json:"reflection_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Reserved metadata keys (§9); the engine treats metadata as opaque JSON
// except for these.
const (
	MetaIsRoot        = "is_root"
	MetaIsChild       = "is_child"
	MetaSectionIndex  = "section_index"
	MetaTotalSections = "total_sections"
	MetaParentID      = "parent_id"
	MetaSourceURL     = "source_url"
	MetaChecksum      = "checksum"
)
