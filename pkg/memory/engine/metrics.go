package engine

import "sync/atomic"

// Metrics captures lightweight runtime counters for observability, adapted
// from the flat package's atomic-counter pattern to the C1-C9 operations.
type Metrics struct {
	stored          atomic.Int64
	queried         atomic.Int64
	reinforced      atomic.Int64
	ingested        atomic.Int64
	ingestedChild   atomic.Int64
	decaySwept      atomic.Int64
	decayCompressed atomic.Int64
	decayColded     atomic.Int64
	reflected       atomic.Int64
	deleted         atomic.Int64
}

func (m *Metrics) IncStored()             { m.stored.Add(1) }
func (m *Metrics) IncQueried(n int)       { m.queried.Add(int64(n)) }
func (m *Metrics) IncReinforced()         { m.reinforced.Add(1) }
func (m *Metrics) IncIngested()           { m.ingested.Add(1) }
func (m *Metrics) IncIngestedChildren(n int) { m.ingestedChild.Add(int64(n)) }
func (m *Metrics) IncDecaySwept(n int)    { m.decaySwept.Add(int64(n)) }
func (m *Metrics) IncDecayCompressed()    { m.decayCompressed.Add(1) }
func (m *Metrics) IncDecayColded()        { m.decayColded.Add(1) }
func (m *Metrics) IncReflected()          { m.reflected.Add(1) }
func (m *Metrics) IncDeleted()            { m.deleted.Add(1) }

// MetricsSnapshot is a point-in-time copy of the counters for reporting.
type MetricsSnapshot struct {
	Stored            int64 `json:"stored"`
	Queried           int64 `json:"queried"`
	Reinforced        int64 `json:"reinforced"`
	Ingested          int64 `json:"ingested"`
	IngestedChildren  int64 `json:"ingested_children"`
	DecaySwept        int64 `json:"decay_swept"`
	DecayCompressed   int64 `json:"decay_compressed"`
	DecayColded       int64 `json:"decay_colded"`
	Reflected         int64 `json:"reflected"`
	Deleted           int64 `json:"deleted"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Stored:           m.stored.Load(),
		Queried:          m.queried.Load(),
		Reinforced:       m.reinforced.Load(),
		Ingested:         m.ingested.Load(),
		IngestedChildren: m.ingestedChild.Load(),
		DecaySwept:       m.decaySwept.Load(),
		DecayCompressed:  m.decayCompressed.Load(),
		DecayColded:      m.decayColded.Load(),
		Reflected:        m.reflected.Load(),
		Deleted:          m.deleted.Load(),
	}
}
