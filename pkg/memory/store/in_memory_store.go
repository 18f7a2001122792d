package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hsgraph/hsg/pkg/memory/model"
)

// InMemoryStore implements Store for tests and lightweight deployments,
// grounded on the teacher's store.InMemoryStore but generalized from its
// single-table MemoryRecord model to the full HSG schema (§4.4).
type InMemoryStore struct {
	mu        sync.RWMutex
	memories  map[string]model.Memory
	vectors   map[vectorKey]model.Vector
	waypoints map[waypointKey]model.Waypoint
	logs      []model.EmbedLog
	users     map[string]model.UserProfile
	order     []string // memory insertion order, for PageMemories
}

type vectorKey struct {
	memoryID string
	sector   model.Sector
	userID   string
}

type waypointKey struct {
	src    string
	dst    string
	userID string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		memories:  make(map[string]model.Memory),
		vectors:   make(map[vectorKey]model.Vector),
		waypoints: make(map[waypointKey]model.Waypoint),
		users:     make(map[string]model.UserProfile),
	}
}

func (s *InMemoryStore) CreateMemory(_ context.Context, m *model.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.ClampSalience()
	s.memories[m.ID] = *m
	s.order = append(s.order, m.ID)
	return nil
}

func (s *InMemoryStore) GetMemory(_ context.Context, userID, id string) (*model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memories[id]
	if !ok {
		return nil, model.NewError(model.NotFound, "store", nil).WithContext(userID, id)
	}
	if m.UserID != "" && userID != "" && m.UserID != userID {
		return nil, model.NewError(model.Forbidden, "store", nil).WithContext(userID, id)
	}
	cp := m
	return &cp, nil
}

func (s *InMemoryStore) UpdateMemory(_ context.Context, m *model.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memories[m.ID]; !ok {
		return model.NewError(model.NotFound, "store", nil).WithContext(m.UserID, m.ID)
	}
	m.ClampSalience()
	s.memories[m.ID] = *m
	return nil
}

func (s *InMemoryStore) DeleteMemory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	if !ok {
		return nil
	}
	if m.UserID != "" && userID != "" && m.UserID != userID {
		return model.NewError(model.Forbidden, "store", nil).WithContext(userID, id)
	}
	delete(s.memories, id)
	for k := range s.vectors {
		if k.memoryID == id {
			delete(s.vectors, k)
		}
	}
	for k := range s.waypoints {
		if k.src == id || k.dst == id {
			delete(s.waypoints, k)
		}
	}
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *InMemoryStore) ListMemories(_ context.Context, userID string, sector model.Sector, limit, offset int) ([]model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	var matches []model.Memory
	for _, id := range s.order {
		m := s.memories[id]
		if userID != "" && m.UserID != userID {
			continue
		}
		if sector != "" && m.PrimarySector != sector {
			continue
		}
		matches = append(matches, m)
	}
	return paginate(matches, offset, limit), nil
}

func (s *InMemoryStore) PageMemories(_ context.Context, offset, limit int) ([]model.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	all := make([]model.Memory, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.memories[id])
	}
	return paginate(all, offset, limit), nil
}

func paginate(all []model.Memory, offset, limit int) []model.Memory {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]model.Memory, end-offset)
	copy(out, all[offset:end])
	return out
}

func (s *InMemoryStore) CountMemories(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.memories), nil
}

func (s *InMemoryStore) UpsertVector(_ context.Context, v model.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors[vectorKey{v.MemoryID, v.Sector, v.UserID}] = v
	return nil
}

func (s *InMemoryStore) GetVector(_ context.Context, memoryID string, sector model.Sector, userID string) (*model.Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vectors[vectorKey{memoryID, sector, userID}]
	if !ok {
		return nil, model.NewError(model.NotFound, "store", nil)
	}
	return &v, nil
}

func (s *InMemoryStore) SearchVectors(_ context.Context, userID string, sector model.Sector, query []float32, limit int) ([]VectorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	var matches []VectorMatch
	for k, v := range s.vectors {
		if k.userID != "" && userID != "" && k.userID != userID {
			continue
		}
		if sector != "" && k.sector != sector {
			continue
		}
		matches = append(matches, VectorMatch{
			MemoryID: k.memoryID,
			Sector:   k.sector,
			CosSim:   model.CosineSimilarity(query, v.Values),
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CosSim > matches[j].CosSim })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *InMemoryStore) DeleteVectors(_ context.Context, memoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.vectors {
		if k.memoryID == memoryID {
			delete(s.vectors, k)
		}
	}
	return nil
}

func (s *InMemoryStore) UpsertWaypoint(_ context.Context, w model.Waypoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.SrcID == w.DstID {
		return model.NewError(model.InvalidRequest, "store", nil)
	}
	s.waypoints[waypointKey{w.SrcID, w.DstID, w.UserID}] = w
	return nil
}

func (s *InMemoryStore) Neighbors(_ context.Context, userID, memoryID string) ([]model.Waypoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Waypoint
	for k, w := range s.waypoints {
		if k.userID != "" && userID != "" && k.userID != userID {
			continue
		}
		if k.src == memoryID || k.dst == memoryID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *InMemoryStore) DeleteWaypoints(_ context.Context, userID, memoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.waypoints {
		if (k.src == memoryID || k.dst == memoryID) && (userID == "" || k.userID == userID) {
			delete(s.waypoints, k)
		}
	}
	return nil
}

func (s *InMemoryStore) WriteEmbedLog(_ context.Context, log model.EmbedLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func (s *InMemoryStore) UpsertUserProfile(_ context.Context, p model.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[p.UserID] = p
	return nil
}

func (s *InMemoryStore) GetUserProfile(_ context.Context, userID string) (*model.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[userID]
	if !ok {
		return nil, model.NewError(model.NotFound, "store", nil).WithContext(userID, "")
	}
	return &p, nil
}

func (s *InMemoryStore) DeleteUserMemories(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var remaining []string
	for _, id := range s.order {
		m := s.memories[id]
		if m.UserID == userID {
			delete(s.memories, id)
			for k := range s.vectors {
				if k.memoryID == id {
					delete(s.vectors, k)
				}
			}
			for k := range s.waypoints {
				if k.src == id || k.dst == id {
					delete(s.waypoints, k)
				}
			}
			continue
		}
		remaining = append(remaining, id)
	}
	s.order = remaining
	return nil
}

// WithTx runs fn against the same store: the in-memory backend has no real
// transaction isolation, so it emulates rollback by snapshotting and
// restoring state on error (§4.4 "begin/commit/rollback").
func (s *InMemoryStore) WithTx(_ context.Context, fn func(tx Store) error) error {
	s.mu.Lock()
	snapshotMemories := cloneMemories(s.memories)
	snapshotVectors := cloneVectors(s.vectors)
	snapshotWaypoints := cloneWaypoints(s.waypoints)
	snapshotOrder := append([]string(nil), s.order...)
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.memories = snapshotMemories
		s.vectors = snapshotVectors
		s.waypoints = snapshotWaypoints
		s.order = snapshotOrder
		s.mu.Unlock()
		return model.NewError(model.TransactionAborted, "store", err)
	}
	return nil
}

func cloneMemories(m map[string]model.Memory) map[string]model.Memory {
	cp := make(map[string]model.Memory, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func cloneVectors(m map[vectorKey]model.Vector) map[vectorKey]model.Vector {
	cp := make(map[vectorKey]model.Vector, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func cloneWaypoints(m map[waypointKey]model.Waypoint) map[waypointKey]model.Waypoint {
	cp := make(map[waypointKey]model.Waypoint, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func (s *InMemoryStore) Close() error { return nil }
