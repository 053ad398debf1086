package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mdvrp/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu    sync.Mutex
	runs  map[string]model.Run        // id -> run
	snaps map[string][]model.Snapshot // run id -> snapshots by generation
}

func NewMemory() *Memory {
	return &Memory{
		runs:  map[string]model.Run{},
		snaps: map[string][]model.Snapshot{},
	}
}

func (m *Memory) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	run.ID = uuid.New().String()
	run.CreatedAt, run.UpdatedAt = now, now
	if run.Status == "" {
		run.Status = model.RunQueued
	}
	m.runs[run.ID] = run
	return run, nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return model.Run{}, ErrNotFound
	}
	return run, nil
}

func (m *Memory) ListRuns(ctx context.Context, status, cursor string, limit int) ([]model.Run, string, error) {
	limit = normalizeLimit(limit)
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.runs))
	for id, r := range m.runs {
		if id <= cursor || (status != "" && string(r.Status) != status) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := []model.Run{}
	for _, id := range ids {
		if len(out) == limit {
			break
		}
		out = append(out, m.runs[id])
	}
	next := ""
	if len(out) == limit && len(ids) > limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) UpdateRun(ctx context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.runs[run.ID]
	if !ok {
		return ErrNotFound
	}
	run.CreatedAt = prev.CreatedAt
	run.UpdatedAt = time.Now().UTC()
	m.runs[run.ID] = run
	return nil
}

// SaveSnapshots upserts by generation.
func (m *Memory) SaveSnapshots(ctx context.Context, runID string, snaps []model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return ErrNotFound
	}
	cur := m.snaps[runID]
	for _, s := range snaps {
		s.RunID = runID
		i := sort.Search(len(cur), func(i int) bool { return cur[i].Generation >= s.Generation })
		if i < len(cur) && cur[i].Generation == s.Generation {
			cur[i] = s
			continue
		}
		cur = append(cur, model.Snapshot{})
		copy(cur[i+1:], cur[i:])
		cur[i] = s
	}
	m.snaps[runID] = cur
	return nil
}

func (m *Memory) ListSnapshots(ctx context.Context, runID string) ([]model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]model.Snapshot, len(m.snaps[runID]))
	copy(out, m.snaps[runID])
	return out, nil
}
