package store

import (
	"context"
	"sort"
	"sync"

	"github.com/JonMunkholm/recimport/internal/core"
)

// Memory is an in-process version store.
type Memory struct {
	mu     sync.Mutex
	chains map[core.BusinessKey][]core.CanonicalRecord
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{chains: make(map[core.BusinessKey][]core.CanonicalRecord)}
}

// Apply implements core.VersionStore. One mutex covers every key.
func (m *Memory) Apply(ctx context.Context, key core.BusinessKey, build func(*core.CanonicalRecord) (core.CanonicalRecord, error)) (core.CanonicalRecord, error) {
	if err := ctx.Err(); err != nil {
		return core.CanonicalRecord{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *core.CanonicalRecord
	if rec, ok := core.PickLatest(m.chains[key]); ok {
		rec = rec.Clone()
		latest = &rec
	}
	rec, err := build(latest)
	if err != nil {
		return core.CanonicalRecord{}, err
	}
	m.chains[key] = append(m.chains[key], rec.Clone())
	return rec, nil
}

// FindLatest implements core.VersionStore.
func (m *Memory) FindLatest(_ context.Context, key core.BusinessKey) (core.CanonicalRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := core.PickLatest(m.chains[key])
	if !ok {
		return core.CanonicalRecord{}, false, nil
	}
	return rec.Clone(), true, nil
}

// History implements core.VersionStore.
func (m *Memory) History(_ context.Context, key core.BusinessKey) ([]core.CanonicalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain := m.chains[key]
	out := make([]core.CanonicalRecord, len(chain))
	for i, r := range chain {
		out[i] = r.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version.Before(out[j].Version) })
	return out, nil
}

// Len returns the number of stored versions across all keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, chain := range m.chains {
		n += len(chain)
	}
	return n
}
