package ledger

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-memory Backend. Values are copied on the way in and out
// so callers cannot mutate stored versions.
type Memory struct {
	mu      sync.RWMutex
	state   map[string][]byte
	history map[string][]KeyModification
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		state:   make(map[string][]byte),
		history: make(map[string][]KeyModification),
	}
}

// Get implements Backend.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.state[key]
	if !ok {
		return nil, nil
	}
	return slices.Clone(value), nil
}

// History implements Backend.
func (m *Memory) History(ctx context.Context, key string) (HistoryIterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions := make([]KeyModification, len(m.history[key]))
	for i, v := range m.history[key] {
		v.Value = slices.Clone(v.Value)
		versions[i] = v
	}
	return sliceCursor(versions), nil
}

// Scan implements Backend.
func (m *Memory) Scan(ctx context.Context, start, end string) (StateIterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var kvs []KV
	for k, v := range m.state {
		if k >= start && k < end {
			kvs = append(kvs, KV{Key: k, Value: slices.Clone(v)})
		}
	}
	slices.SortFunc(kvs, func(a, b KV) int { return strings.Compare(a.Key, b.Key) })
	return sliceCursor(kvs), nil
}

// Apply implements Backend.
func (m *Memory) Apply(ctx context.Context, batch Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range batch.Writes {
		m.history[w.Key] = append(m.history[w.Key], KeyModification{
			TxID:      batch.TxID,
			Value:     slices.Clone(w.Value),
			Timestamp: batch.Timestamp,
			IsDelete:  w.IsDelete,
		})
		if w.IsDelete {
			delete(m.state, w.Key)
			continue
		}
		m.state[w.Key] = slices.Clone(w.Value)
	}
	return nil
}

// Close implements Backend.
func (m *Memory) Close() error { return nil }

