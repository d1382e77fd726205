package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory LogStore for exercising the tracker and
// dispatcher without a database.
type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*Log
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[uuid.UUID]*Log)}
}

func (m *memStore) Insert(ctx context.Context, entry *Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *entry
	m.rows[entry.ID] = &clone
	return nil
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (*Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, ErrLogNotFound
	}
	clone := *row
	return &clone, nil
}

func (m *memStore) Advance(ctx context.Context, id uuid.UUID, from []string, target string, at time.Time, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, f := range from {
		if row.Status == f {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	row.Status = target
	switch target {
	case StatusSent:
		if row.SentAt == nil {
			row.SentAt = &at
		}
	case StatusDelivered:
		if row.DeliveredAt == nil {
			row.DeliveredAt = &at
		}
	case StatusOpened:
		if row.OpenedAt == nil {
			row.OpenedAt = &at
		}
	case StatusClicked:
		if row.ClickedAt == nil {
			row.ClickedAt = &at
		}
	default:
		row.FailureReason = reason
	}
	return true, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memStore) all() []*Log {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Log
	for _, row := range m.rows {
		clone := *row
		out = append(out, &clone)
	}
	return out
}
