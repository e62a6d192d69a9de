package store

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// Record is a stored document as kept by the memory backend.
type Record struct {
	ID   string
	Body map[string]any
}

// Memory keeps records in process. Nothing survives a restart.
type Memory struct {
	mu      sync.Mutex
	records map[string][]Record
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string][]Record)}
}

func (m *Memory) Append(_ context.Context, collection string, record map[string]any) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrClosed
	}

	id := uuid.NewString()
	m.records[collection] = append(m.records[collection], Record{ID: id, Body: maps.Clone(record)})
	return id, nil
}

// Records returns a copy of everything appended to collection.
func (m *Memory) Records(collection string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records[collection]))
	copy(out, m.records[collection])
	return out
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
