package ledger

import (
	"context"
	"sync"
	"time"

	"polpipe/internal/model"
)

// Entry records a purchase-order line that has already been submitted.
type Entry struct {
	Key            model.POLKey
	RemotePOLineID string
	SubmittedAt    time.Time
}

// Ledger is the durable idempotency record: once a key is marked submitted,
// re-runs must see it and skip the network call. Put is first-writer-wins.
type Ledger interface {
	Get(ctx context.Context, key model.POLKey) (*Entry, error)
	Put(ctx context.Context, key model.POLKey, remotePOLineID string) error
}

// Memory is an in-process Ledger for tests and dry runs.
type Memory struct {
	mu      sync.Mutex
	entries map[model.POLKey]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[model.POLKey]Entry)}
}

func (m *Memory) Get(ctx context.Context, key model.POLKey) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[key]; ok {
		return &entry, nil
	}
	return nil, nil
}

func (m *Memory) Put(ctx context.Context, key model.POLKey, remotePOLineID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; ok {
		return nil
	}
	m.entries[key] = Entry{Key: key, RemotePOLineID: remotePOLineID, SubmittedAt: time.Now()}
	return nil
}
