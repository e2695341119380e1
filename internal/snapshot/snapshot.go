// Package snapshot exports terminal session state to durable storage.
package snapshot

import (
	"context"
	"sync"
	"time"
)

// Status mirrors the lifecycle of an exported session.
type Status string

const (
	StatusOngoing  Status = "ongoing"
	StatusFinished Status = "finished"
)

// Record is the exported view of a session. Players and Credits are in seat
// order.
type Record struct {
	Code       string    `json:"code"`
	Players    []string  `json:"players"`
	Voters     []string  `json:"voters"`
	Winner     string    `json:"winner,omitempty"`
	Status     Status    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Credits    []int     `json:"credits"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Store persists records.
type Store interface {
	Save(ctx context.Context, rec Record) error
}

// Discard is a Store that keeps nothing.
var Discard Store = discard{}

type discard struct{}

func (discard) Save(context.Context, Record) error { return nil }

// MemoryStore keeps records in memory, latest write per code wins.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (m *MemoryStore) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.Code]; !ok {
		m.order = append(m.order, rec.Code)
	}
	m.records[rec.Code] = rec
	return nil
}

// Get returns the record saved under code.
func (m *MemoryStore) Get(code string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[code]
	return rec, ok
}

// Records returns every record in first-save order.
func (m *MemoryStore) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.order))
	for _, code := range m.order {
		out = append(out, m.records[code])
	}
	return out
}
