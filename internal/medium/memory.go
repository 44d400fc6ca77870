package medium

import (
	"context"
	"sort"
	"sync"

	"github.com/Iron-Ham/pagebook/internal/page"
)

// Memory is an in-process medium.
type Memory struct {
	mu      sync.RWMutex
	records map[string]page.Record
}

// NewMemory returns an empty Memory medium.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]page.Record)}
}

// LoadAll returns every record in title order.
func (m *Memory) LoadAll(context.Context) ([]page.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]page.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *Memory) Put(_ context.Context, rec page.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Drifted = false
	m.records[rec.Title] = rec
	return nil
}

func (m *Memory) Move(_ context.Context, oldTitle string, rec page.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Drifted = false
	delete(m.records, oldTitle)
	m.records[rec.Title] = rec
	return nil
}

func (m *Memory) Delete(_ context.Context, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, title)
	return nil
}

func (m *Memory) Close() error { return nil }
