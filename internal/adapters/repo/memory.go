package repo

import (
	"context"
	"sync"

	"sprachtrainer-gateway/internal/domain"
)

// Memory реализует domain.AuthStore в памяти процесса.
// Подходит для одной реплики; состояние живёт до перезапуска.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	mu  sync.Mutex
	rec domain.AuthRecord
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memoryEntry)}
}

var _ domain.AuthStore = (*Memory)(nil)

func (m *Memory) entry(id domain.Identity) *memoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id.Key()]
	if !ok {
		e = &memoryEntry{}
		m.entries[id.Key()] = e
	}
	return e
}

// Get возвращает запись идентичности, нулевую для неизвестной.
func (m *Memory) Get(ctx context.Context, id domain.Identity) (domain.AuthRecord, error) {
	e := m.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, nil
}

// Update выполняет read-modify-write под мьютексом идентичности.
func (m *Memory) Update(ctx context.Context, id domain.Identity, fn func(domain.AuthRecord) (domain.AuthRecord, error)) (domain.AuthRecord, error) {
	e := m.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := fn(e.rec)
	if err != nil {
		return domain.AuthRecord{}, err
	}
	e.rec = next
	return next, nil
}
