package storage

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is a process-local Store. Nothing survives a restart.
type Memory struct {
	mu    sync.Mutex
	state map[string]string
	dedup map[string]time.Time
	audit []AuditEntry
}

func NewMemory() *Memory {
	return &Memory{state: map[string]string{}, dedup: map[string]time.Time{}}
}

func (m *Memory) GetState(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.state[strings.TrimSpace(key)]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) PutState(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[strings.TrimSpace(key)] = value
	return nil
}

func (m *Memory) AppendAudit(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

// Audit returns a copy of the recorded entries.
func (m *Memory) Audit() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditEntry(nil), m.audit...)
}

func (m *Memory) PutDedup(_ context.Context, key string, until time.Time) error {
	if key = strings.TrimSpace(key); key == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dedup[key] = until
	return nil
}

func (m *Memory) GetDedup(_ context.Context, key string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.dedup[strings.TrimSpace(key)]
	return until, ok, nil
}

func (m *Memory) Close() error { return nil }
