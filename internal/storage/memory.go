package storage

import (
	"context"
	"sync"
)

// Memory is a process-local Store.
type Memory struct {
	mu     sync.Mutex
	groups Groups
	audit  []AuditEntry
	saves  int
}

func NewMemory() *Memory { return &Memory{groups: Groups{}} }

func (m *Memory) LoadGroups(context.Context) (Groups, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groups.Clone(), nil
}

func (m *Memory) SaveGroups(_ context.Context, g Groups) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = g.Clone()
	m.saves++
	return nil
}

func (m *Memory) AppendAudit(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

// Audit returns a copy of the recorded audit entries.
func (m *Memory) Audit() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AuditEntry(nil), m.audit...)
}

// Saves counts SaveGroups calls.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }
