// Copyright (c) 2025 HYPR. PTE. LTD.
//
// Business Source License 1.1
// See LICENSE file in the project root for details.

// Package history keeps an audit trail of provisioning events. It records
// what happened; it is never replayed into the provisioner.
package history

import (
	"context"
	"errors"
	"sync"

	"github.com/ccheshirecat/usbvlan/internal/agent/events"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("history: store closed")

// DefaultLimit bounds Recent when the caller passes a non-positive limit.
const DefaultLimit = 50

// Store persists agent events.
type Store interface {
	Append(ctx context.Context, ev events.AgentEvent) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]events.AgentEvent, error)
	Close(ctx context.Context) error
}

// MemoryStore keeps the most recent events in a bounded ring. It backs the
// agent when the database cannot be opened.
type MemoryStore struct {
	mu     sync.RWMutex
	items  []events.AgentEvent
	next   int
	full   bool
	closed bool
}

// NewMemoryStore constructs a ring holding capacity events.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryStore{items: make([]events.AgentEvent, capacity)}
}

// Append stores ev, evicting the oldest event when full.
func (m *MemoryStore) Append(_ context.Context, ev events.AgentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.items[m.next] = ev
	m.next = (m.next + 1) % len(m.items)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]events.AgentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	size := m.next
	if m.full {
		size = len(m.items)
	}
	if limit > size {
		limit = size
	}
	out := make([]events.AgentEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.items)) % len(m.items)
		out = append(out, m.items[idx])
	}
	return out, nil
}

// Close marks the store closed.
func (m *MemoryStore) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
