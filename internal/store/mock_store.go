// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"slices"
	"sort"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	tickets     map[string]*TicketRecord // keyed by ticket ID
	transcripts map[string]*Transcript   // keyed by session ID
	saveCount   int
	err         error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		tickets:     make(map[string]*TicketRecord),
		transcripts: make(map[string]*Transcript),
	}
}

// FailWith makes every subsequent write return err. Pass nil to recover.
func (m *MockStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SaveCount reports how many successful writes have happened.
func (m *MockStore) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveCount
}

// SaveTicket stores a copy of the ticket.
func (m *MockStore) SaveTicket(ctx context.Context, t *TicketRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	// Make a copy to avoid external modification
	c := copyTicket(t)
	m.tickets[c.ID] = c
	m.saveCount++
	return nil
}

// GetTicket retrieves a ticket by ID.
func (m *MockStore) GetTicket(ctx context.Context, id string) (*TicketRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTicket(t), nil
}

// ListTickets returns tickets matching the filter, oldest first.
func (m *MockStore) ListTickets(ctx context.Context, filter TicketFilter) ([]*TicketRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*TicketRecord
	for _, t := range m.tickets {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.SessionID != "" && t.SessionID != filter.SessionID {
			continue
		}
		out = append(out, copyTicket(t))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SaveTranscript stores a copy of the transcript.
func (m *MockStore) SaveTranscript(ctx context.Context, t *Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}

	c := *t
	c.AttemptedSteps = slices.Clone(t.AttemptedSteps)
	c.Messages = slices.Clone(t.Messages)
	m.transcripts[c.SessionID] = &c
	m.saveCount++
	return nil
}

// GetTranscript retrieves a transcript by session ID.
func (m *MockStore) GetTranscript(ctx context.Context, sessionID string) (*Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transcripts[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	c := *t
	c.AttemptedSteps = slices.Clone(t.AttemptedSteps)
	c.Messages = slices.Clone(t.Messages)
	return &c, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

func copyTicket(t *TicketRecord) *TicketRecord {
	c := *t
	c.Notes = slices.Clone(t.Notes)
	c.Summary = slices.Clone(t.Summary)
	return &c
}

// Ensure both implementations satisfy the interface
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MockStore)(nil)
)
