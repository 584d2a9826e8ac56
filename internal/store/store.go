// ABOUTME: Store interface and record types for the helpdesk archive
// ABOUTME: Defines TicketRecord, Transcript and the Store interface

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// TicketRecord is the archived form of an escalation ticket
type TicketRecord struct {
	ID                    string
	SessionID             string
	Priority              string
	Status                string
	Reason                string
	CustomerIssue         string
	AssignedAgentID       string
	AssignedAgentName     string
	EstimatedResponseTime time.Duration
	Summary               json.RawMessage // serialized conversation summary
	Notes                 []string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TranscriptMessage is one archived message
type TranscriptMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Transcript is the archived history of an ended session
type Transcript struct {
	SessionID       string
	CurrentIssue    string
	TurnCount       int
	EscalationCount int
	AttemptedSteps  []string
	Messages        []TranscriptMessage
	StartedAt       time.Time
	ArchivedAt      time.Time
}

// TicketFilter narrows ListTickets. Zero values match everything.
type TicketFilter struct {
	Status    string
	SessionID string
	Limit     int
}

// Store defines the archive operations
type Store interface {
	// Tickets (upserted on every change)
	SaveTicket(ctx context.Context, t *TicketRecord) error
	GetTicket(ctx context.Context, id string) (*TicketRecord, error)
	ListTickets(ctx context.Context, filter TicketFilter) ([]*TicketRecord, error)

	// Transcripts of purged sessions
	SaveTranscript(ctx context.Context, t *Transcript) error
	GetTranscript(ctx context.Context, sessionID string) (*Transcript, error)

	Close() error
}
