// ABOUTME: Ticket, Priority and Status types for escalations
// ABOUTME: Includes the status state machine and ticket ID generation

package escalation

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/helpdesk/internal/session"
)

var (
	// ErrTicketNotFound is returned for unknown ticket IDs.
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrInvalidTransition is returned for status changes the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Priority of an escalation ticket.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Status of an escalation ticket.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// ParseStatus converts user input such as "in-progress" or "Resolved" to a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(v)), "-", "_"))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

// CanTransition reports whether a ticket may move from one status to another.
// Staying in a non-terminal status is allowed so notes can be appended.
func CanTransition(from, to Status) bool {
	if !to.Valid() || from.Terminal() {
		return false
	}
	if from == to {
		return true
	}
	switch from {
	case StatusOpen:
		return to == StatusInProgress || to == StatusResolved || to == StatusCancelled
	case StatusInProgress:
		return to == StatusResolved || to == StatusCancelled
	}
	return false
}

// Ticket is a tracked hand-off of a session to human support.
type Ticket struct {
	ID                    string
	SessionID             string
	Priority              Priority
	Reason                string
	CustomerIssue         string
	CreatedAt             time.Time
	LastUpdated           time.Time
	Status                Status
	AssignedAgentID       string
	AssignedAgentName     string
	Summary               session.Summary
	EstimatedResponseTime time.Duration
	AgentNotes            []string
}

func (t *Ticket) clone() Ticket {
	c := *t
	c.AgentNotes = slices.Clone(t.AgentNotes)
	c.Summary.AttemptedSteps = slices.Clone(t.Summary.AttemptedSteps)
	c.Summary.KeyUserMessages = slices.Clone(t.Summary.KeyUserMessages)
	c.Summary.SessionMetadata = maps.Clone(t.Summary.SessionMetadata)
	return c
}

// noteTimeFormat prefixes every agent note.
const noteTimeFormat = "2006-01-02 15:04:05"

func formatNote(at time.Time, note string) string {
	return at.UTC().Format(noteTimeFormat) + " - " + note
}

// ticketIDTimeFormat is the human-decodable part of a ticket ID.
const ticketIDTimeFormat = "20060102150405"

// newTicketID builds "TS-<timestamp>-<suffix>" with a random 8-character suffix.
func newTicketID(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return "TS-" + at.UTC().Format(ticketIDTimeFormat) + "-" + suffix
}
