// ABOUTME: Data types for conversation sessions: Session, Message, Summary, Analytics.
// ABOUTME: All values handed to callers are deep copies owned by the caller.

package session

import (
	"errors"
	"maps"
	"slices"
	"time"
)

// ErrNotFound is returned when a session ID is neither active nor retained.
var ErrNotFound = errors.New("session not found")

// Metadata keys written by MarkForEscalation.
const (
	MetaEscalationReason    = "escalation_reason"
	MetaEscalationTimestamp = "escalation_timestamp"
)

// DefaultEscalationReason is reported in a Summary when no reason was recorded.
const DefaultEscalationReason = "Customer request"

// KeyUserMessageCount is how many recent user messages a Summary carries.
const KeyUserMessageCount = 5

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in a session's history. Immutable once appended.
type Message struct {
	ID        string
	Role      Role
	Content   string
	CreatedAt time.Time
	Metadata  map[string]any
}

func (m Message) clone() Message {
	m.Metadata = cloneMetadata(m.Metadata)
	return m
}

// cloneMetadata copies a metadata map along with the slice and map values
// stored in it, so callers never share mutable state with the registry.
func cloneMetadata(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		if v == nil {
			return v
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		return cloneMetadata(v)
	case map[string]string:
		return maps.Clone(v)
	default:
		return v
	}
}

// Session is a snapshot of one support conversation.
type Session struct {
	ID                 string
	StartTime          time.Time
	CurrentIssue       string
	TurnCount          int
	EscalationCount    int
	AttemptedSteps     []string
	RequiresEscalation bool
	Metadata           map[string]any
}

func (s Session) clone() Session {
	s.AttemptedSteps = slices.Clone(s.AttemptedSteps)
	s.Metadata = cloneMetadata(s.Metadata)
	return s
}

// EscalationReason returns the recorded escalation reason, if any.
func (s Session) EscalationReason() (string, bool) {
	reason, ok := s.Metadata[MetaEscalationReason].(string)
	return reason, ok && reason != ""
}

// Summary is a point-in-time hand-off view of a session for human agents.
type Summary struct {
	SessionID        string
	StartTime        time.Time
	Duration         time.Duration
	CustomerIssue    string
	MessageCount     int
	AttemptedSteps   []string
	EscalationReason string
	KeyUserMessages  []string
	SessionMetadata  map[string]any
}

// Analytics is a derived, read-only view of a session's activity.
type Analytics struct {
	SessionID           string
	StartTime           time.Time
	Duration            time.Duration
	TotalMessages       int
	UserMessages        int
	AssistantMessages   int
	EscalationCount     int
	RequiresEscalation  bool
	AttemptedStepsCount int
	CurrentIssue        string
}

// buildSummary assembles a Summary from a session and its history.
func buildSummary(s Session, history []Message, now time.Time) Summary {
	reason, ok := s.EscalationReason()
	if !ok {
		reason = DefaultEscalationReason
	}

	var userMessages []string
	for _, m := range history {
		if m.Role == RoleUser {
			userMessages = append(userMessages, m.Content)
		}
	}
	if len(userMessages) > KeyUserMessageCount {
		userMessages = userMessages[len(userMessages)-KeyUserMessageCount:]
	}

	return Summary{
		SessionID:        s.ID,
		StartTime:        s.StartTime,
		Duration:         now.Sub(s.StartTime),
		CustomerIssue:    s.CurrentIssue,
		MessageCount:     len(history),
		AttemptedSteps:   slices.Clone(s.AttemptedSteps),
		EscalationReason: reason,
		KeyUserMessages:  slices.Clone(userMessages),
		SessionMetadata:  cloneMetadata(s.Metadata),
	}
}

// buildAnalytics counts messages by role.
func buildAnalytics(s Session, history []Message, now time.Time) Analytics {
	a := Analytics{
		SessionID:           s.ID,
		StartTime:           s.StartTime,
		Duration:            now.Sub(s.StartTime),
		TotalMessages:       len(history),
		EscalationCount:     s.EscalationCount,
		RequiresEscalation:  s.RequiresEscalation,
		AttemptedStepsCount: len(s.AttemptedSteps),
		CurrentIssue:        s.CurrentIssue,
	}
	for _, m := range history {
		switch m.Role {
		case RoleUser:
			a.UserMessages++
		case RoleAssistant:
			a.AssistantMessages++
		}
	}
	return a
}
