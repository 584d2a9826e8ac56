// ABOUTME: Archive sink that saves tickets and session transcripts to a store.Store
// ABOUTME: Serves as the engine's notifier or recorder and as the session purge hook

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/helpdesk/internal/escalation"
	"github.com/2389/helpdesk/internal/session"
	"github.com/2389/helpdesk/internal/store"
)

// Archive copies tickets and transcripts into a store.
type Archive struct {
	store   store.Store
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewArchive creates an Archive. timeout bounds transcript writes from the
// purge hook, which has no caller context of its own.
func NewArchive(s store.Store, timeout time.Duration, logger *slog.Logger) *Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{
		store:   s,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.With("component", "archive"),
	}
}

// Notify saves the ticket snapshot.
func (a *Archive) Notify(ctx context.Context, t escalation.Ticket) error {
	return a.Record(ctx, t)
}

// Record upserts the ticket snapshot.
func (a *Archive) Record(ctx context.Context, t escalation.Ticket) error {
	rec, err := TicketRecord(t)
	if err != nil {
		return err
	}
	if err := a.store.SaveTicket(ctx, rec); err != nil {
		return fmt.Errorf("archiving ticket %s: %w", t.ID, err)
	}
	return nil
}

// PurgeHook returns a session.PurgeHook that archives the transcript.
// Failures are logged; the session is purged regardless.
func (a *Archive) PurgeHook() session.PurgeHook {
	return func(s session.Session, history []session.Message) {
		ctx := context.Background()
		if a.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.timeout)
			defer cancel()
		}

		if err := a.store.SaveTranscript(ctx, Transcript(s, history, a.now())); err != nil {
			a.logger.Error("failed to archive transcript", "session_id", s.ID, "error", err)
			return
		}
		a.logger.Debug("transcript archived", "session_id", s.ID, "messages", len(history))
	}
}

// summaryRecord is the archived JSON shape of a session.Summary.
type summaryRecord struct {
	SessionID        string         `json:"session_id"`
	StartTime        time.Time      `json:"start_time"`
	DurationSeconds  float64        `json:"duration_seconds"`
	CustomerIssue    string         `json:"customer_issue"`
	MessageCount     int            `json:"message_count"`
	AttemptedSteps   []string       `json:"attempted_steps"`
	EscalationReason string         `json:"escalation_reason"`
	KeyUserMessages  []string       `json:"key_user_messages"`
	SessionMetadata  map[string]any `json:"session_metadata,omitempty"`
}

// TicketRecord converts a ticket to its archived form.
func TicketRecord(t escalation.Ticket) (*store.TicketRecord, error) {
	summary, err := json.Marshal(summaryRecord{
		SessionID:        t.Summary.SessionID,
		StartTime:        t.Summary.StartTime,
		DurationSeconds:  t.Summary.Duration.Seconds(),
		CustomerIssue:    t.Summary.CustomerIssue,
		MessageCount:     t.Summary.MessageCount,
		AttemptedSteps:   t.Summary.AttemptedSteps,
		EscalationReason: t.Summary.EscalationReason,
		KeyUserMessages:  t.Summary.KeyUserMessages,
		SessionMetadata:  t.Summary.SessionMetadata,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding summary for ticket %s: %w", t.ID, err)
	}

	return &store.TicketRecord{
		ID:                    t.ID,
		SessionID:             t.SessionID,
		Priority:              string(t.Priority),
		Status:                string(t.Status),
		Reason:                t.Reason,
		CustomerIssue:         t.CustomerIssue,
		AssignedAgentID:       t.AssignedAgentID,
		AssignedAgentName:     t.AssignedAgentName,
		EstimatedResponseTime: t.EstimatedResponseTime,
		Summary:               summary,
		Notes:                 t.AgentNotes,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.LastUpdated,
	}, nil
}

// Transcript converts a purged session to its archived form.
func Transcript(s session.Session, history []session.Message, archivedAt time.Time) *store.Transcript {
	messages := make([]store.TranscriptMessage, len(history))
	for i, m := range history {
		messages[i] = store.TranscriptMessage{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}
	return &store.Transcript{
		SessionID:       s.ID,
		CurrentIssue:    s.CurrentIssue,
		TurnCount:       s.TurnCount,
		EscalationCount: s.EscalationCount,
		AttemptedSteps:  s.AttemptedSteps,
		Messages:        messages,
		StartedAt:       s.StartTime,
		ArchivedAt:      archivedAt,
	}
}

var (
	_ Notifier            = (*Archive)(nil)
	_ escalation.Recorder = (*Archive)(nil)
	_ escalation.Notifier = (*Fanout)(nil)
	_ escalation.Notifier = (*Console)(nil)
	_ escalation.Notifier = (*Webhook)(nil)
	_ escalation.Notifier = (*Log)(nil)
)
