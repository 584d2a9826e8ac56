// ABOUTME: Log notifier that records each new ticket as a structured slog entry

package notify

import (
	"context"
	"log/slog"

	"github.com/2389/helpdesk/internal/escalation"
)

// Log writes one record per ticket.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log sink. A nil logger uses slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "notify")}
}

// Notify logs the ticket at warn level.
func (l *Log) Notify(ctx context.Context, t escalation.Ticket) error {
	l.logger.WarnContext(ctx, "escalation ticket awaiting agent",
		"ticket_id", t.ID,
		"session_id", t.SessionID,
		"priority", t.Priority,
		"reason", t.Reason,
		"eta", t.EstimatedResponseTime,
		"messages", t.Summary.MessageCount)
	return nil
}
