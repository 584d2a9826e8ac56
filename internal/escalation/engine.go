// ABOUTME: Escalation engine: creates tickets from sessions and owns the ticket queue
// ABOUTME: All ticket mutations go through here; notification and archiving are best-effort

package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/helpdesk/internal/session"
)

// DefaultNotifyTimeout bounds each notification or archive call.
const DefaultNotifyTimeout = 5 * time.Second

// maxIDAttempts bounds ticket ID regeneration on collision.
const maxIDAttempts = 16

// SessionSource is what the engine needs from the session registry.
type SessionSource interface {
	Handoff(id string, reasonFn func(session.Session) string) (session.Session, session.Summary, error)
}

// Notifier delivers a newly created ticket to humans.
type Notifier interface {
	Notify(ctx context.Context, t Ticket) error
}

// Recorder persists a ticket snapshot after every change.
type Recorder interface {
	Record(ctx context.Context, t Ticket) error
}

// Engine creates escalation tickets and manages their lifecycle.
type Engine struct {
	mu      sync.RWMutex
	tickets []*Ticket // creation order
	byID    map[string]*Ticket

	sessions      SessionSource
	notifier      Notifier
	recorder      Recorder
	notifyTimeout time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithNotifier sets the hook called for each new ticket.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithRecorder sets the hook called after each ticket change.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithNotifyTimeout bounds notifier and recorder calls.
func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.notifyTimeout = d
		}
	}
}

// NewEngine creates an Engine backed by the given session registry.
func NewEngine(sessions SessionSource, opts ...Option) *Engine {
	e := &Engine{
		byID:          make(map[string]*Ticket),
		sessions:      sessions,
		notifyTimeout: DefaultNotifyTimeout,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "escalation")
	return e
}

// Initiate escalates a session and returns the queued ticket. An empty
// reason lets the policy decide. Only an unknown session (or a context that
// is already done) makes it fail; notification problems are logged.
func (e *Engine) Initiate(ctx context.Context, sessionID, reason string) (Ticket, error) {
	if err := ctx.Err(); err != nil {
		return Ticket{}, err
	}

	e.logger.Info("initiating escalation", "session_id", sessionID)

	sess, summary, err := e.sessions.Handoff(sessionID, func(s session.Session) string {
		if reason != "" {
			return reason
		}
		return DetermineReason(s)
	})
	if err != nil {
		return Ticket{}, fmt.Errorf("escalating session %s: %w", sessionID, err)
	}

	priority := DeterminePriority(sess)
	now := e.now()
	t := &Ticket{
		SessionID:             sessionID,
		Priority:              priority,
		Reason:                summary.EscalationReason,
		CustomerIssue:         sess.CurrentIssue,
		CreatedAt:             now,
		LastUpdated:           now,
		Status:                StatusOpen,
		Summary:               summary,
		EstimatedResponseTime: EstimatedResponseTime(priority),
	}

	e.mu.Lock()
	t.ID = e.uniqueIDLocked(now)
	e.tickets = append(e.tickets, t)
	e.byID[t.ID] = t
	created := t.clone()
	e.mu.Unlock()

	e.logger.Info("escalation ticket created",
		"ticket_id", created.ID,
		"session_id", sessionID,
		"priority", created.Priority,
		"reason", created.Reason)

	e.record(ctx, created)
	e.notify(ctx, created)

	return created, nil
}

// Queue returns the open tickets in creation order.
func (e *Engine) Queue() []Ticket {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var open []Ticket
	for _, t := range e.tickets {
		if t.Status == StatusOpen {
			open = append(open, t.clone())
		}
	}
	return open
}

// Tickets returns every ticket in creation order.
func (e *Engine) Tickets() []Ticket {
	e.mu.RLock()
	defer e.mu.RUnlock()

	all := make([]Ticket, len(e.tickets))
	for i, t := range e.tickets {
		all[i] = t.clone()
	}
	return all
}

// GetTicket returns a snapshot of one ticket.
func (e *Engine) GetTicket(id string) (Ticket, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, ok := e.byID[id]
	if !ok {
		return Ticket{}, ErrTicketNotFound
	}
	return t.clone(), nil
}

// UpdateStatus moves a ticket to a new status and appends note if non-empty.
// Unknown tickets are left alone and reported with ErrTicketNotFound.
func (e *Engine) UpdateStatus(ctx context.Context, id string, status Status, note string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	t, ok := e.byID[id]
	if !ok {
		e.mu.Unlock()
		return ErrTicketNotFound
	}
	old := t.Status
	if !CanTransition(old, status) {
		e.mu.Unlock()
		return fmt.Errorf("%w: ticket %s %s -> %s", ErrInvalidTransition, id, old, status)
	}

	now := e.touchLocked(t)
	t.Status = status
	if note != "" {
		t.AgentNotes = append(t.AgentNotes, formatNote(now, note))
	}
	updated := t.clone()
	e.mu.Unlock()

	e.logger.Info("ticket status updated",
		"ticket_id", id,
		"old_status", old,
		"new_status", status)
	e.record(ctx, updated)
	return nil
}

// Assign hands a ticket to a human agent and marks it in progress.
func (e *Engine) Assign(ctx context.Context, id, agentID, agentName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	t, ok := e.byID[id]
	if !ok {
		e.mu.Unlock()
		return ErrTicketNotFound
	}
	if t.Status.Terminal() {
		e.mu.Unlock()
		return fmt.Errorf("%w: ticket %s is %s", ErrInvalidTransition, id, t.Status)
	}

	now := e.touchLocked(t)
	t.AssignedAgentID = agentID
	t.AssignedAgentName = agentName
	t.Status = StatusInProgress
	t.AgentNotes = append(t.AgentNotes, formatNote(now, "Assigned to "+agentName))
	updated := t.clone()
	e.mu.Unlock()

	e.logger.Info("ticket assigned",
		"ticket_id", id,
		"agent_id", agentID,
		"agent_name", agentName)
	e.record(ctx, updated)
	return nil
}

// touchLocked stamps LastUpdated, never earlier than CreatedAt. Must be called with mu held.
func (e *Engine) touchLocked(t *Ticket) time.Time {
	now := e.now()
	if now.Before(t.CreatedAt) {
		now = t.CreatedAt
	}
	t.LastUpdated = now
	return now
}

// uniqueIDLocked generates a ticket ID not yet in the queue. Must be called with mu held.
func (e *Engine) uniqueIDLocked(at time.Time) string {
	id := newTicketID(at)
	for i := 0; i < maxIDAttempts; i++ {
		if _, taken := e.byID[id]; !taken {
			return id
		}
		id = newTicketID(at)
	}
	// Fall back to a sequence suffix, which cannot collide within this queue.
	return fmt.Sprintf("%s-%d", id, len(e.tickets)+1)
}

// notify runs the notifier within the notify timeout.
func (e *Engine) notify(ctx context.Context, t Ticket) {
	if e.notifier == nil {
		return
	}
	e.deliver(ctx, "notify", t.ID, func(ctx context.Context) error {
		return e.notifier.Notify(ctx, t)
	})
}

// record runs the recorder within the notify timeout.
func (e *Engine) record(ctx context.Context, t Ticket) {
	if e.recorder == nil {
		return
	}
	e.deliver(ctx, "record", t.ID, func(ctx context.Context) error {
		return e.recorder.Record(ctx, t)
	})
}

// deliver calls fn with a deadline detached from the caller's cancellation,
// and stops waiting once the deadline passes even if fn ignores it.
func (e *Engine) deliver(ctx context.Context, op, ticketID string, fn func(context.Context) error) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.notifyTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- fn(dctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			e.logger.Error("ticket hook failed", "op", op, "ticket_id", ticketID, "error", err)
		}
	case <-dctx.Done():
		e.logger.Warn("ticket hook timed out", "op", op, "ticket_id", ticketID, "timeout", e.notifyTimeout)
	}
}
