// ABOUTME: Orchestrator drives one support turn: record, reply, then check for escalation
// ABOUTME: Session state lives in session.Store; the orchestrator keeps none of its own

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/2389/helpdesk/internal/escalation"
	"github.com/2389/helpdesk/internal/responder"
	"github.com/2389/helpdesk/internal/session"
)

// Default limits, matching config defaults.
const (
	DefaultMaxTurns            = 50
	DefaultEscalationThreshold = 3
)

// Metadata keys written on assistant messages.
const (
	MetaConfidence         = "confidence"
	MetaSources            = "retrieved_sources"
	MetaSuggestedActions   = "suggested_actions"
	MetaRequiresEscalation = "requires_escalation"
	MetaTroubleshooting    = "troubleshooting"
)

// ErrEmptyMessage is returned for blank user input.
var ErrEmptyMessage = errors.New("empty message")

// Escalator hands sessions to the human queue.
type Escalator interface {
	Initiate(ctx context.Context, sessionID, reason string) (escalation.Ticket, error)
}

// TurnResult is the outcome of one processed user turn.
type TurnResult struct {
	Session  session.Session // snapshot after the turn
	Response *responder.Response

	// MaxTurnsReached means the conversation hit its length limit. The
	// caller should offer escalation; nothing is escalated automatically.
	MaxTurnsReached bool

	// Ticket is set when this turn triggered an automatic escalation.
	Ticket *escalation.Ticket
}

// Orchestrator runs conversations against a session store, a generator and an escalator.
type Orchestrator struct {
	sessions  *session.Store
	generator responder.Generator
	escalator Escalator
	events    *EventBroadcaster

	maxTurns  int
	threshold int
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxTurns sets the turn count at which escalation is offered.
func WithMaxTurns(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxTurns = n
		}
	}
}

// WithEscalationThreshold sets how many escalation hints from the generator
// trigger an automatic escalation.
func WithEscalationThreshold(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.threshold = n
		}
	}
}

// WithBroadcaster publishes conversation events to b.
func WithBroadcaster(b *EventBroadcaster) Option {
	return func(o *Orchestrator) { o.events = b }
}

// New creates an Orchestrator.
func New(sessions *session.Store, generator responder.Generator, escalator Escalator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:  sessions,
		generator: generator,
		escalator: escalator,
		maxTurns:  DefaultMaxTurns,
		threshold: DefaultEscalationThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "conversation")
	return o
}

// Start opens a new session.
func (o *Orchestrator) Start() session.Session {
	return o.sessions.CreateSession()
}

// ProcessTurn handles one user message. Troubleshooting steps suggested on
// the previous turn are recorded as attempted, since the user is reporting
// back on them.
// A generator failure leaves the user message recorded and returns the error.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if _, err := o.sessions.GetSession(sessionID); err != nil {
		return nil, err
	}

	o.recordPreviousActions(sessionID)

	sess, err := o.sessions.RecordTurn(sessionID, text)
	if err != nil {
		return nil, err
	}
	o.publish(Event{Type: EventTurn, SessionID: sessionID, Turn: sess.TurnCount, Text: text})

	summary, err := o.sessions.CreateEscalationSummary(sessionID)
	if err != nil {
		return nil, err
	}

	resp, err := o.generator.Generate(ctx, responder.Request{Session: sess, Summary: summary, Text: text})
	if err != nil {
		return nil, fmt.Errorf("generating response: %w", err)
	}

	err = o.sessions.AddMessage(sessionID, session.Message{
		Role:    session.RoleAssistant,
		Content: resp.ResponseText,
		Metadata: map[string]any{
			MetaConfidence:         resp.ConfidenceScore,
			MetaSources:            slices.Clone(resp.RetrievedSources),
			MetaSuggestedActions:   slices.Clone(resp.SuggestedActions),
			MetaRequiresEscalation: resp.RequiresEscalation,
			MetaTroubleshooting:    resp.Troubleshooting,
		},
	})
	if err != nil {
		return nil, err
	}
	o.publish(Event{Type: EventReply, SessionID: sessionID, Turn: sess.TurnCount, Text: resp.ResponseText})

	result := &TurnResult{Session: sess, Response: resp}
	o.checkEscalation(ctx, result)

	if latest, err := o.sessions.GetSession(sessionID); err == nil {
		result.Session = latest
	}

	o.logger.Debug("turn processed",
		"session_id", sessionID,
		"turn", sess.TurnCount,
		"confidence", resp.ConfidenceScore,
		"requires_escalation", resp.RequiresEscalation)
	return result, nil
}

// checkEscalation applies the turn limit, then the escalation-hint threshold.
func (o *Orchestrator) checkEscalation(ctx context.Context, result *TurnResult) {
	sess := result.Session

	if sess.TurnCount >= o.maxTurns {
		result.MaxTurnsReached = true
		o.logger.Info("conversation reached max turns", "session_id", sess.ID, "turns", sess.TurnCount)
		o.publish(Event{Type: EventMaxTurnsReached, SessionID: sess.ID, Turn: sess.TurnCount})
		return
	}

	if sess.RequiresEscalation || !result.Response.RequiresEscalation {
		return
	}
	if o.EscalationSignals(sess.ID) < o.threshold {
		return
	}

	ticket, err := o.escalate(ctx, sess.ID, sess.TurnCount)
	if err != nil {
		o.logger.Warn("automatic escalation failed", "session_id", sess.ID, "error", err)
		return
	}
	result.Ticket = &ticket
}

// EscalationSignals counts the replies in which the generator asked for a human.
func (o *Orchestrator) EscalationSignals(sessionID string) int {
	n := 0
	for _, m := range o.sessions.GetHistory(sessionID) {
		if m.Role != session.RoleAssistant {
			continue
		}
		if hint, _ := m.Metadata[MetaRequiresEscalation].(bool); hint {
			n++
		}
	}
	return n
}

// recordPreviousActions turns the last reply's troubleshooting steps into
// attempted steps. Requests for more detail are not steps.
func (o *Orchestrator) recordPreviousActions(sessionID string) {
	recent := o.sessions.GetRecentMessages(sessionID, 1)
	if len(recent) == 0 || recent[0].Role != session.RoleAssistant {
		return
	}
	if steps, _ := recent[0].Metadata[MetaTroubleshooting].(bool); !steps {
		return
	}
	actions, _ := recent[0].Metadata[MetaSuggestedActions].([]string)
	for _, action := range actions {
		if err := o.sessions.AddAttemptedStep(sessionID, action); err != nil {
			o.logger.Warn("failed to record attempted step", "session_id", sessionID, "error", err)
			return
		}
	}
}

// Escalate hands the session to a human at the customer's request.
func (o *Orchestrator) Escalate(ctx context.Context, sessionID string) (escalation.Ticket, error) {
	sess, err := o.sessions.GetSession(sessionID)
	if err != nil {
		return escalation.Ticket{}, err
	}
	o.recordPreviousActions(sessionID)
	return o.escalate(ctx, sessionID, sess.TurnCount)
}

func (o *Orchestrator) escalate(ctx context.Context, sessionID string, turn int) (escalation.Ticket, error) {
	ticket, err := o.escalator.Initiate(ctx, sessionID, "")
	if err != nil {
		return escalation.Ticket{}, err
	}
	o.publish(Event{Type: EventEscalated, SessionID: sessionID, Turn: turn, TicketID: ticket.ID})
	return ticket, nil
}

// Status reports on a live or recently ended session.
func (o *Orchestrator) Status(sessionID string) (session.Analytics, error) {
	a := o.sessions.GetSessionAnalytics(sessionID)
	if a.StartTime.IsZero() {
		return a, session.ErrNotFound
	}
	return a, nil
}

// End closes the session and returns its final analytics. The history stays
// readable for the store's retention window.
func (o *Orchestrator) End(sessionID string) (session.Analytics, error) {
	sess, err := o.sessions.GetSession(sessionID)
	if err != nil {
		return session.Analytics{SessionID: sessionID}, err
	}
	a := o.sessions.GetSessionAnalytics(sessionID)
	o.sessions.EndSession(sessionID)
	o.publish(Event{Type: EventEnded, SessionID: sessionID, Turn: sess.TurnCount})
	return a, nil
}

func (o *Orchestrator) publish(e Event) {
	if o.events != nil {
		o.events.Publish(e)
	}
}
