// ABOUTME: In-memory session registry with per-session locking and deferred purge.
// ABOUTME: Ended sessions stay readable for a retention window before their history is dropped.

package session

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/helpdesk/internal/retention"
)

// DefaultRetention is how long an ended session stays readable.
const DefaultRetention = 30 * time.Minute

// PurgeHook receives the final snapshot and history of a session when its
// retention window passes. It runs on the sweeper goroutine or on the caller
// that noticed the expiry, never while a Store lock is held.
type PurgeHook func(s Session, history []Message)

// entry is one registry slot. mu guards session and history.
type entry struct {
	mu      sync.Mutex
	session Session
	history []Message
}

func (e *entry) snapshot() (Session, []Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.clone(), cloneMessages(e.history)
}

func cloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = m.clone()
	}
	return out
}

// Store is the authoritative registry of sessions and their histories.
type Store struct {
	mu       sync.RWMutex
	active   map[string]*entry
	retained map[string]*entry

	retention     time.Duration
	sweepInterval time.Duration
	maxRetained   int
	now           func() time.Time
	purgeHook     PurgeHook
	logger        *slog.Logger
	purges        *retention.Scheduler
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRetention sets how long ended sessions stay readable.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSweepInterval sets how often expired sessions are purged in the background.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) { s.sweepInterval = d }
}

// WithMaxRetained bounds how many ended sessions are kept at once.
func WithMaxRetained(n int) Option {
	return func(s *Store) { s.maxRetained = n }
}

// WithPurgeHook registers a callback run when a retained session is purged.
func WithPurgeHook(hook PurgeHook) Option {
	return func(s *Store) { s.purgeHook = hook }
}

// NewStore creates an empty registry. Call Close to stop the purge sweeper.
func NewStore(opts ...Option) *Store {
	s := &Store{
		active:    make(map[string]*entry),
		retained:  make(map[string]*entry),
		retention: DefaultRetention,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session")
	s.purges = retention.New(retention.Options{
		Interval:   s.sweepInterval,
		MaxPending: s.maxRetained,
		Now:        s.now,
		OnExpire:   s.purge,
	})
	return s
}

// CreateSession registers a new session with default fields.
func (s *Store) CreateSession() Session {
	e := &entry{
		session: Session{
			ID:        uuid.New().String(),
			StartTime: s.now(),
			Metadata:  make(map[string]any),
		},
	}

	s.mu.Lock()
	s.active[e.session.ID] = e
	s.mu.Unlock()

	s.logger.Info("session created", "session_id", e.session.ID)
	return e.session.clone()
}

// GetSession returns a snapshot of an active session.
func (s *Store) GetSession(id string) (Session, error) {
	s.mu.RLock()
	e, ok := s.active[id]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	sess, _ := e.snapshot()
	return sess, nil
}

// AddMessage appends a message to an active session's history. Missing IDs
// and timestamps are filled in. The turn counter is not touched.
func (s *Store) AddMessage(id string, msg Message) error {
	e, ok := s.activeEntry(id)
	if !ok {
		return ErrNotFound
	}
	msg = s.prepare(msg)

	e.mu.Lock()
	e.history = append(e.history, msg)
	e.mu.Unlock()

	s.logger.Debug("message added",
		"session_id", id,
		"role", msg.Role,
		"message_id", msg.ID)
	return nil
}

// RecordTurn appends a user message and advances the turn counter in one
// step. The first turn's text becomes the session's current issue.
func (s *Store) RecordTurn(id, text string) (Session, error) {
	e, ok := s.activeEntry(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	msg := s.prepare(Message{Role: RoleUser, Content: text})

	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = append(e.history, msg)
	e.session.TurnCount++
	if e.session.TurnCount == 1 {
		e.session.CurrentIssue = text
	}

	s.logger.Debug("turn recorded", "session_id", id, "turn", e.session.TurnCount)
	return e.session.clone(), nil
}

// GetHistory returns a copy of the session's history, or nil if unknown.
func (s *Store) GetHistory(id string) []Message {
	e, ok := s.lookup(id)
	if !ok {
		return nil
	}
	_, history := e.snapshot()
	return history
}

// GetRecentMessages returns the last min(count, len) messages in chronological order.
func (s *Store) GetRecentMessages(id string, count int) []Message {
	if count <= 0 {
		return nil
	}
	e, ok := s.lookup(id)
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := max(len(e.history)-count, 0)
	return cloneMessages(e.history[start:])
}

// AddAttemptedStep records a troubleshooting step once.
func (s *Store) AddAttemptedStep(id, step string) error {
	e, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if slices.Contains(e.session.AttemptedSteps, step) {
		return nil
	}
	e.session.AttemptedSteps = append(e.session.AttemptedSteps, step)
	s.logger.Debug("attempted step added", "session_id", id, "step", step)
	return nil
}

// MarkForEscalation flags the session, bumps its escalation counter and
// records the reason and time in metadata.
func (s *Store) MarkForEscalation(id, reason string) error {
	e, ok := s.lookup(id)
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	s.markLocked(e, reason)
	e.mu.Unlock()

	s.logger.Info("session marked for escalation", "session_id", id, "reason", reason)
	return nil
}

// Handoff marks the session for escalation and builds its summary under a
// single lock, so no reader sees the mark without the matching summary.
// reasonFn sees the session as it was before marking and may be nil when
// reason is already known; an empty result falls back to DefaultEscalationReason.
func (s *Store) Handoff(id string, reasonFn func(Session) string) (Session, Summary, error) {
	e, ok := s.lookup(id)
	if !ok {
		return Session{}, Summary{}, ErrNotFound
	}

	e.mu.Lock()
	reason := DefaultEscalationReason
	if reasonFn != nil {
		if r := reasonFn(e.session.clone()); r != "" {
			reason = r
		}
	}
	s.markLocked(e, reason)
	sess := e.session.clone()
	summary := buildSummary(sess, e.history, s.now())
	e.mu.Unlock()

	s.logger.Info("session handed off", "session_id", id, "reason", reason)
	return sess, summary, nil
}

func (s *Store) markLocked(e *entry, reason string) {
	e.session.RequiresEscalation = true
	e.session.EscalationCount++
	if e.session.Metadata == nil {
		e.session.Metadata = make(map[string]any)
	}
	e.session.Metadata[MetaEscalationReason] = reason
	e.session.Metadata[MetaEscalationTimestamp] = s.now()
}

// EndSession removes the session from the active registry. Its history stays
// readable for the retention window, then it is purged.
func (s *Store) EndSession(id string) {
	s.mu.Lock()
	e, ok := s.active[id]
	if ok {
		delete(s.active, id)
		s.retained[id] = e
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	e.mu.Lock()
	duration := s.now().Sub(e.session.StartTime)
	e.mu.Unlock()

	if !s.purges.Schedule(id, s.retention) {
		s.logger.Warn("purge scheduler closed, history retained until exit", "session_id", id)
	}
	s.logger.Info("session ended",
		"session_id", id,
		"duration", duration,
		"retention", s.retention)
}

// ReopenSession moves a retained session back to the active registry and
// cancels its pending purge.
func (s *Store) ReopenSession(id string) (Session, error) {
	if s.purges.Reap(id) {
		return Session{}, ErrNotFound
	}

	s.mu.Lock()
	e, ok := s.retained[id]
	if ok {
		delete(s.retained, id)
		s.active[id] = e
	}
	s.mu.Unlock()

	if !ok {
		if sess, err := s.GetSession(id); err == nil {
			return sess, nil
		}
		return Session{}, ErrNotFound
	}

	s.purges.Cancel(id)
	s.logger.Info("session reopened", "session_id", id)
	sess, _ := e.snapshot()
	return sess, nil
}

// GetSessionAnalytics computes counts over the current history. Unknown or
// purged sessions yield a zero-valued record carrying only the ID.
func (s *Store) GetSessionAnalytics(id string) Analytics {
	e, ok := s.lookup(id)
	if !ok {
		return Analytics{SessionID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return buildAnalytics(e.session, e.history, s.now())
}

// CreateEscalationSummary builds the hand-off summary for a session.
func (s *Store) CreateEscalationSummary(id string) (Summary, error) {
	e, ok := s.lookup(id)
	if !ok {
		return Summary{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return buildSummary(e.session.clone(), e.history, s.now()), nil
}

// ListActiveSessionIDs returns the IDs of all active sessions, sorted.
func (s *Store) ListActiveSessionIDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// RetainedCount returns how many ended sessions are waiting to be purged.
func (s *Store) RetainedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.retained)
}

// Drain purges every retained session now, running the purge hook for each,
// and returns how many were purged. Used on shutdown so ended sessions are
// archived before the process exits.
func (s *Store) Drain() int {
	s.mu.RLock()
	ids := make([]string, 0, len(s.retained))
	for id := range s.retained {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)

	n := 0
	for _, id := range ids {
		s.purges.Cancel(id)
		if s.purgeEntry(id) {
			n++
		}
	}
	return n
}

// Close abandons every pending purge and stops the sweeper.
func (s *Store) Close() {
	s.purges.Close()
}

// activeEntry looks up an active session only.
func (s *Store) activeEntry(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.active[id]
	return e, ok
}

// lookup finds an active or retained session. A retained hit re-arms its
// retention window; an expired one is purged on the spot.
func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.active[id]
	if ok {
		s.mu.RUnlock()
		return e, true
	}
	e, ok = s.retained[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if s.purges.Reap(id) {
		return nil, false
	}
	s.purges.Schedule(id, s.retention)

	// A purge or reopen that landed since the check above must not leave
	// a deadline behind. The read itself still sees the entry it found.
	s.mu.RLock()
	_, still := s.retained[id]
	s.mu.RUnlock()
	if !still {
		s.purges.Cancel(id)
	}
	return e, true
}

// purge drops a retained session. Called by the scheduler.
func (s *Store) purge(id string) {
	s.purgeEntry(id)
}

func (s *Store) purgeEntry(id string) bool {
	s.mu.Lock()
	e, ok := s.retained[id]
	if ok {
		delete(s.retained, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.purges.Cancel(id)

	sess, history := e.snapshot()
	s.logger.Info("session history purged", "session_id", id, "messages", len(history))
	if s.purgeHook != nil {
		s.purgeHook(sess, history)
	}
	return true
}

// prepare fills in a message's ID, timestamp and metadata map.
func (s *Store) prepare(msg Message) Message {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	if msg.Metadata == nil {
		msg.Metadata = make(map[string]any)
	} else {
		msg = msg.clone()
	}
	return msg
}
