// ABOUTME: Tests for the session registry
// ABOUTME: Covers turn counting, history copies, step tracking, escalation marks, and retention

package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests fast-forward through the retention window.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock.Now), WithSweepInterval(time.Hour)}, opts...)
	s := NewStore(opts...)
	t.Cleanup(s.Close)
	return s, clock
}

func TestStore_CreateSession_Defaults(t *testing.T) {
	s, clock := newTestStore(t)

	sess := s.CreateSession()

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, clock.Now(), sess.StartTime)
	assert.Empty(t, sess.CurrentIssue)
	assert.Zero(t, sess.TurnCount)
	assert.Zero(t, sess.EscalationCount)
	assert.Empty(t, sess.AttemptedSteps)
	assert.False(t, sess.RequiresEscalation)
	assert.NotNil(t, sess.Metadata)
	assert.Equal(t, []string{sess.ID}, s.ListActiveSessionIDs())
}

func TestStore_GetSession_NotFound(t *testing.T) {
	s, _ := newTestStore(t)

	_, err := s.GetSession("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RecordTurn_CountsTurns(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession()

	const turns = 12
	for i := 1; i <= turns; i++ {
		got, err := s.RecordTurn(sess.ID, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		assert.Equal(t, i, got.TurnCount, "turn counter advances by exactly one")
	}

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, turns, got.TurnCount)
	assert.Equal(t, "message 1", got.CurrentIssue, "first turn sets the issue")
	assert.Len(t, s.GetHistory(sess.ID), turns)
}

func TestStore_AddMessage_DoesNotAdvanceTurn(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession()

	require.NoError(t, s.AddMessage(sess.ID, Message{Role: RoleAssistant, Content: "hello"}))

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Zero(t, got.TurnCount)

	history := s.GetHistory(sess.ID)
	require.Len(t, history, 1)
	assert.NotEmpty(t, history[0].ID)
	assert.False(t, history[0].CreatedAt.IsZero())
	assert.NotNil(t, history[0].Metadata)
}

func TestStore_AddMessage_UnknownSession(t *testing.T) {
	s, _ := newTestStore(t)

	err := s.AddMessage("missing", Message{Role: RoleUser, Content: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_AddMessage_EndedSessionRejected(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession()
	s.EndSession(sess.ID)

	err := s.AddMessage(sess.ID, Message{Role: RoleUser, Content: "late"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetHistory_ReturnsCopy(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession()
	require.NoError(t, s.AddMessage(sess.ID, Message{
		Role:     RoleUser,
		Content:  "original",
		Metadata: map[string]any{"k": "v"},
	}))

	history := s.GetHistory(sess.ID)
	history[0].Content = "mutated"
	history[0].Metadata["k"] = "changed"

	fresh := s.GetHistory(sess.ID)
	require.Len(t, fresh, 1)
	assert.Equal(t, "original", fresh[0].Content)
	assert.Equal(t, "v", fresh[0].Metadata["k"])
}

func TestStore_GetHistory_CopiesNestedMetadata(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession()
	actions := []string{"reboot"}
	require.NoError(t, s.AddMessage(sess.ID, Message{
		Role:    RoleAssistant,
		Content: "try this",
		Metadata: map[string]any{
			"suggested_actions": actions,
			"extra":             map[string]any{"tags": []any{"a"}},
		},
	}))

	// The caller's slice was copied on append.
	actions[0] = "changed before read"

	history := s.GetHistory(sess.ID)
	history[0].Metadata["suggested_actions"].([]string)[0] = "MUTATED"
	extra := history[0].Metadata["extra"].(map[string]any)
	extra["tags"].([]any)[0] = "MUTATED"
	extra["new"] = true

	recent := s.GetRecentMessages(sess.ID, 1)
	recent[0].Metadata["suggested_actions"].([]string)[0] = "MUTATED"

	fresh := s.GetHistory(sess.ID)
	assert.Equal(t, []string{"reboot"}, fresh[0].Metadata["suggested_actions"])
	assert.Equal(t, map[string]any{"tags": []any{"a"}}, fresh[0].Metadata["extra"])
}

func TestStore_CreateEscalationSummary_CopiesSessionMetadata(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession()
	require.NoError(t, s.MarkForEscalation(sess.ID, "needs a human"))

	summary, err := s.CreateEscalationSummary(sess.ID)
	require.NoError(t, err)
	summary.SessionMetadata[MetaEscalationReason] = "changed"

	again, err := s.CreateEscalationSummary(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "needs a human", again.EscalationReason)
}

func TestStore_GetHistory_Unknown(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Empty(t, s.GetHistory("missing"))
}

func TestStore_GetRecentMessages(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession()
	for i := 0; i < 7; i++ {
		require.NoError(t, s.AddMessage(sess.ID, Message{Role: RoleUser, Content: fmt.Sprintf("m%d", i)}))
	}

	tests := []struct {
		count int
		want  []string
	}{
		{count: 3, want: []string{"m4", "m5", "m6"}},
		{count: 1, want: []string{"m6"}},
		{count: 7, want: []string{"m0", "m1", "m2", "m3", "m4", "m5", "m6"}},
		{count: 50, want: []string{"m0", "m1", "m2", "m3", "m4", "m5", "m6"}},
		{count: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("count=%d", tt.count), func(t *testing.T) {
			recent := s.GetRecentMessages(sess.ID, tt.count)
			var got []string
			for _, m := range recent {
				got = append(got, m.Content)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("recent messages mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_AddAttemptedStep_Idempotent(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession()

	require.NoError(t, s.AddAttemptedStep(sess.ID, "restart router"))
	require.NoError(t, s.AddAttemptedStep(sess.ID, "restart router"))
	require.NoError(t, s.AddAttemptedStep(sess.ID, "clear cache"))

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"restart router", "clear cache"}, got.AttemptedSteps)
}

func TestStore_AddAttemptedStep_UnknownSession(t *testing.T) {
	s, _ := newTestStore(t)
	assert.ErrorIs(t, s.AddAttemptedStep("missing", "step"), ErrNotFound)
}

func TestStore_MarkForEscalation(t *testing.T) {
	s, clock := newTestStore(t)
	sess := s.CreateSession()

	require.NoError(t, s.MarkForEscalation(sess.ID, "printer on fire"))

	got, err := s.GetSession(sess.ID)
	require.NoError(t, err)
	assert.True(t, got.RequiresEscalation)
	assert.Equal(t, 1, got.EscalationCount)
	assert.Equal(t, "printer on fire", got.Metadata[MetaEscalationReason])
	assert.Equal(t, clock.Now(), got.Metadata[MetaEscalationTimestamp])

	require.NoError(t, s.MarkForEscalation(sess.ID, "still on fire"))
	got, err = s.GetSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.EscalationCount)
	assert.Equal(t, "still on fire", got.Metadata[MetaEscalationReason])
}

func TestStore_CreateEscalationSummary_RoundTrip(t *testing.T) {
	s, clock := newTestStore(t)
	sess := s.CreateSession()

	for i := 1; i <= 7; i++ {
		_, err := s.RecordTurn(sess.ID, fmt.Sprintf("user %d", i))
		require.NoError(t, err)
		require.NoError(t, s.AddMessage(sess.ID, Message{Role: RoleAssistant, Content: fmt.Sprintf("reply %d", i)}))
	}
	require.NoError(t, s.AddAttemptedStep(sess.ID, "reboot"))
	require.NoError(t, s.AddAttemptedStep(sess.ID, "update drivers"))
	require.NoError(t, s.MarkForEscalation(sess.ID, "hardware fault suspected"))
	clock.Advance(10 * time.Minute)

	summary, err := s.CreateEscalationSummary(sess.ID)
	require.NoError(t, err)

	assert.Equal(t, sess.ID, summary.SessionID)
	assert.Equal(t, "user 1", summary.CustomerIssue)
	assert.Equal(t, 14, summary.MessageCount)
	assert.Equal(t, []string{"reboot", "update drivers"}, summary.AttemptedSteps)
	assert.Equal(t, "hardware fault suspected", summary.EscalationReason)
	assert.Equal(t, []string{"user 3", "user 4", "user 5", "user 6", "user 7"}, summary.KeyUserMessages)
	assert.Equal(t, 10*time.Minute, summary.Duration)
	assert.Equal(t, "hardware fault suspected", summary.SessionMetadata[MetaEscalationReason])
}

func TestStore_CreateEscalationSummary_DefaultReason(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession()

	summary, err := s.CreateEscalationSummary(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultEscalationReason, summary.EscalationReason)
	assert.Empty(t, summary.KeyUserMessages)
}

func TestStore_CreateEscalationSummary_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.CreateEscalationSummary("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Handoff(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession()
	_, err := s.RecordTurn(sess.ID, "vpn keeps dropping")
	require.NoError(t, err)

	var seen Session
	got, summary, err := s.Handoff(sess.ID, func(before Session) string {
		seen = before
		return "needs network team"
	})
	require.NoError(t, err)

	assert.Zero(t, seen.EscalationCount, "reason is decided before marking")
	assert.Equal(t, 1, got.EscalationCount)
	assert.True(t, got.RequiresEscalation)
	assert.Equal(t, "needs network team", summary.EscalationReason)
	assert.Equal(t, []string{"vpn keeps dropping"}, summary.KeyUserMessages)
}

func TestStore_Handoff_EmptyReasonFallsBack(t *testing.T) {
	s, _ := newTestStore(t)
	sess := s.CreateSession()

	_, summary, err := s.Handoff(sess.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultEscalationReason, summary.EscalationReason)
}

func TestStore_Handoff_NotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, _, err := s.Handoff("missing", nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_GetSessionAnalytics(t *testing.T) {
	s, clock := newTestStore(t)
	sess := s.CreateSession()

	_, err := s.RecordTurn(sess.ID, "my disk is full")
	require.NoError(t, err)
	require.NoError(t, s.AddMessage(sess.ID, Message{Role: RoleAssistant, Content: "try cleanup"}))
	require.NoError(t, s.AddMessage(sess.ID, Message{Role: RoleSystem, Content: "note"}))
	require.NoError(t, s.AddAttemptedStep(sess.ID, "cleanup"))
	clock.Advance(3 * time.Minute)

	a := s.GetSessionAnalytics(sess.ID)
	assert.Equal(t, sess.ID, a.SessionID)
	assert.Equal(t, 3, a.TotalMessages)
	assert.Equal(t, 1, a.UserMessages)
	assert.Equal(t, 1, a.AssistantMessages)
	assert.Equal(t, 1, a.AttemptedStepsCount)
	assert.Equal(t, 3*time.Minute, a.Duration)
	assert.Equal(t, "my disk is full", a.CurrentIssue)
}

func TestStore_GetSessionAnalytics_Unknown(t *testing.T) {
	s, _ := newTestStore(t)

	a := s.GetSessionAnalytics("gone")
	assert.Equal(t, Analytics{SessionID: "gone"}, a)
}

func TestStore_EndSession_RetentionWindow(t *testing.T) {
	var purged []string
	var purgedHistory int
	s, clock := newTestStore(t, WithPurgeHook(func(sess Session, history []Message) {
		purged = append(purged, sess.ID)
		purgedHistory = len(history)
	}))
	sess := s.CreateSession()
	_, err := s.RecordTurn(sess.ID, "cannot print")
	require.NoError(t, err)

	s.EndSession(sess.ID)

	// Gone from the active listing immediately
	assert.Empty(t, s.ListActiveSessionIDs())
	_, err = s.GetSession(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Still summarizable inside the window
	clock.Advance(20 * time.Minute)
	summary, err := s.CreateEscalationSummary(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "cannot print", summary.CustomerIssue)

	// The read re-armed the window; move past it
	clock.Advance(DefaultRetention + time.Second)
	_, err = s.CreateEscalationSummary(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, s.GetHistory(sess.ID))
	assert.Equal(t, []string{sess.ID}, purged)
	assert.Equal(t, 1, purgedHistory)
	assert.Equal(t, 0, s.RetainedCount())
}

func TestStore_EndSession_SweepPurges(t *testing.T) {
	s, clock := newTestStore(t, WithRetention(5*time.Minute))
	sess := s.CreateSession()
	s.EndSession(sess.ID)
	assert.Equal(t, 1, s.RetainedCount())

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, s.purges.Sweep())
	assert.Equal(t, 0, s.RetainedCount())

	_, err := s.CreateEscalationSummary(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_EndSession_Unknown(t *testing.T) {
	s, _ := newTestStore(t)
	s.EndSession("missing")
	assert.Equal(t, 0, s.RetainedCount())
	assert.Equal(t, 0, s.purges.Len())
}

func TestStore_ReopenSession_CancelsPurge(t *testing.T) {
	s, clock := newTestStore(t)
	sess := s.CreateSession()
	s.EndSession(sess.ID)

	reopened, err := s.ReopenSession(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, reopened.ID)
	assert.Equal(t, []string{sess.ID}, s.ListActiveSessionIDs())
	assert.False(t, s.purges.Pending(sess.ID))

	clock.Advance(2 * DefaultRetention)
	s.purges.Sweep()

	_, err = s.GetSession(sess.ID)
	assert.NoError(t, err, "reopened session survives past the window")
	assert.NoError(t, s.AddMessage(sess.ID, Message{Role: RoleUser, Content: "back again"}))
}

func TestStore_ReopenSession_AfterWindow(t *testing.T) {
	s, clock := newTestStore(t)
	sess := s.CreateSession()
	s.EndSession(sess.ID)

	clock.Advance(DefaultRetention + time.Minute)
	_, err := s.ReopenSession(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_MaxRetained_PurgesOldest(t *testing.T) {
	s, _ := newTestStore(t, WithMaxRetained(2))
	first := s.CreateSession()
	second := s.CreateSession()
	third := s.CreateSession()

	s.EndSession(first.ID)
	s.EndSession(second.ID)
	s.EndSession(third.ID)

	assert.Equal(t, 2, s.RetainedCount())
	_, err := s.CreateEscalationSummary(first.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.CreateEscalationSummary(third.ID)
	assert.NoError(t, err)
}

func TestStore_Drain_PurgesRetainedNow(t *testing.T) {
	var purged []string
	s, _ := newTestStore(t, WithPurgeHook(func(sess Session, history []Message) {
		purged = append(purged, sess.ID)
	}))

	ended := s.CreateSession()
	live := s.CreateSession()
	require.NoError(t, s.AddMessage(ended.ID, Message{Role: RoleUser, Content: "bye"}))
	s.EndSession(ended.ID)

	assert.Equal(t, 1, s.Drain())
	assert.Equal(t, []string{ended.ID}, purged)
	assert.Equal(t, 0, s.RetainedCount())
	assert.Equal(t, 0, s.purges.Len())
	assert.Nil(t, s.GetHistory(ended.ID))

	// Active sessions are untouched
	_, err := s.GetSession(live.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, s.Drain())
}

func TestStore_ReadsRacingDrainLeaveNoDeadlines(t *testing.T) {
	for round := 0; round < 50; round++ {
		s, _ := newTestStore(t)
		var ids []string
		for i := 0; i < 8; i++ {
			sess := s.CreateSession()
			s.EndSession(sess.ID)
			ids = append(ids, sess.ID)
		}

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(2)
			go func() {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					s.GetHistory(id)
				}
			}()
			go func() {
				defer wg.Done()
				_, _ = s.ReopenSession(id)
			}()
		}
		s.Drain()
		wg.Wait()
		s.Drain()

		assert.Zero(t, s.purges.Len(), "round %d", round)
		assert.Zero(t, s.RetainedCount(), "round %d", round)
	}
}

func TestStore_Close_AbandonsPurges(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now), WithSweepInterval(time.Hour))
	sess := s.CreateSession()
	s.EndSession(sess.ID)

	s.Close()
	assert.Equal(t, 0, s.purges.Len())

	// Close is idempotent
	s.Close()
}

func TestStore_ConcurrentTurns(t *testing.T) {
	s, _ := newTestStore(t)

	const numSessions = 20
	const turnsPerSession = 50

	ids := make([]string, numSessions)
	for i := range ids {
		ids[i] = s.CreateSession().ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for w := 0; w < 2; w++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				for j := 0; j < turnsPerSession; j++ {
					_, _ = s.RecordTurn(id, "turn")
					_ = s.AddAttemptedStep(id, fmt.Sprintf("step-%d", j%5))
					_ = s.GetHistory(id)
					_ = s.GetSessionAnalytics(id)
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range ids {
		got, err := s.GetSession(id)
		require.NoError(t, err)
		assert.Equal(t, 2*turnsPerSession, got.TurnCount)
		assert.Len(t, got.AttemptedSteps, 5)
		assert.Len(t, s.GetHistory(id), 2*turnsPerSession)
	}
}
