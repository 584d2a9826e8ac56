// ABOUTME: Tests for the escalation policy rules
// ABOUTME: Verifies first-match-wins ordering for reasons, priorities, and response times

package escalation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/2389/helpdesk/internal/session"
)

func TestDetermineReason(t *testing.T) {
	tests := []struct {
		name string
		sess session.Session
		want string
	}{
		{
			name: "long conversation wins over everything",
			sess: session.Session{TurnCount: 21, EscalationCount: 2, AttemptedSteps: make([]string, 8)},
			want: ReasonExtendedConversation,
		},
		{
			name: "exactly twenty turns is not extended",
			sess: session.Session{TurnCount: 20},
			want: ReasonCustomerRequest,
		},
		{
			name: "previous escalation",
			sess: session.Session{TurnCount: 5, EscalationCount: 1, AttemptedSteps: make([]string, 8)},
			want: ReasonRepeatedEscalation,
		},
		{
			name: "many attempted steps",
			sess: session.Session{AttemptedSteps: []string{"a", "b", "c", "d", "e", "f"}},
			want: ReasonFailedTroubleshoot,
		},
		{
			name: "five steps is not enough",
			sess: session.Session{AttemptedSteps: []string{"a", "b", "c", "d", "e"}},
			want: ReasonCustomerRequest,
		},
		{
			name: "default",
			sess: session.Session{},
			want: ReasonCustomerRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineReason(tt.sess))
		})
	}
}

func TestDeterminePriority(t *testing.T) {
	tests := []struct {
		issue string
		turns int
		want  Priority
	}{
		{issue: "urgent issue", want: PriorityHigh},
		{issue: "slow performance", want: PriorityMedium},
		{issue: "general question", want: PriorityLow},
		{issue: "critical system down", want: PriorityHigh},
		{issue: "Server DOWN since noon", want: PriorityHigh},
		{issue: "error when saving, also slow", want: PriorityHigh},
		{issue: "general question", turns: 16, want: PriorityMedium},
		{issue: "general question", turns: 15, want: PriorityLow},
		{issue: "", want: PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.issue, func(t *testing.T) {
			sess := session.Session{CurrentIssue: tt.issue, TurnCount: tt.turns}
			assert.Equal(t, tt.want, DeterminePriority(sess))
		})
	}
}

func TestDeterminePriority_Deterministic(t *testing.T) {
	sess := session.Session{CurrentIssue: "critical system down"}
	for i := 0; i < 100; i++ {
		assert.Equal(t, PriorityHigh, DeterminePriority(sess))
	}
}

func TestEstimatedResponseTime(t *testing.T) {
	assert.Equal(t, 15*time.Minute, EstimatedResponseTime(PriorityHigh))
	assert.Equal(t, 2*time.Hour, EstimatedResponseTime(PriorityMedium))
	assert.Equal(t, 8*time.Hour, EstimatedResponseTime(PriorityLow))
	assert.Equal(t, 4*time.Hour, EstimatedResponseTime(PriorityCritical))
	assert.Equal(t, 4*time.Hour, EstimatedResponseTime(Priority("bogus")))
}
