// ABOUTME: Escalation policy: reason, priority and response-time rules
// ABOUTME: Pure functions over a session snapshot; first matching rule wins

package escalation

import (
	"strings"
	"time"

	"github.com/2389/helpdesk/internal/session"
)

// Escalation reasons produced by DetermineReason.
const (
	ReasonExtendedConversation = "Extended conversation without resolution"
	ReasonRepeatedEscalation   = "Multiple escalation attempts"
	ReasonFailedTroubleshoot   = "Multiple troubleshooting attempts failed"
	ReasonCustomerRequest      = "Customer requested specialist assistance"
)

var (
	highPriorityKeywords   = []string{"urgent", "critical", "down", "error"}
	mediumPriorityKeywords = []string{"slow", "performance"}
)

// DetermineReason explains why a session is being escalated.
func DetermineReason(s session.Session) string {
	switch {
	case s.TurnCount > 20:
		return ReasonExtendedConversation
	case s.EscalationCount > 0:
		return ReasonRepeatedEscalation
	case len(s.AttemptedSteps) > 5:
		return ReasonFailedTroubleshoot
	default:
		return ReasonCustomerRequest
	}
}

// DeterminePriority ranks a session by its issue text and length.
// PriorityCritical is never returned.
func DeterminePriority(s session.Session) Priority {
	issue := strings.ToLower(s.CurrentIssue)

	if containsAny(issue, highPriorityKeywords) {
		return PriorityHigh
	}
	if containsAny(issue, mediumPriorityKeywords) || s.TurnCount > 15 {
		return PriorityMedium
	}
	return PriorityLow
}

// EstimatedResponseTime is the target time to first human response.
func EstimatedResponseTime(p Priority) time.Duration {
	switch p {
	case PriorityHigh:
		return 15 * time.Minute
	case PriorityMedium:
		return 2 * time.Hour
	case PriorityLow:
		return 8 * time.Hour
	default:
		return 4 * time.Hour
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
