// ABOUTME: Keyword generator that answers common support topics from canned playbooks
// ABOUTME: Suggests escalation once a conversation outlasts the configured threshold

package responder

import (
	"context"
	"slices"
	"strings"
	"time"
)

// DefaultSources are cited by every Keyword response.
var DefaultSources = []string{
	"Tech Support Knowledge Base - Common Issues",
	"Troubleshooting Guide v2.1",
	"FAQ: User Account Problems",
}

// playbook is a canned answer for a family of keywords.
type playbook struct {
	keywords   []string
	text       string
	actions    []string
	confidence float64
}

var playbooks = []playbook{
	{
		keywords: []string{"password", "login"},
		text:     "I can help you with password and login issues. Let me suggest some common troubleshooting steps.",
		actions: []string{
			"Try resetting your password using the 'Forgot Password' link",
			"Clear your browser cache and cookies",
			"Try logging in from an incognito/private browsing window",
			"Check if Caps Lock is enabled",
		},
		confidence: 0.85,
	},
	{
		keywords: []string{"slow", "performance"},
		text:     "I understand you're experiencing performance issues. Let's try some optimization steps.",
		actions: []string{
			"Restart your device to clear temporary files",
			"Close unnecessary programs and browser tabs",
			"Check available disk space (should have at least 15% free)",
			"Run a disk cleanup utility",
		},
		confidence: 0.80,
	},
	{
		keywords: []string{"internet", "connection", "wifi"},
		text:     "Network connectivity issues can be frustrating. Let's diagnose the problem step by step.",
		actions: []string{
			"Check if other devices can connect to the same network",
			"Restart your modem and router (unplug for 30 seconds)",
			"Forget and reconnect to the WiFi network",
			"Run Windows Network Troubleshooter",
		},
		confidence: 0.90,
	},
}

const (
	escalationText = "I notice we've been working on this issue for a while. " +
		"Would you like me to escalate this to a specialist who can provide more detailed assistance?"
	escalationConfidence = 0.70

	fallbackText = "I understand your concern. Could you provide more specific details about the issue you're experiencing? " +
		"For example, when did it start, what error messages you see, and what steps you've already tried?"
	fallbackConfidence = 0.60
)

var fallbackActions = []string{
	"Describe any error messages you're seeing",
	"Mention when the problem first started",
	"List any troubleshooting steps you've already attempted",
}

// Keyword matches the user's text against canned playbooks. Once the
// session's turn count exceeds Threshold, unmatched turns suggest escalation.
type Keyword struct {
	Threshold int
	Delay     time.Duration // simulated thinking time
}

// NewKeyword creates a Keyword generator.
func NewKeyword(threshold int) *Keyword {
	return &Keyword{Threshold: threshold}
}

// Generate picks the first matching playbook, then the escalation
// suggestion, then a request for more detail.
func (k *Keyword) Generate(ctx context.Context, req Request) (*Response, error) {
	if k.Delay > 0 {
		timer := time.NewTimer(k.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &Response{RetrievedSources: slices.Clone(DefaultSources)}
	text := strings.ToLower(req.Text)

	for _, pb := range playbooks {
		if containsAny(text, pb.keywords) {
			resp.ResponseText = pb.text
			resp.SuggestedActions = slices.Clone(pb.actions)
			resp.Troubleshooting = true
			resp.ConfidenceScore = pb.confidence
			return resp, nil
		}
	}

	if req.Session.TurnCount > k.Threshold {
		resp.ResponseText = escalationText
		resp.RequiresEscalation = true
		resp.ConfidenceScore = escalationConfidence
		return resp, nil
	}

	resp.ResponseText = fallbackText
	resp.SuggestedActions = slices.Clone(fallbackActions)
	resp.ConfidenceScore = fallbackConfidence
	return resp, nil
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

var _ Generator = (*Keyword)(nil)
