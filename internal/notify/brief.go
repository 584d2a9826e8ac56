// ABOUTME: Markdown hand-off brief for human agents, rendered to HTML with goldmark

package notify

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/2389/helpdesk/internal/escalation"
)

// Brief formats a ticket as Markdown for a human agent.
func Brief(t escalation.Ticket) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Escalation %s\n\n", t.ID)
	fmt.Fprintf(&b, "- **Priority:** %s\n", t.Priority)
	fmt.Fprintf(&b, "- **Reason:** %s\n", t.Reason)
	fmt.Fprintf(&b, "- **Expected response:** within %s\n", t.EstimatedResponseTime)
	fmt.Fprintf(&b, "- **Session:** `%s` (%d messages, %s)\n",
		t.SessionID, t.Summary.MessageCount, t.Summary.Duration.Round(time.Second))

	if t.CustomerIssue != "" {
		fmt.Fprintf(&b, "\n## Issue\n\n%s\n", quote(t.CustomerIssue))
	}

	if len(t.Summary.AttemptedSteps) > 0 {
		b.WriteString("\n## Already tried\n\n")
		for _, step := range t.Summary.AttemptedSteps {
			fmt.Fprintf(&b, "- %s\n", step)
		}
	}

	if len(t.Summary.KeyUserMessages) > 0 {
		b.WriteString("\n## Recent customer messages\n\n")
		for i, msg := range t.Summary.KeyUserMessages {
			fmt.Fprintf(&b, "%d. %s\n", i+1, strings.ReplaceAll(msg, "\n", " "))
		}
	}

	return b.String()
}

// RenderBrief converts a Markdown brief to HTML. Raw HTML in customer text is dropped.
func RenderBrief(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering brief: %w", err)
	}
	return buf.String(), nil
}

func quote(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}
