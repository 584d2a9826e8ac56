// ABOUTME: Console notifier that prints a colorized escalation alert
// ABOUTME: Writes to any io.Writer so the CLI and tests share one implementation

package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/helpdesk/internal/escalation"
)

// Console prints new tickets for a human watching the terminal.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Notify writes the alert. Writes are serialized so concurrent alerts don't interleave.
func (c *Console) Notify(ctx context.Context, t escalation.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf strings.Builder
	red := color.New(color.FgRed, color.Bold)
	gray := color.New(color.FgHiBlack)

	buf.WriteString("\n")
	red.Fprint(&buf, "  ▲ ESCALATION ")
	fmt.Fprintf(&buf, "%s\n", t.ID)
	fmt.Fprintf(&buf, "    Priority: %s\n", priorityColor(t.Priority).Sprint(strings.ToUpper(string(t.Priority))))
	fmt.Fprintf(&buf, "    Reason:   %s\n", t.Reason)
	if t.CustomerIssue != "" {
		fmt.Fprintf(&buf, "    Issue:    %s\n", t.CustomerIssue)
	}
	fmt.Fprintf(&buf, "    Response: within %s\n", t.EstimatedResponseTime)
	gray.Fprintf(&buf, "    session %s\n", t.SessionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.w, buf.String())
	return err
}

func priorityColor(p escalation.Priority) *color.Color {
	switch p {
	case escalation.PriorityCritical, escalation.PriorityHigh:
		return color.New(color.FgRed)
	case escalation.PriorityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
