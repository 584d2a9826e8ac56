// ABOUTME: Response generation boundary between the orchestrator and an answering agent
// ABOUTME: Defines Generator, Request and Response

package responder

import (
	"context"

	"github.com/2389/helpdesk/internal/session"
)

// Request is everything a generator sees for one user turn.
type Request struct {
	Session session.Session // snapshot after the turn was recorded
	Summary session.Summary
	Text    string
}

// Response is a generated reply.
type Response struct {
	ResponseText       string
	SuggestedActions   []string
	Troubleshooting    bool // SuggestedActions are steps to try, not questions
	ConfidenceScore    float64
	RequiresEscalation bool // the generator thinks a human should take over
	RetrievedSources   []string
}

// Generator produces replies to user turns.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
