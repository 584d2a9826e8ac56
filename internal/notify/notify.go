// ABOUTME: Notifier interface and concurrent fan-out over several sinks
// ABOUTME: Fanout bounds delivery with a deadline and joins per-sink errors

package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/helpdesk/internal/escalation"
)

// Notifier delivers a ticket somewhere.
type Notifier interface {
	Notify(ctx context.Context, t escalation.Ticket) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, t escalation.Ticket) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, t escalation.Ticket) error {
	return f(ctx, t)
}

// Fanout delivers each ticket to every sink concurrently.
type Fanout struct {
	sinks   []Notifier
	timeout time.Duration
	logger  *slog.Logger
}

// NewFanout creates a Fanout. A zero timeout leaves the caller's deadline alone.
func NewFanout(logger *slog.Logger, timeout time.Duration, sinks ...Notifier) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{
		sinks:   sinks,
		timeout: timeout,
		logger:  logger.With("component", "notify"),
	}
}

// Notify runs every sink and waits for all of them. Sinks that fail or panic
// are logged and their errors joined; the others still run.
func (f *Fanout) Notify(ctx context.Context, t escalation.Ticket) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	errs := make([]error, len(f.sinks))
	var g errgroup.Group
	for i, sink := range f.sinks {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("sink %d panicked: %v", i, r)
				}
			}()
			errs[i] = sink.Notify(ctx, t)
			return nil
		})
	}
	_ = g.Wait() // errors captured per sink

	for i, err := range errs {
		if err != nil {
			f.logger.Error("notification failed",
				"ticket_id", t.ID,
				"sink", fmt.Sprintf("%T", f.sinks[i]),
				"error", err)
		}
	}
	return errors.Join(errs...)
}
