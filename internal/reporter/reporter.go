// ABOUTME: Cron-scheduled reporter that logs queue statistics and conversation activity
// ABOUTME: Activity counts come from conversation events and reset after each report

package reporter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/2389/helpdesk/internal/conversation"
	"github.com/2389/helpdesk/internal/escalation"
)

// StatsSource provides queue statistics.
type StatsSource interface {
	Statistics() escalation.Statistics
}

// SessionCounter provides session registry sizes.
type SessionCounter interface {
	ListActiveSessionIDs() []string
	RetainedCount() int
}

// Report is one logged snapshot.
type Report struct {
	Queue            escalation.Statistics
	ActiveSessions   int
	RetainedSessions int

	// Activity since the previous report
	Turns       int
	Escalations int
	Ended       int
}

// Reporter periodically logs a Report.
type Reporter struct {
	mu       sync.Mutex
	cron     *cron.Cron
	entries  []cron.EntryID
	stats    StatsSource
	sessions SessionCounter
	activity Report
	logger   *slog.Logger
}

// New creates a Reporter. sessions may be nil.
func New(stats StatsSource, sessions SessionCounter, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		cron:     cron.New(),
		stats:    stats,
		sessions: sessions,
		logger:   logger.With("component", "reporter"),
	}
}

// Schedule registers a report at the given cron spec, such as "@every 5m"
// or a standard five-field expression.
func (r *Reporter) Schedule(spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.cron.AddFunc(spec, func() { r.Report() })
	if err != nil {
		return fmt.Errorf("reporter: invalid schedule %q: %w", spec, err)
	}
	r.entries = append(r.entries, id)
	r.logger.Info("report scheduled", "schedule", spec)
	return nil
}

// JobCount returns the number of scheduled reports.
func (r *Reporter) JobCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Start runs the scheduler. Blocks until ctx is cancelled, then waits for a
// running report to finish.
func (r *Reporter) Start(ctx context.Context) error {
	r.cron.Start()
	r.logger.Debug("reporter started")

	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.logger.Debug("reporter stopped")
	return ctx.Err()
}

// Observe counts conversation activity from events until the channel closes
// or ctx is done. Events already buffered when ctx ends are still counted.
func (r *Reporter) Observe(ctx context.Context, events <-chan conversation.Event) {
	for {
		select {
		case <-ctx.Done():
			r.drain(events)
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			r.record(e)
		}
	}
}

func (r *Reporter) drain(events <-chan conversation.Event) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			r.record(e)
		default:
			return
		}
	}
}

func (r *Reporter) record(e conversation.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Type {
	case conversation.EventTurn:
		r.activity.Turns++
	case conversation.EventEscalated:
		r.activity.Escalations++
	case conversation.EventEnded:
		r.activity.Ended++
	}
}

// Report logs and returns the current snapshot, resetting activity counts.
func (r *Reporter) Report() Report {
	r.mu.Lock()
	rep := r.activity
	r.activity = Report{}
	r.mu.Unlock()

	rep.Queue = r.stats.Statistics()
	if r.sessions != nil {
		rep.ActiveSessions = len(r.sessions.ListActiveSessionIDs())
		rep.RetainedSessions = r.sessions.RetainedCount()
	}

	r.logger.Info("helpdesk report",
		"tickets_total", rep.Queue.TotalTickets,
		"tickets_open", rep.Queue.OpenTickets,
		"tickets_in_progress", rep.Queue.InProgressTickets,
		"tickets_resolved", rep.Queue.ResolvedTickets,
		"tickets_today", rep.Queue.TodayTickets,
		"high_priority_open", rep.Queue.HighPriorityTickets,
		"avg_resolution", rep.Queue.AverageResolutionTime,
		"sessions_active", rep.ActiveSessions,
		"sessions_retained", rep.RetainedSessions,
		"turns", rep.Turns,
		"escalations", rep.Escalations,
		"sessions_ended", rep.Ended)
	return rep
}
