// ABOUTME: Aggregate statistics over the escalation ticket queue

package escalation

import "time"

// Statistics summarizes the ticket queue.
type Statistics struct {
	TotalTickets          int
	OpenTickets           int
	InProgressTickets     int
	ResolvedTickets       int
	CancelledTickets      int
	TodayTickets          int
	HighPriorityTickets   int // open tickets with high priority
	AverageResolutionTime time.Duration
}

// Statistics aggregates over every ticket. "Today" is the process-local
// calendar date; the resolution average covers resolved tickets only.
func (e *Engine) Statistics() Statistics {
	now := e.now().Local()
	year, month, day := now.Date()

	e.mu.RLock()
	defer e.mu.RUnlock()

	var stats Statistics
	var resolvedTotal time.Duration
	for _, t := range e.tickets {
		stats.TotalTickets++

		y, m, d := t.CreatedAt.Local().Date()
		if y == year && m == month && d == day {
			stats.TodayTickets++
		}

		switch t.Status {
		case StatusOpen:
			stats.OpenTickets++
			if t.Priority == PriorityHigh {
				stats.HighPriorityTickets++
			}
		case StatusInProgress:
			stats.InProgressTickets++
		case StatusResolved:
			stats.ResolvedTickets++
			resolvedTotal += t.LastUpdated.Sub(t.CreatedAt)
		case StatusCancelled:
			stats.CancelledTickets++
		}
	}

	if stats.ResolvedTickets > 0 {
		stats.AverageResolutionTime = resolvedTotal / time.Duration(stats.ResolvedTickets)
	}
	return stats
}
