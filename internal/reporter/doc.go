// Package reporter logs a periodic snapshot of the helpdesk: ticket queue
// statistics, session registry sizes, and conversation activity since the
// previous report.
//
//	r := reporter.New(engine, sessions, logger)
//	if err := r.Schedule("@every 5m"); err != nil { ... }
//	events, _ := broadcaster.Subscribe(ctx, conversation.AllSessions)
//	go r.Observe(ctx, events)
//	go r.Start(ctx)
//
// Schedules use robfig/cron syntax: five-field expressions or descriptors
// such as @hourly and @every 1m.
package reporter
