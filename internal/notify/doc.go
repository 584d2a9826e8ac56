// Package notify delivers escalation tickets to the people and systems that
// act on them.
//
// # Sinks
//
// Every sink implements Notifier:
//
//   - Console: colorized alert written to an io.Writer
//   - Log: one structured slog record per ticket
//   - Webhook: JSON POST carrying a Markdown brief and its HTML rendering
//   - Archive: saves ticket snapshots and session transcripts to a store.Store
//
// # Fan-out
//
// Fanout runs several sinks concurrently under one deadline. A failing or
// panicking sink does not stop the others; failures are logged and returned
// joined:
//
//	n := notify.NewFanout(logger, 5*time.Second,
//		notify.NewConsole(os.Stdout),
//		notify.NewLog(logger),
//	)
//	engine := escalation.NewEngine(sessions, escalation.WithNotifier(n))
//
// Archive also implements escalation.Recorder so the engine can save a
// snapshot after every ticket change, and provides a session.PurgeHook that
// archives a transcript before its history is dropped.
package notify
