// Package store archives escalation tickets and ended conversations in SQLite.
//
// # Role
//
// The in-memory session registry and ticket queue are authoritative while
// the process runs. The archive keeps a best-effort copy so operators can
// inspect tickets and transcripts afterwards (`helpdesk tickets`). Nothing in
// the core reads from it.
//
// # Data Models
//
//   - TicketRecord: latest snapshot of an escalation ticket, upserted on
//     every change. Summary and notes are stored as JSON.
//   - Transcript: the final history of a session, written when its
//     retention window passes.
//
// # Implementations
//
// SQLiteStore uses modernc.org/sqlite (pure Go, no cgo) with WAL mode and
// creates its schema on open:
//
//	s, err := store.NewSQLiteStore("/var/lib/helpdesk/archive.db")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
// MockStore is an in-memory implementation for tests.
//
// # Errors
//
// Lookups of missing rows return ErrNotFound.
package store
