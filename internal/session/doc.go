// Package session is the authoritative registry of support conversations.
//
// # Overview
//
// A Store owns every Session record and its message history. Callers never
// hold a pointer into the registry: every operation takes a session ID and
// every read returns an independent snapshot, so concurrent turns, operator
// actions and deferred purges cannot observe a torn record.
//
//	sessions := session.NewStore(session.WithLogger(logger))
//	defer sessions.Close()
//
//	sess := sessions.CreateSession()
//	sessions.RecordTurn(sess.ID, "my laptop is slow")
//
// # Lifecycle
//
// Sessions live in one of two places:
//
//   - Active: listed by ListActiveSessionIDs and returned by GetSession.
//     Messages can be appended.
//   - Retained: the session has ended but its history is kept for the
//     retention window (30 minutes by default) so an escalation hand-off
//     that races with EndSession can still build a summary.
//
// Reading a retained session re-arms its retention window. ReopenSession
// moves it back to the active registry. When the window passes without a
// read, the session is purged and the optional PurgeHook receives its final
// snapshot and history.
//
// # Errors
//
// Unknown session IDs return ErrNotFound. Read-only history accessors return
// empty results instead.
package session
