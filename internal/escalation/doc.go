// Package escalation decides when and how urgently a support session is
// handed to a human, and tracks the resulting tickets.
//
// # Policy
//
// DetermineReason, DeterminePriority and EstimatedResponseTime are pure
// functions of a session snapshot. Rules are evaluated in order and the
// first match wins.
//
// # Engine
//
// The Engine owns the ticket queue and is the only code that mutates
// tickets:
//
//	engine := escalation.NewEngine(sessions,
//	    escalation.WithNotifier(notifier),
//	    escalation.WithRecorder(archive),
//	)
//
//	ticket, err := engine.Initiate(ctx, sessionID, "")
//	engine.Assign(ctx, ticket.ID, "agent-7", "Dana")
//	engine.UpdateStatus(ctx, ticket.ID, escalation.StatusResolved, "replaced PSU")
//
// # Ticket lifecycle
//
//	open ──► in_progress ──► resolved
//	  │           │
//	  └───────────┴────────► cancelled
//
// open may also move straight to resolved. Nothing leaves resolved or
// cancelled; such attempts return ErrInvalidTransition.
//
// # Notification
//
// Notifier and Recorder calls happen after the ticket is committed to the
// queue. They are bounded by the notify timeout and their failures are only
// logged, so delivery problems never undo or block ticket creation.
package escalation
