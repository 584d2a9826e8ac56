// Package conversation runs support conversations turn by turn.
//
// # Orchestrator
//
// The Orchestrator ties the session registry, a response generator and the
// escalation engine together:
//
//	o := conversation.New(sessions, responder.NewKeyword(3), engine,
//		conversation.WithMaxTurns(50),
//		conversation.WithEscalationThreshold(3),
//	)
//	sess := o.Start()
//	result, err := o.ProcessTurn(ctx, sess.ID, "my wifi keeps dropping")
//
// Each turn:
//
//  1. Actions suggested by the previous reply become attempted steps
//  2. The user message is recorded and the turn counter advances
//  3. The generator replies; the reply is stored with its confidence,
//     sources, suggestions and escalation hint as metadata
//  4. At the turn limit, TurnResult.MaxTurnsReached is set and nothing else
//     happens; otherwise once the generator has hinted at escalation
//     threshold times, the session is escalated and TurnResult.Ticket set
//
// A session is escalated automatically at most once.
//
// # Commands
//
// ParseCommand recognizes exit (also quit and bye), escalate, help and
// status typed on their own line.
//
// # Events
//
// With WithBroadcaster, the orchestrator publishes turn, reply,
// max_turns_reached, escalated and ended events. Subscribers watch a single
// session or AllSessions:
//
//	ch, _ := broadcaster.Subscribe(ctx, conversation.AllSessions)
package conversation
