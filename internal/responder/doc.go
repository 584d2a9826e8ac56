// Package responder defines how the conversation layer asks for replies.
//
// A Generator receives the session snapshot, its hand-off summary and the
// latest user text, and returns a Response with the reply text, suggested
// troubleshooting actions, a confidence score, cited sources and a hint
// that a human should take over.
//
// Keyword is a self-contained generator that answers a few common topics
// (passwords and logins, slowness, connectivity) from canned playbooks. It
// needs no model or network and is what the CLI uses by default.
package responder
