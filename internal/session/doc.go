// Package session drives long-lived interactive shell and REPL processes.
//
// Each session wraps one PTY-hosted process and moves through a small
// lifecycle: initializing, ready, executing, and the terminal states error
// and terminated. Commands are serialized; after each write the engine polls
// the terminal for a recognizable prompt. When no prompt appears within the
// timeout, the engine does not fail the command: it raises a question
// carrying the captured output, and the caller answers with guidance
// (READY, SEND, WAIT, or FAILED) to teach, nudge, extend, or abandon the
// session.
package session
