package session

import (
	"fmt"
	"time"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusReady        Status = "ready"
	StatusExecuting    Status = "executing"
	StatusError        Status = "error"
	StatusTerminated   Status = "terminated"
)

// Config describes a session at creation time. It is immutable once the
// session exists.
type Config struct {
	// ReplType hints which built-in prompt family to prefer ("python",
	// "node", "ipython", ...). Optional.
	ReplType string `json:"repl_type,omitempty"`
	// Shell is the shell binary used to host the session. Defaults to
	// $SHELL, then /bin/bash.
	Shell string `json:"shell,omitempty"`
	// Commands run in order inside the shell. The last one is the
	// interactive program to start; all prior ones are setup steps.
	Commands []string `json:"commands,omitempty"`
	// StartDir is the initial working directory. Optional.
	StartDir string `json:"start_dir,omitempty"`
	// Env is an environment overlay applied to the spawned process.
	Env map[string]string `json:"env,omitempty"`
	// TimeoutMs bounds each command's prompt wait. Zero uses the service
	// default.
	TimeoutMs int `json:"timeout_ms,omitempty"`
	// Terminal dimensions. Zero uses the service defaults.
	Cols int `json:"cols,omitempty"`
	Rows int `json:"rows,omitempty"`
}

// InputOptions controls how input is delivered.
type InputOptions struct {
	// WaitForReady polls for a prompt after writing. False means fire and
	// forget.
	WaitForReady bool `json:"wait_for_ready"`
	// TimeoutMs bounds the prompt wait. Zero uses the session's default.
	TimeoutMs int `json:"timeout_ms,omitempty"`
	// AddTerminator appends a line terminator to the input.
	AddTerminator bool `json:"add_terminator"`
}

// QuestionContext accompanies an escalation question.
type QuestionContext struct {
	SessionID string `json:"session_id"`
	RawOutput string `json:"raw_output"`
}

// Result is the structured outcome of any session operation. A timeout
// produces a question instead of a hard failure: Question is set,
// CanContinue is true, and the caller is expected to answer via guidance.
type Result struct {
	Success      bool             `json:"success"`
	SessionID    string           `json:"session_id,omitempty"`
	RawOutput    string           `json:"raw_output,omitempty"`
	Error        string           `json:"error,omitempty"`
	Message      string           `json:"message,omitempty"`
	Question     string           `json:"question,omitempty"`
	QuestionID   string           `json:"question_id,omitempty"`
	QuestionType string           `json:"question_type,omitempty"`
	Context      *QuestionContext `json:"context,omitempty"`
	CanContinue  bool             `json:"can_continue,omitempty"`
}

// Question types reported on escalation.
const (
	QuestionInitTimeout     = "initialization_timeout"
	QuestionCommandTimeout  = "command_timeout"
	QuestionGuidanceTimeout = "guidance_timeout"
)

// Info is the list-level view of a session.
type Info struct {
	ID           string    `json:"id"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	HistoryCount int       `json:"history_count"`
}

// Details is the full session snapshot.
type Details struct {
	Info
	Config          Config   `json:"config"`
	LearnedPatterns []string `json:"learned_patterns"`
	History         []string `json:"history"`
	LastError       string   `json:"last_error,omitempty"`
	Cols            int      `json:"cols"`
	Rows            int      `json:"rows"`
	BufferLength    int      `json:"buffer_length"`
}

// TimeoutError carries the full buffered output captured before the wait
// gave up. It is never dropped: the engine converts it into a question.
type TimeoutError struct {
	Output string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no prompt detected after %s", e.After)
}

// ErrProcessExited reports that the underlying process terminated while a
// wait was outstanding.
type ProcessExitedError struct {
	Code int
}

func (e *ProcessExitedError) Error() string {
	return fmt.Sprintf("process exited with code %d", e.Code)
}

// Metrics is the optional instrumentation hook the engine reports into.
type Metrics interface {
	SessionCreated()
	SessionDestroyed()
	CommandExecuted(status string)
	EscalationRaised()
	GuidanceApplied(kind string)
}
