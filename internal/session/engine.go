package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/replgate/replgate/internal/detect"
	"github.com/replgate/replgate/internal/logging"
	"github.com/replgate/replgate/internal/pty"
	"github.com/replgate/replgate/internal/shared/id"
	"github.com/replgate/replgate/internal/term"
	"go.uber.org/zap"
)

// Tuning holds the engine knobs a Manager passes down to every session.
type Tuning struct {
	DefaultTimeout time.Duration
	PollInterval   time.Duration
	InitGrace      time.Duration
	MaxWait        time.Duration
	HistoryLimit   int
	Cols           int
	Rows           int
}

// signalBytes maps the supported signal names to their control bytes. They
// are written straight to the PTY, outside the command lock, so an interrupt
// can land while a wait is outstanding.
var signalBytes = map[string]byte{
	"interrupt": 0x03, // Ctrl-C
	"suspend":   0x1A, // Ctrl-Z
	"quit":      0x1C, // Ctrl-\
}

func newSession(sessionID string, cfg Config, h pty.Handle, tuning Tuning, logger *logging.Logger, store *logging.Store, metrics Metrics) *Session {
	cols := cfg.Cols
	if cols <= 0 {
		cols = tuning.Cols
	}
	rows := cfg.Rows
	if rows <= 0 {
		rows = tuning.Rows
	}

	timeout := tuning.DefaultTimeout
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}

	now := time.Now()
	s := &Session{
		ID:           sessionID,
		Config:       cfg,
		handle:       h,
		mirror:       term.NewMirror(cols, rows),
		buf:          newOutputBuffer(),
		pollInterval: tuning.PollInterval,
		initGrace:    tuning.InitGrace,
		timeout:      timeout,
		maxWait:      tuning.MaxWait,
		historyLimit: tuning.HistoryLimit,
		logger:       logger,
		store:        store,
		metrics:      metrics,
		status:       StatusInitializing,
		createdAt:    now,
		lastActivity: now,
		dataCh:       make(chan struct{}, 1),
		exitCh:       make(chan struct{}),
		subscribers:  make(map[string]func([]byte)),
	}

	h.OnData(s.onData)
	h.OnExit(s.onExit)

	return s
}

// initialize runs the configured setup commands and waits for the first
// prompt. Setup steps are lenient: a timeout there is logged and skipped,
// because shells routinely stay quiet through an `export` or a `cd`. Only
// the final readiness wait is strict and escalates on timeout.
func (s *Session) initialize() Result {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.initGrace > 0 {
		time.Sleep(s.initGrace)
	}

	commands := s.Config.Commands
	for i, cmd := range commands {
		last := i == len(commands)-1

		s.buf.Clear()
		if _, err := s.handle.Write([]byte(cmd + "\r")); err != nil {
			return s.fail(fmt.Sprintf("failed to send setup command: %v", err))
		}
		s.appendHistory(cmd)

		if last {
			break
		}
		if _, _, err := s.waitForPrompt(s.timeout, 0); err != nil {
			s.logEvent("warn", "setup command did not settle, continuing",
				zap.String("command", cmd), zap.Error(err))
		}
	}

	sinceLen := -1
	if len(commands) > 0 {
		sinceLen = 0
	}
	output, res, err := s.waitForPrompt(s.timeout, sinceLen)
	if err != nil {
		if _, ok := err.(*ProcessExitedError); ok {
			return s.fail(err.Error())
		}
		return s.raiseQuestion(QuestionInitTimeout, output,
			"the session never showed a recognizable prompt while starting up")
	}

	s.setStatus(StatusReady)
	s.setLastOutput(output)
	s.logEvent("info", "session ready",
		zap.String("prompt_type", res.Type), zap.String("prompt", res.Prompt))

	return Result{
		Success:   true,
		SessionID: s.ID,
		RawOutput: output,
		Message:   fmt.Sprintf("session ready (%s prompt)", res.Type),
	}
}

// ExecuteCommand writes input to the process and, unless the caller opts
// out, waits for the next prompt. The output buffer is cleared exactly once,
// before the write, so the wait observes only this command's output.
func (s *Session) ExecuteCommand(input string, opts InputOptions) Result {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.terminatedOrFailed() {
		return Result{
			Success:   false,
			SessionID: s.ID,
			Error:     fmt.Sprintf("session is %s", s.Status()),
		}
	}

	payload := input
	if opts.AddTerminator {
		payload += "\r"
	}

	s.setStatus(StatusExecuting)
	s.buf.Clear()

	if _, err := s.handle.Write([]byte(payload)); err != nil {
		s.metrics.CommandExecuted("write_error")
		return s.fail(fmt.Sprintf("failed to write input: %v", err))
	}
	s.appendHistory(input)

	if !opts.WaitForReady {
		// Fire and forget: the process keeps running, output keeps
		// accumulating, and the session is usable immediately.
		s.setStatus(StatusReady)
		s.metrics.CommandExecuted("sent")
		return Result{Success: true, SessionID: s.ID, Message: "input sent"}
	}

	timeout := s.timeout
	if opts.TimeoutMs > 0 {
		timeout = time.Duration(opts.TimeoutMs) * time.Millisecond
	}

	output, res, err := s.waitForPrompt(timeout, 0)
	if err != nil {
		if _, ok := err.(*ProcessExitedError); ok {
			s.metrics.CommandExecuted("exited")
			return s.terminatedResult(output)
		}
		s.metrics.CommandExecuted("timeout")
		return s.raiseQuestion(QuestionCommandTimeout, output,
			fmt.Sprintf("no prompt appeared within %s after sending %q", timeout, input))
	}

	s.setStatus(StatusReady)
	s.setLastOutput(output)

	if detect.IsErrorOutput(output, res.Type) {
		s.metrics.CommandExecuted("error")
		return Result{
			Success:     false,
			SessionID:   s.ID,
			RawOutput:   output,
			Error:       "command produced error output",
			CanContinue: true,
		}
	}

	s.metrics.CommandExecuted("success")
	return Result{Success: true, SessionID: s.ID, RawOutput: output}
}

// SendSignal delivers a control byte immediately. It does not take the
// command lock: interrupting a stuck command is the whole point.
func (s *Session) SendSignal(name string) Result {
	b, ok := signalBytes[name]
	if !ok {
		return Result{
			Success:   false,
			SessionID: s.ID,
			Error:     fmt.Sprintf("unknown signal %q (want interrupt, suspend, or quit)", name),
		}
	}

	if _, err := s.handle.Write([]byte{b}); err != nil {
		return Result{Success: false, SessionID: s.ID, Error: err.Error()}
	}

	s.logEvent("info", "signal sent", zap.String("signal", name))
	return Result{Success: true, SessionID: s.ID, Message: "signal sent: " + name}
}

// ApplyGuidance resolves an escalation question with a parsed answer.
func (s *Session) ApplyGuidance(g Guidance) Result {
	s.execMu.Lock()
	defer s.execMu.Unlock()

	if s.terminatedOrFailed() {
		return Result{
			Success:   false,
			SessionID: s.ID,
			Error:     fmt.Sprintf("session is %s", s.Status()),
		}
	}

	s.metrics.GuidanceApplied(string(g.Kind))

	switch g.Kind {
	case GuidanceReady:
		// The caller asserts the screen already shows a prompt; their word is
		// taken as-is, with no further I/O. Learning is idempotent; the set
		// only grows.
		if s.addLearnedPattern(g.Pattern) {
			s.logEvent("info", "learned prompt pattern", zap.String("pattern", g.Pattern))
		}
		output := s.buf.String()
		s.setStatus(StatusReady)
		s.setLastOutput(output)
		return Result{Success: true, SessionID: s.ID, RawOutput: output}

	case GuidanceSend:
		s.buf.Clear()
		if _, err := s.handle.Write([]byte(g.Text)); err != nil {
			return s.fail(fmt.Sprintf("failed to write guidance text: %v", err))
		}
		output, _, err := s.waitForPrompt(s.timeout, 0)
		if err != nil {
			if _, ok := err.(*ProcessExitedError); ok {
				return s.terminatedResult(output)
			}
			return s.raiseQuestion(QuestionGuidanceTimeout, output,
				"no prompt appeared after sending the guidance text")
		}
		s.setStatus(StatusReady)
		s.setLastOutput(output)
		return Result{Success: true, SessionID: s.ID, RawOutput: output}

	case GuidanceWait:
		wait := time.Duration(g.Seconds * float64(time.Second))
		if wait > s.maxWait {
			wait = s.maxWait
		}
		time.Sleep(wait)
		output, _, err := s.waitForPrompt(s.pollInterval, -1)
		if err != nil {
			return s.raiseQuestion(QuestionGuidanceTimeout, output,
				fmt.Sprintf("still no prompt after waiting %s", wait))
		}
		s.setStatus(StatusReady)
		s.setLastOutput(output)
		return Result{Success: true, SessionID: s.ID, RawOutput: output}

	case GuidanceFailed:
		return s.fail("given up: " + g.Reason)

	default:
		return Result{Success: false, SessionID: s.ID, Error: "unknown guidance kind"}
	}
}

// waitForPrompt polls until a ready prompt is detected, the timeout lapses,
// or the process exits. sinceLen is the buffer length recorded before the
// triggering write: detection is withheld until the buffer has grown past
// it, so a stale prompt left on screen from the previous command cannot
// satisfy the wait. Pass -1 to detect against whatever is already there.
func (s *Session) waitForPrompt(timeout time.Duration, sinceLen int) (string, detect.Result, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	check := func() (detect.Result, bool) {
		if sinceLen >= 0 && s.buf.Len() <= sinceLen {
			return detect.Result{}, false
		}
		snapshot, clean := s.promptSnapshot()
		r := detect.Detect(snapshot, s.Config.ReplType, s.LearnedPatterns(), clean)
		return r, r.Detected && r.Ready
	}

	for {
		if r, ok := check(); ok {
			return s.buf.String(), r, nil
		}
		select {
		case <-deadline.C:
			out := s.buf.String()
			return out, detect.Result{}, &TimeoutError{Output: out, After: timeout}
		case <-s.exitCh:
			s.mu.RLock()
			code := s.exitCode
			s.mu.RUnlock()
			return s.buf.String(), detect.Result{}, &ProcessExitedError{Code: code}
		case <-ticker.C:
		case <-s.dataCh:
		}
	}
}

// promptSnapshot picks the text detection runs against: the mirror's cursor
// line when it has content (already ANSI-free), otherwise the raw tail.
func (s *Session) promptSnapshot() (string, bool) {
	if line := s.mirror.CursorLineText(); strings.TrimSpace(line) != "" {
		return line, true
	}
	return s.buf.Tail(4096), false
}

// raiseQuestion converts a timeout into an escalation the caller can answer
// with guidance. The full captured output rides along so the decision-maker
// sees what the session saw.
func (s *Session) raiseQuestion(questionType, output, summary string) Result {
	s.metrics.EscalationRaised()

	questionID := id.NewQuestionID().String()
	question := buildQuestion(s.ID, summary, output)

	s.logEvent("warn", "escalation raised",
		zap.String("question_id", questionID),
		zap.String("question_type", questionType))

	return Result{
		Success:      false,
		SessionID:    s.ID,
		RawOutput:    output,
		Question:     question,
		QuestionID:   questionID,
		QuestionType: questionType,
		Context:      &QuestionContext{SessionID: s.ID, RawOutput: output},
		CanContinue:  true,
	}
}

func buildQuestion(sessionID, summary, output string) string {
	tail := output
	if len(tail) > 2000 {
		tail = tail[len(tail)-2000:]
	}
	return fmt.Sprintf(`Session %s needs a decision: %s.

Recent output:
%s

Reply with exactly one of:
  READY: <pattern>   the output above already shows a prompt; learn <pattern> for this session
  SEND: <text>       write <text> to the process verbatim (include a newline to submit it)
  WAIT: <seconds>    the process is still working; wait and check again
  FAILED: <reason>   give up on this session`, sessionID, summary, tail)
}

// fail moves the session into the error state and reports why.
func (s *Session) fail(reason string) Result {
	s.setStatus(StatusError)
	s.setLastError(reason)
	s.logEvent("error", reason)
	return Result{Success: false, SessionID: s.ID, Error: reason}
}

func (s *Session) terminatedResult(output string) Result {
	s.mu.RLock()
	code := s.exitCode
	s.mu.RUnlock()
	return Result{
		Success:   false,
		SessionID: s.ID,
		RawOutput: output,
		Error:     fmt.Sprintf("process exited with code %d", code),
	}
}
