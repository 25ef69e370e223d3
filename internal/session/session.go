package session

import (
	"sync"
	"time"

	"github.com/replgate/replgate/internal/logging"
	"github.com/replgate/replgate/internal/pty"
	"github.com/replgate/replgate/internal/term"
	"go.uber.org/zap"
)

// Session is one addressable interactive shell. All state-mutating
// operations are serialized by execMu; signal delivery deliberately bypasses
// it so an interrupt can unstick an outstanding wait.
type Session struct {
	ID     string
	Config Config

	handle pty.Handle
	mirror *term.Mirror
	buf    *outputBuffer

	// Engine tuning, fixed at creation.
	pollInterval time.Duration
	initGrace    time.Duration
	timeout      time.Duration
	maxWait      time.Duration
	historyLimit int

	logger  *logging.Logger
	store   *logging.Store
	metrics Metrics

	execMu sync.Mutex // one command/guidance/poll cycle at a time

	mu           sync.RWMutex // guards the fields below
	status       Status
	history      []string
	learned      []string
	lastOutput   string
	lastError    string
	createdAt    time.Time
	lastActivity time.Time

	dataCh   chan struct{} // coalesced new-data notification
	exitCh   chan struct{} // closed when the process exits
	exitMu   sync.Once
	exitCode int

	subMu       sync.Mutex
	subscribers map[string]func([]byte)
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Terminated reports whether the session reached a final state.
func (s *Session) terminatedOrFailed() bool {
	st := s.Status()
	return st == StatusTerminated || st == StatusError
}

// Info returns the list-level view.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		ID:           s.ID,
		Status:       s.status,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
		HistoryCount: len(s.history),
	}
}

// Details returns the full session snapshot.
func (s *Session) Details() Details {
	cols, rows := s.mirror.Size()

	s.mu.RLock()
	defer s.mu.RUnlock()

	learned := make([]string, len(s.learned))
	copy(learned, s.learned)
	history := make([]string, len(s.history))
	copy(history, s.history)

	return Details{
		Info: Info{
			ID:           s.ID,
			Status:       s.status,
			CreatedAt:    s.createdAt,
			LastActivity: s.lastActivity,
			HistoryCount: len(s.history),
		},
		Config:          s.Config,
		LearnedPatterns: learned,
		History:         history,
		LastError:       s.lastError,
		Cols:            cols,
		Rows:            rows,
		BufferLength:    s.buf.Len(),
	}
}

// LearnedPatterns returns a copy of the taught patterns, in insertion order.
func (s *Session) LearnedPatterns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.learned))
	copy(out, s.learned)
	return out
}

// addLearnedPattern appends pattern unless it is already present. The set
// never shrinks. Returns true when the pattern was new.
func (s *Session) addLearnedPattern(pattern string) bool {
	if pattern == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.learned {
		if p == pattern {
			return false
		}
	}
	s.learned = append(s.learned, pattern)
	return true
}

// appendHistory records an input, retaining only the most recent entries.
func (s *Session) appendHistory(input string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, input)
	if len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}
}

func (s *Session) setLastError(msg string) {
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

func (s *Session) setLastOutput(out string) {
	s.mu.Lock()
	s.lastOutput = out
	s.mu.Unlock()
}

// BufferedOutput returns a paginated slice of the raw output buffer.
func (s *Session) BufferedOutput(offset, limit int) (chunk string, total int) {
	return s.buf.Slice(offset, limit)
}

// CleanText returns Mirror-derived text: the cursor line, or the whole
// screen.
func (s *Session) CleanText(fullScreen bool) string {
	if fullScreen {
		return s.mirror.FullScreenText()
	}
	return s.mirror.CursorLineText()
}

// SerializeScreen returns the mirror's replay blob for a newly attached
// viewer.
func (s *Session) SerializeScreen() ([]byte, error) {
	return s.mirror.SerializeScreen()
}

// Resize changes the PTY and mirror dimensions together.
func (s *Session) Resize(cols, rows int) error {
	if err := s.handle.Resize(uint16(cols), uint16(rows)); err != nil {
		return err
	}
	s.mirror.Resize(cols, rows)
	return nil
}

// WriteRaw pushes bytes straight to the process, bypassing the command
// lock. Viewers use it for interactive keystrokes, which must land even
// while an HTTP command wait holds the lock.
func (s *Session) WriteRaw(data []byte) error {
	_, err := s.handle.Write(data)
	return err
}

// Subscribe registers a viewer callback receiving every output byte. It
// returns an unsubscribe function.
func (s *Session) Subscribe(id string, fn func([]byte)) func() {
	s.subMu.Lock()
	s.subscribers[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subscribers, id)
		s.subMu.Unlock()
	}
}

// onData is the single output callback attached to the process handle.
// Bytes flow to the raw buffer first and the mirror second, synchronously,
// so the two never diverge; viewers are notified afterwards.
func (s *Session) onData(p []byte) {
	s.buf.Write(p)
	s.mirror.Write(p)

	select {
	case s.dataCh <- struct{}{}:
	default:
	}

	s.subMu.Lock()
	fns := make([]func([]byte), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

// onExit marks the session terminated regardless of any in-flight wait.
func (s *Session) onExit(code int) {
	s.mu.Lock()
	s.exitCode = code
	s.mu.Unlock()

	s.setStatus(StatusTerminated)
	s.exitMu.Do(func() { close(s.exitCh) })

	s.logEvent("info", "process exited", zap.Int("code", code))
}

func (s *Session) logEvent(level, msg string, fields ...zap.Field) {
	switch level {
	case "warn":
		s.logger.Warn(msg, append(fields, zap.String("session_id", s.ID))...)
	case "error":
		s.logger.Error(msg, append(fields, zap.String("session_id", s.ID))...)
	default:
		s.logger.Info(msg, append(fields, zap.String("session_id", s.ID))...)
	}
	if s.store != nil {
		s.store.Append(s.ID, level, msg)
	}
}
