package session

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/replgate/replgate/internal/logging"
	"github.com/replgate/replgate/internal/pty"
	"github.com/replgate/replgate/internal/shared/id"
	"go.uber.org/zap"
)

// Manager owns the session registry. Creation spawns the process and drives
// initialization synchronously, so the caller gets either a ready session,
// an escalation question, or an error.
type Manager struct {
	spawner pty.Spawner
	tuning  Tuning
	logger  *logging.Logger
	store   *logging.Store
	metrics Metrics

	sessions sync.Map // session ID -> *Session
}

// nopMetrics keeps the engine's instrumentation calls unconditional.
type nopMetrics struct{}

func (nopMetrics) SessionCreated()        {}
func (nopMetrics) SessionDestroyed()      {}
func (nopMetrics) CommandExecuted(string) {}
func (nopMetrics) EscalationRaised()      {}
func (nopMetrics) GuidanceApplied(string) {}

// NewManager builds a Manager. metrics may be nil.
func NewManager(spawner pty.Spawner, tuning Tuning, logger *logging.Logger, store *logging.Store, metrics Metrics) *Manager {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Manager{
		spawner: spawner,
		tuning:  tuning,
		logger:  logger,
		store:   store,
		metrics: metrics,
	}
}

// Create spawns a new session and blocks until it is ready, escalates, or
// fails. Configuration problems are reported synchronously without leaving
// a half-built session behind.
func (m *Manager) Create(cfg Config) (Result, *Session) {
	if cfg.StartDir != "" {
		info, err := os.Stat(cfg.StartDir)
		if err != nil || !info.IsDir() {
			return Result{
				Success: false,
				Error:   fmt.Sprintf("start_dir %q is not a directory", cfg.StartDir),
			}, nil
		}
	}

	shell := cfg.Shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/bash"
	}

	cols := cfg.Cols
	if cols <= 0 {
		cols = m.tuning.Cols
	}
	rows := cfg.Rows
	if rows <= 0 {
		rows = m.tuning.Rows
	}

	handle, err := m.spawner(shell, nil, pty.SpawnOptions{
		Dir:  cfg.StartDir,
		Env:  cfg.Env,
		Cols: uint16(cols),
		Rows: uint16(rows),
	})
	if err != nil {
		return Result{
			Success: false,
			Error:   fmt.Sprintf("failed to spawn %s: %v", shell, err),
		}, nil
	}

	sessionID := id.NewSessionID().String()
	s := newSession(sessionID, cfg, handle, m.tuning, m.logger, m.store, m.metrics)
	m.sessions.Store(sessionID, s)
	m.metrics.SessionCreated()

	m.logger.Info("session created",
		zap.String("session_id", sessionID),
		zap.String("shell", shell),
		zap.Int("setup_commands", len(cfg.Commands)))

	res := s.initialize()
	res.SessionID = sessionID
	return res, s
}

// Get returns the session for id, or nil.
func (m *Manager) Get(sessionID string) *Session {
	v, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil
	}
	return v.(*Session)
}

// List returns all sessions' list-level views, ordered by ID.
func (m *Manager) List() []Info {
	var infos []Info
	m.sessions.Range(func(_, v any) bool {
		infos = append(infos, v.(*Session).Info())
		return true
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Destroy kills the session's process and removes it from the registry. It
// is idempotent: destroying an unknown or already-destroyed session returns
// false. The kill happens before the registry removal so a concurrent
// lookup never observes a live handle for a removed session.
func (m *Manager) Destroy(sessionID string) bool {
	v, ok := m.sessions.Load(sessionID)
	if !ok {
		return false
	}
	s := v.(*Session)

	if err := s.handle.Kill(); err != nil {
		m.logger.Warn("kill failed during destroy",
			zap.String("session_id", sessionID), zap.Error(err))
	}
	s.setStatus(StatusTerminated)
	s.exitMu.Do(func() { close(s.exitCh) })

	m.sessions.Delete(sessionID)
	if m.store != nil {
		m.store.Drop(sessionID)
	}
	m.metrics.SessionDestroyed()

	m.logger.Info("session destroyed", zap.String("session_id", sessionID))
	return true
}

// DestroyAll tears down every session. Used on shutdown.
func (m *Manager) DestroyAll() int {
	var ids []string
	m.sessions.Range(func(k, _ any) bool {
		ids = append(ids, k.(string))
		return true
	})
	count := 0
	for _, sid := range ids {
		if m.Destroy(sid) {
			count++
		}
	}
	return count
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
