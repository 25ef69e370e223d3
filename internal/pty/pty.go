// Package pty spawns interactive processes on a pseudo-terminal and exposes
// them behind the Handle contract consumed by the session engine: write,
// data/exit callbacks, resize, kill.
package pty

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// SpawnOptions configures the spawned process.
type SpawnOptions struct {
	Dir  string
	Env  map[string]string
	Cols uint16
	Rows uint16
}

// Handle is an opaque running process on a PTY.
type Handle interface {
	Write(p []byte) (int, error)
	// OnData subscribes to output bytes. The first subscription starts the
	// read loop, so a subscriber attached immediately after Spawn observes
	// the process output from the beginning.
	OnData(fn func(p []byte))
	// OnExit subscribes to process termination with the exit code.
	OnExit(fn func(code int))
	Resize(cols, rows uint16) error
	Kill() error
}

// Spawner creates process handles. The session engine takes one so tests can
// substitute fakes.
type Spawner func(command string, args []string, opts SpawnOptions) (Handle, error)

type handle struct {
	cmd  *exec.Cmd
	ptmx *os.File

	mu       sync.Mutex
	dataFns  []func([]byte)
	exitFns  []func(int)
	closed   bool
	exited   bool
	exitCode int

	readOnce sync.Once
}

// Spawn starts command under a new PTY with the given size, working
// directory, and environment overlay.
func Spawn(command string, args []string, opts SpawnOptions) (Handle, error) {
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}

	cols := opts.Cols
	if cols == 0 {
		cols = 80
	}
	rows := opts.Rows
	if rows == 0 {
		rows = 24
	}

	cmd := exec.Command(command, args...)
	cmd.Dir = opts.Dir
	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env, "TERM=xterm-256color")
	for key, value := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: rows,
		Cols: cols,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	h := &handle{
		cmd:  cmd,
		ptmx: ptmx,
	}

	go h.monitorProcess()

	return h, nil
}

// readOutput continuously reads from the PTY and dispatches to subscribers.
func (h *handle) readOutput() {
	buf := make([]byte, 4096)
	for {
		n, err := h.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			h.mu.Lock()
			fns := make([]func([]byte), len(h.dataFns))
			copy(fns, h.dataFns)
			h.mu.Unlock()

			for _, fn := range fns {
				fn(chunk)
			}
		}
		if err != nil {
			if err != io.EOF {
				// PTY read errors after close are expected; nothing to do.
			}
			return
		}
	}
}

// monitorProcess waits for the process to exit, closes the PTY, and fires
// exit callbacks.
func (h *handle) monitorProcess() {
	h.cmd.Wait()

	code := 0
	if state := h.cmd.ProcessState; state != nil {
		code = state.ExitCode()
	}

	h.mu.Lock()
	h.closed = true
	h.exited = true
	h.exitCode = code
	fns := make([]func(int), len(h.exitFns))
	copy(fns, h.exitFns)
	h.mu.Unlock()

	h.ptmx.Close()

	for _, fn := range fns {
		fn(code)
	}
}

func (h *handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return 0, fmt.Errorf("process is closed")
	}
	return h.ptmx.Write(p)
}

func (h *handle) OnData(fn func(p []byte)) {
	h.mu.Lock()
	h.dataFns = append(h.dataFns, fn)
	h.mu.Unlock()

	h.readOnce.Do(func() {
		go h.readOutput()
	})
}

func (h *handle) OnExit(fn func(code int)) {
	h.mu.Lock()
	if h.exited {
		code := h.exitCode
		h.mu.Unlock()
		fn(code)
		return
	}
	h.exitFns = append(h.exitFns, fn)
	h.mu.Unlock()
}

func (h *handle) Resize(cols, rows uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("process is closed")
	}
	return pty.Setsize(h.ptmx, &pty.Winsize{
		Rows: rows,
		Cols: cols,
	})
}

func (h *handle) Kill() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	if h.cmd.Process != nil {
		h.cmd.Process.Kill()
	}
	return h.ptmx.Close()
}
