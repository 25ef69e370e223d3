// Package term maintains an emulated screen mirror of a session's output
// stream. The mirror provides clean (ANSI-free) text for prompt detection
// and a serialized screen snapshot so a reconnecting viewer can repaint the
// exact current state without replaying history.
package term

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/hinshun/vt10x"
)

// Mirror wraps a vt10x terminal emulator. All methods are safe for
// concurrent use.
type Mirror struct {
	mu   sync.Mutex
	vt   vt10x.Terminal
	cols int
	rows int
}

// Screen is the serialized form of the current screen state.
type Screen struct {
	Cols    int    `json:"cols"`
	Rows    int    `json:"rows"`
	Content string `json:"content"`
	CursorX int    `json:"cursor_x"`
	CursorY int    `json:"cursor_y"`
}

// NewMirror creates a mirror with the given dimensions.
func NewMirror(cols, rows int) *Mirror {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return &Mirror{
		vt:   vt10x.New(vt10x.WithSize(cols, rows)),
		cols: cols,
		rows: rows,
	}
}

// Write feeds raw output bytes (ANSI included) into the emulator.
func (m *Mirror) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vt.Write(p)
}

// CursorLineText returns the clean text of the line the cursor is on,
// trailing whitespace trimmed.
func (m *Mirror) CursorLineText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lineText(m.vt.Cursor().Y)
}

// LineText returns the clean text of line row (0-based), trailing whitespace
// trimmed. Out-of-range rows return the empty string.
func (m *Mirror) LineText(row int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row < 0 || row >= m.rows {
		return ""
	}
	return m.lineText(row)
}

func (m *Mirror) lineText(row int) string {
	var sb strings.Builder
	for x := 0; x < m.cols; x++ {
		ch := m.vt.Cell(x, row).Char
		if ch == 0 {
			ch = ' '
		}
		sb.WriteRune(ch)
	}
	return strings.TrimRight(sb.String(), " \t")
}

// FullScreenText returns the clean text of the whole screen.
func (m *Mirror) FullScreenText() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := make([]string, m.rows)
	for y := 0; y < m.rows; y++ {
		lines[y] = m.lineText(y)
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// SerializeScreen returns an opaque blob describing the current screen; a
// viewer repaints from it on first attach.
func (m *Mirror) SerializeScreen() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lines := make([]string, m.rows)
	for y := 0; y < m.rows; y++ {
		lines[y] = m.lineText(y)
	}
	cursor := m.vt.Cursor()

	return json.Marshal(Screen{
		Cols:    m.cols,
		Rows:    m.rows,
		Content: strings.Join(lines, "\n"),
		CursorX: cursor.X,
		CursorY: cursor.Y,
	})
}

// Resize changes the emulated screen dimensions.
func (m *Mirror) Resize(cols, rows int) {
	if cols <= 0 || rows <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vt.Resize(cols, rows)
	m.cols = cols
	m.rows = rows
}

// Size returns the current dimensions.
func (m *Mirror) Size() (cols, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cols, m.rows
}
