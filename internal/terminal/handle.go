package terminal

import (
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hinshun/vt10x"

	"github.com/Iron-Ham/cockpit/internal/errors"
)

// DefaultScrollback bounds how many completed output lines a handle retains
// beyond the live screen.
const DefaultScrollback = 10000

const (
	defaultCols = 80
	defaultRows = 24
)

// Handle owns one project's terminal screen and its transport connection.
// Handles outlive view detach/reattach; only an explicit restart disposes
// them.
type Handle struct {
	projectName string
	projectPath string

	mu         sync.Mutex
	term       vt10x.Terminal
	scrollback *scrollbackRing
	conn       *websocket.Conn
	disposed   bool

	// writeMu serializes transport writes; the read pump runs concurrently.
	writeMu sync.Mutex
}

func newHandle(projectName, projectPath string, scrollback int) *Handle {
	if scrollback <= 0 {
		scrollback = DefaultScrollback
	}
	return &Handle{
		projectName: projectName,
		projectPath: projectPath,
		term:        vt10x.New(vt10x.WithSize(defaultCols, defaultRows)),
		scrollback:  newScrollbackRing(scrollback),
	}
}

// ProjectName returns the owning project's unique name.
func (h *Handle) ProjectName() string { return h.projectName }

// ProjectPath returns the owning project's filesystem path.
func (h *Handle) ProjectPath() string { return h.projectPath }

// Feed writes transport output into the screen and the scrollback ring.
func (h *Handle) Feed(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return errors.ErrHandleDisposed
	}
	h.term.Write(data)
	h.scrollback.append(data)
	return nil
}

// Resize adjusts the screen dimensions.
func (h *Handle) Resize(cols, rows int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return errors.ErrHandleDisposed
	}
	if cols < 1 || rows < 1 {
		return errors.NewValidationError("terminal dimensions must be positive")
	}
	h.term.Resize(cols, rows)
	return nil
}

// Size returns the current screen dimensions.
func (h *Handle) Size() (cols, rows int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.term.Size()
}

// Screen renders the live screen contents as trailing-space-trimmed lines.
func (h *Handle) Screen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return nil
	}
	cols, rows := h.term.Size()
	lines := make([]string, rows)
	var b strings.Builder
	for row := 0; row < rows; row++ {
		b.Reset()
		for col := 0; col < cols; col++ {
			cell := h.term.Cell(col, row)
			b.WriteRune(cell.Char)
		}
		lines[row] = strings.TrimRight(b.String(), " \x00")
	}
	return lines
}

// Scrollback returns a copy of the retained output lines.
func (h *Handle) Scrollback() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scrollback.lines()
}

// Reset clears the screen and scrollback, leaving the handle usable.
func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disposed {
		return
	}
	h.term.Write([]byte("\x1b[2J\x1b[H"))
	h.scrollback.clear()
}

// Disposed reports whether the handle has been torn down.
func (h *Handle) Disposed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposed
}

// Dispose closes any open transport and marks the handle unusable.
func (h *Handle) Dispose() {
	h.mu.Lock()
	conn := h.conn
	h.conn = nil
	h.disposed = true
	h.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (h *Handle) attachConn(conn *websocket.Conn) {
	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()
}

// clearConn drops the transport reference if it still points at conn, so a
// stale close callback cannot clobber a newer connection.
func (h *Handle) clearConn(conn *websocket.Conn) {
	h.mu.Lock()
	if h.conn == conn {
		h.conn = nil
	}
	h.mu.Unlock()
}

func (h *Handle) connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

// sendJSON writes a control frame to the open transport. Writes are
// serialized; a handle without a transport rejects the send.
func (h *Handle) sendJSON(v any) error {
	h.mu.Lock()
	conn := h.conn
	disposed := h.disposed
	h.mu.Unlock()

	if disposed {
		return errors.ErrHandleDisposed
	}
	if conn == nil {
		return errors.NewTerminalError("no open transport", errors.ErrNotInitialized).WithProject(h.projectName)
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// scrollbackRing retains the last max completed output lines. A partial line
// (no trailing newline yet) is carried until its newline arrives.
type scrollbackRing struct {
	max     int
	buf     []string
	partial strings.Builder
}

func newScrollbackRing(max int) *scrollbackRing {
	return &scrollbackRing{max: max}
}

func (r *scrollbackRing) append(data []byte) {
	for _, b := range data {
		if b == '\n' {
			line := strings.TrimRight(r.partial.String(), "\r")
			r.partial.Reset()
			r.buf = append(r.buf, line)
			if len(r.buf) > r.max {
				r.buf = r.buf[len(r.buf)-r.max:]
			}
			continue
		}
		r.partial.WriteByte(b)
	}
}

func (r *scrollbackRing) lines() []string {
	out := make([]string, len(r.buf))
	copy(out, r.buf)
	return out
}

func (r *scrollbackRing) clear() {
	r.buf = nil
	r.partial.Reset()
}
