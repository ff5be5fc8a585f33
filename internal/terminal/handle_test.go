package terminal

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Iron-Ham/cockpit/internal/errors"
)

func TestHandleFeedRendersScreen(t *testing.T) {
	h := newHandle("alpha", "/work/alpha", DefaultScrollback)

	if err := h.Feed([]byte("hello\r\nworld")); err != nil {
		t.Fatalf("Feed() error: %v", err)
	}

	screen := h.Screen()
	if len(screen) != defaultRows {
		t.Fatalf("Screen() returned %d rows, want %d", len(screen), defaultRows)
	}
	if !strings.HasPrefix(screen[0], "hello") {
		t.Errorf("row 0 = %q", screen[0])
	}
	if !strings.HasPrefix(screen[1], "world") {
		t.Errorf("row 1 = %q", screen[1])
	}
}

func TestHandleScrollbackBounded(t *testing.T) {
	h := newHandle("alpha", "/work/alpha", 5)

	for i := 0; i < 20; i++ {
		h.Feed([]byte(fmt.Sprintf("line-%d\r\n", i)))
	}

	lines := h.Scrollback()
	if len(lines) != 5 {
		t.Fatalf("scrollback holds %d lines, want 5", len(lines))
	}
	if lines[0] != "line-15" || lines[4] != "line-19" {
		t.Errorf("unexpected retained lines: %v", lines)
	}
}

func TestHandleScrollbackCarriesPartialLine(t *testing.T) {
	h := newHandle("alpha", "/work/alpha", 10)

	h.Feed([]byte("par"))
	h.Feed([]byte("tial\n"))

	lines := h.Scrollback()
	if len(lines) != 1 || lines[0] != "partial" {
		t.Errorf("scrollback = %v, want [partial]", lines)
	}
}

func TestHandleResize(t *testing.T) {
	h := newHandle("alpha", "/work/alpha", DefaultScrollback)

	if err := h.Resize(120, 40); err != nil {
		t.Fatalf("Resize() error: %v", err)
	}
	cols, rows := h.Size()
	if cols != 120 || rows != 40 {
		t.Errorf("Size() = (%d, %d), want (120, 40)", cols, rows)
	}

	if err := h.Resize(0, 40); err == nil {
		t.Error("Resize(0, 40) accepted")
	}
}

func TestHandleReset(t *testing.T) {
	h := newHandle("alpha", "/work/alpha", DefaultScrollback)
	h.Feed([]byte("before\n"))

	h.Reset()

	if got := h.Scrollback(); len(got) != 0 {
		t.Errorf("scrollback survived reset: %v", got)
	}
	if got := h.Screen()[0]; got != "" {
		t.Errorf("screen row 0 after reset = %q", got)
	}
}

func TestHandleDispose(t *testing.T) {
	h := newHandle("alpha", "/work/alpha", DefaultScrollback)
	h.Dispose()

	if !h.Disposed() {
		t.Fatal("Disposed() = false after Dispose")
	}
	if err := h.Feed([]byte("x")); !errors.Is(err, errors.ErrHandleDisposed) {
		t.Errorf("Feed() after dispose = %v, want ErrHandleDisposed", err)
	}
	if err := h.Resize(10, 10); !errors.Is(err, errors.ErrHandleDisposed) {
		t.Errorf("Resize() after dispose = %v, want ErrHandleDisposed", err)
	}
	if err := h.sendJSON(map[string]string{"type": "input"}); !errors.Is(err, errors.ErrHandleDisposed) {
		t.Errorf("sendJSON() after dispose = %v, want ErrHandleDisposed", err)
	}
}
