package decision

import "strings"

const DefaultWindowSize = 25

// Window keeps the most recent transcript lines, oldest first.
// It is not safe for concurrent use; the detector goroutine owns it.
type Window struct {
	lines []string
	size  int
}

func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &Window{lines: make([]string, 0, size), size: size}
}

func (w *Window) Push(line string) {
	if len(w.lines) == w.size {
		copy(w.lines, w.lines[1:])
		w.lines = w.lines[:w.size-1]
	}
	w.lines = append(w.lines, line)
}

func (w *Window) Lines() []string {
	out := make([]string, len(w.lines))
	copy(out, w.lines)
	return out
}

func (w *Window) String() string {
	return strings.Join(w.lines, "\n")
}

func formatLine(speakerID, text string) string {
	return speakerID + ": " + text
}
