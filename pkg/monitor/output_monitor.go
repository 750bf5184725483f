package monitor

import (
	"bytes"
	"strings"
	"sync"
	"time"
)

// OutputMonitor keeps the last lines a wrapped command printed, with
// terminal escape sequences removed, for use in failure notifications
type OutputMonitor struct {
	mu             sync.Mutex
	limit          int
	lastOutputTime time.Time
	lineBuffer     bytes.Buffer
	lines          []string
}

// NewOutputMonitor creates a monitor retaining up to limit lines.
// A limit of zero or less retains nothing
func NewOutputMonitor(limit int) *OutputMonitor {
	return &OutputMonitor{
		limit:          limit,
		lastOutputTime: time.Now(),
	}
}

// escapeLen returns the length of the escape sequence starting at data[i],
// or 0 if none starts there
func escapeLen(data []byte, i int) int {
	start := i
	switch data[i] {
	case 0x1B: // ESC
		i++
		if i >= len(data) {
			return 1
		}
		switch data[i] {
		case '[': // CSI sequence
			i++
			// Skip until we find the terminator (0x40-0x7E)
			for i < len(data) {
				c := data[i]
				i++
				if c >= 0x40 && c <= 0x7E {
					break
				}
			}
		case ']': // OSC sequence
			i++
			// Skip until we find BEL or ST terminator
			for i < len(data) {
				c := data[i]
				i++
				if c == 0x07 {
					break
				}
				if c == 0x1B && i < len(data) && data[i] == '\\' {
					i++
					break
				}
			}
		case '(', ')': // Character set designation
			i += 2
			if i > len(data) {
				i = len(data)
			}
		}
		return i - start
	case 0x9B: // CSI (8-bit), unless it continues a UTF-8 sequence
		if i > 0 && data[i-1] >= 0x80 {
			return 0
		}
		i++
		for i < len(data) {
			c := data[i]
			i++
			if c >= 0x40 && c <= 0x7E {
				break
			}
		}
		return i - start
	}
	return 0
}

// containsVisibleContent checks if the data contains any visible characters
// Visible characters include printable ASCII, newlines, tabs, and Unicode text
// Returns false for data containing only ANSI escape sequences or control characters
func containsVisibleContent(data []byte) bool {
	for i := 0; i < len(data); {
		if n := escapeLen(data, i); n > 0 {
			i += n
			continue
		}
		b := data[i]
		if b == '\n' || b == '\r' || b == '\t' || b >= 32 && b != 0x7F {
			return true
		}
		i++
	}
	return false
}

// stripANSI removes escape sequences and non-printing control characters
func stripANSI(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		if n := escapeLen(data, i); n > 0 {
			i += n
			continue
		}
		b := data[i]
		if b >= 32 && b != 0x7F || b == '\t' || b == '\r' {
			out = append(out, b)
		}
		i++
	}
	return out
}

// HandleData processes raw output data
func (om *OutputMonitor) HandleData(data []byte) {
	om.mu.Lock()
	defer om.mu.Unlock()

	om.lastOutputTime = time.Now()
	om.lineBuffer.Write(data)

	buffer := om.lineBuffer.Bytes()
	start := 0
	for i := 0; i < len(buffer); i++ {
		if buffer[i] == '\n' {
			om.processLine(buffer[start:i])
			start = i + 1
		}
	}

	// Keep any incomplete line in the buffer
	rest := append([]byte(nil), buffer[start:]...)
	om.lineBuffer.Reset()
	om.lineBuffer.Write(rest)
}

// processLine records one completed line. Lines made only of escape
// sequences are dropped; a carriage return keeps only the text after it,
// as a terminal would show it
func (om *OutputMonitor) processLine(raw []byte) {
	if len(raw) > 0 && !containsVisibleContent(raw) {
		return
	}
	line := string(stripANSI(raw))
	line = strings.TrimRight(line, "\r")
	if i := strings.LastIndexByte(line, '\r'); i >= 0 {
		line = line[i+1:]
	}

	if om.limit <= 0 {
		return
	}
	om.lines = append(om.lines, line)
	if over := len(om.lines) - om.limit; over > 0 {
		om.lines = append(om.lines[:0:0], om.lines[over:]...)
	}
}

// Flush processes any remaining data in the buffer
func (om *OutputMonitor) Flush() {
	om.mu.Lock()
	defer om.mu.Unlock()

	if om.lineBuffer.Len() > 0 {
		om.processLine(om.lineBuffer.Bytes())
		om.lineBuffer.Reset()
	}
}

// Lines returns the retained lines, oldest first
func (om *OutputMonitor) Lines() []string {
	om.mu.Lock()
	defer om.mu.Unlock()
	return append([]string(nil), om.lines...)
}

// Tail returns the retained lines joined by newlines
func (om *OutputMonitor) Tail() string {
	return strings.Join(om.Lines(), "\n")
}

// LastOutputTime returns the time of the last output, or of creation if
// nothing has been written yet
func (om *OutputMonitor) LastOutputTime() time.Time {
	om.mu.Lock()
	defer om.mu.Unlock()
	return om.lastOutputTime
}
