// Package transcript appends lines of text to a file or writer.
// It backs both the conversation transcript and the notepad.
package transcript

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Sink is an append-only, line-oriented text destination. Safe for concurrent use.
type Sink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	lines  int
}

// Open appends to path, creating it if needed.
func Open(path string) (*Sink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript %s: %w", path, err)
	}
	return &Sink{w: f, closer: f}, nil
}

// NewWriterSink appends to w. Close does not close w.
func NewWriterSink(w io.Writer) *Sink {
	return &Sink{w: w}
}

// Discard returns a sink that drops everything.
func Discard() *Sink {
	return &Sink{w: io.Discard}
}

// Append writes text as one line. Embedded newlines are folded into spaces so
// one call is always one line; empty text is skipped.
func (s *Sink) Append(text string) error {
	line := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", " "), "\n", " "))
	if line == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.w == nil {
		return os.ErrClosed
	}
	if _, err := io.WriteString(s.w, line+"\n"); err != nil {
		return fmt.Errorf("append transcript line: %w", err)
	}
	s.lines++
	return nil
}

// Lines returns how many lines were appended.
func (s *Sink) Lines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}

// Close releases the underlying file, if the sink owns one.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.w = nil
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	return c.Close()
}
