package unmatched

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// FileSink appends one line per entry to a plain text file. The file is opened
// per write, so it is created lazily and may be rotated externally.
type FileSink struct {
	mu   sync.Mutex
	path string
}

// NewFileSink returns a FileSink writing to path.
func NewFileSink(path string) *FileSink {
	if path == "" {
		path = DefaultPath
	}
	return &FileSink{path: path}
}

// Path returns the file path.
func (fs *FileSink) Path() string { return fs.path }

// Write appends the raw transcript followed by a newline, falling back to
// e.Text when Raw is empty. Declined entries carry a "[declined] " prefix.
// Embedded newlines are folded into spaces so every entry stays on one line.
func (fs *FileSink) Write(_ context.Context, e Entry) error {
	text := e.Raw
	if strings.TrimSpace(text) == "" {
		text = e.Text
	}
	line := strings.Join(strings.Fields(text), " ")
	if e.Kind == KindDeclined {
		line = "[declined] " + line
	}
	line += "\n"

	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("unmatched: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("unmatched: write: %w", err)
	}
	return nil
}

// Close is a no-op; the file is not held open between writes.
func (fs *FileSink) Close() error { return nil }

var _ Sink = (*FileSink)(nil)
