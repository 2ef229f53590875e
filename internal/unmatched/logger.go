// Package unmatched records command utterances that matched no phrase, or that
// the recognizer declined, so the grammar can be tuned from real usage.
//
// The primary sink is a flat text file with one raw transcript per line,
// created on first write. An optional PostgreSQL sink stores the same entries
// with their session id. Logging is best-effort: sink failures are logged at warn level
// and never reach the caller.
package unmatched

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// DefaultPath is the default unmatched log file.
const DefaultPath = "unmatched_phrases.log"

// Kind tells unmatched utterances apart from declined ones.
type Kind string

const (
	// KindUnmatched is a transcript that matched no grammar phrase.
	KindUnmatched Kind = "unmatched"
	// KindDeclined is the recognizer's "no confident match" marker.
	KindDeclined Kind = "declined"
)

// Entry is one unmatched or declined utterance.
type Entry struct {
	// Time the final transcript was produced.
	Time time.Time

	// SessionID of the client session that produced it.
	SessionID string

	// Kind defaults to [KindUnmatched].
	Kind Kind

	// Text is the normalized transcript.
	Text string

	// Raw is the transcript as returned by the recognizer.
	Raw string
}

// Sink persists entries.
type Sink interface {
	Write(ctx context.Context, e Entry) error
	Close() error
}

// Logger fans entries out to its sinks. It is safe for concurrent use if its
// sinks are.
type Logger struct {
	sinks []Sink
}

// New returns a Logger writing to sinks in order.
func New(sinks ...Sink) *Logger {
	return &Logger{sinks: sinks}
}

// Log writes e to every sink. Entries without any text are ignored.
func (l *Logger) Log(ctx context.Context, e Entry) {
	if l == nil || (e.Text == "" && strings.TrimSpace(e.Raw) == "") {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.Kind == "" {
		e.Kind = KindUnmatched
	}
	for _, s := range l.sinks {
		if err := s.Write(ctx, e); err != nil {
			slog.Warn("unmatched: write failed", "session_id", e.SessionID, "err", err)
		}
	}
}

// Close closes every sink and returns the joined errors.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	var errs []error
	for _, s := range l.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
