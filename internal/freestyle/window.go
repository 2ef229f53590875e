package freestyle

import (
	"strings"
	"time"
)

// Window collects transcript fragments of one freestyle performance and is
// scored at most once.
//
// A timed window has a deadline and is scored when the deadline passes or the
// client disconnects. An untimed window (zero deadline) only buffers text; it
// is opened when the client switches to freestyle mode without asking for a
// listening window, and it is never scored.
//
// Not safe for concurrent use; owned by the session loop.
type Window struct {
	Deadline time.Time

	// Tempo metadata supplied by the client. Recorded for logs only.
	BPM  float64
	Bars int
	Grid string

	scorer    *Scorer
	fragments []string
	finalized bool
}

// NewWindow returns a timed window ending at deadline.
func NewWindow(scorer *Scorer, deadline time.Time, bpm float64, bars int, grid string) *Window {
	return &Window{Deadline: deadline, BPM: bpm, Bars: bars, Grid: grid, scorer: scorer}
}

// NewUntimedWindow returns a window without a deadline.
func NewUntimedWindow(scorer *Scorer) *Window {
	return &Window{scorer: scorer}
}

// Timed reports whether the window has a deadline.
func (w *Window) Timed() bool { return !w.Deadline.IsZero() }

// Expired reports whether a timed, unfinalized window has reached its deadline.
func (w *Window) Expired(now time.Time) bool {
	return w.Timed() && !w.finalized && !now.Before(w.Deadline)
}

// Finalized reports whether the window has been scored.
func (w *Window) Finalized() bool { return w.finalized }

// Add appends a transcript fragment with its outer whitespace trimmed. Inner
// newlines are kept as line breaks. Blank fragments and fragments added after
// finalization are ignored.
func (w *Window) Add(fragment string) {
	if w.finalized {
		return
	}
	if f := strings.TrimSpace(fragment); f != "" {
		w.fragments = append(w.fragments, f)
	}
}

// Fragments returns the number of buffered fragments.
func (w *Window) Fragments() int { return len(w.fragments) }

// Text returns the buffered fragments joined by single spaces.
func (w *Window) Text() string { return strings.Join(w.fragments, " ") }

// Finalize scores the window once. flush, when non-nil, is called first to
// collect the recognizer's buffered tail, which is appended as a final
// fragment. The second and later calls return ok == false without calling
// flush.
func (w *Window) Finalize(flush func() string) (score JudgeScore, text string, words []string, ok bool) {
	if w.finalized {
		return JudgeScore{}, "", nil, false
	}
	if flush != nil {
		w.Add(flush())
	}
	w.finalized = true
	text = w.Text()
	score, words = w.scorer.Score(text)
	return score, text, words, true
}
