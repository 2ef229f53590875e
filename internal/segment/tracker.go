// Package segment decides when a quiet stretch of audio should force the
// recognizer to close the current utterance.
//
// The recognizer usually finalises on its own. When it does not, for example
// because background noise keeps its endpointer busy, the Tracker signals a
// forced boundary once frames have been continuously silent for the required
// duration. The signal fires once per silence run.
package segment

import "time"

// DefaultEndSilence is the quiet duration that forces a boundary.
const DefaultEndSilence = 600 * time.Millisecond

// Tracker measures the current run of silent frames. Not safe for concurrent
// use; owned by the session loop.
type Tracker struct {
	required time.Duration

	silenceStart time.Time
	inSilence    bool
	fired        bool // latched until a voiced frame or Reset
}

// NewTracker returns a Tracker that fires after required of continuous silence.
func NewTracker(required time.Duration) *Tracker {
	return &Tracker{required: required}
}

// Observe records one frame classification at now. It returns true exactly
// once per silence run, when the run has lasted at least the required
// duration. Further silent frames of the same run never fire again; a voiced
// frame or [Tracker.Reset] re-arms the tracker.
func (t *Tracker) Observe(isSilence bool, now time.Time) bool {
	if !isSilence {
		t.Reset()
		return false
	}
	if !t.inSilence {
		t.inSilence = true
		t.silenceStart = now
	}
	if t.fired || now.Sub(t.silenceStart) < t.required {
		return false
	}
	t.fired = true
	return true
}

// Reset clears the silence run and re-arms the tracker. Call it after the
// recognizer produced a final on its own.
func (t *Tracker) Reset() {
	t.inSilence = false
	t.fired = false
	t.silenceStart = time.Time{}
}

// Silence returns how long the current silence run has lasted at now, or
// zero when no run is in progress.
func (t *Tracker) Silence(now time.Time) time.Duration {
	if !t.inSilence {
		return 0
	}
	return now.Sub(t.silenceStart)
}
