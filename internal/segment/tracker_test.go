package segment_test

import (
	"testing"
	"time"

	"github.com/MrWong99/rapvox/internal/segment"
)

const frame = 200 * time.Millisecond

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// feed observes n frames of the given class starting at start and returns the
// indices of frames that fired.
func feed(tr *segment.Tracker, start time.Time, n int, silent bool) []int {
	var fired []int
	for i := range n {
		if tr.Observe(silent, start.Add(time.Duration(i)*frame)) {
			fired = append(fired, i)
		}
	}
	return fired
}

func TestTracker_FiresOncePerRun(t *testing.T) {
	t.Parallel()
	tr := segment.NewTracker(segment.DefaultEndSilence)

	// 0.0s .. 1.2s of silence: the run reaches 600ms at frame 3.
	fired := feed(tr, t0, 7, true)
	if len(fired) != 1 || fired[0] != 3 {
		t.Fatalf("fired at %v, want [3]", fired)
	}
}

func TestTracker_ContinuousSilenceFiresOnce(t *testing.T) {
	t.Parallel()
	tr := segment.NewTracker(segment.DefaultEndSilence)

	// Four seconds of uninterrupted silence.
	fired := feed(tr, t0, 20, true)
	if len(fired) != 1 || fired[0] != 3 {
		t.Fatalf("continuous silence fired at %v, want [3]", fired)
	}
}

func TestTracker_RearmsAfterVoicedFrame(t *testing.T) {
	t.Parallel()
	tr := segment.NewTracker(segment.DefaultEndSilence)

	if fired := feed(tr, t0, 6, true); len(fired) != 1 {
		t.Fatalf("first run fired at %v, want once", fired)
	}
	tr.Observe(false, t0.Add(6*frame))
	fired := feed(tr, t0.Add(7*frame), 6, true)
	if len(fired) != 1 || fired[0] != 3 {
		t.Fatalf("second run fired at %v, want [3]", fired)
	}
}

func TestTracker_RearmsAfterReset(t *testing.T) {
	t.Parallel()
	tr := segment.NewTracker(segment.DefaultEndSilence)

	feed(tr, t0, 6, true)
	tr.Reset()
	fired := feed(tr, t0.Add(6*frame), 6, true)
	if len(fired) != 1 || fired[0] != 3 {
		t.Fatalf("run after Reset fired at %v, want [3]", fired)
	}
}

func TestTracker_VoicedFrameClearsRun(t *testing.T) {
	t.Parallel()
	tr := segment.NewTracker(segment.DefaultEndSilence)

	if fired := feed(tr, t0, 3, true); len(fired) != 0 {
		t.Fatalf("fired early at %v", fired)
	}
	if tr.Observe(false, t0.Add(3*frame)) {
		t.Fatal("voiced frame fired")
	}
	if got := tr.Silence(t0.Add(3 * frame)); got != 0 {
		t.Fatalf("Silence = %v after voiced frame, want 0", got)
	}
	// The run restarts from zero.
	if fired := feed(tr, t0.Add(4*frame), 3, true); len(fired) != 0 {
		t.Errorf("fired at %v after restart, want none", fired)
	}
}

func TestTracker_Reset(t *testing.T) {
	t.Parallel()
	tr := segment.NewTracker(segment.DefaultEndSilence)
	feed(tr, t0, 2, true)
	if got := tr.Silence(t0.Add(2 * frame)); got != 2*frame {
		t.Errorf("Silence = %v, want %v", got, 2*frame)
	}
	tr.Reset()
	if got := tr.Silence(t0.Add(2 * frame)); got != 0 {
		t.Errorf("Silence = %v after Reset, want 0", got)
	}
	if tr.Observe(true, t0.Add(2*frame)) {
		t.Error("fired right after Reset")
	}
}

func TestTracker_VoicedNeverFires(t *testing.T) {
	t.Parallel()
	tr := segment.NewTracker(0)
	if fired := feed(tr, t0, 10, false); len(fired) != 0 {
		t.Errorf("voiced frames fired at %v", fired)
	}
}
