package gate_test

import (
	"testing"
	"time"

	"github.com/MrWong99/rapvox/internal/gate"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func newGate() *gate.Gate {
	return gate.New(gate.Config{MinGap: gate.DefaultMinGap, Cooldown: gate.DefaultCooldown})
}

func TestObserve_Debounce(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		gap  time.Duration
		want bool
	}{
		{name: "within gap", gap: time.Second, want: false},
		{name: "just under gap", gap: 1499 * time.Millisecond, want: false},
		{name: "at gap", gap: 1500 * time.Millisecond, want: true},
		{name: "past gap", gap: 2 * time.Second, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := newGate()
			if !g.Observe("bad game", t0) {
				t.Fatal("first final rejected")
			}
			if got := g.Observe("bad game", t0.Add(tt.gap)); got != tt.want {
				t.Errorf("second final after %v: got %v, want %v", tt.gap, got, tt.want)
			}
		})
	}
}

func TestObserve_DifferentTextPasses(t *testing.T) {
	t.Parallel()
	g := newGate()
	g.Observe("bad game", t0)
	if !g.Observe("pizza", t0.Add(100*time.Millisecond)) {
		t.Error("different text within gap rejected")
	}
}

func TestObserve_RecordsRejected(t *testing.T) {
	t.Parallel()
	g := newGate()
	g.Observe("pizza", t0)
	// Rejected, but still becomes the latest final, so the window slides.
	if g.Observe("pizza", t0.Add(time.Second)) {
		t.Fatal("duplicate within gap admitted")
	}
	if g.Observe("pizza", t0.Add(2*time.Second)) {
		t.Error("duplicate 1s after a recorded duplicate admitted")
	}
}

func TestObserve_EmptyIgnored(t *testing.T) {
	t.Parallel()
	g := newGate()
	g.Observe("pizza", t0)
	if g.Observe("", t0.Add(time.Millisecond)) {
		t.Error("empty text admitted")
	}
	if g.Observe("pizza", t0.Add(time.Second)) {
		t.Error("empty text must not replace the last final")
	}
}

func TestAdmit_Cooldown(t *testing.T) {
	t.Parallel()
	g := newGate()
	if !g.Admit(t0) {
		t.Fatal("first command rejected")
	}
	g.MarkSent(t0)
	if g.Admit(t0.Add(time.Second)) {
		t.Error("command 1.0s after emission admitted")
	}
	if !g.Admit(t0.Add(1200 * time.Millisecond)) {
		t.Error("command 1.2s after emission rejected")
	}
}

func TestAdmit_OnlyEmissionsCount(t *testing.T) {
	t.Parallel()
	g := newGate()
	g.MarkSent(t0)
	// A rejected attempt does not extend the cooldown.
	if g.Admit(t0.Add(time.Second)) {
		t.Fatal("admitted within cooldown")
	}
	if !g.Admit(t0.Add(1300 * time.Millisecond)) {
		t.Error("rejected attempt extended the cooldown")
	}
}

