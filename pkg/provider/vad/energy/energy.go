// Package energy implements vad.Engine with a plain RMS energy threshold.
//
// A frame whose RMS level is below the configured threshold is silence. The
// session tracks whether the previous frame was voiced so it can report speech
// start and end transitions.
package energy

import (
	"errors"
	"fmt"
	"math"

	"github.com/MrWong99/rapvox/pkg/audio"
	"github.com/MrWong99/rapvox/pkg/provider/vad"
)

// DefaultThreshold is the RMS level used when Config.EnergyThreshold is zero.
const DefaultThreshold = 1100

var errClosed = errors.New("energy: session closed")

// Engine creates energy-threshold VAD sessions.
type Engine struct{}

// New returns an energy Engine.
func New() *Engine { return &Engine{} }

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	th := cfg.EnergyThreshold
	if th == 0 {
		th = DefaultThreshold
	}
	if th < 0 || th > math.MaxInt16+1 || math.IsNaN(th) {
		return nil, fmt.Errorf("energy: threshold %v out of range [0, 32768]", cfg.EnergyThreshold)
	}
	return &session{threshold: th}, nil
}

type session struct {
	threshold float64
	speaking  bool
	closed    bool
}

func (s *session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	if s.closed {
		return vad.VADEvent{}, errClosed
	}
	rms := audio.RMS16(frame)
	ev := vad.VADEvent{
		Energy:      rms,
		Probability: math.Min(rms/(math.MaxInt16+1), 1),
	}
	voiced := rms >= s.threshold
	switch {
	case voiced && !s.speaking:
		ev.Type = vad.VADSpeechStart
	case voiced:
		ev.Type = vad.VADSpeechContinue
	case s.speaking:
		ev.Type = vad.VADSpeechEnd
	default:
		ev.Type = vad.VADSilence
	}
	s.speaking = voiced
	return ev, nil
}

func (s *session) Reset() { s.speaking = false }

func (s *session) Close() error {
	s.closed = true
	return nil
}

// Compile-time assertions.
var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*session)(nil)
)
