// Package mock provides scripted test doubles for the vad interfaces.
//
//	sess := &mock.Session{Script: []vad.VADEvent{{Type: vad.VADSilence}}}
//	eng := &mock.Engine{Session: sess}
package mock

import (
	"sync"

	"github.com/MrWong99/rapvox/pkg/provider/vad"
)

// Compile-time assertions.
var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*Session)(nil)
)

// Engine hands out Session, or a fresh silent Session when it is nil.
type Engine struct {
	Session *Session

	// Err, when non-nil, fails every NewSession call.
	Err error

	mu      sync.Mutex
	configs []vad.Config
}

// NewSession records cfg and returns the configured session.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs = append(e.configs, cfg)
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Configs returns the configs passed to NewSession in call order.
func (e *Engine) Configs() []vad.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]vad.Config(nil), e.configs...)
}

// Session replays Script one event per frame, then answers Steady. The zero
// value reports silence for every frame.
type Session struct {
	Script []vad.VADEvent
	Steady vad.VADEvent

	// Err, when non-nil, fails every ProcessFrame call.
	Err error

	mu     sync.Mutex
	frames int
	resets int
	closes int
}

// ProcessFrame returns the next scripted event.
func (s *Session) ProcessFrame([]byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	if s.Err != nil {
		return vad.VADEvent{}, s.Err
	}
	if len(s.Script) > 0 {
		ev := s.Script[0]
		s.Script = s.Script[1:]
		return ev, nil
	}
	if s.Steady == (vad.VADEvent{}) {
		return vad.VADEvent{Type: vad.VADSilence}, nil
	}
	return s.Steady, nil
}

// Reset counts the call.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}

// Close counts the call.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Frames returns the number of ProcessFrame calls.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Resets returns the number of Reset calls.
func (s *Session) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// Closes returns the number of Close calls.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
