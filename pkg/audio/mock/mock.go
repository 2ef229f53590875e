// Package mock provides in-memory mock implementations of the [audio.Capture]
// and [audio.Stream] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	capture := &mock.Capture{}
//	stream, _ := capture.Open(audio.CaptureConfig{}, fn)
//	capture.Emit(audio.AudioFrame{Data: pcm, SampleRate: 16000, Channels: 1})
//	stream.Close()
package mock

import (
	"sync"

	"github.com/MrWong99/rapvox/pkg/audio"
)

// ─── Stream ───────────────────────────────────────────────────────────────────

// Stream is a mock implementation of [audio.Stream].
type Stream struct {
	mu sync.Mutex

	// CloseError is returned by [Stream.Close].
	CloseError error

	// CallCountClose records how many times Close was called.
	CallCountClose int

	closed bool
}

// Close implements [audio.Stream].
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	s.closed = true
	return s.CloseError
}

// Closed reports whether Close has been called at least once.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ─── Capture ──────────────────────────────────────────────────────────────────

// OpenCall records the arguments of a single [Capture.Open] invocation.
type OpenCall struct {
	Config audio.CaptureConfig
}

// Capture is a mock implementation of [audio.Capture]. Frames are delivered
// synchronously by [Capture.Emit] to every stream that is still open.
type Capture struct {
	mu sync.Mutex

	// OpenError, when non-nil, is returned by [Capture.Open] and no stream is
	// registered.
	OpenError error

	// OpenCalls records every Open invocation in order.
	OpenCalls []OpenCall

	// Streams holds every stream returned by Open, in order.
	Streams []*Stream

	callbacks []audio.FrameFunc
}

// Open implements [audio.Capture].
func (c *Capture) Open(cfg audio.CaptureConfig, fn audio.FrameFunc) (audio.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.OpenCalls = append(c.OpenCalls, OpenCall{Config: cfg})
	if c.OpenError != nil {
		return nil, c.OpenError
	}
	s := &Stream{}
	c.Streams = append(c.Streams, s)
	c.callbacks = append(c.callbacks, fn)
	return s, nil
}

// Emit delivers frame to every open stream's callback and returns the number of
// callbacks invoked.
func (c *Capture) Emit(frame audio.AudioFrame) int {
	c.mu.Lock()
	var fns []audio.FrameFunc
	for i, s := range c.Streams {
		if !s.Closed() {
			fns = append(fns, c.callbacks[i])
		}
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(frame)
	}
	return len(fns)
}

// OpenCount returns the number of successful Open calls.
func (c *Capture) OpenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Streams)
}

// Compile-time interface assertions.
var (
	_ audio.Capture = (*Capture)(nil)
	_ audio.Stream  = (*Stream)(nil)
)
