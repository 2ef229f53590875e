// Package audio defines the capture abstraction and the PCM helpers shared by
// the rapvox voice pipeline.
//
// The two primary abstractions are:
//
//   - [Capture] opens a device (or a replay file) and invokes a callback for
//     every fixed-size frame on the device's own timing goroutine.
//   - [Stream] is an open capture stream that must be closed when the session
//     that opened it ends.
//
// Implementations live in sub-packages (audio/portaudio, audio/wavfile).
package audio

import "errors"

// ErrStreamClosed is returned by implementations when an operation is
// attempted on a stream that has already been closed.
var ErrStreamClosed = errors.New("audio: stream closed")

// CaptureConfig describes the frame format requested from a capture device.
type CaptureConfig struct {
	// SampleRate in Hz. Defaults to [DefaultSampleRate] when zero.
	SampleRate int

	// FrameSize is the number of samples delivered per callback. Defaults to
	// [DefaultFrameSize] when zero.
	FrameSize int
}

// WithDefaults returns a copy of c with zero fields replaced by defaults.
func (c CaptureConfig) WithDefaults() CaptureConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.FrameSize <= 0 {
		c.FrameSize = DefaultFrameSize
	}
	return c
}

// FrameFunc receives captured frames. It is invoked on the device's real-time
// goroutine at a fixed cadence and must never block: implementations of the
// consumer side hand the frame off and return immediately. The frame's Data is
// owned by the callee.
type FrameFunc func(AudioFrame)

// Stream is an open capture stream.
type Stream interface {
	// Close stops delivery and releases the device. After Close returns no
	// further FrameFunc invocations happen. Calling Close more than once is
	// safe and returns nil.
	Close() error
}

// Capture is the factory for capture streams. One stream is opened per
// connected client session.
//
// Implementations must be safe for concurrent use.
type Capture interface {
	// Open starts capturing with cfg and delivers every frame to fn until the
	// returned Stream is closed.
	Open(cfg CaptureConfig, fn FrameFunc) (Stream, error)
}
