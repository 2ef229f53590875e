// Package vad defines the Engine interface for Voice Activity Detection backends.
//
// A VAD engine wraps a frame-level speech detector and surfaces it as a
// stateful, per-stream session. Each session keeps its own state so multiple
// audio streams can be processed independently.
//
// VAD is synchronous: ProcessFrame returns immediately with a detection
// result, making it suitable for the session loop that gates recognizer input.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines.
package vad

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the PCM
	// frames passed to ProcessFrame.
	SampleRate int

	// EnergyThreshold is the RMS level, in raw 16-bit sample units, below which
	// a frame counts as silence. Typical for a close microphone: 1100.
	EnergyThreshold float64
}

// SessionHandle represents an active VAD session for a single audio stream.
// Reset clears detection state without closing the session.
type SessionHandle interface {
	// ProcessFrame analyses a single block of 16-bit little-endian mono PCM and
	// returns the detection result. It must not block.
	ProcessFrame(frame []byte) (VADEvent, error)

	// Reset clears all accumulated detection state without closing the session.
	Reset()

	// Close releases all resources associated with the session. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions.
//
// Implementations must be safe for concurrent use.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration.
	//
	// Returns an error if the configuration is invalid.
	NewSession(cfg Config) (SessionHandle, error)
}
