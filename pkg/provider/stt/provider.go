// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a local recognition engine (Vosk, whisper.cpp) and
// exposes a uniform, synchronous interface. The central abstraction is
// Recognizer: it accepts raw PCM audio blocks and reports when it has committed
// to an utterance, at which point the caller collects the final transcript.
// Partial hypotheses can be polled at any time.
//
// A Recognizer is NOT safe for concurrent use. It is owned by exactly one
// session goroutine, which serialises audio, control and reset calls. Providers,
// however, must be safe for concurrent use so several sessions can create
// recognizers from a shared model.
package stt

import (
	"context"
	"errors"
)

// ErrClosed is returned by Recognizer methods called after Close.
var ErrClosed = errors.New("stt: recognizer closed")

// StreamConfig describes the audio format and recognition constraints for a
// new recognizer.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Audio is always mono 16-bit.
	SampleRate int

	// Language is a language hint (e.g., "en"). Providers that load a
	// language-specific model ignore it.
	Language string

	// Grammar, when non-empty, restricts recognition to the listed phrases.
	// The recognizer may still return its unknown marker (e.g. "[unk]") when
	// nothing in the grammar fits. A nil Grammar means free dictation.
	Grammar []string
}

// Recognizer is a single recognition context.
//
// Callers must call Close when the recognizer is no longer needed.
type Recognizer interface {
	// AcceptWaveform feeds one block of 16-bit little-endian mono PCM. It
	// returns true when the recognizer has reached an utterance boundary and a
	// final transcript is available from Result. An empty pcm forces the
	// recognizer to finalise whatever it has buffered; it always returns true.
	AcceptWaveform(pcm []byte) (final bool, err error)

	// Result returns the final transcript of the last utterance and clears it.
	Result() (Transcript, error)

	// PartialResult returns the current interim hypothesis without consuming it.
	PartialResult() (Transcript, error)

	// Reset discards all buffered audio and hypotheses so the next utterance
	// starts clean.
	Reset() error

	// Close releases engine resources. Calling Close more than once is safe.
	Close() error
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// NewRecognizer creates a recognition context for cfg.
	//
	// Returns an error if the provider cannot create the context (unsupported
	// configuration, or ctx already cancelled). The caller owns the Recognizer.
	NewRecognizer(ctx context.Context, cfg StreamConfig) (Recognizer, error)
}
