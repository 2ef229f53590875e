// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller creates recognizers with the expected
// StreamConfig. Use Recognizer to script final transcripts and inspect which
// audio blocks were delivered.
//
// Example:
//
//	rec := &mock.Recognizer{}
//	rec.QueueFinal("bad game")
//	p := &mock.Provider{Recognizers: []*mock.Recognizer{rec}}
//	r, _ := p.NewRecognizer(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/rapvox/pkg/provider/stt"
)

// NewRecognizerCall records a single invocation of Provider.NewRecognizer.
type NewRecognizerCall struct {
	// Ctx is the context passed to NewRecognizer.
	Ctx context.Context
	// Cfg is the StreamConfig passed to NewRecognizer.
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Recognizers are handed out by NewRecognizer in order. Once exhausted, a
	// fresh default Recognizer is created for every call and appended.
	Recognizers []*Recognizer

	// NewRecognizerErr, if non-nil, is returned as the error from NewRecognizer.
	NewRecognizerErr error

	// NewRecognizerCalls records every call to NewRecognizer.
	NewRecognizerCalls []NewRecognizerCall

	next int
}

// NewRecognizer records the call and returns the next scripted Recognizer.
func (p *Provider) NewRecognizer(ctx context.Context, cfg stt.StreamConfig) (stt.Recognizer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.NewRecognizerCalls = append(p.NewRecognizerCalls, NewRecognizerCall{Ctx: ctx, Cfg: cfg})
	if p.NewRecognizerErr != nil {
		return nil, p.NewRecognizerErr
	}
	if p.next >= len(p.Recognizers) {
		p.Recognizers = append(p.Recognizers, &Recognizer{})
	}
	r := p.Recognizers[p.next]
	p.next++
	r.mu.Lock()
	r.Config = cfg
	r.mu.Unlock()
	return r, nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// Recognizer is a mock implementation of stt.Recognizer.
//
// Scripted finals (QueueFinal) are reported by the next non-empty
// AcceptWaveform call and returned by Result in FIFO order. An empty block
// flushes Partial into a final, mimicking a forced end of utterance. Reset
// clears Partial but keeps scripted finals, which model future utterances.
type Recognizer struct {
	mu sync.Mutex

	// Config is the StreamConfig the recognizer was created with.
	Config stt.StreamConfig

	// Partial is the current interim hypothesis returned by PartialResult.
	Partial string

	// AcceptErr, if non-nil, is returned by every AcceptWaveform call.
	AcceptErr error

	// ResultErr, if non-nil, is returned by every Result call.
	ResultErr error

	// ResetErr, if non-nil, is returned by Reset.
	ResetErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// Accepted records a copy of every block passed to AcceptWaveform.
	Accepted [][]byte

	// ResetCount is the number of times Reset was called.
	ResetCount int

	// CloseCount is the number of times Close was called.
	CloseCount int

	finals  []string
	flushed *string
}

// QueueFinal scripts a final transcript for a future utterance.
func (r *Recognizer) QueueFinal(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finals = append(r.finals, text)
}

// SetPartial replaces the interim hypothesis.
func (r *Recognizer) SetPartial(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Partial = text
}

// AcceptWaveform records the block and reports whether a final is available.
func (r *Recognizer) AcceptWaveform(pcm []byte) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	r.Accepted = append(r.Accepted, cp)
	if r.AcceptErr != nil {
		return false, r.AcceptErr
	}
	if len(pcm) == 0 {
		text := r.Partial
		r.Partial = ""
		r.flushed = &text
		return true, nil
	}
	return len(r.finals) > 0, nil
}

// Result returns the flushed partial if a flush happened, otherwise the next
// scripted final, otherwise an empty transcript.
func (r *Recognizer) Result() (stt.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ResultErr != nil {
		return stt.Transcript{}, r.ResultErr
	}
	if r.flushed != nil {
		text := *r.flushed
		r.flushed = nil
		return stt.Transcript{Text: text, IsFinal: true}, nil
	}
	if len(r.finals) == 0 {
		return stt.Transcript{IsFinal: true}, nil
	}
	text := r.finals[0]
	r.finals = r.finals[1:]
	return stt.Transcript{Text: text, IsFinal: true}, nil
}

// PartialResult returns Partial.
func (r *Recognizer) PartialResult() (stt.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return stt.Transcript{Text: r.Partial}, nil
}

// Reset clears the interim hypothesis and any pending flush.
func (r *Recognizer) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ResetCount++
	r.Partial = ""
	r.flushed = nil
	return r.ResetErr
}

// Close records the call and returns CloseErr.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CloseCount++
	return r.CloseErr
}

// Resets returns the number of Reset calls. Thread-safe.
func (r *Recognizer) Resets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResetCount
}

// Closes returns the number of Close calls. Thread-safe.
func (r *Recognizer) Closes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.CloseCount
}

// AcceptedCount returns the number of AcceptWaveform calls. Thread-safe.
func (r *Recognizer) AcceptedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Accepted)
}

// Ensure Recognizer implements stt.Recognizer at compile time.
var _ stt.Recognizer = (*Recognizer)(nil)
