// Package vosk implements stt.Provider on top of the Vosk offline recognition
// engine via its CGO bindings (github.com/alphacep/vosk-api/go). The libvosk
// shared library and vosk_api.h must be available at build and run time.
//
// The model is loaded once and shared across recognizers. Each recognizer is
// either grammar-constrained (StreamConfig.Grammar non-empty, created with
// NewRecognizerGrm) or free dictation. Word timings and alternatives are
// disabled so results are plain {"text": "..."} objects.
package vosk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/MrWong99/rapvox/pkg/provider/stt"
)

const defaultSampleRate = 16000

// Compile-time assertions.
var (
	_ stt.Provider   = (*Provider)(nil)
	_ stt.Recognizer = (*recognizer)(nil)
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithSampleRate sets the default sample rate used when StreamConfig.SampleRate
// is zero. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithLogLevel sets the global Vosk/Kaldi log level. -1 silences the engine.
func WithLogLevel(level int) Option {
	return func(p *Provider) { vosk.SetLogLevel(level) }
}

// Provider loads a Vosk model and creates recognizers from it.
type Provider struct {
	model      *vosk.VoskModel
	sampleRate int

	mu     sync.Mutex
	closed bool
}

// New loads the Vosk model directory at modelPath. The caller must call Close
// when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("vosk: modelPath must not be empty")
	}
	p := &Provider{sampleRate: defaultSampleRate}
	for _, o := range opts {
		o(p)
	}
	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("vosk: load model %q: %w", modelPath, err)
	}
	p.model = model
	return p, nil
}

// Close frees the model. Recognizers must be closed first.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	p.model.Free()
	return nil
}

// NewRecognizer creates a recognizer. A non-empty cfg.Grammar restricts
// recognition to those phrases.
func (p *Provider) NewRecognizer(ctx context.Context, cfg stt.StreamConfig) (stt.Recognizer, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("vosk: context already cancelled: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, stt.ErrClosed
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = p.sampleRate
	}

	var (
		rec *vosk.VoskRecognizer
		err error
	)
	if len(cfg.Grammar) > 0 {
		grm, gerr := GrammarJSON(cfg.Grammar)
		if gerr != nil {
			return nil, gerr
		}
		rec, err = vosk.NewRecognizerGrm(p.model, float64(rate), grm)
	} else {
		rec, err = vosk.NewRecognizer(p.model, float64(rate))
	}
	if err != nil {
		return nil, fmt.Errorf("vosk: create recognizer: %w", err)
	}
	rec.SetMaxAlternatives(0)
	rec.SetWords(0)

	slog.Debug("vosk: recognizer created", "sample_rate", rate, "grammar_phrases", len(cfg.Grammar))
	return &recognizer{rec: rec}, nil
}

// GrammarJSON encodes phrases as the JSON array Vosk expects for a closed
// grammar.
func GrammarJSON(phrases []string) (string, error) {
	b, err := json.Marshal(phrases)
	if err != nil {
		return "", fmt.Errorf("vosk: encode grammar: %w", err)
	}
	return string(b), nil
}

type result struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

// parseResult decodes a Vosk result object. Partial results carry their text
// in "partial", final results in "text".
func parseResult(raw string, final bool) (stt.Transcript, error) {
	var r result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return stt.Transcript{}, fmt.Errorf("vosk: decode result: %w", err)
	}
	if final {
		return stt.Transcript{Text: r.Text, IsFinal: true}, nil
	}
	return stt.Transcript{Text: r.Partial}, nil
}

// recognizer adapts a *vosk.VoskRecognizer to stt.Recognizer. It is owned by
// one goroutine; no locking.
type recognizer struct {
	rec *vosk.VoskRecognizer

	// pending holds the FinalResult captured by a flush so Result can return it.
	pending *string
}

func (r *recognizer) AcceptWaveform(pcm []byte) (bool, error) {
	if r.rec == nil {
		return false, stt.ErrClosed
	}
	if len(pcm) == 0 {
		raw := r.rec.FinalResult()
		r.pending = &raw
		return true, nil
	}
	switch r.rec.AcceptWaveform(pcm) {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, errors.New("vosk: accept waveform failed")
	}
}

func (r *recognizer) Result() (stt.Transcript, error) {
	if r.rec == nil {
		return stt.Transcript{}, stt.ErrClosed
	}
	if r.pending != nil {
		raw := *r.pending
		r.pending = nil
		return parseResult(raw, true)
	}
	return parseResult(r.rec.Result(), true)
}

func (r *recognizer) PartialResult() (stt.Transcript, error) {
	if r.rec == nil {
		return stt.Transcript{}, stt.ErrClosed
	}
	return parseResult(r.rec.PartialResult(), false)
}

func (r *recognizer) Reset() error {
	if r.rec == nil {
		return stt.ErrClosed
	}
	r.pending = nil
	r.rec.Reset()
	return nil
}

func (r *recognizer) Close() error {
	if r.rec == nil {
		return nil
	}
	r.rec.Free()
	r.rec = nil
	return nil
}
