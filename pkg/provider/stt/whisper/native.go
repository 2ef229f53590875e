// Package whisper implements stt.Provider using the whisper.cpp CGO bindings.
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must be
// available at link time via LIBRARY_PATH and C_INCLUDE_PATH.
//
// whisper.cpp is a batch model: it has no streaming hypotheses and no closed
// grammar. A recognizer therefore buffers audio until it is flushed (an empty
// block) or the buffer reaches its maximum duration, then transcribes the whole
// buffer at once. Grammar constraints are left to the caller's matcher.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/rapvox/pkg/provider/stt"
)

const (
	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultMaxBufferDurationMs = 10_000
)

// Compile-time assertions.
var (
	_ stt.Provider   = (*NativeProvider)(nil)
	_ stt.Recognizer = (*nativeRecognizer)(nil)
)

// NativeProvider implements stt.Provider using whisper.cpp Go bindings. The
// model is loaded once at startup and shared across all recognizers.
type NativeProvider struct {
	model               whisperlib.Model
	language            string
	sampleRate          int
	maxBufferDurationMs int
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription (e.g., "en",
// "no", "fi"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeSampleRate sets the default audio sample rate in Hz. Defaults to
// 16000.
func WithNativeSampleRate(rate int) NativeOption {
	return func(p *NativeProvider) { p.sampleRate = rate }
}

// WithNativeMaxBufferDurationMs sets the maximum buffered audio duration (ms)
// before an utterance is finalised without a flush. Defaults to 10 000 ms.
func WithNativeMaxBufferDurationMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.maxBufferDurationMs = ms }
}

// NewNative creates a NativeProvider that loads the whisper.cpp model from
// the given file path. The caller must call Close when the provider is no
// longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model:               model,
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// NewRecognizer creates a buffering recognizer. cfg.Grammar is ignored.
func (p *NativeProvider) NewRecognizer(ctx context.Context, cfg stt.StreamConfig) (stt.Recognizer, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = p.sampleRate
	}
	if len(cfg.Grammar) > 0 {
		slog.Debug("whisper: closed grammar not supported, recognizing freely", "phrases", len(cfg.Grammar))
	}

	r := &nativeRecognizer{
		maxBytes: p.maxBufferDurationMs * sr * 2 / 1000,
	}
	r.transcribe = func(samples []float32) (string, error) {
		return p.infer(lang, samples)
	}
	return r, nil
}

// infer runs whisper.cpp over samples using a fresh context. Contexts are not
// thread-safe, the model is.
func (p *NativeProvider) infer(language string, samples []float32) (string, error) {
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", language, "err", err)
	}
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// ---- nativeRecognizer -------------------------------------------------------

// nativeRecognizer buffers PCM until it is flushed. Owned by one goroutine.
type nativeRecognizer struct {
	transcribe func([]float32) (string, error)
	maxBytes   int

	buffer  []byte
	pending *string
	closed  bool
}

func (r *nativeRecognizer) AcceptWaveform(pcm []byte) (bool, error) {
	if r.closed {
		return false, stt.ErrClosed
	}
	if len(pcm) > 0 {
		r.buffer = append(r.buffer, pcm...)
		if r.maxBytes <= 0 || len(r.buffer) < r.maxBytes {
			return false, nil
		}
	}
	if err := r.flush(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *nativeRecognizer) flush() error {
	pcm := r.buffer
	r.buffer = nil
	if len(pcm) == 0 {
		empty := ""
		r.pending = &empty
		return nil
	}
	text, err := r.transcribe(pcmToFloat32(pcm))
	if err != nil {
		return err
	}
	r.pending = &text
	return nil
}

func (r *nativeRecognizer) Result() (stt.Transcript, error) {
	if r.closed {
		return stt.Transcript{}, stt.ErrClosed
	}
	if r.pending == nil {
		return stt.Transcript{IsFinal: true}, nil
	}
	text := *r.pending
	r.pending = nil
	return stt.Transcript{Text: text, IsFinal: true}, nil
}

// PartialResult always returns an empty transcript; whisper.cpp produces no
// interim hypotheses.
func (r *nativeRecognizer) PartialResult() (stt.Transcript, error) {
	if r.closed {
		return stt.Transcript{}, stt.ErrClosed
	}
	return stt.Transcript{}, nil
}

func (r *nativeRecognizer) Reset() error {
	if r.closed {
		return stt.ErrClosed
	}
	r.buffer = nil
	r.pending = nil
	return nil
}

func (r *nativeRecognizer) Close() error {
	r.closed = true
	r.buffer = nil
	r.pending = nil
	return nil
}
