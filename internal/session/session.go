// Package session implements the per-connection voice engine.
//
// A [Session] owns everything one client connection needs: the capture stream,
// the pair of recognizers, the silence tracker, the debounce/cooldown gate and
// the freestyle window. Exactly one goroutine, the one running [Session.Run],
// mutates that state. The capture callback hands frames over through a bounded
// channel ([Session.Enqueue]) and the transport read loop hands control
// messages over through [Session.Control], so frames and control messages are
// processed strictly one after another.
//
// The session starts in command mode. Command finals are normalised, matched
// against the grammar, gated and sent as "final" messages. In freestyle mode
// transcript fragments accumulate in a window that is scored once, when its
// deadline passes or when the client disconnects.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/rapvox/internal/freestyle"
	"github.com/MrWong99/rapvox/internal/gate"
	"github.com/MrWong99/rapvox/internal/grammar"
	"github.com/MrWong99/rapvox/internal/observe"
	"github.com/MrWong99/rapvox/internal/protocol"
	"github.com/MrWong99/rapvox/internal/segment"
	"github.com/MrWong99/rapvox/internal/unmatched"
	"github.com/MrWong99/rapvox/pkg/audio"
	"github.com/MrWong99/rapvox/pkg/provider/stt"
	"github.com/MrWong99/rapvox/pkg/provider/vad"
)

const defaultQueueSize = 64

// Sender delivers server messages to the client. Implementations apply their
// own write timeout; a failed send never ends the session.
type Sender interface {
	Send(ctx context.Context, msg any) error
}

// SenderFunc adapts a function to [Sender].
type SenderFunc func(ctx context.Context, msg any) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg any) error { return f(ctx, msg) }

// Config holds the collaborators of a session.
type Config struct {
	// Settings are the deployment parameters. Required.
	Settings Settings

	// STT creates the command and freestyle recognizers. Required.
	STT stt.Provider

	// VAD classifies frames as voiced or silent. Required.
	VAD vad.Engine

	// Capture opens the audio stream in [Session.Run]. Required.
	Capture audio.Capture

	// Sender delivers final and freestyle_final messages. Required.
	Sender Sender

	// Unmatched receives command finals that matched no phrase. Optional.
	Unmatched *unmatched.Logger

	// Metrics records session counters. Defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Now is the session clock. Defaults to time.Now.
	Now func() time.Time
}

// Session is one client connection's voice engine.
type Session struct {
	id      string
	cfg     Config
	log     *slog.Logger
	metrics *observe.Metrics
	now     func() time.Time

	frames  chan audio.AudioFrame
	control chan protocol.Control

	// Owned by the Run goroutine.
	recs    *Context
	vad     vad.SessionHandle
	tracker *segment.Tracker
	gate    *gate.Gate
	norm    grammar.Normalizer
	mode    protocol.Mode
	window  *freestyle.Window
	partial string
}

// New creates a session and its recognizers. The capture stream is not opened
// until [Session.Run].
func New(ctx context.Context, cfg Config) (*Session, error) {
	switch {
	case cfg.Settings.Grammar == nil:
		return nil, errors.New("session: Settings.Grammar is required")
	case cfg.Settings.Scorer == nil:
		return nil, errors.New("session: Settings.Scorer is required")
	case cfg.STT == nil:
		return nil, errors.New("session: STT provider is required")
	case cfg.VAD == nil:
		return nil, errors.New("session: VAD engine is required")
	case cfg.Capture == nil:
		return nil, errors.New("session: Capture is required")
	case cfg.Sender == nil:
		return nil, errors.New("session: Sender is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	st := cfg.Settings
	st.Capture = st.Capture.WithDefaults()
	if st.QueueSize <= 0 {
		st.QueueSize = defaultQueueSize
	}
	cfg.Settings = st

	recs, err := NewContext(ctx, cfg.STT, stt.StreamConfig{
		SampleRate: st.Capture.SampleRate,
		Language:   st.Language,
	}, st.Grammar.RecognizerGrammar())
	if err != nil {
		return nil, err
	}
	vs, err := cfg.VAD.NewSession(vad.Config{
		SampleRate:      st.Capture.SampleRate,
		EnergyThreshold: st.SilenceThreshold,
	})
	if err != nil {
		_ = recs.Close()
		return nil, fmt.Errorf("session: create vad session: %w", err)
	}

	id := uuid.NewString()
	return &Session{
		id:      id,
		cfg:     cfg,
		log:     observe.SessionLogger(ctx, id),
		metrics: cfg.Metrics,
		now:     cfg.Now,
		frames:  make(chan audio.AudioFrame, st.QueueSize),
		control: make(chan protocol.Control),
		recs:    recs,
		vad:     vs,
		tracker: segment.NewTracker(st.EndSilence),
		gate:    gate.New(st.Gate),
		norm:    grammar.Normalizer{Unknown: st.Grammar.UnknownToken()},
		mode:    protocol.ModeCommand,
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Enqueue hands a captured frame to the session loop. It never blocks: when
// the queue is full the frame is dropped and counted. Safe to call from the
// capture device's real-time goroutine.
func (s *Session) Enqueue(f audio.AudioFrame) {
	select {
	case s.frames <- f:
	default:
		s.metrics.FramesDropped.Add(context.Background(), 1)
	}
}

// Control hands a decoded control message to the session loop and waits until
// the loop has taken it or ctx is done.
func (s *Session) Control(ctx context.Context, c protocol.Control) error {
	select {
	case s.control <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run opens the capture stream and processes frames and control messages
// until ctx is cancelled. On return an open freestyle window has been scored
// and every resource of the session has been released. Run must be called at
// most once.
func (s *Session) Run(ctx context.Context) error {
	ctx, span := observe.StartSpan(ctx, "session.run",
		trace.WithAttributes(attribute.String("session.id", s.id)))
	defer span.End()

	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	stream, err := s.cfg.Capture.Open(s.cfg.Settings.Capture, s.Enqueue)
	if err != nil {
		s.release()
		return fmt.Errorf("session: open capture: %w", err)
	}
	s.log.Info("session started",
		"sample_rate", s.cfg.Settings.Capture.SampleRate,
		"frame_size", s.cfg.Settings.Capture.FrameSize,
		"policy", s.cfg.Settings.Grammar.Policy(),
	)

	for {
		select {
		case <-ctx.Done():
			closeErr := stream.Close()
			s.drain(ctx)
			s.finalizeWindow(context.WithoutCancel(ctx), "disconnect")
			s.release()
			s.log.Info("session ended")
			if closeErr != nil {
				return fmt.Errorf("session: close capture: %w", closeErr)
			}
			return nil
		case c := <-s.control:
			s.handleControl(ctx, c)
		case f := <-s.frames:
			s.handleFrame(ctx, f)
		}
	}
}

// drain applies control messages and frames that were already queued when
// the session was cancelled.
func (s *Session) drain(ctx context.Context) {
	for {
		select {
		case c := <-s.control:
			s.handleControl(ctx, c)
		case f := <-s.frames:
			s.handleFrame(ctx, f)
		default:
			return
		}
	}
}

func (s *Session) release() {
	if err := s.recs.Close(); err != nil {
		s.log.Warn("failed to close recognizers", "err", err)
	}
	if err := s.vad.Close(); err != nil {
		s.log.Warn("failed to close vad session", "err", err)
	}
}

// handleFrame routes one frame to the active mode's recognizer and finalises
// the utterance when the recognizer or the silence tracker ends it.
func (s *Session) handleFrame(ctx context.Context, f audio.AudioFrame) {
	s.metrics.FramesProcessed.Add(ctx, 1)
	now := s.now()

	if s.mode == protocol.ModeFreestyle {
		if s.window.Expired(now) {
			s.finalizeWindow(ctx, "deadline")
			return
		}
		if s.window.Finalized() {
			return
		}
	}

	ev, err := s.vad.ProcessFrame(f.Data)
	if err != nil {
		s.log.Debug("vad failed, treating frame as voiced", "err", err)
		ev = vad.VADEvent{Type: vad.VADSpeechContinue}
	}

	rec := s.recs.For(s.mode)
	start := time.Now()
	final, err := rec.AcceptWaveform(f.Data)
	s.metrics.RecordRecognizerLatency(ctx, time.Since(start).Seconds(), string(s.mode))
	if err != nil {
		s.log.Warn("recognizer rejected frame", "mode", s.mode, "err", err)
		return
	}

	if final {
		s.consume(ctx, rec)
		s.tracker.Reset()
		return
	}

	if s.tracker.Observe(ev.IsSilence(), now) {
		s.metrics.ForcedBoundaries.Add(ctx, 1)
		s.log.Debug("forcing utterance boundary", "mode", s.mode, "silence", s.tracker.Silence(now))
		if _, err := rec.AcceptWaveform(nil); err != nil {
			s.log.Warn("recognizer flush failed", "mode", s.mode, "err", err)
			return
		}
		s.consume(ctx, rec)
		return
	}

	s.cachePartial(rec)
}

func (s *Session) cachePartial(rec stt.Recognizer) {
	p, err := rec.PartialResult()
	if err != nil {
		s.log.Debug("partial result unavailable", "err", err)
		return
	}
	if !p.Empty() && p.Text != s.partial {
		s.log.Debug("partial", "mode", s.mode, "text", p.Text)
	}
	s.partial = p.Text
}

// consume reads the pending final of rec, hands it to the active mode and
// resets the recognizer so the next utterance starts clean.
func (s *Session) consume(ctx context.Context, rec stt.Recognizer) {
	s.partial = ""
	res, err := rec.Result()
	switch {
	case err != nil:
		s.log.Debug("skipping undecodable final", "err", err)
	case res.Empty():
		s.log.Debug("recognizer produced an empty final", "mode", s.mode)
	case s.mode == protocol.ModeFreestyle:
		s.handleFreestyleFinal(res.Text)
	default:
		s.handleCommandFinal(ctx, res.Text)
	}
	if err := rec.Reset(); err != nil {
		s.log.Warn("recognizer reset failed", "mode", s.mode, "err", err)
	}
}

// resetUtterance drops every trace of the in-flight utterance. both selects
// whether the command recognizer is reset too.
func (s *Session) resetUtterance(both bool) {
	var err error
	if both {
		err = s.recs.Reset()
	} else {
		err = s.recs.Freestyle.Reset()
	}
	if err != nil {
		s.log.Warn("recognizer reset failed", "err", err)
	}
	s.partial = ""
	s.tracker.Reset()
	s.vad.Reset()
}
