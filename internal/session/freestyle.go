package session

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/rapvox/internal/freestyle"
	"github.com/MrWong99/rapvox/internal/observe"
	"github.com/MrWong99/rapvox/internal/protocol"
)

// handleControl applies one client control message.
func (s *Session) handleControl(ctx context.Context, c protocol.Control) {
	switch {
	case c.SetMode != nil:
		s.setMode(ctx, c.SetMode.Mode)
	case c.ListenWindow != nil:
		s.listenWindow(ctx, *c.ListenWindow)
	}
}

// setMode switches between command and freestyle. Switching resets both
// recognizers and discards any open window without scoring it.
func (s *Session) setMode(ctx context.Context, m protocol.Mode) {
	if !m.IsValid() {
		s.log.Debug("ignoring unknown mode", "mode", m)
		return
	}
	if m == s.mode {
		return
	}
	s.resetUtterance(true)
	s.window = nil
	if m == protocol.ModeFreestyle {
		s.window = freestyle.NewUntimedWindow(s.cfg.Settings.Scorer)
	}
	s.mode = m
	s.metrics.RecordModeSwitch(ctx, string(m))
	s.log.Info("mode changed", "mode", m)
}

// listenWindow opens a fresh timed freestyle window, replacing any previous
// one unscored.
func (s *Session) listenWindow(ctx context.Context, lw protocol.ListenWindow) {
	if lw.MS <= 0 {
		s.log.Debug("ignoring listen_window without duration", "ms", lw.MS)
		return
	}
	switched := s.mode != protocol.ModeFreestyle
	s.resetUtterance(switched)
	if switched {
		s.mode = protocol.ModeFreestyle
		s.metrics.RecordModeSwitch(ctx, string(protocol.ModeFreestyle))
	}
	deadline := s.now().Add(time.Duration(lw.MS) * time.Millisecond)
	s.window = freestyle.NewWindow(s.cfg.Settings.Scorer, deadline, lw.BPM, lw.Bars, lw.Grid)
	s.log.Info("listen window opened",
		"ms", lw.MS,
		"bpm", lw.BPM,
		"bars", lw.Bars,
		"grid", lw.Grid,
	)
}

// handleFreestyleFinal appends a freestyle transcript fragment to the window.
func (s *Session) handleFreestyleFinal(text string) {
	if s.window == nil {
		return
	}
	s.window.Add(text)
	if text != "" {
		s.log.Debug("freestyle fragment", "text", text, "fragments", s.window.Fragments())
	}
}

// finalizeWindow scores the open timed window once and sends the result.
// Untimed windows and windows that were already scored are left alone.
func (s *Session) finalizeWindow(ctx context.Context, trigger string) {
	w := s.window
	if s.mode != protocol.ModeFreestyle || w == nil || !w.Timed() || w.Finalized() {
		return
	}

	ctx, span := observe.StartSpan(ctx, "session.freestyle.finalize",
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.String("trigger", trigger),
		))
	defer span.End()

	rec := s.recs.Freestyle
	score, text, words, ok := w.Finalize(func() string {
		if _, err := rec.AcceptWaveform(nil); err != nil {
			s.log.Warn("freestyle flush failed", "err", err)
			return ""
		}
		res, err := rec.Result()
		if err != nil {
			s.log.Debug("skipping undecodable freestyle tail", "err", err)
			return ""
		}
		return res.Text
	})
	if !ok {
		return
	}
	if err := rec.Reset(); err != nil {
		s.log.Warn("recognizer reset failed", "mode", s.mode, "err", err)
	}
	s.partial = ""

	span.SetAttributes(
		attribute.Float64("judge.total", score.Total),
		attribute.String("judge.rank", string(score.Rank)),
		attribute.Int("words", len(words)),
	)
	s.metrics.RecordFreestyleScore(ctx, score.Total, string(score.Rank))
	s.log.Info("freestyle scored",
		"trigger", trigger,
		"words", len(words),
		"rhyme", score.Rhyme,
		"onbeat", score.OnBeat,
		"variety", score.Variety,
		"complete", score.Completion,
		"total", score.Total,
		"rank", score.Rank,
	)

	if err := s.cfg.Sender.Send(ctx, protocol.NewFreestyleFinal(text, words, score)); err != nil {
		s.metrics.SendErrors.Add(ctx, 1)
		s.log.Warn("failed to send freestyle_final", "err", err)
	}
}
