package session

import (
	"context"

	"github.com/MrWong99/rapvox/internal/observe"
	"github.com/MrWong99/rapvox/internal/protocol"
	"github.com/MrWong99/rapvox/internal/unmatched"
)

// handleCommandFinal runs one command final through normalisation, debounce,
// grammar matching and cooldown, and sends the matched phrase.
func (s *Session) handleCommandFinal(ctx context.Context, raw string) {
	g := s.cfg.Settings.Grammar
	if g.Declined(raw) {
		s.metrics.RecordUnmatched(ctx, observe.KindDeclined)
		s.log.Debug("recognizer declined utterance")
		s.cfg.Unmatched.Log(ctx, unmatched.Entry{SessionID: s.id, Kind: unmatched.KindDeclined, Raw: raw})
		return
	}

	clean := s.norm.Normalize(raw)
	if clean == "" {
		return
	}
	now := s.now()

	if !s.gate.Observe(clean, now) {
		s.metrics.RecordSuppressed(ctx, observe.ReasonDebounce)
		s.log.Debug("final suppressed", "reason", observe.ReasonDebounce, "text", clean)
		return
	}

	phrase, ok := g.Match(clean)
	if !ok {
		s.metrics.RecordUnmatched(ctx, observe.KindUnmatched)
		s.log.Info("unmatched final", "text", clean)
		s.cfg.Unmatched.Log(ctx, unmatched.Entry{SessionID: s.id, Kind: unmatched.KindUnmatched, Text: clean, Raw: raw})
		return
	}

	if !s.gate.Admit(now) {
		s.metrics.RecordSuppressed(ctx, observe.ReasonCooldown)
		s.log.Debug("final suppressed", "reason", observe.ReasonCooldown, "phrase", phrase)
		return
	}

	if err := s.cfg.Sender.Send(ctx, protocol.NewFinal(phrase)); err != nil {
		s.metrics.SendErrors.Add(ctx, 1)
		s.log.Warn("failed to send final", "phrase", phrase, "err", err)
		return
	}
	s.gate.MarkSent(now)
	s.metrics.RecordCommand(ctx, phrase)
	s.log.Info("command", "phrase", phrase, "heard", clean)
}
