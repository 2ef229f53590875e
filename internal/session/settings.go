package session

import (
	"fmt"
	"time"

	"github.com/MrWong99/rapvox/internal/config"
	"github.com/MrWong99/rapvox/internal/freestyle"
	"github.com/MrWong99/rapvox/internal/gate"
	"github.com/MrWong99/rapvox/internal/grammar"
	"github.com/MrWong99/rapvox/pkg/audio"
)

// Settings holds the per-deployment parameters a session is created with.
// A Settings value is immutable once built and may be shared by any number of
// sessions. Config reloads build a new value; running sessions keep theirs.
type Settings struct {
	// Grammar matches command finals.
	Grammar *grammar.Grammar

	// Scorer scores freestyle windows.
	Scorer *freestyle.Scorer

	// Gate holds the debounce and cooldown timings.
	Gate gate.Config

	// SilenceThreshold is the RMS level below which a frame is silent.
	SilenceThreshold float64

	// EndSilence is the quiet duration that forces an utterance boundary.
	EndSilence time.Duration

	// Capture is the frame format requested from the capture device.
	Capture audio.CaptureConfig

	// Language is passed to recognizers that support it.
	Language string

	// QueueSize bounds the frame channel between the capture callback and the
	// session loop.
	QueueSize int
}

// NewSettings builds Settings from a validated configuration.
func NewSettings(cfg *config.Config) (Settings, error) {
	g, err := grammar.New(cfg.Grammar.Phrases,
		grammar.WithPolicy(cfg.Grammar.Policy),
		grammar.WithUnknownToken(cfg.Command.UnknownToken),
		grammar.WithPhoneticThreshold(cfg.Grammar.PhoneticThreshold),
	)
	if err != nil {
		return Settings{}, fmt.Errorf("session: build grammar: %w", err)
	}
	return Settings{
		Grammar: g,
		Scorer:  freestyle.NewScorer(cfg.Freestyle.ScorerConfig()),
		Gate: gate.Config{
			MinGap:   cfg.Command.MinGapBetweenFinals,
			Cooldown: cfg.Command.ServerCooldown,
		},
		SilenceThreshold: cfg.Segmenter.SilenceThreshold,
		EndSilence:       cfg.Segmenter.EndSilence,
		Capture: audio.CaptureConfig{
			SampleRate: cfg.Audio.SampleRate,
			FrameSize:  cfg.Audio.FrameSize,
		}.WithDefaults(),
		Language:  cfg.Recognizer.Language,
		QueueSize: cfg.Audio.QueueSize,
	}, nil
}
