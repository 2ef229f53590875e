package config

import (
	"slices"
	"time"

	"github.com/MrWong99/rapvox/internal/freestyle"
	"github.com/MrWong99/rapvox/internal/gate"
	"github.com/MrWong99/rapvox/internal/grammar"
	"github.com/MrWong99/rapvox/internal/segment"
	"github.com/MrWong99/rapvox/internal/unmatched"
	"github.com/MrWong99/rapvox/pkg/audio"
	"github.com/MrWong99/rapvox/pkg/provider/vad/energy"
)

// Default values applied by [ApplyDefaults].
const (
	DefaultListenAddr        = "localhost:8765"
	DefaultWSPath            = "/"
	DefaultMaxSessions       = 1
	DefaultSendTimeout       = 2 * time.Second
	DefaultAudioSource       = "portaudio"
	DefaultQueueSize         = 64
	DefaultRecognizer        = "vosk"
	DefaultPhoneticThreshold = 0.85
)

// ApplyDefaults fills every zero field of cfg with its default. It is applied
// by [LoadFromReader] before validation, so a missing key and an explicit zero
// behave the same.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.WSPath == "" {
		cfg.Server.WSPath = DefaultWSPath
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.MaxSessions == 0 {
		cfg.Server.MaxSessions = DefaultMaxSessions
	}
	if cfg.Server.SendTimeout == 0 {
		cfg.Server.SendTimeout = DefaultSendTimeout
	}

	if cfg.Audio.Source == "" {
		cfg.Audio.Source = DefaultAudioSource
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = audio.DefaultSampleRate
	}
	if cfg.Audio.FrameSize == 0 {
		cfg.Audio.FrameSize = audio.DefaultFrameSize
	}
	if cfg.Audio.QueueSize == 0 {
		cfg.Audio.QueueSize = DefaultQueueSize
	}

	if cfg.Recognizer.Name == "" {
		cfg.Recognizer.Name = DefaultRecognizer
	}

	if cfg.Segmenter.SilenceThreshold == 0 {
		cfg.Segmenter.SilenceThreshold = energy.DefaultThreshold
	}
	if cfg.Segmenter.EndSilence == 0 {
		cfg.Segmenter.EndSilence = segment.DefaultEndSilence
	}

	if cfg.Command.MinGapBetweenFinals == 0 {
		cfg.Command.MinGapBetweenFinals = gate.DefaultMinGap
	}
	if cfg.Command.ServerCooldown == 0 {
		cfg.Command.ServerCooldown = gate.DefaultCooldown
	}
	if cfg.Command.UnknownToken == "" {
		cfg.Command.UnknownToken = grammar.DefaultUnknownToken
	}

	if cfg.Grammar.Policy == "" {
		cfg.Grammar.Policy = grammar.PolicyExact
	}
	if len(cfg.Grammar.Phrases) == 0 {
		cfg.Grammar.Phrases = slices.Clone(grammar.DefaultPhrases)
	}
	if cfg.Grammar.PhoneticThreshold == 0 {
		cfg.Grammar.PhoneticThreshold = DefaultPhoneticThreshold
	}

	if cfg.Freestyle.TargetWords == 0 {
		cfg.Freestyle.TargetWords = freestyle.DefaultTargetWords
	}
	if cfg.Freestyle.TargetWordsPerLine == 0 {
		cfg.Freestyle.TargetWordsPerLine = freestyle.DefaultTargetWordsPerLine
	}
	if cfg.Freestyle.Weights == (freestyle.Weights{}) {
		cfg.Freestyle.Weights = freestyle.DefaultWeights
	}

	if cfg.Unmatched.Path == "" {
		cfg.Unmatched.Path = unmatched.DefaultPath
	}
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
