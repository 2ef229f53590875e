package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"recognizer": {"vosk", "whisper-native"},
	"audio":      {"portaudio", "wav"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It expects
// defaults to have been applied and returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !strings.HasPrefix(cfg.Server.WSPath, "/") {
		errs = append(errs, fmt.Errorf("server.ws_path %q must start with /", cfg.Server.WSPath))
	}
	if cfg.Server.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("server.max_sessions %d must not be negative", cfg.Server.MaxSessions))
	}
	if cfg.Server.SendTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.send_timeout %s must not be negative", cfg.Server.SendTimeout))
	}

	// Audio
	validateProviderName("audio", cfg.Audio.Source)
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be positive", cfg.Audio.FrameSize))
	}
	if cfg.Audio.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("audio.queue_size %d must be positive", cfg.Audio.QueueSize))
	}
	if cfg.Audio.Source == "wav" && cfg.Audio.WavFile == "" {
		errs = append(errs, errors.New("audio.wav_file is required when audio.source is wav"))
	}

	// Recognizer
	validateProviderName("recognizer", cfg.Recognizer.Name)
	if cfg.Recognizer.ModelPath == "" {
		slog.Warn("recognizer.model_path is empty; the recognizer will fail to load its model", "recognizer", cfg.Recognizer.Name)
	}
	if cfg.Recognizer.Name == "whisper-native" && cfg.Grammar.Policy == "exact" {
		slog.Warn("whisper-native has no closed grammar; consider grammar.policy longest or phonetic")
	}

	// Segmenter
	if t := cfg.Segmenter.SilenceThreshold; t < 0 || t > math.MaxInt16+1 || math.IsNaN(t) {
		errs = append(errs, fmt.Errorf("segmenter.silence_threshold %v is out of range [0, 32768]", t))
	}
	if cfg.Segmenter.EndSilence < 0 {
		errs = append(errs, fmt.Errorf("segmenter.end_silence %s must not be negative", cfg.Segmenter.EndSilence))
	}

	// Command
	if cfg.Command.MinGapBetweenFinals < 0 {
		errs = append(errs, fmt.Errorf("command.min_gap_between_finals %s must not be negative", cfg.Command.MinGapBetweenFinals))
	}
	if cfg.Command.ServerCooldown < 0 {
		errs = append(errs, fmt.Errorf("command.server_cooldown %s must not be negative", cfg.Command.ServerCooldown))
	}

	// Grammar
	if !cfg.Grammar.Policy.IsValid() {
		errs = append(errs, fmt.Errorf("grammar.policy %q is invalid; valid values: exact, longest, phonetic", cfg.Grammar.Policy))
	}
	for i, p := range cfg.Grammar.Phrases {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("grammar.phrases[%d] is empty", i))
		}
	}
	if t := cfg.Grammar.PhoneticThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("grammar.phonetic_threshold %v is out of range (0, 1]", t))
	}

	// Freestyle
	if cfg.Freestyle.TargetWords < 0 {
		errs = append(errs, fmt.Errorf("freestyle.target_words %d must be positive", cfg.Freestyle.TargetWords))
	}
	if cfg.Freestyle.TargetWordsPerLine < 0 {
		errs = append(errs, fmt.Errorf("freestyle.target_words_per_line %d must be positive", cfg.Freestyle.TargetWordsPerLine))
	}
	w := cfg.Freestyle.Weights
	if w.Rhyme < 0 || w.OnBeat < 0 || w.Variety < 0 || w.Completion < 0 {
		errs = append(errs, errors.New("freestyle.weights must not be negative"))
	} else if sum := w.Rhyme + w.OnBeat + w.Variety + w.Completion; math.Abs(sum-1) > 1e-6 {
		slog.Warn("freestyle.weights do not sum to 1; totals are clamped to [0, 1]", "sum", sum)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
