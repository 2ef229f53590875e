package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked. The log level is
// applied immediately; the rest applies to sessions created afterwards.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// GrammarChanged is true if the policy, phrases, phonetic threshold or
	// unknown token changed.
	GrammarChanged bool

	// TimingChanged is true if the gate or segmenter timings changed.
	TimingChanged bool

	// ScoringChanged is true if the freestyle targets or weights changed.
	ScoringChanged bool

	// RestartRequired lists changed keys that only take effect after a
	// restart (listener, capture backend, recognizer model).
	RestartRequired []string
}

// Changed reports whether any tracked field changed.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.GrammarChanged || d.TimingChanged || d.ScoringChanged || len(d.RestartRequired) > 0
}

// SessionSettingsChanged reports whether sessions created from the new config
// behave differently.
func (d ConfigDiff) SessionSettingsChanged() bool {
	return d.GrammarChanged || d.TimingChanged || d.ScoringChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Grammar
	if old.Grammar.Policy != new.Grammar.Policy ||
		old.Grammar.PhoneticThreshold != new.Grammar.PhoneticThreshold ||
		old.Command.UnknownToken != new.Command.UnknownToken ||
		!slices.Equal(old.Grammar.Phrases, new.Grammar.Phrases) {
		d.GrammarChanged = true
	}

	// Timing
	if old.Command.MinGapBetweenFinals != new.Command.MinGapBetweenFinals ||
		old.Command.ServerCooldown != new.Command.ServerCooldown ||
		old.Segmenter != new.Segmenter {
		d.TimingChanged = true
	}

	// Scoring
	if old.Freestyle != new.Freestyle {
		d.ScoringChanged = true
	}

	// Restart-only keys
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Server.WSPath != new.Server.WSPath {
		d.RestartRequired = append(d.RestartRequired, "server.ws_path")
	}
	if old.Audio != new.Audio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.Recognizer.Name != new.Recognizer.Name || old.Recognizer.ModelPath != new.Recognizer.ModelPath {
		d.RestartRequired = append(d.RestartRequired, "recognizer")
	}
	if old.Unmatched != new.Unmatched {
		d.RestartRequired = append(d.RestartRequired, "unmatched")
	}

	return d
}
