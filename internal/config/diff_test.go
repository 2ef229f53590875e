package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/rapvox/internal/config"
	"github.com/MrWong99/rapvox/internal/grammar"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(config.Default(), config.Default())
	if d.Changed() {
		t.Errorf("Diff of equal configs = %+v", d)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		check   func(config.ConfigDiff) bool
		session bool
	}{
		{
			name:   "log level",
			mutate: func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			check:  func(d config.ConfigDiff) bool { return d.LogLevelChanged && d.NewLogLevel == config.LogDebug },
		},
		{
			name:    "policy",
			mutate:  func(c *config.Config) { c.Grammar.Policy = grammar.PolicyPhonetic },
			check:   func(d config.ConfigDiff) bool { return d.GrammarChanged },
			session: true,
		},
		{
			name:    "phrases",
			mutate:  func(c *config.Config) { c.Grammar.Phrases = append(c.Grammar.Phrases, "new phrase") },
			check:   func(d config.ConfigDiff) bool { return d.GrammarChanged },
			session: true,
		},
		{
			name:    "cooldown",
			mutate:  func(c *config.Config) { c.Command.ServerCooldown = 3 * time.Second },
			check:   func(d config.ConfigDiff) bool { return d.TimingChanged },
			session: true,
		},
		{
			name:    "end silence",
			mutate:  func(c *config.Config) { c.Segmenter.EndSilence = time.Second },
			check:   func(d config.ConfigDiff) bool { return d.TimingChanged },
			session: true,
		},
		{
			name:    "weights",
			mutate:  func(c *config.Config) { c.Freestyle.Weights.Rhyme = 0.5 },
			check:   func(d config.ConfigDiff) bool { return d.ScoringChanged },
			session: true,
		},
		{
			name:   "listen addr needs restart",
			mutate: func(c *config.Config) { c.Server.ListenAddr = ":1" },
			check:  func(d config.ConfigDiff) bool { return slices.Contains(d.RestartRequired, "server.listen_addr") },
		},
		{
			name:   "model path needs restart",
			mutate: func(c *config.Config) { c.Recognizer.ModelPath = "/other" },
			check:  func(d config.ConfigDiff) bool { return slices.Contains(d.RestartRequired, "recognizer") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			updated := config.Default()
			tt.mutate(updated)
			d := config.Diff(config.Default(), updated)
			if !tt.check(d) {
				t.Errorf("Diff = %+v", d)
			}
			if d.SessionSettingsChanged() != tt.session {
				t.Errorf("SessionSettingsChanged = %v, want %v", d.SessionSettingsChanged(), tt.session)
			}
		})
	}
}
