package config_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/MrWong99/rapvox/internal/config"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*config.Config) {}},
		{name: "ws_path without slash", mutate: func(c *config.Config) { c.Server.WSPath = "ws" }, wantErr: "server.ws_path"},
		{name: "negative max_sessions", mutate: func(c *config.Config) { c.Server.MaxSessions = -1 }, wantErr: "server.max_sessions"},
		{name: "wav without file", mutate: func(c *config.Config) { c.Audio.Source = "wav" }, wantErr: "audio.wav_file"},
		{name: "negative queue", mutate: func(c *config.Config) { c.Audio.QueueSize = -4 }, wantErr: "audio.queue_size"},
		{name: "threshold too high", mutate: func(c *config.Config) { c.Segmenter.SilenceThreshold = 40000 }, wantErr: "segmenter.silence_threshold"},
		{name: "negative end silence", mutate: func(c *config.Config) { c.Segmenter.EndSilence = -1 }, wantErr: "segmenter.end_silence"},
		{name: "negative cooldown", mutate: func(c *config.Config) { c.Command.ServerCooldown = -1 }, wantErr: "command.server_cooldown"},
		{name: "unknown policy", mutate: func(c *config.Config) { c.Grammar.Policy = "fuzzy" }, wantErr: "grammar.policy"},
		{name: "empty phrase", mutate: func(c *config.Config) { c.Grammar.Phrases = []string{"pizza", "  "} }, wantErr: "grammar.phrases[1]"},
		{name: "phonetic threshold above 1", mutate: func(c *config.Config) { c.Grammar.PhoneticThreshold = 1.5 }, wantErr: "grammar.phonetic_threshold"},
		{name: "negative weight", mutate: func(c *config.Config) { c.Freestyle.Weights.Rhyme = -0.1 }, wantErr: "freestyle.weights"},
		{name: "unknown recognizer only warns", mutate: func(c *config.Config) { c.Recognizer.Name = "kaldi-grpc" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Server.LogLevel = "loud"
	cfg.Grammar.Policy = "fuzzy"
	cfg.Audio.FrameSize = -1

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		t.Fatalf("expected joined error, got %T", err)
	}
	if n := len(joined.Unwrap()); n != 3 {
		t.Errorf("got %d errors, want 3: %v", n, err)
	}
}

func TestValidProviderNames(t *testing.T) {
	for _, kind := range []string{"recognizer", "audio"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d := config.Diff(config.Default(), cfg); d.GrammarChanged || d.TimingChanged || d.ScoringChanged {
		t.Errorf("example config drifted from the defaults: %+v", d)
	}
	if cfg.Recognizer.ModelPath == "" {
		t.Error("example config has no model path")
	}
}
