package main

import (
	"errors"
	"testing"

	"github.com/MrWong99/rapvox/internal/config"
	"github.com/MrWong99/rapvox/pkg/audio"
	audiomock "github.com/MrWong99/rapvox/pkg/audio/mock"
	"github.com/MrWong99/rapvox/pkg/provider/stt"
	sttmock "github.com/MrWong99/rapvox/pkg/provider/stt/mock"
)

func TestOptInt(t *testing.T) {
	t.Parallel()
	opts := map[string]any{"a": 16000, "b": 8000.0, "c": 1.5, "d": "12"}
	tests := []struct {
		key    string
		want   int
		wantOK bool
	}{
		{"a", 16000, true},
		{"b", 8000, true},
		{"c", 0, false},
		{"d", 0, false},
		{"missing", 0, false},
	}
	for _, tc := range tests {
		got, ok := optInt(opts, tc.key)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("optInt(%q) = %d, %v; want %d, %v", tc.key, got, ok, tc.want, tc.wantOK)
		}
	}
	if _, ok := optInt(nil, "a"); ok {
		t.Error("optInt(nil) reported ok")
	}
}

func TestBuildProviders(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterSTT("fake", func(config.ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{}, nil
	})
	reg.RegisterCapture("fake", func(config.AudioConfig) (audio.Capture, error) {
		return &audiomock.Capture{}, nil
	})

	cfg := config.Default()
	cfg.Recognizer.Name = "fake"
	cfg.Audio.Source = "fake"

	ps, _, err := buildProviders(cfg, reg)
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if ps.STT == nil || ps.VAD == nil || ps.Capture == nil {
		t.Errorf("providers = %+v, want all set", ps)
	}
}

func TestBuildProviders_UnknownSource(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	reg.RegisterSTT("fake", func(config.ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{}, nil
	})

	cfg := config.Default()
	cfg.Recognizer.Name = "fake"
	cfg.Audio.Source = "nope"

	if _, _, err := buildProviders(cfg, reg); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestWavSourceRequiresFile(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	if _, err := reg.CreateCapture(config.AudioConfig{Source: "wav"}); err == nil {
		t.Fatal("expected error without wav_file")
	}
}
