// Command rapvox is the main entry point for the rapvox voice command server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/rapvox/internal/app"
	"github.com/MrWong99/rapvox/internal/config"
	"github.com/MrWong99/rapvox/internal/observe"
	"github.com/MrWong99/rapvox/pkg/audio"
	"github.com/MrWong99/rapvox/pkg/audio/portaudio"
	"github.com/MrWong99/rapvox/pkg/audio/wavfile"
	"github.com/MrWong99/rapvox/pkg/provider/stt"
	"github.com/MrWong99/rapvox/pkg/provider/stt/vosk"
	"github.com/MrWong99/rapvox/pkg/provider/stt/whisper"
	"github.com/MrWong99/rapvox/pkg/provider/vad/energy"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "rapvox: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "rapvox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(newLogger(os.Stderr, level))

	slog.Info("rapvox starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "rapvox",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, closers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers, app.WithLogLevel(level))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		for _, c := range closers {
			_ = c()
		}
		return 1
	}
	for _, c := range closers {
		application.AddCloser(c)
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, application.OnConfigChange)
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		application.AddCloser(func() error {
			watcher.Stop()
			return nil
		})
		go reloadOnHangup(ctx, watcher)
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		_ = application.Shutdown(context.Background())
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// reloadOnHangup re-reads the config file on every SIGHUP until ctx ends.
func reloadOnHangup(ctx context.Context, w *config.Watcher) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			applied, err := w.Reload()
			if err != nil {
				slog.Warn("config reload failed, keeping previous config", "err", err)
				continue
			}
			slog.Info("config reload requested", "applied", applied)
		}
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in recognizer and capture factories
// into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("vosk", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []vosk.Option
		if rate, ok := optInt(entry.Options, "sample_rate"); ok {
			opts = append(opts, vosk.WithSampleRate(rate))
		}
		if lvl, ok := optInt(entry.Options, "log_level"); ok {
			opts = append(opts, vosk.WithLogLevel(lvl))
		}
		return vosk.New(entry.ModelPath, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.NativeOption
		if entry.Language != "" {
			opts = append(opts, whisper.WithNativeLanguage(entry.Language))
		}
		if rate, ok := optInt(entry.Options, "sample_rate"); ok {
			opts = append(opts, whisper.WithNativeSampleRate(rate))
		}
		if ms, ok := optInt(entry.Options, "max_buffer_ms"); ok {
			opts = append(opts, whisper.WithNativeMaxBufferDurationMs(ms))
		}
		return whisper.NewNative(entry.ModelPath, opts...)
	})

	// ── Capture ───────────────────────────────────────────────────────────────

	reg.RegisterCapture("portaudio", func(config.AudioConfig) (audio.Capture, error) {
		return portaudio.New()
	})

	reg.RegisterCapture("wav", func(cfg config.AudioConfig) (audio.Capture, error) {
		if cfg.WavFile == "" {
			return nil, errors.New("audio.wav_file must be set for the wav source")
		}
		return wavfile.New(cfg.WavFile, wavfile.WithLoop(cfg.WavLoop)), nil
	})

	for kind, names := range reg.Names() {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates the recognizer and capture backend named in cfg
// and returns them together with the close functions of those that hold
// native resources.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, []func() error, error) {
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	recognizer, err := reg.CreateSTT(cfg.Recognizer)
	if err != nil {
		return nil, nil, fmt.Errorf("create recognizer %q: %w", cfg.Recognizer.Name, err)
	}
	if c, ok := recognizer.(io.Closer); ok {
		closers = append(closers, c.Close)
	}
	slog.Info("provider created", "kind", "recognizer", "name", cfg.Recognizer.Name)

	capture, err := reg.CreateCapture(cfg.Audio)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("create audio source %q: %w", cfg.Audio.Source, err)
	}
	if c, ok := capture.(io.Closer); ok {
		closers = append(closers, c.Close)
	}
	slog.Info("provider created", "kind", "audio", "name", cfg.Audio.Source)

	return &app.Providers{
		STT:     recognizer,
		VAD:     energy.New(),
		Capture: capture,
	}, closers, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          rapvox - startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Recognizer", cfg.Recognizer.Name)
	printRow("Audio", cfg.Audio.Source)
	printRow("Policy", string(cfg.Grammar.Policy))
	fmt.Printf("║  %-12s    : %-19d ║\n", "Phrases", len(cfg.Grammar.Phrases))
	fmt.Printf("║  %-12s    : %-19d ║\n", "Max sessions", cfg.Server.MaxSessions)
	if cfg.Unmatched.PostgresDSN != "" {
		printRow("Unmatched DB", "enabled")
	} else {
		printRow("Unmatched DB", "(disabled)")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optInt extracts an integer value from a provider Options map[string]any.
// YAML decodes whole numbers as int; float64 values without a fraction are
// accepted too.
func optInt(opts map[string]any, key string) (int, bool) {
	if opts == nil {
		return 0, false
	}
	switch v := opts[key].(type) {
	case int:
		return v, true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}
