// Package app wires all rapvox subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates the unmatched log,
// the session manager and the HTTP surface, Run serves clients until the
// context is cancelled, and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithUnmatchedLogger,
// WithListener, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/rapvox/internal/config"
	"github.com/MrWong99/rapvox/internal/health"
	"github.com/MrWong99/rapvox/internal/observe"
	"github.com/MrWong99/rapvox/internal/session"
	"github.com/MrWong99/rapvox/internal/transport"
	"github.com/MrWong99/rapvox/internal/unmatched"
	"github.com/MrWong99/rapvox/pkg/audio"
	"github.com/MrWong99/rapvox/pkg/provider/stt"
	"github.com/MrWong99/rapvox/pkg/provider/vad"
)

// Tuning for the asynchronous database sink and session draining.
const (
	unmatchedQueueSize    = 256
	unmatchedWriteTimeout = 2 * time.Second
	drainTimeout          = 10 * time.Second
)

// Providers holds one interface value per provider slot. Populated by
// main.go via the config registry.
type Providers struct {
	STT     stt.Provider
	VAD     vad.Engine
	Capture audio.Capture
}

// App owns all subsystem lifetimes and serves the voice sessions.
type App struct {
	cfg       *config.Config
	providers *Providers

	logLevel  *slog.LevelVar
	metrics   *observe.Metrics
	unmatched *unmatched.Logger
	dbCheck   *health.Checker
	listener  net.Listener

	sessions  *SessionManager
	transport *transport.Handler
	server    *http.Server
	ready     health.Flag

	// closers are called in order during Shutdown.
	closers []func() error
	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithUnmatchedLogger injects the unmatched logger instead of creating file
// and database sinks from config.
func WithUnmatchedLogger(l *unmatched.Logger) Option {
	return func(a *App) { a.unmatched = l }
}

// WithMetrics injects the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel registers the level variable that config reloads update.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithListener serves on l instead of listening on server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from a validated config. The providers struct comes from
// main.go (populated via the config registry); STT, VAD and Capture are all
// required.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.STT == nil || providers.VAD == nil || providers.Capture == nil {
		return nil, errors.New("app: STT, VAD and Capture providers are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Unmatched log ────────────────────────────────────────────────
	if err := a.initUnmatched(ctx); err != nil {
		return nil, fmt.Errorf("app: init unmatched log: %w", err)
	}

	// ── 2. Session manager ──────────────────────────────────────────────
	settings, err := session.NewSettings(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.sessions = NewSessionManager(SessionManagerConfig{
		Providers: providers,
		Settings:  settings,
		Metrics:   a.metrics,
		Unmatched: a.unmatched,
	})

	// ── 3. HTTP surface ─────────────────────────────────────────────────
	a.transport = transport.NewHandler(a.sessions.NewSession,
		transport.WithMaxSessions(cfg.Server.MaxSessions),
		transport.WithSendTimeout(cfg.Server.SendTimeout),
		transport.WithMetrics(a.metrics),
	)
	a.server = &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.ready.Set(true)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initUnmatched sets up the file sink and, when configured, the PostgreSQL
// sink behind an asynchronous queue.
func (a *App) initUnmatched(ctx context.Context) error {
	if a.unmatched != nil {
		return nil
	}
	sinks := []unmatched.Sink{unmatched.NewFileSink(a.cfg.Unmatched.Path)}

	if dsn := a.cfg.Unmatched.PostgresDSN; dsn != "" {
		pg, err := unmatched.NewPostgresSink(ctx, dsn, nil)
		if err != nil {
			return err
		}
		sinks = append(sinks, unmatched.NewAsync(pg, unmatchedQueueSize, unmatchedWriteTimeout))
		a.dbCheck = &health.Checker{Name: "unmatched_db", Check: pg.Ping}
		slog.Info("unmatched utterances mirrored to postgres")
	}

	a.unmatched = unmatched.New(sinks...)
	a.closers = append(a.closers, a.unmatched.Close)
	return nil
}

// Handler returns the HTTP handler serving the WebSocket endpoint, the health
// probes and /metrics.
func (a *App) Handler() http.Handler {
	checkers := []health.Checker{a.ready.Checker("recognizer")}
	if a.dbCheck != nil {
		checkers = append(checkers, *a.dbCheck)
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())
	mux.Handle(a.cfg.Server.WSPath, a.transport)
	return observe.Middleware(a.metrics)(mux)
}

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves clients until ctx is cancelled or the listener fails. On
// cancellation the running sessions are ended first, so their last messages
// reach the clients, then the HTTP server stops.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen on %q: %w", a.cfg.Server.ListenAddr, err)
		}
	}
	slog.Info("listening", "addr", ln.Addr().String(), "ws_path", a.cfg.Server.WSPath)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.ready.Set(false)
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
		defer cancel()
		return errors.Join(a.transport.Shutdown(sctx), a.server.Shutdown(sctx))
	})
	return g.Wait()
}

// OnConfigChange applies a reloaded config. The log level changes
// immediately; grammar, timing and scoring changes apply to sessions created
// afterwards. Keys that need a restart are only reported.
func (a *App) OnConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.SessionSettingsChanged() {
		st, err := session.NewSettings(new)
		if err != nil {
			slog.Warn("config reload: keeping previous session settings", "err", err)
		} else {
			a.sessions.UpdateSettings(st)
			slog.Info("session settings reloaded",
				"grammar", d.GrammarChanged,
				"timing", d.TimingChanged,
				"scoring", d.ScoringChanged,
				"sessions_on_previous_settings", len(a.sessions.Active()),
			)
		}
	}
	for _, key := range d.RestartRequired {
		slog.Warn("config change requires restart", "key", key)
	}
}

// AddCloser registers fn to run during Shutdown, after the closers New
// registered.
func (a *App) AddCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases everything New acquired. It is safe to call more than
// once; only the first call has an effect.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		active := a.sessions.Active()
		ids := make([]string, len(active))
		for i, info := range active {
			ids[i] = info.SessionID
		}
		slog.Info("shutting down", "closers", len(a.closers), "active_sessions", ids)
		a.ready.Set(false)

		if err := a.transport.Shutdown(ctx); err != nil {
			slog.Warn("sessions did not end in time", "err", err)
		}

		// Run closers in order.
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
