package app

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/rapvox/internal/observe"
	"github.com/MrWong99/rapvox/internal/session"
	"github.com/MrWong99/rapvox/internal/transport"
	"github.com/MrWong99/rapvox/internal/unmatched"
)

// SessionInfo holds metadata about an active session.
type SessionInfo struct {
	// SessionID is the unique identifier for this session.
	SessionID string

	// StartedAt is when the session started running.
	StartedAt time.Time
}

// SessionManager creates client sessions from the current settings and keeps
// track of the running ones. Settings can be swapped at any time; running
// sessions keep the settings they were created with.
// All exported methods are safe for concurrent use.
type SessionManager struct {
	providers *Providers
	metrics   *observe.Metrics
	unmatched *unmatched.Logger
	now       func() time.Time

	settings atomic.Pointer[session.Settings]

	mu     sync.Mutex
	active map[string]SessionInfo
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	Providers *Providers
	Settings  session.Settings
	Metrics   *observe.Metrics
	Unmatched *unmatched.Logger

	// Now is the session clock. Defaults to time.Now.
	Now func() time.Time
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	m := &SessionManager{
		providers: cfg.Providers,
		metrics:   cfg.Metrics,
		unmatched: cfg.Unmatched,
		now:       cfg.Now,
		active:    make(map[string]SessionInfo),
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	st := cfg.Settings
	m.settings.Store(&st)
	return m
}

// Settings returns the settings new sessions are created with.
func (m *SessionManager) Settings() session.Settings {
	return *m.settings.Load()
}

// UpdateSettings replaces the settings for sessions created from now on.
func (m *SessionManager) UpdateSettings(st session.Settings) {
	m.settings.Store(&st)
}

// NewSession creates a session that writes to sender. It satisfies
// [transport.Factory].
func (m *SessionManager) NewSession(ctx context.Context, sender session.Sender) (transport.Session, error) {
	s, err := session.New(ctx, session.Config{
		Settings:  m.Settings(),
		STT:       m.providers.STT,
		VAD:       m.providers.VAD,
		Capture:   m.providers.Capture,
		Sender:    sender,
		Unmatched: m.unmatched,
		Metrics:   m.metrics,
		Now:       m.now,
	})
	if err != nil {
		return nil, err
	}
	return &trackedSession{Session: s, mgr: m}, nil
}

// Active returns the running sessions ordered by start time.
func (m *SessionManager) Active() []SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SessionInfo, 0, len(m.active))
	for _, info := range m.active {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b SessionInfo) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return out
}

func (m *SessionManager) started(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[id] = SessionInfo{SessionID: id, StartedAt: time.Now()}
}

func (m *SessionManager) stopped(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, id)
}

// trackedSession registers the session with its manager while it runs.
type trackedSession struct {
	*session.Session
	mgr *SessionManager
}

func (t *trackedSession) Run(ctx context.Context) error {
	t.mgr.started(t.ID())
	defer t.mgr.stopped(t.ID())
	return t.Session.Run(ctx)
}
