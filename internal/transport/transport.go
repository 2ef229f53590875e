// Package transport serves client sessions over WebSocket.
//
// Every accepted connection gets its own session. Text messages from the
// client are decoded as control messages and handed to the session; server
// messages are written as JSON text frames. Malformed control messages are
// logged at debug level and skipped. The number of concurrent sessions is
// capped; connections beyond the cap are accepted and immediately closed with
// status 1013 (try again later) so the client can tell a busy server from a
// broken one.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/rapvox/internal/observe"
	"github.com/MrWong99/rapvox/internal/protocol"
	"github.com/MrWong99/rapvox/internal/session"
)

// Default handler parameters.
const (
	DefaultSendTimeout = 2 * time.Second
	defaultReadLimit   = 64 << 10
)

// Session is the part of a session the transport drives.
type Session interface {
	ID() string
	Run(ctx context.Context) error
	Control(ctx context.Context, c protocol.Control) error
}

// Factory creates the session for one connection. sender writes to that
// connection.
type Factory func(ctx context.Context, sender session.Sender) (Session, error)

// Option is a functional option for [NewHandler].
type Option func(*Handler)

// WithMaxSessions caps the number of concurrent sessions. n <= 0 removes the
// cap.
func WithMaxSessions(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.slots = make(chan struct{}, n)
		} else {
			h.slots = nil
		}
	}
}

// WithSendTimeout bounds every server message write. Defaults to
// [DefaultSendTimeout].
func WithSendTimeout(d time.Duration) Option {
	return func(h *Handler) { h.sendTimeout = d }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithAcceptOptions sets the WebSocket handshake options.
func WithAcceptOptions(o *websocket.AcceptOptions) Option {
	return func(h *Handler) { h.accept = o }
}

// Handler is an [http.Handler] that upgrades requests to WebSocket sessions.
type Handler struct {
	factory     Factory
	sendTimeout time.Duration
	metrics     *observe.Metrics
	accept      *websocket.AcceptOptions
	slots       chan struct{}

	// ctx is cancelled by Shutdown and parents every session context.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHandler returns a Handler that creates sessions with factory. By default
// one session may be active at a time.
func NewHandler(factory Factory, opts ...Option) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		factory:     factory,
		sendTimeout: DefaultSendTimeout,
		slots:       make(chan struct{}, 1),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// ServeHTTP implements [http.Handler].
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		slog.Debug("transport: websocket handshake failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(defaultReadLimit)

	if h.ctx.Err() != nil {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	if !h.acquire() {
		h.metrics.SessionsRejected.Add(r.Context(), 1)
		slog.Warn("transport: session limit reached, refusing connection", "remote", r.RemoteAddr)
		conn.Close(websocket.StatusTryAgainLater, "session limit reached")
		return
	}
	h.wg.Add(1)
	defer h.wg.Done()
	defer h.release()

	h.serve(r.Context(), conn, r.RemoteAddr)
}

// serve runs one session until the client disconnects or the handler shuts
// down.
func (h *Handler) serve(reqCtx context.Context, conn *websocket.Conn, remote string) {
	sessCtx, stop := context.WithCancel(h.ctx)
	defer stop()

	sess, err := h.factory(sessCtx, &Sender{conn: conn, timeout: h.sendTimeout})
	if err != nil {
		slog.Error("transport: failed to create session", "remote", remote, "err", err)
		conn.Close(websocket.StatusInternalError, "session unavailable")
		return
	}
	log := observe.SessionLogger(reqCtx, sess.ID())
	log.Info("client connected", "remote", remote)

	runDone := make(chan error, 1)
	go func() {
		err := sess.Run(sessCtx)
		// Unblocks the read loop when the session ends on its own or on
		// shutdown. The session has already sent its last message.
		conn.Close(websocket.StatusGoingAway, "session ended")
		runDone <- err
	}()

	h.readLoop(reqCtx, sessCtx, conn, sess, log)
	stop()
	if err := <-runDone; err != nil {
		log.Error("session failed", "err", err)
	}
	log.Info("client disconnected")
}

// readLoop decodes client messages until the connection fails.
func (h *Handler) readLoop(readCtx, sessCtx context.Context, conn *websocket.Conn, sess Session, log *slog.Logger) {
	for {
		typ, data, err := conn.Read(readCtx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
				log.Debug("read failed", "err", err)
			}
			return
		}
		if typ != websocket.MessageText {
			log.Debug("ignoring binary message", "bytes", len(data))
			continue
		}
		c, err := protocol.Decode(data)
		if err != nil {
			log.Debug("ignoring control message", "err", err)
			continue
		}
		if err := sess.Control(sessCtx, c); err != nil {
			return
		}
	}
}

func (h *Handler) acquire() bool {
	if h.slots == nil {
		return true
	}
	select {
	case h.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (h *Handler) release() {
	if h.slots != nil {
		<-h.slots
	}
}

// Shutdown ends every active session and waits for them to finish or for ctx
// to expire. New connections are refused afterwards.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.cancel()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("transport: shutdown: %w", ctx.Err())
	}
}

// Sender writes server messages to one connection as JSON text frames. It is
// safe for concurrent use.
type Sender struct {
	conn    *websocket.Conn
	timeout time.Duration
}

// Send writes msg, giving up after the configured timeout.
func (s *Sender) Send(ctx context.Context, msg any) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := wsjson.Write(ctx, s.conn, msg); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	return nil
}

// Compile-time assertions.
var (
	_ http.Handler   = (*Handler)(nil)
	_ session.Sender = (*Sender)(nil)
)
