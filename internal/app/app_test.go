package app_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/rapvox/internal/app"
	"github.com/MrWong99/rapvox/internal/config"
	"github.com/MrWong99/rapvox/internal/protocol"
	"github.com/MrWong99/rapvox/internal/unmatched"
	"github.com/MrWong99/rapvox/pkg/audio"
	audiomock "github.com/MrWong99/rapvox/pkg/audio/mock"
	sttmock "github.com/MrWong99/rapvox/pkg/provider/stt/mock"
	"github.com/MrWong99/rapvox/pkg/provider/vad/energy"
)

// testConfig returns the default config with an unmatched log in a temp dir.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Unmatched.Path = t.TempDir() + "/unmatched.log"
	return cfg
}

// testProviders returns mock providers. cmd and free are handed out as the
// command and freestyle recognizers of the first session.
func testProviders(cmd, free *sttmock.Recognizer) (*app.Providers, *audiomock.Capture) {
	capture := &audiomock.Capture{}
	return &app.Providers{
		STT:     &sttmock.Provider{Recognizers: []*sttmock.Recognizer{cmd, free}},
		VAD:     energy.New(),
		Capture: capture,
	}, capture
}

func voicedFrame() audio.AudioFrame {
	data := make([]byte, audio.DefaultFrameSize*audio.BytesPerSample)
	for i := 0; i < len(data); i += 2 {
		binary.LittleEndian.PutUint16(data[i:], 6000)
	}
	return audio.AudioFrame{Data: data, SampleRate: audio.DefaultSampleRate, Channels: 1}
}

type memSink struct {
	mu    sync.Mutex
	texts []string
}

func (m *memSink) Write(_ context.Context, e unmatched.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, e.Text)
	return nil
}

func (m *memSink) Close() error { return nil }

func TestNew_RequiresProviders(t *testing.T) {
	t.Parallel()
	if _, err := app.New(context.Background(), testConfig(t), &app.Providers{}); err == nil {
		t.Fatal("expected error for missing providers")
	}
}

func TestApp_HealthEndpoints(t *testing.T) {
	t.Parallel()
	providers, _ := testProviders(&sttmock.Recognizer{}, &sttmock.Recognizer{})
	a, err := app.New(context.Background(), testConfig(t), providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestApp_RunServesCommands(t *testing.T) {
	t.Parallel()

	cmd := &sttmock.Recognizer{}
	providers, capture := testProviders(cmd, &sttmock.Recognizer{})
	sink := &memSink{}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	a, err := app.New(context.Background(), testConfig(t), providers,
		app.WithListener(ln),
		app.WithUnmatchedLogger(unmatched.New(sink)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(ctx) }()

	dctx, dcancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer dcancel()
	conn, _, err := websocket.Dial(dctx, "ws://"+ln.Addr().String()+"/", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(3 * time.Second)
	for capture.OpenCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("session never opened the capture stream")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(a.Sessions().Active()); got != 1 {
		t.Errorf("active sessions = %d, want 1", got)
	}

	cmd.QueueFinal("this game is really bad")
	capture.Emit(voicedFrame())
	cmd.QueueFinal("Bad Game")
	capture.Emit(voicedFrame())

	_, data, err := conn.Read(dctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg protocol.Final
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	if msg.Type != protocol.TypeFinal || msg.Text != "bad game" {
		t.Errorf("message = %+v, want final bad game", msg)
	}
	sink.mu.Lock()
	if len(sink.texts) != 1 || sink.texts[0] != "this game is really bad" {
		t.Errorf("unmatched = %v", sink.texts)
	}
	sink.mu.Unlock()

	conn.Close(websocket.StatusNormalClosure, "bye")
	deadline = time.Now().Add(3 * time.Second)
	for len(a.Sessions().Active()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session still active after client disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if cmd.Closes() != 1 {
		t.Errorf("recognizer closes = %d, want 1", cmd.Closes())
	}
}

func TestApp_OnConfigChange(t *testing.T) {
	t.Parallel()
	providers, _ := testProviders(&sttmock.Recognizer{}, &sttmock.Recognizer{})
	level := new(slog.LevelVar)
	old := testConfig(t)
	a, err := app.New(context.Background(), old, providers, app.WithLogLevel(level))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	updated := *old
	updated.Server.LogLevel = config.LogDebug
	updated.Grammar.Phrases = []string{"pizza", "help"}
	updated.Command.ServerCooldown = 3 * time.Second
	a.OnConfigChange(old, &updated)

	if level.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", level.Level())
	}
	st := a.Sessions().Settings()
	if _, ok := st.Grammar.Match("bad game"); ok {
		t.Error("old grammar still active")
	}
	if _, ok := st.Grammar.Match("pizza"); !ok {
		t.Error("new grammar not active")
	}
	if st.Gate.Cooldown != 3*time.Second {
		t.Errorf("cooldown = %v, want 3s", st.Gate.Cooldown)
	}
}

func TestApp_OnConfigChange_InvalidGrammarKeepsSettings(t *testing.T) {
	t.Parallel()
	providers, _ := testProviders(&sttmock.Recognizer{}, &sttmock.Recognizer{})
	old := testConfig(t)
	a, err := app.New(context.Background(), old, providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	updated := *old
	updated.Grammar.Phrases = []string{"  "}
	a.OnConfigChange(old, &updated)

	if _, ok := a.Sessions().Settings().Grammar.Match("bad game"); !ok {
		t.Error("previous grammar was replaced by an invalid one")
	}
}

func TestApp_ShutdownIdempotent(t *testing.T) {
	t.Parallel()
	providers, _ := testProviders(&sttmock.Recognizer{}, &sttmock.Recognizer{})
	a, err := app.New(context.Background(), testConfig(t), providers)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	closed := 0
	a.AddCloser(func() error { closed++; return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	if closed != 1 {
		t.Errorf("closer ran %d times, want 1", closed)
	}
}
