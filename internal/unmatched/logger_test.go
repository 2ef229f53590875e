package unmatched_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/rapvox/internal/unmatched"
)

// memSink records entries in memory.
type memSink struct {
	mu      sync.Mutex
	entries []unmatched.Entry
	err     error
	closed  bool
	block   chan struct{}
}

func (m *memSink) Write(_ context.Context, e unmatched.Entry) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memSink) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Text)
	}
	return out
}

func TestFileSink_CreatesOnFirstWrite(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "unmatched.log")
	l := unmatched.New(unmatched.NewFileSink(path))

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file exists before first write: %v", err)
	}

	ctx := context.Background()
	l.Log(ctx, unmatched.Entry{Text: "this game is really bad"})
	l.Log(ctx, unmatched.Entry{Text: ""})
	l.Log(ctx, unmatched.Entry{Text: "multi\nline"})
	l.Log(ctx, unmatched.Entry{Text: "bad gamez", Raw: "Bad  Gamez"})
	l.Log(ctx, unmatched.Entry{Kind: unmatched.KindDeclined, Raw: "[unk]"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "this game is really bad\nmulti line\nBad Gamez\n[declined] [unk]\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}

func TestFileSink_Concurrent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "unmatched.log")
	sink := unmatched.NewFileSink(path)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sink.Write(context.Background(), unmatched.Entry{Text: "pizza pizza"})
		}()
	}
	wg.Wait()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 20 {
		t.Fatalf("got %d lines, want 20", len(lines))
	}
	for i, l := range lines {
		if l != "pizza pizza" {
			t.Errorf("line %d = %q", i, l)
		}
	}
}

func TestLogger_SwallowsSinkErrors(t *testing.T) {
	t.Parallel()
	bad := &memSink{err: errors.New("disk full")}
	good := &memSink{}
	l := unmatched.New(bad, good)

	l.Log(context.Background(), unmatched.Entry{Text: "slime word", SessionID: "s1"})

	if got := good.texts(); len(got) != 1 || got[0] != "slime word" {
		t.Errorf("second sink got %v", got)
	}
}

func TestLogger_FillsDefaults(t *testing.T) {
	t.Parallel()
	sink := &memSink{}
	l := unmatched.New(sink)
	l.Log(context.Background(), unmatched.Entry{Text: "x"})
	if sink.entries[0].Time.IsZero() {
		t.Error("Time not filled")
	}
	if sink.entries[0].Kind != unmatched.KindUnmatched {
		t.Errorf("Kind = %q, want %q", sink.entries[0].Kind, unmatched.KindUnmatched)
	}
}

func TestLogger_KeepsRawOnlyEntries(t *testing.T) {
	t.Parallel()
	sink := &memSink{}
	l := unmatched.New(sink)
	ctx := context.Background()
	l.Log(ctx, unmatched.Entry{Kind: unmatched.KindDeclined, Raw: "[unk]"})
	l.Log(ctx, unmatched.Entry{Raw: "   "})

	if len(sink.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(sink.entries))
	}
	if e := sink.entries[0]; e.Kind != unmatched.KindDeclined || e.Raw != "[unk]" {
		t.Errorf("entry = %+v", e)
	}
}

func TestLogger_NilIsNoop(t *testing.T) {
	t.Parallel()
	var l *unmatched.Logger
	l.Log(context.Background(), unmatched.Entry{Text: "x"})
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil: %v", err)
	}
}

func TestAsync_DrainsOnClose(t *testing.T) {
	t.Parallel()
	sink := &memSink{}
	a := unmatched.NewAsync(sink, 8, time.Second)
	for _, s := range []string{"a", "b", "c"} {
		if err := a.Write(context.Background(), unmatched.Entry{Text: s}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := strings.Join(sink.texts(), ","); got != "a,b,c" {
		t.Errorf("written = %q, want a,b,c", got)
	}
	if !sink.closed {
		t.Error("inner sink not closed")
	}
}

func TestAsync_DropsWhenFull(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	sink := &memSink{block: block}
	a := unmatched.NewAsync(sink, 1, time.Second)

	// The writer goroutine holds one entry while blocked; one more fits the
	// queue. Keep writing until the queue reports full.
	var full bool
	for range 10 {
		if err := a.Write(context.Background(), unmatched.Entry{Text: "x"}); errors.Is(err, unmatched.ErrQueueFull) {
			full = true
			break
		}
	}
	close(block)
	_ = a.Close()
	if !full {
		t.Error("queue never reported full")
	}
}
