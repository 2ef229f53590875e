package unmatched

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueFull is returned by [Async.Write] when the queue is saturated and the
// entry was dropped.
var ErrQueueFull = errors.New("unmatched: queue full")

// Async moves writes of a slow sink off the caller's goroutine. Entries are
// queued on a bounded channel and written by one background goroutine; a full
// queue drops the entry.
type Async struct {
	sink    Sink
	timeout time.Duration
	queue   chan Entry

	closeOnce sync.Once
	done      chan struct{}
}

// NewAsync starts a background writer for sink with a queue of size entries.
// Each write is bounded by timeout.
func NewAsync(sink Sink, size int, timeout time.Duration) *Async {
	if size <= 0 {
		size = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	a := &Async{
		sink:    sink,
		timeout: timeout,
		queue:   make(chan Entry, size),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.sink.Write(ctx, e); err != nil {
			slog.Warn("unmatched: async write failed", "session_id", e.SessionID, "err", err)
		}
		cancel()
	}
}

// Write queues e without blocking.
func (a *Async) Write(_ context.Context, e Entry) error {
	select {
	case a.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting entries, drains the queue and closes the sink. Write
// must not be called after Close.
func (a *Async) Close() error {
	a.closeOnce.Do(func() { close(a.queue) })
	<-a.done
	return a.sink.Close()
}

var _ Sink = (*Async)(nil)
