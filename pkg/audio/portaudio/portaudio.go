// Package portaudio implements [audio.Capture] on top of the system's default
// input device via github.com/gordonklaus/portaudio.
//
// PortAudio is initialised once per [Capture] and terminated by
// [Capture.Close]. Each [Capture.Open] opens a callback-driven mono stream:
// PortAudio invokes the callback on its own real-time thread with exactly
// FrameSize samples, which are copied into an [audio.AudioFrame] and handed
// to the consumer's [audio.FrameFunc].
package portaudio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/rapvox/pkg/audio"
)

// Capture is the PortAudio-backed [audio.Capture].
type Capture struct {
	mu         sync.Mutex
	terminated bool
}

// New initialises PortAudio. The caller must call [Capture.Close] on shutdown.
func New() (*Capture, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	slog.Debug("portaudio: initialized", "version", portaudio.VersionText())
	return &Capture{}, nil
}

// Open implements [audio.Capture]. It opens and starts a mono input stream on
// the default device.
func (c *Capture) Open(cfg audio.CaptureConfig, fn audio.FrameFunc) (audio.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return nil, audio.ErrStreamClosed
	}

	cfg = cfg.WithDefaults()
	s := &stream{
		fn:         fn,
		sampleRate: cfg.SampleRate,
		frameDur:   time.Duration(cfg.FrameSize) * time.Second / time.Duration(cfg.SampleRate),
	}

	ps, err := portaudio.OpenDefaultStream(1, 0, float64(cfg.SampleRate), cfg.FrameSize, s.callback)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open default stream: %w", err)
	}
	s.ps = ps

	if err := ps.Start(); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("portaudio: start stream: %w", err)
	}
	slog.Info("portaudio: capture started", "sample_rate", cfg.SampleRate, "frame_size", cfg.FrameSize)
	return s, nil
}

// Close terminates PortAudio. Streams must be closed before calling Close.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return nil
	}
	c.terminated = true
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("portaudio: terminate: %w", err)
	}
	return nil
}

// stream wraps one running PortAudio stream.
type stream struct {
	ps         *portaudio.Stream
	fn         audio.FrameFunc
	sampleRate int
	frameDur   time.Duration

	// frames is only touched from the PortAudio callback thread.
	frames int64

	closeOnce sync.Once
	closeErr  error
}

// callback runs on the PortAudio real-time thread. The input buffer is reused
// by PortAudio after return, so it is copied.
func (s *stream) callback(in []int16) {
	frame := audio.AudioFrame{
		Data:       audio.Int16ToBytes(in),
		SampleRate: s.sampleRate,
		Channels:   1,
		Timestamp:  time.Duration(s.frames) * s.frameDur,
	}
	s.frames++
	s.fn(frame)
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		if err := s.ps.Stop(); err != nil {
			slog.Warn("portaudio: stop stream", "err", err)
		}
		if err := s.ps.Close(); err != nil {
			s.closeErr = fmt.Errorf("portaudio: close stream: %w", err)
		}
	})
	return s.closeErr
}

var _ audio.Capture = (*Capture)(nil)
