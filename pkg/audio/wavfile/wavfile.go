// Package wavfile implements [audio.Capture] by replaying a WAV file at real-time
// pace. It lets a whole session be reproduced offline without a microphone.
//
// The file is decoded once with github.com/go-audio/wav, downmixed to mono and
// resampled to the requested rate, then cut into fixed-size frames that are
// delivered from a dedicated goroutine on a ticker, mimicking a device callback.
package wavfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/rapvox/pkg/audio"
)

// ErrInvalidFile is returned when the file is not a RIFF/WAVE PCM file.
var ErrInvalidFile = errors.New("wavfile: not a valid wav file")

// Option configures a [Capture].
type Option func(*Capture)

// WithLoop restarts replay from the beginning when the file is exhausted.
func WithLoop(loop bool) Option {
	return func(c *Capture) { c.loop = loop }
}

// WithPacing controls whether frames are delivered at real-time pace (default)
// or as fast as the consumer accepts them.
func WithPacing(paced bool) Option {
	return func(c *Capture) { c.paced = paced }
}

// Capture replays a WAV file as a capture device.
type Capture struct {
	path  string
	loop  bool
	paced bool
}

// New returns a Capture for the WAV file at path. The file is validated on
// every Open so a replaced file is picked up by later sessions.
func New(path string, opts ...Option) *Capture {
	c := &Capture{path: path, paced: true}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open implements [audio.Capture].
func (c *Capture) Open(cfg audio.CaptureConfig, fn audio.FrameFunc) (audio.Stream, error) {
	cfg = cfg.WithDefaults()
	pcm, err := Decode(c.path, cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	s := &stream{
		pcm:   pcm,
		cfg:   cfg,
		fn:    fn,
		loop:  c.loop,
		paced: c.paced,
		done:  make(chan struct{}),
		ended: make(chan struct{}),
	}
	go s.run()
	slog.Info("wavfile: replay started", "path", c.path, "bytes", len(pcm), "loop", c.loop)
	return s, nil
}

// Decode reads the WAV file at path and returns its audio as mono 16-bit
// little-endian PCM at sampleRate.
func Decode(path string, sampleRate int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: open %q: %w", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFile, path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavfile: decode %q: %w", path, err)
	}

	channels := int(d.NumChans)
	if channels <= 0 {
		channels = 1
	}
	samples := to16Bit(buf, int(d.BitDepth))
	conv := audio.MonoConverter{TargetRate: sampleRate}
	frame := conv.Convert(audio.AudioFrame{
		Data:       audio.Int16ToBytes(samples),
		SampleRate: int(d.SampleRate),
		Channels:   channels,
	})
	return frame.Data, nil
}

// to16Bit scales integer samples of the given bit depth to int16.
func to16Bit(buf *goaudio.IntBuffer, bitDepth int) []int16 {
	out := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case bitDepth == 8:
			v = (v - 128) << 8
		case bitDepth > 16:
			v >>= bitDepth - 16
		}
		out[i] = int16(v)
	}
	return out
}

type stream struct {
	pcm   []byte
	cfg   audio.CaptureConfig
	fn    audio.FrameFunc
	loop  bool
	paced bool

	done      chan struct{}
	ended     chan struct{}
	closeOnce sync.Once
}

func (s *stream) run() {
	defer close(s.ended)

	frameBytes := s.cfg.FrameSize * audio.BytesPerSample
	frameDur := time.Duration(s.cfg.FrameSize) * time.Second / time.Duration(s.cfg.SampleRate)

	var tick <-chan time.Time
	if s.paced {
		t := time.NewTicker(frameDur)
		defer t.Stop()
		tick = t.C
	}

	var n int64
	for off := 0; ; off += frameBytes {
		if off+frameBytes > len(s.pcm) {
			if !s.loop || len(s.pcm) < frameBytes {
				slog.Debug("wavfile: replay finished", "frames", n)
				return
			}
			off = 0
		}

		if tick != nil {
			select {
			case <-s.done:
				return
			case <-tick:
			}
		} else {
			select {
			case <-s.done:
				return
			default:
			}
		}

		data := make([]byte, frameBytes)
		copy(data, s.pcm[off:off+frameBytes])
		s.fn(audio.AudioFrame{
			Data:       data,
			SampleRate: s.cfg.SampleRate,
			Channels:   1,
			Timestamp:  time.Duration(n) * frameDur,
		})
		n++
	}
}

// Close stops replay and waits for the delivery goroutine to exit.
func (s *stream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	<-s.ended
	return nil
}

// Write encodes mono 16-bit samples as a WAV file at path. It is used to
// record fixtures for replay.
func Write(path string, sampleRate int, samples []int16) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("wavfile: create %q: %w", path, err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		_ = f.Close()
		return fmt.Errorf("wavfile: encode %q: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("wavfile: finalize %q: %w", path, err)
	}
	return f.Close()
}

var _ audio.Capture = (*Capture)(nil)
