package audio

import "time"

// Default capture format. The recognizers are trained on 16 kHz mono audio and
// 3200 samples per frame gives ~200 ms of latency per callback.
const (
	DefaultSampleRate = 16000
	DefaultFrameSize  = 3200

	// BytesPerSample is fixed: every frame in the pipeline is 16-bit signed
	// little-endian PCM.
	BytesPerSample = 2
)

// AudioFrame is a single fixed-size block of mono PCM delivered by a capture
// device. Frames are the unit handed from the capture callback to a session.
type AudioFrame struct {
	// Data is 16-bit signed little-endian PCM. An empty Data is never produced
	// by a capture device; the session uses empty frames to force a recognizer
	// flush.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels is always 1 after capture.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Samples returns the number of 16-bit samples per channel in the frame.
func (f AudioFrame) Samples() int {
	ch := f.Channels
	if ch <= 0 {
		ch = 1
	}
	return len(f.Data) / (BytesPerSample * ch)
}

// Duration returns the playback duration of the frame. Zero when the sample
// rate is unknown.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(f.Samples()) * time.Second / time.Duration(f.SampleRate)
}
