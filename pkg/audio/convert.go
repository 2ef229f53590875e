package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// MonoConverter brings frames of arbitrary rate and channel count to mono
// 16-bit PCM at TargetRate. It logs a warning on the first format mismatch.
// Create one per stream; not designed for shared use across goroutines.
type MonoConverter struct {
	TargetRate     int
	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert converts frame to mono at the target rate. A frame that already
// matches is returned unchanged. Frames whose byte count is not a whole number
// of samples are dropped (returned with nil Data).
func (c *MonoConverter) Convert(frame AudioFrame) AudioFrame {
	channels := frame.Channels
	if channels <= 0 {
		channels = 1
	}
	if len(frame.Data)%(BytesPerSample*channels) != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio converter: partial sample in PCM data, dropping frame",
				"bytes", len(frame.Data),
				"channels", channels,
			)
		})
		return AudioFrame{SampleRate: c.TargetRate, Channels: 1, Timestamp: frame.Timestamp}
	}

	if channels == 1 && frame.SampleRate == c.TargetRate {
		frame.Channels = 1
		return frame
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"from", formatString(frame.SampleRate, channels),
			"to", formatString(c.TargetRate, 1),
		)
	})

	pcm := frame.Data
	if channels > 1 {
		pcm = DownmixToMono(pcm, channels)
	}
	pcm = ResampleMono16(pcm, frame.SampleRate, c.TargetRate)

	return AudioFrame{
		Data:       pcm,
		SampleRate: c.TargetRate,
		Channels:   1,
		Timestamp:  frame.Timestamp,
	}
}

// DownmixToMono averages all channels of interleaved 16-bit PCM into a single
// channel. Uses int32 arithmetic so the sum cannot overflow.
func DownmixToMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frames := len(pcm) / (BytesPerSample * channels)
	out := make([]byte, frames*BytesPerSample)
	for i := range frames {
		var sum int32
		for ch := range channels {
			idx := (i*channels + ch) * BytesPerSample
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[idx:])))
		}
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(clamp16(sum/int32(channels))))
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. If srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < BytesPerSample {
		return pcm
	}
	srcSamples := len(pcm) / BytesPerSample
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*BytesPerSample)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(binary.LittleEndian.Uint16(pcm[srcIdx*2:]))
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = int16(binary.LittleEndian.Uint16(pcm[(srcIdx+1)*2:]))
		}

		v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// RMS16 returns the root-mean-square energy of 16-bit signed little-endian PCM
// in raw sample units (0..32768). A trailing odd byte is ignored and an empty
// buffer has zero energy.
func RMS16(pcm []byte) float64 {
	n := len(pcm) / BytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

// Int16ToBytes encodes samples as 16-bit little-endian PCM.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func clamp16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// formatString returns a human-readable string for a sample rate and channel
// count, e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
