package whisper

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestPcmToFloat32(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		value int16
		want  float32
	}{
		{"max positive", 32767, 32767.0 / 32768.0},
		{"max negative", -32768, -1.0},
		{"zero", 0, 0.0},
		{"mid positive", 16384, 0.5},
		{"mid negative", -16384, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pcm := make([]byte, 2)
			binary.LittleEndian.PutUint16(pcm, uint16(tt.value))
			out := pcmToFloat32(pcm)
			if len(out) != 1 {
				t.Fatalf("expected 1 sample, got %d", len(out))
			}
			if math.Abs(float64(out[0]-tt.want)) > 1e-6 {
				t.Errorf("pcmToFloat32(%d) = %f; want %f", tt.value, out[0], tt.want)
			}
		})
	}
}

func TestPcmToFloat32_Lengths(t *testing.T) {
	t.Parallel()
	if out := pcmToFloat32(nil); len(out) != 0 {
		t.Errorf("nil input: got %d samples", len(out))
	}
	if out := pcmToFloat32([]byte{0, 0, 0, 0, 1}); len(out) != 2 {
		t.Errorf("odd input: got %d samples, want 2", len(out))
	}
}
