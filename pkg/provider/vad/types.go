package vad

// VADEvent represents a voice activity detection result for a single audio frame.
type VADEvent struct {
	// Type is the detection result.
	Type VADEventType

	// Probability is the speech probability score (0.0–1.0). Energy engines
	// report the RMS level relative to full scale.
	Probability float64

	// Energy is the frame's RMS level in raw sample units, when the engine
	// computes it.
	Energy float64
}

// IsSilence reports whether the frame itself was classified as silent.
func (e VADEvent) IsSilence() bool {
	return e.Type == VADSilence || e.Type == VADSpeechEnd
}

// VADEventType enumerates VAD detection states.
type VADEventType int

const (
	// VADSpeechStart indicates speech has just begun.
	VADSpeechStart VADEventType = iota

	// VADSpeechContinue indicates ongoing speech.
	VADSpeechContinue

	// VADSpeechEnd indicates the first silent frame after speech.
	VADSpeechEnd

	// VADSilence indicates no speech detected.
	VADSilence
)

// String returns a lower-case name for logging.
func (t VADEventType) String() string {
	switch t {
	case VADSpeechStart:
		return "speech_start"
	case VADSpeechContinue:
		return "speech_continue"
	case VADSpeechEnd:
		return "speech_end"
	case VADSilence:
		return "silence"
	default:
		return "unknown"
	}
}
