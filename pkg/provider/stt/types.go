package stt

// Transcript represents a speech-to-text result from a recognizer.
// Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content, as returned by the engine.
	Text string

	// IsFinal indicates whether this is a final or partial transcript.
	IsFinal bool
}

// Empty reports whether the transcript carries no text.
func (t Transcript) Empty() bool { return t.Text == "" }
