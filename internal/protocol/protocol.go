// Package protocol defines the JSON text messages exchanged with the game
// client over the WebSocket connection.
//
// Client messages are decoded with [Decode], which never fails on messages the
// server does not understand: unknown types and malformed payloads yield
// [ErrIgnored] so the caller can skip them without changing state.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrWong99/rapvox/internal/freestyle"
)

// Client → server message types.
const (
	TypeSetMode      = "set_mode"
	TypeListenWindow = "listen_window"
)

// Server → client message types.
const (
	TypeFinal          = "final"
	TypeFreestyleFinal = "freestyle_final"
)

// Mode is the recognition mode of a session.
type Mode string

const (
	ModeCommand   Mode = "command"
	ModeFreestyle Mode = "freestyle"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeCommand || m == ModeFreestyle
}

// ErrIgnored marks a client message that must be skipped: unknown type,
// malformed JSON or invalid fields.
var ErrIgnored = errors.New("protocol: message ignored")

// Control is a decoded client message. Exactly one of SetMode and
// ListenWindow is non-nil.
type Control struct {
	SetMode      *SetMode
	ListenWindow *ListenWindow
}

// SetMode switches the session mode.
type SetMode struct {
	Mode Mode `json:"mode"`
}

// ListenWindow opens a timed freestyle window. BPM, Bars and Grid describe the
// backing track and are informational.
type ListenWindow struct {
	MS   int     `json:"ms"`
	BPM  float64 `json:"bpm"`
	Bars int     `json:"bars"`
	Grid string  `json:"grid"`
}

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one client text message. Every failure wraps ErrIgnored.
func Decode(data []byte) (Control, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Control{}, fmt.Errorf("%w: %v", ErrIgnored, err)
	}
	switch env.Type {
	case TypeSetMode:
		var m SetMode
		if err := json.Unmarshal(data, &m); err != nil {
			return Control{}, fmt.Errorf("%w: set_mode: %v", ErrIgnored, err)
		}
		if !m.Mode.IsValid() {
			return Control{}, fmt.Errorf("%w: unknown mode %q", ErrIgnored, m.Mode)
		}
		return Control{SetMode: &m}, nil
	case TypeListenWindow:
		var w ListenWindow
		if err := json.Unmarshal(data, &w); err != nil {
			return Control{}, fmt.Errorf("%w: listen_window: %v", ErrIgnored, err)
		}
		if w.MS <= 0 {
			return Control{}, fmt.Errorf("%w: listen_window ms must be positive, got %d", ErrIgnored, w.MS)
		}
		return Control{ListenWindow: &w}, nil
	default:
		return Control{}, fmt.Errorf("%w: unknown type %q", ErrIgnored, env.Type)
	}
}

// Final is emitted when a command phrase was recognized.
type Final struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewFinal returns a final message for phrase.
func NewFinal(phrase string) Final {
	return Final{Type: TypeFinal, Text: phrase}
}

// FreestyleFinal is emitted once per freestyle window.
type FreestyleFinal struct {
	Type  string               `json:"type"`
	Text  string               `json:"text"`
	Words []string             `json:"words"`
	Judge freestyle.JudgeScore `json:"judge"`
}

// NewFreestyleFinal returns a freestyle_final message. A nil words slice is
// encoded as an empty array.
func NewFreestyleFinal(text string, words []string, judge freestyle.JudgeScore) FreestyleFinal {
	if words == nil {
		words = []string{}
	}
	return FreestyleFinal{Type: TypeFreestyleFinal, Text: text, Words: words, Judge: judge}
}
