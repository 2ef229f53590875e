package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/MrWong99/rapvox/internal/freestyle"
	"github.com/MrWong99/rapvox/internal/protocol"
)

func TestDecode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		in        string
		wantMode  protocol.Mode
		wantMS    int
		wantGrid  string
		wantError bool
	}{
		{name: "set_mode command", in: `{"type":"set_mode","mode":"command"}`, wantMode: protocol.ModeCommand},
		{name: "set_mode freestyle", in: `{"type":"set_mode","mode":"freestyle"}`, wantMode: protocol.ModeFreestyle},
		{name: "set_mode unknown", in: `{"type":"set_mode","mode":"karaoke"}`, wantError: true},
		{name: "listen_window", in: `{"type":"listen_window","ms":4000,"bpm":92.5,"bars":4,"grid":"1/8"}`, wantMS: 4000, wantGrid: "1/8"},
		{name: "listen_window zero ms", in: `{"type":"listen_window","ms":0}`, wantError: true},
		{name: "listen_window negative", in: `{"type":"listen_window","ms":-5}`, wantError: true},
		{name: "listen_window bad ms type", in: `{"type":"listen_window","ms":"soon"}`, wantError: true},
		{name: "unknown type", in: `{"type":"ping"}`, wantError: true},
		{name: "missing type", in: `{"mode":"command"}`, wantError: true},
		{name: "not json", in: `hello`, wantError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := protocol.Decode([]byte(tt.in))
			if tt.wantError {
				if !errors.Is(err, protocol.ErrIgnored) {
					t.Fatalf("err = %v, want ErrIgnored", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantMode != "" {
				if got.SetMode == nil || got.SetMode.Mode != tt.wantMode {
					t.Errorf("SetMode = %+v, want %q", got.SetMode, tt.wantMode)
				}
				if got.ListenWindow != nil {
					t.Error("ListenWindow set for set_mode")
				}
			}
			if tt.wantMS != 0 {
				if got.ListenWindow == nil {
					t.Fatal("ListenWindow is nil")
				}
				if got.ListenWindow.MS != tt.wantMS || got.ListenWindow.Grid != tt.wantGrid {
					t.Errorf("ListenWindow = %+v", got.ListenWindow)
				}
			}
		})
	}
}

func TestFinal_Encoding(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(protocol.NewFinal("bad game"))
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(b), `{"type":"final","text":"bad game"}`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestFreestyleFinal_Encoding(t *testing.T) {
	t.Parallel()
	judge := freestyle.JudgeScore{Rhyme: 0.667, OnBeat: 0.5, Variety: 1, Completion: 0.25, Total: 0.6, Rank: freestyle.RankB}
	b, err := json.Marshal(protocol.NewFreestyleFinal("", nil, judge))
	if err != nil {
		t.Fatal(err)
	}
	var back map[string]any
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back["type"] != "freestyle_final" {
		t.Errorf("type = %v", back["type"])
	}
	if words, ok := back["words"].([]any); !ok || len(words) != 0 {
		t.Errorf("words = %v, want []", back["words"])
	}
	j, ok := back["judge"].(map[string]any)
	if !ok {
		t.Fatalf("judge = %v", back["judge"])
	}
	for _, k := range []string{"rhyme", "onbeat", "variety", "complete", "total", "rank"} {
		if _, ok := j[k]; !ok {
			t.Errorf("judge missing key %q", k)
		}
	}
	if j["rank"] != "B" {
		t.Errorf("rank = %v, want B", j["rank"])
	}
}
