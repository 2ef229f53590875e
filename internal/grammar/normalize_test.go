package grammar_test

import (
	"testing"

	"github.com/MrWong99/rapvox/internal/grammar"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: " \t\n ", want: ""},
		{name: "case and trim", in: "  Bad GAME ", want: "bad game"},
		{name: "squeeze", in: "bad    game", want: "bad game"},
		{name: "unknown only", in: "[unk]", want: ""},
		{name: "unknown inside", in: "pizza [unk] help", want: "pizza help"},
		{name: "unknown glued", in: "boom[unk]boom", want: "boom boom"},
		{name: "unknown upper case", in: "[UNK] pizza", want: "pizza"},
		{name: "collapse four", in: "boom boom boom boom", want: "boom boom"},
		{name: "collapse three mixed case", in: "Boom BOOM boom", want: "boom boom"},
		{name: "two stays", in: "boom boom", want: "boom boom"},
		{name: "two runs", in: "go go go stop stop stop stop", want: "go go stop stop"},
		{name: "non adjacent", in: "boom x boom x boom", want: "boom x boom x boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := grammar.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"boom boom boom boom",
		"  This   GAME sucks [unk] ",
		"a a a b b b b c",
		"[unk] [unk] [unk]",
		"i challenge you to a rap battle",
	}
	for _, in := range inputs {
		once := grammar.Normalize(in)
		if twice := grammar.Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
	if grammar.Normalize("boom boom boom boom") != grammar.Normalize("boom boom") {
		t.Error("repeated run must normalize to the same text as two repetitions")
	}
}

func TestNormalizer_CustomUnknown(t *testing.T) {
	t.Parallel()
	n := grammar.Normalizer{Unknown: "<unk>"}
	if got := n.Normalize("pizza <UNK> [unk]"); got != "pizza [unk]" {
		t.Errorf("got %q, want %q", got, "pizza [unk]")
	}
}
