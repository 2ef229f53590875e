package grammar

import "strings"

// DefaultUnknownToken is the marker a grammar-constrained recognizer returns
// when no phrase fits the audio.
const DefaultUnknownToken = "[unk]"

// Normalize cleans a raw recognizer transcript using the default unknown token.
// See [Normalizer.Normalize].
func Normalize(raw string) string {
	return Normalizer{}.Normalize(raw)
}

// Normalizer cleans raw recognizer transcripts. The zero value uses
// [DefaultUnknownToken].
type Normalizer struct {
	// Unknown is the recognizer's unknown marker. It is replaced by a space.
	Unknown string
}

// Normalize lower-cases and trims raw, replaces every unknown marker with a
// separator, collapses any word repeated three or more times in a row to two
// repetitions, and squeezes whitespace. Empty or whitespace-only input yields
// "". Normalize is idempotent.
func (n Normalizer) Normalize(raw string) string {
	unknown := n.Unknown
	if unknown == "" {
		unknown = DefaultUnknownToken
	}
	t := strings.ToLower(strings.TrimSpace(raw))
	if t == "" {
		return ""
	}
	t = strings.ReplaceAll(t, strings.ToLower(unknown), " ")
	return strings.Join(collapseRepeats(strings.Fields(t)), " ")
}

// collapseRepeats shortens every run of three or more identical consecutive
// words to exactly two.
func collapseRepeats(words []string) []string {
	out := words[:0]
	run := 0
	for i, w := range words {
		if i > 0 && w == words[i-1] {
			run++
		} else {
			run = 1
		}
		if run <= 2 {
			out = append(out, w)
		}
	}
	return out
}
