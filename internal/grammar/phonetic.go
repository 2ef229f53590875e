package grammar

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const defaultPhoneticThreshold = 0.85

// phoneticIndex compares a whole utterance against every phrase using Double
// Metaphone code overlap as a gate and Jaro-Winkler similarity as the score.
//
// Unlike word-level entity correction, only whole-string comparisons are
// scored: the full text and the text with spaces removed. A single shared
// word never makes two different commands equal.
type phoneticIndex struct {
	threshold float64
	entries   []phoneticEntry
}

type phoneticEntry struct {
	phrase string
	concat string
	codes  map[string]struct{}
}

func newPhoneticIndex(phrases []string, threshold float64) *phoneticIndex {
	idx := &phoneticIndex{threshold: threshold, entries: make([]phoneticEntry, 0, len(phrases))}
	for _, p := range phrases {
		tokens := strings.Fields(p)
		idx.entries = append(idx.entries, phoneticEntry{
			phrase: p,
			concat: strings.Join(tokens, ""),
			codes:  codesForTokens(tokens),
		})
	}
	return idx
}

// match returns the phrase with the highest similarity to text among phrases
// that share at least one phonetic code with it. Ties go to the phrase listed
// first.
func (idx *phoneticIndex) match(text string) (string, bool) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return "", false
	}
	codes := codesForTokens(tokens)
	concat := strings.Join(tokens, "")

	best, bestScore := "", 0.0
	for _, e := range idx.entries {
		if !codesOverlap(codes, e.codes) {
			continue
		}
		score := matchr.JaroWinkler(text, e.phrase, false)
		if s := matchr.JaroWinkler(concat, e.concat, false); s > score {
			score = s
		}
		if score >= idx.threshold && score > bestScore {
			best, bestScore = e.phrase, score
		}
	}
	return best, best != ""
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
