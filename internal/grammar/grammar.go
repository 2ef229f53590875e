// Package grammar maps cleaned recognizer transcripts onto a closed set of
// command phrases.
//
// A [Grammar] holds an ordered, de-duplicated phrase list and one matching
// [Policy] chosen per deployment. Policies are never blended: exact equality,
// longest contained phrase, or whole-utterance phonetic similarity.
//
// The recognizer's unknown marker (default "[unk]") may be handed to the
// recognizer as part of its grammar but is never matchable; a transcript that
// consists solely of the marker is reported by [Grammar.Declined].
package grammar

import (
	"errors"
	"fmt"
	"strings"
)

// Policy selects how cleaned text is mapped onto a phrase.
type Policy string

const (
	// PolicyExact requires the cleaned text to equal a phrase.
	PolicyExact Policy = "exact"

	// PolicyLongest picks the longest phrase contained in the cleaned text.
	// Ties go to the phrase listed first.
	PolicyLongest Policy = "longest"

	// PolicyPhonetic picks the phrase that sounds most like the whole cleaned
	// text, subject to a similarity threshold.
	PolicyPhonetic Policy = "phonetic"
)

// IsValid reports whether p is a known policy.
func (p Policy) IsValid() bool {
	switch p {
	case PolicyExact, PolicyLongest, PolicyPhonetic:
		return true
	}
	return false
}

// ErrNoPhrases is returned by [New] when no matchable phrase remains.
var ErrNoPhrases = errors.New("grammar: no phrases")

// Option configures a [Grammar].
type Option func(*Grammar)

// WithPolicy selects the matching policy. Defaults to [PolicyExact].
func WithPolicy(p Policy) Option {
	return func(g *Grammar) { g.policy = p }
}

// WithUnknownToken sets the recognizer's unknown marker. Defaults to
// [DefaultUnknownToken].
func WithUnknownToken(tok string) Option {
	return func(g *Grammar) { g.unknown = strings.ToLower(strings.TrimSpace(tok)) }
}

// WithPhoneticThreshold sets the minimum Jaro-Winkler similarity accepted by
// [PolicyPhonetic]. Default: 0.85.
func WithPhoneticThreshold(threshold float64) Option {
	return func(g *Grammar) { g.phoneticThreshold = threshold }
}

// Grammar is an immutable phrase set with a matching policy. It is safe for
// concurrent use.
type Grammar struct {
	phrases []string
	set     map[string]struct{}
	policy  Policy
	unknown string

	phoneticThreshold float64
	phonetic          *phoneticIndex
}

// New builds a Grammar from phrases. Phrases are lower-cased with whitespace
// squeezed; duplicates and the unknown marker are dropped. An empty phrase is
// an error.
func New(phrases []string, opts ...Option) (*Grammar, error) {
	g := &Grammar{
		policy:            PolicyExact,
		unknown:           DefaultUnknownToken,
		phoneticThreshold: defaultPhoneticThreshold,
		set:               make(map[string]struct{}, len(phrases)),
	}
	for _, o := range opts {
		o(g)
	}
	if g.unknown == "" {
		g.unknown = DefaultUnknownToken
	}
	if !g.policy.IsValid() {
		return nil, fmt.Errorf("grammar: unknown policy %q", g.policy)
	}

	for i, p := range phrases {
		clean := strings.Join(strings.Fields(strings.ToLower(p)), " ")
		if clean == "" {
			return nil, fmt.Errorf("grammar: phrase %d is empty", i)
		}
		if clean == g.unknown {
			continue
		}
		if _, dup := g.set[clean]; dup {
			continue
		}
		g.set[clean] = struct{}{}
		g.phrases = append(g.phrases, clean)
	}
	if len(g.phrases) == 0 {
		return nil, ErrNoPhrases
	}
	if g.policy == PolicyPhonetic {
		g.phonetic = newPhoneticIndex(g.phrases, g.phoneticThreshold)
	}
	return g, nil
}

// Policy returns the matching policy.
func (g *Grammar) Policy() Policy { return g.policy }

// UnknownToken returns the recognizer's unknown marker.
func (g *Grammar) UnknownToken() string { return g.unknown }

// Phrases returns a copy of the matchable phrases in order.
func (g *Grammar) Phrases() []string {
	out := make([]string, len(g.phrases))
	copy(out, g.phrases)
	return out
}

// RecognizerGrammar returns the phrase list to hand to a grammar-constrained
// recognizer: every phrase followed by the unknown marker, so the recognizer
// can decline instead of forcing a wrong phrase.
func (g *Grammar) RecognizerGrammar() []string {
	out := make([]string, 0, len(g.phrases)+1)
	out = append(out, g.phrases...)
	return append(out, g.unknown)
}

// Declined reports whether raw is exactly the recognizer's unknown marker,
// meaning the recognizer found no confident match.
func (g *Grammar) Declined(raw string) bool {
	return strings.ToLower(strings.TrimSpace(raw)) == g.unknown
}

// Match maps normalized text to exactly one phrase.
func (g *Grammar) Match(clean string) (string, bool) {
	if clean == "" {
		return "", false
	}
	switch g.policy {
	case PolicyLongest:
		return g.matchLongest(clean)
	case PolicyPhonetic:
		if _, ok := g.set[clean]; ok {
			return clean, true
		}
		return g.phonetic.match(clean)
	default:
		_, ok := g.set[clean]
		if !ok {
			return "", false
		}
		return clean, true
	}
}

func (g *Grammar) matchLongest(clean string) (string, bool) {
	best := ""
	for _, p := range g.phrases {
		if len(p) > len(best) && strings.Contains(clean, p) {
			best = p
		}
	}
	return best, best != ""
}
