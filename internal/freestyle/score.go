// Package freestyle scores a timed freestyle performance from its transcript.
//
// Scoring is content-only: rhyme density at line endings, words per line
// against a target (a proxy for staying on the beat), lexical variety and
// completion against a target word count. Tempo metadata supplied with the
// listening window is recorded but not scored.
package freestyle

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Default scoring parameters.
const (
	DefaultTargetWords        = 24
	DefaultTargetWordsPerLine = 8
)

// DefaultWeights are the sub-score weights of the total.
var DefaultWeights = Weights{Rhyme: 0.35, OnBeat: 0.20, Variety: 0.20, Completion: 0.25}

// Weights combine the sub-scores into the total.
type Weights struct {
	Rhyme      float64 `yaml:"rhyme"`
	OnBeat     float64 `yaml:"onbeat"`
	Variety    float64 `yaml:"variety"`
	Completion float64 `yaml:"completion"`
}

// Config holds the scoring parameters. Zero fields take the defaults.
type Config struct {
	TargetWords        int
	TargetWordsPerLine int
	Weights            Weights
}

// Rank is the letter grade of a total score.
type Rank string

// Ranks from best to worst.
const (
	RankS Rank = "S"
	RankA Rank = "A"
	RankB Rank = "B"
	RankC Rank = "C"
	RankD Rank = "D"
)

// RankFor maps a total score onto a rank.
func RankFor(total float64) Rank {
	switch {
	case total >= 0.90:
		return RankS
	case total >= 0.75:
		return RankA
	case total >= 0.60:
		return RankB
	case total >= 0.45:
		return RankC
	default:
		return RankD
	}
}

// JudgeScore is the scored result of one window. All values are in [0, 1] and
// rounded to three decimals; Rank is derived from the rounded Total.
type JudgeScore struct {
	Rhyme      float64 `json:"rhyme"`
	OnBeat     float64 `json:"onbeat"`
	Variety    float64 `json:"variety"`
	Completion float64 `json:"complete"`
	Total      float64 `json:"total"`
	Rank       Rank    `json:"rank"`
}

var (
	wordRe = regexp.MustCompile(`[\p{Latin}']+`)
	lineRe = regexp.MustCompile(`[\n.!?]+`)
)

// Tokenize returns the lower-cased words of text. Words are runs of Latin
// letters and apostrophes.
func Tokenize(text string) []string {
	words := wordRe.FindAllString(strings.ToLower(text), -1)
	out := words[:0]
	for _, w := range words {
		if strings.Trim(w, "'") != "" {
			out = append(out, w)
		}
	}
	return out
}

// Scorer computes JudgeScores. It is immutable and safe for concurrent use.
type Scorer struct {
	cfg Config
}

// NewScorer returns a Scorer for cfg.
func NewScorer(cfg Config) *Scorer {
	if cfg.TargetWords <= 0 {
		cfg.TargetWords = DefaultTargetWords
	}
	if cfg.TargetWordsPerLine <= 0 {
		cfg.TargetWordsPerLine = DefaultTargetWordsPerLine
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights
	}
	return &Scorer{cfg: cfg}
}

// Score computes the JudgeScore of text and returns it with the tokenized
// words. It is deterministic.
func (s *Scorer) Score(text string) (JudgeScore, []string) {
	words := Tokenize(text)

	var endings []string
	for _, line := range lineRe.Split(text, -1) {
		lw := Tokenize(line)
		if len(lw) == 0 {
			continue
		}
		endings = append(endings, rhymeSuffix(lw[len(lw)-1]))
	}

	rhyme := rhymeScore(endings)

	onbeat := 0.0
	if len(endings) > 0 {
		avg := float64(len(words)) / float64(len(endings))
		onbeat = clamp01(avg / float64(s.cfg.TargetWordsPerLine))
	}

	variety := 0.0
	if len(words) > 0 {
		uniq := make(map[string]struct{}, len(words))
		for _, w := range words {
			uniq[w] = struct{}{}
		}
		variety = float64(len(uniq)) / float64(len(words))
	}

	completion := clamp01(float64(len(words)) / float64(s.cfg.TargetWords))

	w := s.cfg.Weights
	total := round3(clamp01(w.Rhyme*rhyme + w.OnBeat*onbeat + w.Variety*variety + w.Completion*completion))

	return JudgeScore{
		Rhyme:      round3(rhyme),
		OnBeat:     round3(onbeat),
		Variety:    round3(variety),
		Completion: round3(completion),
		Total:      total,
		Rank:       RankFor(total),
	}, words
}

// rhymeScore is the share of line endings carrying the most common suffix.
func rhymeScore(endings []string) float64 {
	if len(endings) < 2 {
		return 0
	}
	counts := make(map[string]int, len(endings))
	best := 0
	for _, e := range endings {
		counts[e]++
		if counts[e] > best {
			best = counts[e]
		}
	}
	return float64(best) / float64(len(endings))
}

// rhymeSuffix returns the rhyme key of a line's last word: its last three
// letters when it has four or more, its last two when it has two or three,
// and the word itself otherwise. Apostrophes are not letters.
func rhymeSuffix(word string) string {
	letters := strings.ReplaceAll(word, "'", "")
	n := utf8.RuneCountInString(letters)
	keep := n
	switch {
	case n >= 4:
		keep = 3
	case n >= 2:
		keep = 2
	}
	r := []rune(letters)
	return string(r[n-keep:])
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
