// Package gate implements the debounce and cooldown rules that keep a noisy
// recognizer from flooding the client with commands.
//
// Debounce drops a final whose text equals the previous final and arrives
// within MinGap of it. Cooldown drops any command that would be sent within
// Cooldown of the last command actually sent. Rejections are silent; callers
// count them.
//
// A Gate belongs to one session and is not safe for concurrent use.
package gate

import "time"

// Default timings.
const (
	DefaultMinGap   = 1500 * time.Millisecond
	DefaultCooldown = 1200 * time.Millisecond
)

// Config holds the gate timings. Zero values mean "no suppression".
type Config struct {
	// MinGap is the minimum gap between two identical finals.
	MinGap time.Duration

	// Cooldown is the minimum gap between two emitted commands.
	Cooldown time.Duration
}

// Gate tracks the last final and the last emission of one session.
type Gate struct {
	cfg Config

	lastText string
	lastTime time.Time
	lastSent time.Time
}

// New returns a Gate with cfg.
func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Observe applies the debounce rule to a cleaned final. It reports false when
// text repeats the previous final within MinGap. Any non-empty text is recorded
// as the latest final, whether admitted or not.
func (g *Gate) Observe(text string, now time.Time) bool {
	if text == "" {
		return false
	}
	dup := text == g.lastText && !g.lastTime.IsZero() && now.Sub(g.lastTime) < g.cfg.MinGap
	g.lastText = text
	g.lastTime = now
	return !dup
}

// Admit applies the cooldown rule. It does not record anything; call MarkSent
// once the command has actually been emitted.
func (g *Gate) Admit(now time.Time) bool {
	if g.lastSent.IsZero() {
		return true
	}
	return now.Sub(g.lastSent) >= g.cfg.Cooldown
}

// MarkSent records an emission at now.
func (g *Gate) MarkSent(now time.Time) {
	g.lastSent = now
}

