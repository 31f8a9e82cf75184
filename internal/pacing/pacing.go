// Package pacing computes the human-like delays that make the persona
// feel like someone on the other end of a phone: not checking messages
// immediately, pausing between texts, typing at a finite speed.
package pacing

import (
	"math/rand/v2"
	"time"
	"unicode/utf8"
)

const (
	readDelayMin = 1500 * time.Millisecond
	readDelayMax = 6000 * time.Millisecond

	pauseMin = 200 * time.Millisecond
	pauseMax = 700 * time.Millisecond

	typingPerRune = 60 * time.Millisecond
	typingFloor   = 800 * time.Millisecond
	typingCeil    = 3000 * time.Millisecond
)

// Simulator derives delays from content and an injected random source.
// Pure computation, no I/O; deterministic under a fixed seed.
type Simulator struct {
	rng *rand.Rand
}

func NewSimulator(rng *rand.Rand) *Simulator {
	return &Simulator{rng: rng}
}

// ReadDelay is how long the persona leaves a message on "delivered"
// before reading it. Uniform over [1.5s, 6s).
func (s *Simulator) ReadDelay() time.Duration {
	return s.uniform(readDelayMin, readDelayMax)
}

// InterMessagePause is the gap before each reply's typing phase.
// Uniform over [200ms, 700ms).
func (s *Simulator) InterMessagePause() time.Duration {
	return s.uniform(pauseMin, pauseMax)
}

// TypingDuration models typing speed: 60ms per rune, clamped to
// [800ms, 3s]. Runes, not bytes, so CJK text paces the same as Latin.
func (s *Simulator) TypingDuration(replyText string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(replyText)) * typingPerRune
	if d < typingFloor {
		return typingFloor
	}
	if d > typingCeil {
		return typingCeil
	}
	return d
}

func (s *Simulator) uniform(min, max time.Duration) time.Duration {
	return min + time.Duration(s.rng.Int64N(int64(max-min)))
}
