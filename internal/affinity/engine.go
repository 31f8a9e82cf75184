// Package affinity tracks the persona's accumulated opinion of the user:
// a bounded score, the tier derived from it, and a free-text impression.
package affinity

import (
	"sync"

	"coldchat/internal/domain"
)

const (
	// StartScore is the score a fresh (or reset) conversation begins with.
	StartScore = 10

	minScore = 0
	maxScore = 100

	acquaintanceThreshold = 30
	favoredThreshold      = 80
)

// TierOf is the pure step function from score to tier.
func TierOf(score int) domain.Tier {
	switch {
	case score >= favoredThreshold:
		return domain.TierFavored
	case score >= acquaintanceThreshold:
		return domain.TierAcquaintance
	default:
		return domain.TierStranger
	}
}

// DeltaFor maps an interest level to the bucketed score delta.
func DeltaFor(interestLevel int) int {
	switch {
	case interestLevel <= 2:
		return -2
	case interestLevel == 3:
		return -1
	case interestLevel <= 6:
		return +1
	case interestLevel <= 8:
		return +3
	default:
		return +5
	}
}

// Result describes the outcome of one applied delta.
type Result struct {
	NewScore    int
	NewTier     domain.Tier
	TierChanged bool // true only on an upward tier crossing driven by a score increase
}

// Engine holds the affinity state. Tier is never stored: it is recomputed
// from the score on every read, so the two cannot desync.
type Engine struct {
	mu                sync.RWMutex
	score             int
	impression        string
	defaultImpression string
}

func NewEngine(defaultImpression string) *Engine {
	return &Engine{
		score:             StartScore,
		impression:        defaultImpression,
		defaultImpression: defaultImpression,
	}
}

// ApplyDelta folds one verdict's interest level into the score.
// Tier-up signals are one-directional: a decrease never raises one, even
// when it crosses a boundary downward.
func (e *Engine) ApplyDelta(interestLevel int) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.score
	next := old + DeltaFor(interestLevel)
	if next < minScore {
		next = minScore
	}
	if next > maxScore {
		next = maxScore
	}
	e.score = next

	return Result{
		NewScore:    next,
		NewTier:     TierOf(next),
		TierChanged: next > old && TierOf(next) > TierOf(old),
	}
}

// Score returns the current score.
func (e *Engine) Score() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.score
}

// Tier returns the tier derived from the current score.
func (e *Engine) Tier() domain.Tier {
	return TierOf(e.Score())
}

// Impression returns the persona's current running opinion of the user.
func (e *Engine) Impression() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.impression
}

// SetImpression overwrites the stored impression. Impressions replace,
// never append.
func (e *Engine) SetImpression(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.impression = text
}

// Reset restores the starting score and default impression.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.score = StartScore
	e.impression = e.defaultImpression
}
