package domain

import (
	"context"
	"fmt"
	"time"
)

// Tier is the discrete affinity bracket derived from the score.
type Tier int

const (
	TierStranger Tier = iota
	TierAcquaintance
	TierFavored
)

func (t Tier) String() string {
	switch t {
	case TierAcquaintance:
		return "acquaintance"
	case TierFavored:
		return "favored"
	default:
		return "stranger"
	}
}

// HistoryEntry is one past message in the oracle's context window.
type HistoryEntry struct {
	Sender    Sender
	Timestamp time.Time
	Text      string
	Image     string
}

// OracleRequest is the logical contract for one scoring call.
type OracleRequest struct {
	History           []HistoryEntry
	LatestText        string
	LatestImage       string
	AffinityScore     int
	AffinityTier      Tier
	RequestImpression bool
	CurrentTime       time.Time
}

// Verdict is the oracle's structured judgment of a turn.
type Verdict struct {
	InterestLevel int      `json:"interestLevel"`
	Thoughts      string   `json:"thoughts"`
	Replies       []string `json:"replies"`
	Impression    string   `json:"impression,omitempty"`
}

// Validate rejects verdicts missing required fields. There is no
// partial-field recovery: a bad verdict is a total failure of the call.
func (v *Verdict) Validate() error {
	if v.InterestLevel < 1 || v.InterestLevel > 10 {
		return fmt.Errorf("interestLevel %d outside 1-10", v.InterestLevel)
	}
	if v.Thoughts == "" {
		return fmt.Errorf("missing thoughts")
	}
	if v.Replies == nil {
		return fmt.Errorf("missing replies")
	}
	return nil
}

// Oracle produces a verdict for a conversation turn. Implementations may
// fail; the caller substitutes a fallback verdict and carries on.
type Oracle interface {
	Name() string
	Generate(ctx context.Context, req OracleRequest) (*Verdict, error)
	Healthy(ctx context.Context) error
}

// Archive is a write-only transcript sink. It never feeds state back into
// a live session; conversation state stays in memory.
type Archive interface {
	Record(ctx context.Context, msg Message) error
	Close() error
}
