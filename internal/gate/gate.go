// Package gate decides whether the persona actually sends the oracle's
// proposed replies, or stays silent.
package gate

import (
	"fmt"
	"math/rand/v2"

	"coldchat/internal/domain"
)

// suppressionProbability returns the chance of discarding the whole reply
// list for the given interest level and tier. Levels 2 and 3 soften as the
// relationship warms; level 1 is handled as a hard rule, levels >= 4 never
// suppress.
func suppressionProbability(interestLevel int, tier domain.Tier) float64 {
	switch interestLevel {
	case 2:
		switch tier {
		case domain.TierFavored:
			return 0.20
		case domain.TierAcquaintance:
			return 0.40
		default:
			return 0.60
		}
	case 3:
		switch tier {
		case domain.TierFavored:
			return 0.05
		case domain.TierAcquaintance:
			return 0.15
		default:
			return 0.30
		}
	}
	return 0
}

// Decision is the outcome of one gate evaluation.
type Decision struct {
	Replies    []string // kept replies, order preserved; nil when suppressed
	Suppressed bool
	Thoughts   string // verdict thoughts extended with the branch trace
}

// Gate applies the suppression rules. The random source is injected so
// tests can fix outcomes; never reach for the global generator here.
type Gate struct {
	rng *rand.Rand
}

func New(rng *rand.Rand) *Gate {
	return &Gate{rng: rng}
}

// Decide evaluates one turn. It draws at most one uniform sample,
// regardless of how many replies the oracle proposed. The trace appended
// to thoughts is advisory only; nothing downstream may branch on it.
func (g *Gate) Decide(verdict *domain.Verdict, tier domain.Tier) Decision {
	thoughts := verdict.Thoughts

	if verdict.InterestLevel <= 1 {
		return Decision{
			Suppressed: true,
			Thoughts:   thoughts + " [gate: level 1, forced no-reply]",
		}
	}

	p := suppressionProbability(verdict.InterestLevel, tier)
	if p == 0 {
		return Decision{
			Replies:  verdict.Replies,
			Thoughts: thoughts,
		}
	}

	roll := g.rng.Float64()
	if roll < p {
		return Decision{
			Suppressed: true,
			Thoughts: thoughts + fmt.Sprintf(
				" [gate: level %d at %s tier rolled %.2f < %.2f, suppressed]",
				verdict.InterestLevel, tier, roll, p),
		}
	}
	return Decision{
		Replies: verdict.Replies,
		Thoughts: thoughts + fmt.Sprintf(
			" [gate: level %d at %s tier rolled %.2f >= %.2f, allowed]",
			verdict.InterestLevel, tier, roll, p),
	}
}
