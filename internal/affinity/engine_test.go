package affinity

import (
	"testing"

	"coldchat/internal/domain"
)

func TestTierOf_Boundaries(t *testing.T) {
	cases := []struct {
		score int
		want  domain.Tier
	}{
		{0, domain.TierStranger},
		{29, domain.TierStranger},
		{30, domain.TierAcquaintance},
		{79, domain.TierAcquaintance},
		{80, domain.TierFavored},
		{100, domain.TierFavored},
	}
	for _, c := range cases {
		if got := TierOf(c.score); got != c.want {
			t.Errorf("TierOf(%d) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestDeltaFor_Buckets(t *testing.T) {
	cases := []struct {
		interest int
		want     int
	}{
		{1, -2}, {2, -2},
		{3, -1},
		{4, 1}, {5, 1}, {6, 1},
		{7, 3}, {8, 3},
		{9, 5}, {10, 5},
	}
	for _, c := range cases {
		if got := DeltaFor(c.interest); got != c.want {
			t.Errorf("DeltaFor(%d) = %d, want %d", c.interest, got, c.want)
		}
	}
}

func TestApplyDelta_ClampsLow(t *testing.T) {
	e := NewEngine("")
	// starting score is 10; enough level-1 verdicts must floor at 0
	for i := 0; i < 20; i++ {
		r := e.ApplyDelta(1)
		if r.NewScore < 0 || r.NewScore > 100 {
			t.Fatalf("score %d escaped [0,100]", r.NewScore)
		}
	}
	if e.Score() != 0 {
		t.Errorf("expected floor 0, got %d", e.Score())
	}
}

func TestApplyDelta_ClampsHigh(t *testing.T) {
	e := NewEngine("")
	for i := 0; i < 40; i++ {
		e.ApplyDelta(10)
	}
	if e.Score() != 100 {
		t.Errorf("expected ceiling 100, got %d", e.Score())
	}
	r := e.ApplyDelta(10)
	if r.NewScore != 100 || r.TierChanged {
		t.Errorf("saturated apply: score=%d tierChanged=%v", r.NewScore, r.TierChanged)
	}
}

// driveTo walks the engine to an exact score using +1 and -1 steps.
func driveTo(t *testing.T, e *Engine, target int) {
	t.Helper()
	for e.Score() < target {
		e.ApplyDelta(5) // +1
	}
	for e.Score() > target {
		e.ApplyDelta(3) // -1
	}
	if e.Score() != target {
		t.Fatalf("cannot reach score %d, at %d", target, e.Score())
	}
}

func TestApplyDelta_TierUpFires(t *testing.T) {
	e := NewEngine("")
	driveTo(t, e, 28)

	// 28 -> 31 crosses Stranger -> Acquaintance upward
	r := e.ApplyDelta(7) // +3
	if r.NewScore != 31 {
		t.Fatalf("expected 31, got %d", r.NewScore)
	}
	if !r.TierChanged {
		t.Error("expected tier-up signal on upward crossing")
	}
	if r.NewTier != domain.TierAcquaintance {
		t.Errorf("expected acquaintance, got %v", r.NewTier)
	}
}

func TestApplyDelta_NoSignalOnDowngrade(t *testing.T) {
	e := NewEngine("")
	driveTo(t, e, 31)

	// 31 -> 29 crosses a boundary downward: never a level-up
	r := e.ApplyDelta(1) // -2
	if r.NewScore != 29 {
		t.Fatalf("expected 29, got %d", r.NewScore)
	}
	if r.TierChanged {
		t.Error("downward crossing must not signal a tier-up")
	}
}

func TestApplyDelta_NoSignalSameTier(t *testing.T) {
	e := NewEngine("")
	driveTo(t, e, 35)

	// 35 -> 33 stays Acquaintance
	if r := e.ApplyDelta(1); r.TierChanged {
		t.Error("same-tier decrease must not signal a tier-up")
	}
	// 33 -> 34 stays Acquaintance
	if r := e.ApplyDelta(5); r.TierChanged {
		t.Error("same-tier increase must not signal a tier-up")
	}
}

func TestReset(t *testing.T) {
	e := NewEngine("a blank slate")
	e.ApplyDelta(10)
	e.SetImpression("actually interesting")

	e.Reset()

	if e.Score() != StartScore {
		t.Errorf("expected score %d after reset, got %d", StartScore, e.Score())
	}
	if e.Impression() != "a blank slate" {
		t.Errorf("expected default impression, got %q", e.Impression())
	}
}

func TestSetImpression_Overwrites(t *testing.T) {
	e := NewEngine("default")
	e.SetImpression("first")
	e.SetImpression("second")
	if e.Impression() != "second" {
		t.Errorf("impression must overwrite, got %q", e.Impression())
	}
}
