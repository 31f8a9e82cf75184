package domain

import "testing"

func TestStatusRankOrdering(t *testing.T) {
	ordered := []MessageStatus{StatusNone, StatusSent, StatusDelivered, StatusRead}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Errorf("%q should rank above %q", ordered[i], ordered[i-1])
		}
	}
}

func TestVerdictValidate(t *testing.T) {
	good := Verdict{InterestLevel: 5, Thoughts: "fine", Replies: []string{}}
	if err := good.Validate(); err != nil {
		t.Errorf("valid verdict rejected: %v", err)
	}

	cases := []struct {
		name string
		v    Verdict
	}{
		{"level too low", Verdict{InterestLevel: 0, Thoughts: "x", Replies: []string{}}},
		{"level too high", Verdict{InterestLevel: 11, Thoughts: "x", Replies: []string{}}},
		{"missing thoughts", Verdict{InterestLevel: 5, Replies: []string{}}},
		{"nil replies", Verdict{InterestLevel: 5, Thoughts: "x"}},
	}
	for _, tc := range cases {
		if err := tc.v.Validate(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestTierString(t *testing.T) {
	if TierStranger.String() != "stranger" ||
		TierAcquaintance.String() != "acquaintance" ||
		TierFavored.String() != "favored" {
		t.Error("tier names changed")
	}
}
