package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"coldchat/internal/bus"
	"coldchat/internal/domain"
	"coldchat/internal/oracle"
	"coldchat/internal/persona"
)

// instantPacer removes all human-like delays so turns complete as fast
// as the scheduler allows.
type instantPacer struct{}

func (instantPacer) ReadDelay() time.Duration           { return 0 }
func (instantPacer) InterMessagePause() time.Duration   { return 0 }
func (instantPacer) TypingDuration(string) time.Duration { return 0 }

// blockingOracle parks Generate until released, so tests can observe the
// session mid-turn.
type blockingOracle struct {
	started chan struct{}
	release chan struct{}
	verdict domain.Verdict
}

func newBlockingOracle(v domain.Verdict) *blockingOracle {
	return &blockingOracle{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
		verdict: v,
	}
}

func (o *blockingOracle) Name() string { return "blocking" }

func (o *blockingOracle) Generate(ctx context.Context, _ domain.OracleRequest) (*domain.Verdict, error) {
	o.started <- struct{}{}
	select {
	case <-o.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	v := o.verdict
	return &v, nil
}

func (o *blockingOracle) Healthy(context.Context) error { return nil }

func newTestSession(t *testing.T, orc domain.Oracle) *Session {
	t.Helper()
	s := New(Config{
		Persona: persona.Default(),
		Oracle:  orc,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Rand:    rand.New(rand.NewPCG(7, 7)),
		Pacer:   instantPacer{},
	})
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSubmitRejectsEmpty(t *testing.T) {
	orc := oracle.NewScripted()
	s := newTestSession(t, orc)

	if s.Submit("   ", "") {
		t.Fatal("expected blank submission to be rejected")
	}
	time.Sleep(20 * time.Millisecond)
	if got := len(s.Snapshot()); got != 1 {
		t.Errorf("expected only the greeting, got %d messages", got)
	}
	if orc.Calls() != 0 {
		t.Errorf("oracle should not have been consulted, got %d calls", orc.Calls())
	}
}

func TestFullTurn(t *testing.T) {
	orc := oracle.NewScripted().Push(domain.Verdict{
		InterestLevel: 7,
		Thoughts:      "这人还挺有意思",
		Replies:       []string{"哈哈", "你倒是会说话"},
	})
	s := newTestSession(t, orc)

	if !s.Submit("今天路过你们学校了", "") {
		t.Fatal("submit rejected")
	}
	waitFor(t, "two replies", func() bool { return len(s.Snapshot()) == 4 })

	log := s.Snapshot()
	if log[0].Sender != domain.SenderBot || log[0].Text != s.Persona().Greeting {
		t.Errorf("first message should be the greeting, got %+v", log[0])
	}
	user := log[1]
	if user.Sender != domain.SenderUser {
		t.Fatalf("expected user message at index 1, got %s", user.Sender)
	}
	if user.Status != domain.StatusRead {
		t.Errorf("user message status = %q, want read", user.Status)
	}
	if user.InterestLevel != 7 {
		t.Errorf("user message interest = %d, want 7", user.InterestLevel)
	}
	if log[2].Sender != domain.SenderBot || log[2].Text != "哈哈" {
		t.Errorf("unexpected first reply: %+v", log[2])
	}
	if log[2].Thoughts != "这人还挺有意思" {
		t.Errorf("thoughts should ride on the first reply, got %q", log[2].Thoughts)
	}
	if log[3].Thoughts != "" {
		t.Errorf("second reply should carry no thoughts, got %q", log[3].Thoughts)
	}
	if s.Score() != 13 {
		t.Errorf("score = %d, want 13 after a level-7 turn", s.Score())
	}
}

func TestLowInterestSuppressesWithPlaceholder(t *testing.T) {
	orc := oracle.NewScripted().Push(domain.Verdict{
		InterestLevel: 1,
		Thoughts:      "无聊",
		Replies:       []string{"哦"},
	})
	s := newTestSession(t, orc)

	s.Submit("在吗在吗在吗", "")
	waitFor(t, "placeholder", func() bool { return len(s.Snapshot()) == 3 })

	log := s.Snapshot()
	last := log[2]
	if last.Sender != domain.SenderSystem {
		t.Fatalf("expected system placeholder, got sender %s", last.Sender)
	}
	if last.Text != s.Persona().SilentPlaceholder {
		t.Errorf("placeholder text = %q", last.Text)
	}
	if !strings.Contains(last.Thoughts, "无聊") || !strings.Contains(last.Thoughts, "[gate:") {
		t.Errorf("placeholder thoughts should carry verdict and gate trace, got %q", last.Thoughts)
	}
	if s.Score() != 8 {
		t.Errorf("score = %d, want 8 after a level-1 turn", s.Score())
	}
}

func TestOracleFailureFallsBack(t *testing.T) {
	orc := oracle.NewScripted().
		PushError(errors.New("rpc deadline exceeded")).
		Push(domain.Verdict{InterestLevel: 6, Thoughts: "缓过来了", Replies: []string{"刚才没信号"}})
	s := newTestSession(t, orc)

	s.Submit("喂？", "")
	waitFor(t, "fallback reply", func() bool { return len(s.Snapshot()) == 3 })

	log := s.Snapshot()
	if log[2].Sender != domain.SenderBot || log[2].Text != s.Persona().FallbackReply {
		t.Fatalf("expected fallback reply %q, got %+v", s.Persona().FallbackReply, log[2])
	}
	if log[2].Thoughts != fallbackThoughts {
		t.Errorf("fallback thoughts = %q, want %q", log[2].Thoughts, fallbackThoughts)
	}
	if s.Score() != 11 {
		t.Errorf("fallback verdict is neutral, score = %d, want 11", s.Score())
	}

	// The session keeps working after a failure.
	s.Submit("现在呢", "")
	waitFor(t, "recovery reply", func() bool { return len(s.Snapshot()) == 5 })
	if got := s.Snapshot()[4].Text; got != "刚才没信号" {
		t.Errorf("post-failure reply = %q", got)
	}
}

// Impressions are only requested every tenth message. Level-1 turns add
// exactly two messages each (user plus placeholder), so the fifth
// submission lands on a count of ten and its impression is the only one
// that takes.
func TestImpressionCadence(t *testing.T) {
	orc := oracle.NewScripted()
	for i := 1; i <= 5; i++ {
		orc.Push(domain.Verdict{
			InterestLevel: 1,
			Thoughts:      "还是懒得理",
			Replies:       []string{"哦"},
			Impression:    fmt.Sprintf("round %d", i),
		})
	}
	s := newTestSession(t, orc)
	defaultImpression := s.Impression()

	for i := 1; i <= 5; i++ {
		s.Submit(fmt.Sprintf("message %d", i), "")
		want := 1 + 2*i
		waitFor(t, "turn to settle", func() bool { return len(s.Snapshot()) == want })
		if i < 5 && s.Impression() != defaultImpression {
			t.Fatalf("impression updated early on turn %d: %q", i, s.Impression())
		}
	}

	if s.Impression() != "round 5" {
		t.Errorf("impression = %q, want %q", s.Impression(), "round 5")
	}
}

func TestTierUpEmitsOnce(t *testing.T) {
	orc := oracle.NewScripted()
	for i := 0; i < 4; i++ {
		orc.Push(domain.Verdict{InterestLevel: 9, Thoughts: "聊得很开心", Replies: []string{"真的吗"}})
	}
	s := newTestSession(t, orc)

	var mu sync.Mutex
	var tierUps []bus.Event
	s.Bus().On(bus.EventTierUp, func(e bus.Event) {
		mu.Lock()
		tierUps = append(tierUps, e)
		mu.Unlock()
	})

	for i := 1; i <= 4; i++ {
		s.Submit("又来找你聊天啦", "")
		want := 1 + 2*i
		waitFor(t, "turn to settle", func() bool { return len(s.Snapshot()) == want })
	}

	if s.Score() != 30 {
		t.Fatalf("score = %d, want 30 after four level-9 turns", s.Score())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(tierUps) != 1 {
		t.Fatalf("expected exactly one tier-up event, got %d", len(tierUps))
	}
	if tierUps[0].Tier != domain.TierAcquaintance || tierUps[0].Score != 30 {
		t.Errorf("tier-up event = %+v", tierUps[0])
	}
	if tierUps[0].TTL != tierUpBannerTTL {
		t.Errorf("tier-up TTL = %v, want %v", tierUps[0].TTL, tierUpBannerTTL)
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	orc := oracle.NewScripted().Push(domain.Verdict{
		InterestLevel: 8, Thoughts: "不错", Replies: []string{"嗯嗯"},
	})
	s := newTestSession(t, orc)

	s.Submit("聊两句", "")
	waitFor(t, "reply", func() bool { return len(s.Snapshot()) == 3 })

	s.Reset()
	log := s.Snapshot()
	if len(log) != 1 {
		t.Fatalf("expected a single greeting after reset, got %d messages", len(log))
	}
	if log[0].Text != s.Persona().Greeting || log[0].Sender != domain.SenderBot {
		t.Errorf("reset greeting = %+v", log[0])
	}
	if s.Score() != 10 {
		t.Errorf("score = %d, want 10 after reset", s.Score())
	}
	if s.Impression() != s.Persona().DefaultImpression {
		t.Errorf("impression = %q, want the persona default", s.Impression())
	}
}

// A turn caught mid-oracle by a Reset must discard all of its effects.
func TestResetDiscardsInFlightTurn(t *testing.T) {
	orc := newBlockingOracle(domain.Verdict{
		InterestLevel: 9, Thoughts: "迟到的判定", Replies: []string{"不该出现"},
	})
	s := newTestSession(t, orc)

	s.Submit("这条会被重置掉", "")
	<-orc.started

	s.Reset()
	orc.release <- struct{}{}

	time.Sleep(50 * time.Millisecond)
	if got := len(s.Snapshot()); got != 1 {
		t.Errorf("stale turn leaked into the log, %d messages", got)
	}
	if s.Score() != 10 {
		t.Errorf("stale turn moved the score to %d", s.Score())
	}
}

// Submissions during an in-flight turn append immediately but their
// processing queues behind it, so replies never interleave.
func TestOverlappingTurnsQueue(t *testing.T) {
	orc := newBlockingOracle(domain.Verdict{
		InterestLevel: 6, Thoughts: "一条条来", Replies: []string{"收到"},
	})
	s := newTestSession(t, orc)

	s.Submit("第一条", "")
	<-orc.started
	s.Submit("第二条", "")

	// Both user messages are in the log before any reply.
	waitFor(t, "both user messages", func() bool { return len(s.Snapshot()) == 3 })

	orc.release <- struct{}{}
	<-orc.started
	orc.release <- struct{}{}
	waitFor(t, "both replies", func() bool { return len(s.Snapshot()) == 5 })

	wantSenders := []domain.Sender{
		domain.SenderBot, domain.SenderUser, domain.SenderUser,
		domain.SenderBot, domain.SenderBot,
	}
	log := s.Snapshot()
	for i, want := range wantSenders {
		if log[i].Sender != want {
			t.Errorf("position %d: sender = %s, want %s", i, log[i].Sender, want)
		}
	}
	if log[1].Text != "第一条" || log[2].Text != "第二条" {
		t.Errorf("user messages out of order: %q, %q", log[1].Text, log[2].Text)
	}
}
