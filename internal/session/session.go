// Package session drives conversation turns: it owns the log, the
// affinity state and the in-flight turn, and is the only writer of any of
// them. Turns are consumed one at a time by a single goroutine, so all
// visible effects are totally ordered without locks around the pipeline.
package session

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"coldchat/internal/affinity"
	"coldchat/internal/bus"
	"coldchat/internal/chatlog"
	"coldchat/internal/domain"
	"coldchat/internal/gate"
	"coldchat/internal/metrics"
	"coldchat/internal/pacing"
	"coldchat/internal/persona"
)

const (
	defaultQueueSize = 64
	historyWindow    = 10

	// impressionCadence: request an impression when the post-append
	// message count is an exact multiple of this.
	impressionCadence = 10

	tierUpBannerTTL = 4 * time.Second

	fallbackInterest = 5
	fallbackThoughts = "connection failed"
)

// Pacer supplies the human-like delays for one turn. Satisfied by
// pacing.Simulator; tests substitute an instant pacer.
type Pacer interface {
	ReadDelay() time.Duration
	InterMessagePause() time.Duration
	TypingDuration(replyText string) time.Duration
}

// Config holds all dependencies for a Session.
type Config struct {
	Persona *persona.Persona
	Oracle  domain.Oracle
	Bus     *bus.EventBus
	Archive domain.Archive // optional transcript sink
	Logger  *slog.Logger
	Rand    *rand.Rand // optional; seeds gate and pacing
	Pacer   Pacer      // optional; defaults to pacing.NewSimulator(Rand)
}

// Session orchestrates one conversation for the lifetime of the process.
type Session struct {
	persona *persona.Persona
	store   *chatlog.Store
	engine  *affinity.Engine
	gate    *gate.Gate
	pacing  Pacer
	oracle  domain.Oracle
	bus     *bus.EventBus
	archive domain.Archive
	logger  *slog.Logger

	// generation is bumped on every Reset; stale timer and oracle
	// completions compare against it and discard their effects.
	generation atomic.Int64

	turns  chan turnRequest
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// turnRequest captures everything a turn needs at submission time, so a
// later Reset or interleaved turn cannot retroactively change it.
type turnRequest struct {
	gen               int64
	userMsgID         string
	text              string
	image             string
	history           []domain.HistoryEntry
	requestImpression bool
}

// New creates a session and starts its turn consumer.
func New(cfg Config) *Session {
	if cfg.Persona == nil {
		cfg.Persona = persona.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Bus == nil {
		cfg.Bus = bus.NewEventBus(cfg.Logger)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Pacer == nil {
		cfg.Pacer = pacing.NewSimulator(rng)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		persona: cfg.Persona,
		store:   chatlog.New(cfg.Persona.Greeting),
		engine:  affinity.NewEngine(cfg.Persona.DefaultImpression),
		gate:    gate.New(rng),
		pacing:  cfg.Pacer,
		oracle:  cfg.Oracle,
		bus:     cfg.Bus,
		archive: cfg.Archive,
		logger:  cfg.Logger,
		turns:   make(chan turnRequest, defaultQueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	s.wg.Add(1)
	go s.run()
	return s
}

// Bus exposes the event stream for renderers.
func (s *Session) Bus() *bus.EventBus { return s.bus }

// Persona returns the persona this session plays.
func (s *Session) Persona() *persona.Persona { return s.persona }

// Snapshot returns a copy of the conversation log.
func (s *Session) Snapshot() []domain.Message { return s.store.Snapshot() }

// Score returns the current affinity score.
func (s *Session) Score() int { return s.engine.Score() }

// Tier returns the current affinity tier.
func (s *Session) Tier() domain.Tier { return s.engine.Tier() }

// Impression returns the persona's running opinion of the user.
func (s *Session) Impression() string { return s.engine.Impression() }

// Submit starts a new turn for the given user text and optional image
// payload. An empty submission is a no-op, rejected before any state
// changes. The user message is appended immediately — a turn may be
// submitted while an earlier one is still replying; its processing queues
// behind the in-flight turn but its append does not.
func (s *Session) Submit(text, image string) bool {
	text = strings.TrimSpace(text)
	if text == "" && image == "" {
		return false
	}

	// History for the oracle excludes the message being submitted.
	recent := s.store.Recent(historyWindow)
	history := make([]domain.HistoryEntry, 0, len(recent))
	for _, m := range recent {
		history = append(history, domain.HistoryEntry{
			Sender:    m.Sender,
			Timestamp: m.Timestamp,
			Text:      m.Text,
			Image:     m.Image,
		})
	}

	msg := domain.Message{
		Text:      text,
		Sender:    domain.SenderUser,
		Timestamp: time.Now(),
		Status:    domain.StatusDelivered,
		Image:     image,
	}
	id := s.store.Append(msg)
	msg.ID = id
	s.record(msg)
	s.bus.Emit(bus.Event{Type: bus.EventMessageAppended, Message: &msg})

	req := turnRequest{
		gen:               s.generation.Load(),
		userMsgID:         id,
		text:              text,
		image:             image,
		history:           history,
		requestImpression: s.store.Len()%impressionCadence == 0,
	}

	select {
	case s.turns <- req:
	case <-s.ctx.Done():
		return false
	}
	return true
}

// Reset discards the conversation: the log shrinks to a fresh greeting,
// the score returns to its starting value and the impression to its
// default. It takes effect immediately, ahead of any queued turns; their
// completions become stale and discard themselves.
func (s *Session) Reset() {
	s.generation.Add(1)
	s.store.Reset(s.persona.Greeting)
	s.engine.Reset()
	metrics.AffinityScore.Set(int64(s.engine.Score()))
	s.bus.Emit(bus.Event{Type: bus.EventReset})
	s.logger.Info("conversation reset")
}

// Close stops the turn consumer. Pending turns are abandoned.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case req := <-s.turns:
			s.processTurn(req)
		}
	}
}

func (s *Session) stale(req turnRequest) bool {
	return req.gen != s.generation.Load()
}

// processTurn runs one full turn: overlap the read delay with the oracle
// call, mark messages read, decide, then deliver or stay silent.
func (s *Session) processTurn(req turnRequest) {
	if s.stale(req) {
		return
	}
	metrics.TurnsTotal.Inc()

	// Fire the oracle immediately; do not await it yet. The read delay
	// counts down in parallel so a fast oracle cannot make the persona
	// look implausibly attentive, and a slow one cannot block the read
	// receipt.
	type oracleResult struct {
		verdict *domain.Verdict
		err     error
	}
	resCh := make(chan oracleResult, 1)
	go func() {
		v, err := s.oracle.Generate(s.ctx, domain.OracleRequest{
			History:           req.history,
			LatestText:        req.text,
			LatestImage:       req.image,
			AffinityScore:     s.engine.Score(),
			AffinityTier:      s.engine.Tier(),
			RequestImpression: req.requestImpression,
			CurrentTime:       time.Now(),
		})
		resCh <- oracleResult{verdict: v, err: err}
	}()

	if !s.sleep(s.pacing.ReadDelay()) {
		return
	}
	if !s.stale(req) {
		changed := s.store.UpdateStatus(func(m domain.Message) bool {
			return m.Sender == domain.SenderUser && m.Status != domain.StatusRead
		}, domain.StatusRead)
		if len(changed) > 0 {
			s.bus.Emit(bus.Event{
				Type:       bus.EventStatusChanged,
				MessageIDs: changed,
				Status:     domain.StatusRead,
			})
		}
	}

	var verdict *domain.Verdict
	select {
	case <-s.ctx.Done():
		return
	case res := <-resCh:
		if res.err != nil || res.verdict == nil {
			s.logger.Warn("oracle call failed, using fallback verdict",
				"oracle", s.oracle.Name(), "error", res.err)
			metrics.OracleFailuresTotal.Inc()
			verdict = &domain.Verdict{
				InterestLevel: fallbackInterest,
				Thoughts:      fallbackThoughts,
				Replies:       []string{s.persona.FallbackReply},
			}
		} else {
			verdict = res.verdict
		}
	}

	if s.stale(req) {
		return
	}

	// Deciding: fold the verdict into the affinity state, annotate the
	// triggering message, then gate the replies.
	result := s.engine.ApplyDelta(verdict.InterestLevel)
	metrics.AffinityScore.Set(int64(result.NewScore))
	if result.TierChanged {
		metrics.TierUpsTotal.Inc()
		s.bus.Emit(bus.Event{
			Type:  bus.EventTierUp,
			Score: result.NewScore,
			Tier:  result.NewTier,
			TTL:   tierUpBannerTTL,
		})
	}

	s.store.Annotate(req.userMsgID, chatlog.Annotation{InterestLevel: verdict.InterestLevel})
	s.bus.Emit(bus.Event{
		Type:    bus.EventMessageAnnotated,
		Message: &domain.Message{ID: req.userMsgID, InterestLevel: verdict.InterestLevel},
	})

	if req.requestImpression && verdict.Impression != "" {
		s.engine.SetImpression(verdict.Impression)
		s.bus.Emit(bus.Event{Type: bus.EventImpressionUpdated, Impression: verdict.Impression})
	}

	decision := s.gate.Decide(verdict, result.NewTier)
	s.logger.Info("turn decided",
		"interest", verdict.InterestLevel,
		"score", result.NewScore,
		"tier", result.NewTier.String(),
		"suppressed", decision.Suppressed,
		"replies", len(decision.Replies),
	)

	if len(decision.Replies) == 0 {
		s.deliverSilence(req, decision.Thoughts)
		return
	}
	s.deliverReplies(req, decision)
}

// deliverSilence appends the single System placeholder for a turn whose
// replies were all discarded. The verdict's thoughts ride along for
// inspection.
func (s *Session) deliverSilence(req turnRequest, thoughts string) {
	metrics.SuppressedTotal.Inc()
	if s.stale(req) {
		return
	}
	msg := domain.Message{
		Text:      s.persona.SilentPlaceholder,
		Sender:    domain.SenderSystem,
		Timestamp: time.Now(),
		Thoughts:  thoughts,
	}
	msg.ID = s.store.Append(msg)
	s.record(msg)
	s.bus.Emit(bus.Event{Type: bus.EventMessageAppended, Message: &msg})
}

// deliverReplies sequences the kept replies with human pacing: pause,
// typing signal for the typing duration, then the message. Thoughts are
// attached only to the first message of the burst.
func (s *Session) deliverReplies(req turnRequest, decision gate.Decision) {
	for i, reply := range decision.Replies {
		if !s.sleep(s.pacing.InterMessagePause()) || s.stale(req) {
			return
		}

		s.bus.Emit(bus.Event{Type: bus.EventTypingStarted})
		ok := s.sleep(s.pacing.TypingDuration(reply))
		s.bus.Emit(bus.Event{Type: bus.EventTypingStopped})
		if !ok || s.stale(req) {
			return
		}

		msg := domain.Message{
			Text:      reply,
			Sender:    domain.SenderBot,
			Timestamp: time.Now(),
		}
		if i == 0 {
			msg.Thoughts = decision.Thoughts
		}
		msg.ID = s.store.Append(msg)
		s.record(msg)
		s.bus.Emit(bus.Event{Type: bus.EventMessageAppended, Message: &msg})
		metrics.RepliesSentTotal.Inc()
	}
}

// sleep waits cooperatively; false means the session is closing.
func (s *Session) sleep(d time.Duration) bool {
	if d <= 0 {
		return s.ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// record mirrors a message into the transcript archive, if one is
// attached. Archive failures are diagnostic-only.
func (s *Session) record(msg domain.Message) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Record(s.ctx, msg); err != nil {
		s.logger.Warn("transcript archive write failed", "error", err)
	}
}
