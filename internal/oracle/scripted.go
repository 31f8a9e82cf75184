package oracle

import (
	"context"
	"sync"

	"coldchat/internal/domain"
)

// Scripted is a deterministic oracle for tests and offline runs. Queued
// results are consumed in order; once the queue is empty it falls back to
// a canned neutral verdict.
type Scripted struct {
	mu    sync.Mutex
	queue []scriptedResult
	calls int
}

type scriptedResult struct {
	verdict *domain.Verdict
	err     error
}

func NewScripted() *Scripted {
	return &Scripted{}
}

// Push queues a verdict to be returned by the next Generate call.
func (s *Scripted) Push(v domain.Verdict) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scriptedResult{verdict: &v})
	return s
}

// PushError queues a failure, exercising the caller's fallback path.
func (s *Scripted) PushError(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scriptedResult{err: err})
	return s
}

func (s *Scripted) Name() string { return "scripted" }

func (s *Scripted) Generate(_ context.Context, req domain.OracleRequest) (*domain.Verdict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		if next.err != nil {
			return nil, next.err
		}
		return next.verdict, nil
	}

	v := &domain.Verdict{
		InterestLevel: 5,
		Thoughts:      "scripted oracle, no entries queued",
		Replies:       []string{"嗯。"},
	}
	if req.RequestImpression {
		v.Impression = "scripted impression"
	}
	return v, nil
}

func (s *Scripted) Healthy(context.Context) error { return nil }

// Calls reports how many Generate calls were made.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
