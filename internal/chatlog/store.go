package chatlog

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"coldchat/internal/domain"
)

// Store is the ordered, in-memory conversation log. Append-only except for
// status and annotation updates; the only destructive operation is Reset.
//
// Turns are processed sequentially, but the store is still guarded by a
// RWMutex so channels can snapshot it from their own goroutines.
type Store struct {
	mu       sync.RWMutex
	messages []domain.Message
}

// Annotation carries the optional post-hoc fields merged into a message.
type Annotation struct {
	InterestLevel int    // 0 = leave unchanged
	Thoughts      string // "" = leave unchanged
}

// New creates a store seeded with the persona's greeting.
func New(greeting string) *Store {
	s := &Store{}
	s.Reset(greeting)
	return s
}

// NewID returns a fresh opaque message ID.
func NewID() string {
	return uuid.NewString()
}

// Append adds a message to the end of the log and returns its ID.
// A missing ID or timestamp is filled in.
func (s *Store) Append(msg domain.Message) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.messages = append(s.messages, msg)
	return msg.ID
}

// UpdateStatus applies newStatus to every message matching pred.
// Transitions only move forward (Sent → Delivered → Read); a backward
// update is silently ignored. Returns the IDs actually changed.
func (s *Store) UpdateStatus(pred func(domain.Message) bool, newStatus domain.MessageStatus) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []string
	for i := range s.messages {
		m := &s.messages[i]
		if !pred(*m) {
			continue
		}
		if newStatus.Rank() <= m.Status.Rank() {
			continue
		}
		m.Status = newStatus
		changed = append(changed, m.ID)
	}
	return changed
}

// Annotate merges the annotation into the message with the given ID,
// leaving all other fields untouched. Unknown IDs are a no-op.
func (s *Store) Annotate(id string, a Annotation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID != id {
			continue
		}
		if a.InterestLevel != 0 {
			s.messages[i].InterestLevel = a.InterestLevel
		}
		if a.Thoughts != "" {
			s.messages[i].Thoughts = a.Thoughts
		}
		return true
	}
	return false
}

// Reset replaces the log with a single fresh greeting from the persona.
func (s *Store) Reset(greeting string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = []domain.Message{{
		ID:        NewID(),
		Text:      greeting,
		Sender:    domain.SenderBot,
		Timestamp: time.Now(),
	}}
}

// Len returns the number of messages in the log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Snapshot returns a copy of the full log in insertion order.
func (s *Store) Snapshot() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Recent returns copies of the last n messages in insertion order.
func (s *Store) Recent(n int) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.messages) {
		n = len(s.messages)
	}
	out := make([]domain.Message, n)
	copy(out, s.messages[len(s.messages)-n:])
	return out
}
