package domain

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// MessageStatus is the delivery state of a user message.
// It is meaningful only for SenderUser; other senders leave it empty.
type MessageStatus string

const (
	StatusNone      MessageStatus = ""
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Rank orders statuses so transitions can be checked as forward-only.
// StatusNone ranks lowest.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Message is one entry in the conversation log.
type Message struct {
	ID            string
	Text          string
	Sender        Sender
	Timestamp     time.Time
	Status        MessageStatus // user messages only
	InterestLevel int           // 0 = not annotated; 1-10 once a verdict landed
	Thoughts      string        // oracle rationale; first message of a burst only
	Image         string        // optional data-URL payload
}
