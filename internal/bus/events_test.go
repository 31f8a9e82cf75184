package bus

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"coldchat/internal/domain"
)

func newTestBus() *EventBus {
	return NewEventBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEmitAndReceive(t *testing.T) {
	eb := newTestBus()

	var got []Event
	eb.On(EventMessageAppended, func(e Event) { got = append(got, e) })

	msg := &domain.Message{ID: "m1", Text: "hi", Sender: domain.SenderUser}
	eb.Emit(Event{Type: EventMessageAppended, Message: msg})
	eb.Emit(Event{Type: EventTypingStarted})

	if len(got) != 1 {
		t.Fatalf("handler called %d times, want 1", len(got))
	}
	if got[0].Message.ID != "m1" {
		t.Errorf("message ID = %q", got[0].Message.ID)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("emit should stamp the event")
	}
}

func TestWildcardSubscription(t *testing.T) {
	eb := newTestBus()

	count := 0
	eb.On("*", func(Event) { count++ })

	eb.Emit(Event{Type: EventTypingStarted})
	eb.Emit(Event{Type: EventTypingStopped})
	eb.Emit(Event{Type: EventReset})

	if count != 3 {
		t.Errorf("wildcard handler called %d times, want 3", count)
	}
}

func TestOff(t *testing.T) {
	eb := newTestBus()

	count := 0
	id := eb.On(EventReset, func(Event) { count++ })
	eb.Emit(Event{Type: EventReset})
	eb.Off(EventReset, id)
	eb.Emit(Event{Type: EventReset})

	if count != 1 {
		t.Errorf("handler called %d times after Off, want 1", count)
	}
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	eb := newTestBus()

	called := false
	eb.On(EventReset, func(Event) { panic("handler bug") })
	eb.On(EventReset, func(Event) { called = true })

	eb.Emit(Event{Type: EventReset})
	if !called {
		t.Error("a panicking handler must not block later handlers")
	}
}

func TestReplay(t *testing.T) {
	eb := newTestBus()

	start := time.Now().Add(-time.Second)
	eb.Emit(Event{Type: EventTypingStarted})
	eb.Emit(Event{Type: EventReset})
	eb.Emit(Event{Type: EventTypingStarted})

	typing := eb.Replay(EventTypingStarted, start)
	if len(typing) != 2 {
		t.Errorf("replayed %d typing events, want 2", len(typing))
	}
	all := eb.Replay("*", start)
	if len(all) != 3 {
		t.Errorf("replayed %d events, want 3", len(all))
	}
	none := eb.Replay("*", time.Now().Add(time.Hour))
	if len(none) != 0 {
		t.Errorf("replayed %d future events, want 0", len(none))
	}
	if eb.HistoryLen() != 3 {
		t.Errorf("history length = %d, want 3", eb.HistoryLen())
	}
}
