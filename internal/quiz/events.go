package quiz

import (
	"sync"

	"quizmaster/internal/domain"
)

// EventType names what changed in a session.
type EventType string

const (
	EventSnapshot EventType = "snapshot"
	EventStarted  EventType = "started"
	EventTick     EventType = "tick"
	EventAnswered EventType = "answered"
	EventQuestion EventType = "question"
	EventFinished EventType = "finished"
	EventExited   EventType = "exited"
)

// Event is pushed to subscribers of a session.
type Event struct {
	Type     EventType       `json:"type"`
	View     View            `json:"view"`
	Feedback *AnswerFeedback `json:"feedback,omitempty"`
	Outcome  *domain.Outcome `json:"outcome,omitempty"`
	Review   *domain.Review  `json:"review,omitempty"`
	Reason   FinishReason    `json:"reason,omitempty"`
}

func (e Event) terminal() bool {
	return e.Type == EventFinished || e.Type == EventExited
}

const subscriberBuffer = 16

// broadcaster fans events out to subscribers without ever blocking the publisher.
type broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
	final       *Event
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subscribers: make(map[chan Event]struct{})}
}

// subscribe registers a channel primed with initial. Once the session has ended the
// channel only carries the final event and is already closed.
func (b *broadcaster) subscribe(initial Event) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final != nil {
		ch <- *b.final
		close(ch)
		return ch, func() {}
	}
	ch <- initial
	b.subscribers[ch] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// publish delivers ev to every subscriber. A full channel loses its oldest event.
// A terminal event closes every subscription after delivery.
func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final != nil {
		return
	}
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
	if ev.terminal() {
		b.final = &ev
		for ch := range b.subscribers {
			delete(b.subscribers, ch)
			close(ch)
		}
	}
}
