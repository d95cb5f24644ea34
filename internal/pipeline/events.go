package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

// ProgressEvent represents a progress update during a run
type ProgressEvent struct {
	RunID   uuid.UUID `json:"run_id"`
	State   State     `json:"state"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
	Content any       `json:"content,omitempty"`
}

// ProgressCallback is called when run progress occurs
type ProgressCallback func(event ProgressEvent)

// broadcaster keeps the event history of a run and fans events out to subscribers.
type broadcaster struct {
	mu      sync.Mutex
	history []ProgressEvent
	subs    map[chan ProgressEvent]struct{}
	closed  bool
}

const subscriberBuffer = 64

func (b *broadcaster) publish(ev ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.history = append(b.history, ev)
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// slow subscriber; it still sees the final state through Status
		}
	}
}

// subscribe replays the history and then streams live events. The channel is closed when the run ends.
func (b *broadcaster) subscribe() (<-chan ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ProgressEvent, len(b.history)+subscriberBuffer)
	for _, ev := range b.history {
		ch <- ev
	}
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	if b.subs == nil {
		b.subs = make(map[chan ProgressEvent]struct{})
	}
	b.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
