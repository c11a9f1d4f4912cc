package control

import (
	"sync"

	"github.com/MrWong99/voxtype/internal/session"
)

// Broadcaster fans the coordinator's single event stream out to any number of
// connected stream clients. Slow subscribers lose events rather than stalling
// the rest; each subscriber channel is buffered and sends never block.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan session.Event]struct{}
	closed bool
}

// NewBroadcaster creates a Broadcaster and starts consuming events until the
// channel closes.
func NewBroadcaster(events <-chan session.Event) *Broadcaster {
	b := &Broadcaster{subs: make(map[chan session.Event]struct{})}
	go b.run(events)
	return b
}

func (b *Broadcaster) run(events <-chan session.Event) {
	for ev := range events {
		b.mu.Lock()
		for ch := range b.subs {
			select {
			case ch <- ev:
			default:
			}
		}
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}

// Subscribe registers a new subscriber. The returned channel is closed when
// the source stream ends or the subscriber is cancelled.
func (b *Broadcaster) Subscribe() (<-chan session.Event, func()) {
	ch := make(chan session.Event, 64)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
