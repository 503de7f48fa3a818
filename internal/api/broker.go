package api

import (
	"sync"

	"fleetplan/internal/session"
)

// EventBroker fans session status events out to stream subscribers.
type EventBroker interface {
	Subscribe(sessionID string) chan session.Event
	Unsubscribe(sessionID string, ch chan session.Event)
	Publish(sessionID string, evt session.Event)
}

// Broker is the in-process EventBroker.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan session.Event]struct{} // sessionId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan session.Event]struct{}{}}
}

func (b *Broker) Subscribe(sessionID string) chan session.Event {
	ch := make(chan session.Event, 8)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = map[chan session.Event]struct{}{}
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(sessionID string, ch chan session.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[sessionID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, sessionID)
	}
	close(ch)
}

// Publish never blocks; slow subscribers miss events.
func (b *Broker) Publish(sessionID string, evt session.Event) {
	b.mu.Lock()
	for ch := range b.subs[sessionID] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.Unlock()
}
