package events

import (
	"sync"

	"papertrade/internal/types"
)

type Event struct {
	Type types.EventType `json:"type"`
	Data any             `json:"data"`
}

// Bus fans events out to the subscribers of one account. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[chan Event]struct{})}
}

func (b *Bus) Subscribe(accountID string) chan Event {
	ch := make(chan Event, 100)
	b.mu.Lock()
	set, ok := b.subs[accountID]
	if !ok {
		set = make(map[chan Event]struct{})
		b.subs[accountID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Bus) Unsubscribe(accountID string, ch chan Event) {
	b.mu.Lock()
	if set, ok := b.subs[accountID]; ok {
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(b.subs, accountID)
		}
	}
	b.mu.Unlock()
}

// Subscribers reports how many live subscriptions an account has.
func (b *Bus) Subscribers(accountID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[accountID])
}

func (b *Bus) Publish(accountID string, evt Event) {
	b.mu.RLock()
	for ch := range b.subs[accountID] {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.RUnlock()
}
