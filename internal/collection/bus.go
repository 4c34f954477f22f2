package collection

import (
	"slices"

	"network-monitor/internal/domain"
)

// EventName identifies what happened to the collection.
type EventName string

const (
	EventAdd      EventName = "add"
	EventChange   EventName = "change"
	EventRemove   EventName = "remove"
	EventReset    EventName = "reset"
	EventSort     EventName = "sort"
	EventFiltered EventName = "filtered"
)

// Event is published after the mutation it describes has completed.
// Request is nil for reset, sort and filtered; Field and Value are set for change.
type Event struct {
	Name    EventName
	Request *domain.Request
	Field   string
	Value   any
}

// Handler receives published events.
type Handler func(Event)

// Token identifies a subscription for Unsubscribe.
type Token uint64

// Bus delivers collection events to subscribers.
type Bus interface {
	Subscribe(name EventName, h Handler) Token
	Unsubscribe(t Token)
	Publish(ev Event)
}

type subscription struct {
	name EventName
	h    Handler
}

// LocalBus is a synchronous, single-threaded Bus. Handlers run in
// subscription order on the publishing goroutine.
type LocalBus struct {
	next Token
	subs map[Token]subscription
}

// NewBus returns an empty LocalBus.
func NewBus() *LocalBus {
	return &LocalBus{subs: make(map[Token]subscription)}
}

func (b *LocalBus) Subscribe(name EventName, h Handler) Token {
	b.next++
	b.subs[b.next] = subscription{name: name, h: h}
	return b.next
}

func (b *LocalBus) Unsubscribe(t Token) {
	delete(b.subs, t)
}

// Publish calls every handler subscribed to ev.Name. The subscriber list is
// snapshotted first, so handlers may subscribe or unsubscribe freely.
func (b *LocalBus) Publish(ev Event) {
	tokens := make([]Token, 0, len(b.subs))
	for t, s := range b.subs {
		if s.name == ev.Name {
			tokens = append(tokens, t)
		}
	}
	slices.Sort(tokens)
	for _, t := range tokens {
		s, ok := b.subs[t]
		if !ok {
			continue
		}
		s.h(ev)
	}
}
