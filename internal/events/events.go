// Package events carries cart change notifications to the surfaces that render cart state.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sidehustle-shop/internal/domain"
	"sidehustle-shop/internal/logger"
)

type Kind string

const (
	Updated     Kind = "updated"
	ItemAdded   Kind = "item-added"
	ItemRemoved Kind = "item-removed"
	Cleared     Kind = "cleared"
)

// Kinds lists every event kind in publication-independent order.
var Kinds = []Kind{Updated, ItemAdded, ItemRemoved, Cleared}

func (k Kind) Valid() bool {
	switch k {
	case Updated, ItemAdded, ItemRemoved, Cleared:
		return true
	}
	return false
}

// Payload is a convenience snapshot; subscribers that render should re-read the store.
type Payload struct {
	Item      *domain.LineItem `json:"item,omitempty"`
	CartCount int              `json:"cartCount"`
	CartTotal int64            `json:"cartTotal"`
}

type Event struct {
	Kind    Kind      `json:"kind"`
	Scope   string    `json:"scope,omitempty"`
	Payload Payload   `json:"payload"`
	At      time.Time `json:"at"`
}

type Handler func(Event)

type subscription struct {
	id      uint64
	kinds   map[Kind]struct{}
	handler Handler
}

func (s subscription) wants(k Kind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

// Bus delivers events synchronously, in subscription order. A nil *Bus drops everything.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID uint64
	log    *logger.Logger
}

func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Discard()
	}
	return &Bus{log: log}
}

// Subscribe registers h for the given kinds, or for every kind when none are given.
// The returned func removes the subscription and is safe to call more than once.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) func() {
	if b == nil || h == nil {
		return func() {}
	}
	filter := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		filter[k] = struct{}{}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, kinds: filter, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish calls every matching handler. A handler that panics is logged and skipped.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(e.Kind) {
			targets = append(targets, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		b.deliver(ctx, h, e)
	}
}

func (b *Bus) deliver(ctx context.Context, h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error(b.log.WithField(ctx, "event", string(e.Kind)), "events: subscriber panicked", fmt.Errorf("%v", r))
		}
	}()
	h(e)
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
