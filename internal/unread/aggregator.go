// Package unread derives badge counts from conversation summaries. One
// Aggregator instance owns the state for one user; widgets and the ws hub
// subscribe read-only and all mutations go through the owner's methods.
package unread

import (
	"sync"

	"github.com/schoolchat/internal/model"
)

// Total sums the unread counts of a conversation list. Zero for an empty list.
func Total(conversations []model.Conversation) int {
	total := 0
	for _, c := range conversations {
		total += c.UnreadCount
	}
	return total
}

// Subscriber receives the new aggregate total after every change.
type Subscriber func(total int)

// Aggregator holds the current conversation set for one user and exposes the
// aggregate unread total. Every change is pushed to subscribers immediately,
// with no debounce.
type Aggregator struct {
	mu     sync.RWMutex
	convs  map[string]model.Conversation
	total  int
	subs   map[int]Subscriber
	nextID int
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		convs: make(map[string]model.Conversation),
		subs:  make(map[int]Subscriber),
	}
}

// Replace swaps the whole conversation set, e.g. after a list refresh.
func (a *Aggregator) Replace(conversations []model.Conversation) {
	a.mu.Lock()
	a.convs = make(map[string]model.Conversation, len(conversations))
	for _, c := range conversations {
		a.convs[c.ID] = c
	}
	a.recompute()
	a.notifyLocked()
}

// Update inserts or replaces a single conversation summary.
func (a *Aggregator) Update(c model.Conversation) {
	a.mu.Lock()
	a.convs[c.ID] = c
	a.recompute()
	a.notifyLocked()
}

// MarkRead zeroes the unread count of one conversation.
func (a *Aggregator) MarkRead(conversationID string) {
	a.mu.Lock()
	c, ok := a.convs[conversationID]
	if !ok || c.UnreadCount == 0 {
		a.mu.Unlock()
		return
	}
	c.UnreadCount = 0
	a.convs[conversationID] = c
	a.recompute()
	a.notifyLocked()
}

// Total returns the current aggregate unread count.
func (a *Aggregator) Total() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.total
}

// HasUnread reports whether the given conversation has unread messages.
func (a *Aggregator) HasUnread(conversationID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.convs[conversationID].UnreadCount > 0
}

// Subscribe registers fn to be called with the new total after every change.
// It is invoked immediately with the current value. The returned function
// removes the subscription.
func (a *Aggregator) Subscribe(fn Subscriber) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = fn
	total := a.total
	a.mu.Unlock()

	fn(total)
	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// recompute must be called with mu held.
func (a *Aggregator) recompute() {
	total := 0
	for _, c := range a.convs {
		total += c.UnreadCount
	}
	a.total = total
}

// notifyLocked snapshots subscribers, releases the lock and then calls them,
// so a subscriber may safely call back into the aggregator.
func (a *Aggregator) notifyLocked() {
	total := a.total
	subs := make([]Subscriber, 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	for _, fn := range subs {
		fn(total)
	}
}
