// Package bus implements the typed publish/subscribe topic bus the
// Commander and Navigator tasks use to communicate:
// many-producer/single-consumer per topic, with a generational sequence
// number so a subscriber can detect it missed an update. There is no
// shared mutable state between tasks — every publish copies a full
// record and every subscriber reads an independent snapshot.
//
// Grounded on mmp/vice's EventStream (eventstream.go): a mutex-protected
// append-only log that subscribers drain by tracking their own offset.
// This bus specializes that idea to a single-slot-plus-generation model,
// since topics here always want "latest value", not a replay log.
package bus

import "sync"

// Topic holds the latest published value of type T along with a
// monotonically increasing generation counter.
type Topic[T any] struct {
	mu         sync.RWMutex
	value      T
	generation uint64
	has        bool
}

// NewTopic creates an empty topic.
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{}
}

// Publish stores a new value and advances the generation. Called by the
// topic's single publisher (enforced by convention, not the type system).
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.value = v
	t.generation++
	t.has = true
}

// Snapshot returns the latest value, its generation, and whether anything
// has ever been published.
func (t *Topic[T]) Snapshot() (value T, generation uint64, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value, t.generation, t.has
}

// Subscription tracks the last generation a consumer observed, so it can
// tell whether the topic changed since its last read and how many
// generations (if any) it missed.
type Subscription[T any] struct {
	topic    *Topic[T]
	lastSeen uint64
}

// Subscribe returns a new subscription positioned at the topic's current
// generation (it will not report the current value as "changed" until the
// topic is published to again).
func (t *Topic[T]) Subscribe() *Subscription[T] {
	_, gen, _ := t.Snapshot()
	return &Subscription[T]{topic: t, lastSeen: gen}
}

// Poll returns the latest value and whether it changed since the last Poll
// (or since Subscribe, for the first call). missed reports how many
// generations elapsed beyond one — a missed > 0 value means the consumer
// is behind and should log it.
func (s *Subscription[T]) Poll() (value T, changed bool, missed uint64, ok bool) {
	value, gen, ok := s.topic.Snapshot()
	if !ok {
		return value, false, 0, false
	}
	if gen == s.lastSeen {
		return value, false, 0, true
	}
	missed = gen - s.lastSeen - 1
	s.lastSeen = gen
	return value, true, missed, true
}

// Latest returns the current value without affecting change tracking.
func (s *Subscription[T]) Latest() (value T, ok bool) {
	value, _, ok = s.topic.Snapshot()
	return value, ok
}
