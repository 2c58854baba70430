// Package eventbus is a bounded, lossy broadcast channel for
// ConnectBlock/DisconnectBlock events (spec.md §4.7). There is no
// third-party broadcast-channel library in the reference dependency set,
// so this is built directly on buffered stdlib channels plus a mutex-held
// subscriber list, matching the semantics of the original's
// async_broadcast::Sender::try_broadcast: a full receiver buffer drops the
// oldest undelivered event and the receiver learns it missed something.
package eventbus

import (
	"sync"

	"github.com/octobocto/bip300301-enforcer/types"
)

// Capacity is the default per-subscriber buffer size (spec.md §4.7
// "capacity ≈256").
const Capacity = 256

// Subscription is a single subscriber's view of the bus: Events delivers
// in-order events, and Overflowed fires (once, non-blocking) the first
// time this subscriber falls behind and an event had to be dropped for it.
type Subscription struct {
	Events     <-chan types.Event
	Overflowed <-chan struct{}

	bus *Bus
	id  uint64
}

// Unsubscribe removes this subscription from the bus. Safe to call more
// than once.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s.id)
}

type subscriber struct {
	events     chan types.Event
	overflowed chan struct{}
}

// Bus is the sole writer's fan-out point. The writer (Block Connector) is
// the only sender; Publish must never block it, so a full subscriber
// buffer is drained of its oldest entry rather than backpressuring.
type Bus struct {
	mu       sync.Mutex
	nextID   uint64
	subs     map[uint64]*subscriber
}

func New() *Bus {
	return &Bus{subs: make(map[uint64]*subscriber)}
}

// Subscribe registers a new receiver with a capacity-sized buffer.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{
		events:     make(chan types.Event, Capacity),
		overflowed: make(chan struct{}, 1),
	}
	b.subs[id] = sub
	return &Subscription{Events: sub.events, Overflowed: sub.overflowed, bus: b, id: id}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Publish broadcasts event to every current subscriber, best-effort. A
// subscriber whose buffer is full has its oldest pending event discarded
// to make room, and is signaled via Overflowed (non-blocking, at most one
// pending signal at a time — repeated overflow is idempotent from the
// subscriber's point of view, since it must resynchronize from the store
// regardless of how many events it missed).
func (b *Bus) Publish(event types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub.events <- event:
		default:
			select {
			case <-sub.events:
			default:
			}
			select {
			case sub.events <- event:
			default:
			}
			select {
			case sub.overflowed <- struct{}{}:
			default:
			}
		}
	}
}

// NumSubscribers reports the current subscriber count, for diagnostics.
func (b *Bus) NumSubscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
