package eventbus

import (
	"testing"

	"github.com/octobocto/bip300301-enforcer/types"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	event := types.ConnectBlockEvent(types.HeaderInfo{Height: 1}, types.BlockInfo{})
	bus.Publish(event)

	select {
	case got := <-sub.Events:
		if got.HeaderInfo.Height != 1 {
			t.Fatalf("unexpected event: %+v", got)
		}
	default:
		t.Fatalf("expected event to be immediately available")
	}
}

func TestBus_PublishFansOutToAllSubscribers(t *testing.T) {
	bus := New()
	sub1 := bus.Subscribe()
	sub2 := bus.Subscribe()
	defer sub1.Unsubscribe()
	defer sub2.Unsubscribe()

	bus.Publish(types.DisconnectBlockEvent(types.Hash256{1}))

	for _, sub := range []*Subscription{sub1, sub2} {
		select {
		case got := <-sub.Events:
			if got.Kind != types.EventDisconnectBlock {
				t.Fatalf("unexpected event kind: %v", got.Kind)
			}
		default:
			t.Fatalf("expected both subscribers to receive the event")
		}
	}
}

func TestBus_OverflowDropsOldestAndSignals(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	for i := 0; i < Capacity+1; i++ {
		bus.Publish(types.DisconnectBlockEvent(types.Hash256{byte(i)}))
	}

	select {
	case <-sub.Overflowed:
	default:
		t.Fatalf("expected overflow signal after exceeding capacity")
	}

	if len(sub.Events) != Capacity {
		t.Fatalf("expected buffer to remain at capacity, got %d", len(sub.Events))
	}

	// The oldest event (index 0) was dropped, so index 1 is now at the head.
	if got := <-sub.Events; got.BlockHash != (types.Hash256{1}) {
		t.Fatalf("expected oldest event to be dropped, head is %x", got.BlockHash)
	}
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	sub.Unsubscribe()

	if bus.NumSubscribers() != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", bus.NumSubscribers())
	}

	bus.Publish(types.DisconnectBlockEvent(types.Hash256{1}))
	select {
	case got := <-sub.Events:
		t.Fatalf("expected no further delivery after unsubscribe, got %+v", got)
	default:
	}
}

func TestBus_UnsubscribeIsIdempotent(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	sub.Unsubscribe()
	sub.Unsubscribe()
}
