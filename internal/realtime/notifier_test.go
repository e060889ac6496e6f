package realtime

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryNotifier_DeliversToSubscriber(t *testing.T) {
	n := NewInMemoryNotifier()
	sub, unsubscribe := n.Subscribe(UserGroup("alice"), 4)
	defer unsubscribe()

	n.Publish(context.Background(), UserGroup("alice"), Event{Type: "wallet.updated"})

	select {
	case event := <-sub:
		if event.Type != "wallet.updated" {
			t.Errorf("expected wallet.updated, got %s", event.Type)
		}
		if event.Timestamp.IsZero() {
			t.Error("expected timestamp to be stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestInMemoryNotifier_NotDeliveredToOtherGroup(t *testing.T) {
	n := NewInMemoryNotifier()
	sub, unsubscribe := n.Subscribe(UserGroup("bob"), 4)
	defer unsubscribe()

	n.Publish(context.Background(), UserGroup("alice"), Event{Type: "wallet.updated"})

	select {
	case event := <-sub:
		t.Fatalf("unexpected event delivered to bob's subscription: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInMemoryNotifier_DropsWhenBufferFull(t *testing.T) {
	n := NewInMemoryNotifier()
	sub, unsubscribe := n.Subscribe(AdminsGroup, 1)
	defer unsubscribe()

	// Publish never blocks even when no one is draining the channel.
	for i := 0; i < 5; i++ {
		n.Publish(context.Background(), AdminsGroup, Event{Type: "risk.flagged"})
	}

	select {
	case <-sub:
	default:
		t.Fatal("expected at least one buffered event")
	}
}

func TestNoopNotifier(t *testing.T) {
	var n Notifier = NoopNotifier{}
	n.Publish(context.Background(), AdminsGroup, Event{Type: "noop"})
}
