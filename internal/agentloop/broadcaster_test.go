package agentloop

import (
	"testing"
	"time"

	"github.com/aagt-run/aagtcore/pkg/models"
)

func TestBroadcaster_DeliversToSubscriber(t *testing.T) {
	b := NewBroadcaster()
	sub, cancel := b.Subscribe()
	defer cancel()

	b.emit(models.AgentEvent{Type: models.EventResponse, Content: "hi"})

	select {
	case ev := <-sub:
		if ev.Content != "hi" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcaster_MissingSubscriberIsNonFatal(t *testing.T) {
	b := NewBroadcaster()
	b.emit(models.AgentEvent{Type: models.EventResponse, Content: "no one listening"})
}

func TestBroadcaster_DropsOldestWhenFull(t *testing.T) {
	b := NewBroadcaster()
	sub, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < broadcastCap+10; i++ {
		b.emit(models.AgentEvent{Type: models.EventResponse, Content: "x"})
	}

	if len(sub) != broadcastCap {
		t.Fatalf("expected channel to stay at capacity %d, got %d", broadcastCap, len(sub))
	}
}

func TestBroadcaster_CancelStopsDelivery(t *testing.T) {
	b := NewBroadcaster()
	sub, cancel := b.Subscribe()
	cancel()

	b.emit(models.AgentEvent{Type: models.EventResponse, Content: "after cancel"})

	if _, ok := <-sub; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}
