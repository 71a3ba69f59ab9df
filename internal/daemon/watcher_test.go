package daemon

import "testing"

func TestEventHubPublishDeliversToSubscriber(t *testing.T) {
	hub := newEventHub()
	sub := hub.subscribe()
	defer hub.unsubscribe(sub)

	hub.publish(chainEvent{SessionID: "sess1", Op: "WRITE"})

	select {
	case b := <-sub:
		if string(b) == "" {
			t.Fatalf("expected non-empty event payload")
		}
	default:
		t.Fatalf("expected event to be delivered without blocking")
	}
}

func TestEventHubPublishSkipsFullSubscriberWithoutBlocking(t *testing.T) {
	hub := newEventHub()
	sub := hub.subscribe()
	defer hub.unsubscribe(sub)

	for i := 0; i < 64; i++ {
		hub.publish(chainEvent{SessionID: "sess1", Op: "WRITE"})
	}
}

func TestStrippedSessionID(t *testing.T) {
	if got := strippedSessionID("/a/b/sess1.jsonl"); got != "sess1" {
		t.Fatalf("expected sess1, got %q", got)
	}
}
