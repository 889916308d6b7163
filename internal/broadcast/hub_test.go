package broadcast

import (
	"testing"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
)

func receiveEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestHub_DeliversToTopicSubscribers(t *testing.T) {
	hub := NewHub(logging.NewNop())
	defer hub.Close()

	scores := hub.Subscribe("score_update")
	defer scores.Close()
	all := hub.Subscribe()
	defer all.Close()

	hub.Publish("score_update", map[string]any{"contest_id": "c-101"})
	hub.Publish("game_final", map[string]any{"contest_id": "c-101"})

	event := receiveEvent(t, scores)
	if event.Topic != "score_update" {
		t.Fatalf("topic = %q, want score_update", event.Topic)
	}
	if event.At.IsZero() {
		t.Fatal("event must carry a timestamp")
	}

	first := receiveEvent(t, all)
	second := receiveEvent(t, all)
	if first.Topic != "score_update" || second.Topic != "game_final" {
		t.Fatalf("catch-all received %q then %q", first.Topic, second.Topic)
	}

	// The topic subscriber never sees the other topic.
	select {
	case extra := <-scores.Events():
		t.Fatalf("unexpected extra event %q", extra.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(logging.NewNop())
	defer hub.Close()

	slow := hub.Subscribe("score_update")
	defer slow.Close()

	// Overrun the subscriber buffer without ever reading. Drops are counted
	// asynchronously, so wait for the hub goroutine to drain its queue.
	for i := 0; i < subscriberBuffer*3; i++ {
		hub.Publish("score_update", i)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Dropped() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected dropped events for a stalled subscriber")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	hub := NewHub(logging.NewNop())
	sub := hub.Subscribe()

	hub.Close()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed channel after hub shutdown")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription channel never closed")
	}

	// Publishing into a closed hub is a harmless no-op.
	hub.Publish("score_update", nil)
	sub.Close()
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(logging.NewNop())
	defer hub.Close()

	sub := hub.Subscribe("score_update")
	hub.Publish("score_update", "first")
	receiveEvent(t, sub)

	sub.Close()

	// The events channel closes once the hub processes the unsubscribe.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel never closed after Close")
		}
	}
}
