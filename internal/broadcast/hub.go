// Package broadcast is the in-process notification channel between the
// results synchronizer and transport-layer consumers. A single hub
// goroutine owns all subscriber state; other components only talk to it
// through Subscribe, Unsubscribe and Publish.
package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pickemlabs/pickem-engine/internal/platform/logging"
)

// Event is one published notification.
type Event struct {
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Subscription is one consumer's event stream. Events are dropped, never
// blocked on, when the consumer lags behind.
type Subscription struct {
	id     uint64
	topics map[string]struct{}
	events chan Event
	hub    *Hub
	once   sync.Once
}

// Events is the subscriber's receive channel. It is closed on Close and on
// hub shutdown.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		select {
		case s.hub.unsubscribe <- s.id:
		case <-s.hub.done:
		}
	})
}

func (s *Subscription) wants(topic string) bool {
	if len(s.topics) == 0 {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

type command struct {
	subscribe *Subscription
	event     *Event
}

const subscriberBuffer = 64

type Hub struct {
	logger      *logging.Logger
	commands    chan command
	unsubscribe chan uint64
	done        chan struct{}
	closeOnce   sync.Once
	nextID      atomic.Uint64
	dropped     atomic.Uint64
	now         func() time.Time
}

func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Hub{
		logger:      logger,
		commands:    make(chan command, 256),
		unsubscribe: make(chan uint64, 16),
		done:        make(chan struct{}),
		now:         time.Now,
	}
	go h.run()
	return h
}

// Subscribe registers a consumer for the given topics. No topics means
// every topic.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	topicSet := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		topicSet[topic] = struct{}{}
	}
	sub := &Subscription{
		id:     h.nextID.Add(1),
		topics: topicSet,
		events: make(chan Event, subscriberBuffer),
		hub:    h,
	}

	select {
	case h.commands <- command{subscribe: sub}:
	case <-h.done:
		close(sub.events)
	}
	return sub
}

// Publish fans an event out to matching subscribers. Fire-and-forget:
// it never blocks the caller and delivery is best-effort.
func (h *Hub) Publish(topic string, payload any) {
	event := Event{Topic: topic, Payload: payload, At: h.now().UTC()}
	select {
	case h.commands <- command{event: &event}:
	case <-h.done:
	default:
		h.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because the hub or a
// subscriber could not keep up.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

func (h *Hub) run() {
	subscribers := make(map[uint64]*Subscription)

	for {
		select {
		case cmd := <-h.commands:
			if cmd.subscribe != nil {
				subscribers[cmd.subscribe.id] = cmd.subscribe
				continue
			}
			if cmd.event != nil {
				for _, sub := range subscribers {
					if !sub.wants(cmd.event.Topic) {
						continue
					}
					select {
					case sub.events <- *cmd.event:
					default:
						h.dropped.Add(1)
					}
				}
			}
		case id := <-h.unsubscribe:
			if sub, ok := subscribers[id]; ok {
				delete(subscribers, id)
				close(sub.events)
			}
		case <-h.done:
			for id, sub := range subscribers {
				delete(subscribers, id)
				close(sub.events)
			}
			h.logger.Debug("broadcast hub stopped", "dropped_events", h.dropped.Load())
			return
		}
	}
}
