// Package eventbus provides an in-memory publish/subscribe event bus for
// inter-goroutine communication. Topics are dot-separated and support
// wildcard matching. Delivery is best-effort: publishes to slow subscribers
// are dropped after a timeout, which is the delivery contract the webhook
// pipeline is built on.
package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Event represents a single event on the bus.
type Event struct {
	Topic string // event topic for routing
	Data  any    // event data payload
}

// subscriber holds one subscription with its buffered delivery channel.
type subscriber struct {
	id      string
	topic   string
	channel chan Event
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex // protects closed flag
	closed bool
}

// timedSend attempts to deliver an event within the timeout.
// Returns false if the subscriber is closed or the channel stayed full.
func (s *subscriber) timedSend(event Event, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.channel <- event:
		return true
	case <-time.After(timeout):
		return false
	}
}

// close shuts the subscriber down, cancelling its context and closing the
// delivery channel.
func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		s.cancel()
		close(s.channel)
	}
}

// EventBus routes events from publishers to topic subscribers.
type EventBus struct {
	sync.RWMutex
	subscribers map[string]map[string]*subscriber // topic -> subscriberID -> subscriber
	counter     uint64                            // atomic counter for subscriber ID generation
}

// New creates an EventBus ready for subscription and publishing.
func New() *EventBus {
	return &EventBus{
		subscribers: make(map[string]map[string]*subscriber),
	}
}

// Subscribe creates a subscription for the given topic pattern and returns
// the event channel and an unsubscribe function. bufferSize controls the
// channel buffer capacity.
func (bus *EventBus) Subscribe(topic string, bufferSize int) (<-chan Event, func()) {
	id := fmt.Sprintf("sub-%d", atomic.AddUint64(&bus.counter, 1))

	ctx, cancel := context.WithCancel(context.Background())
	sub := &subscriber{
		id:      id,
		topic:   topic,
		channel: make(chan Event, bufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	bus.Lock()
	defer bus.Unlock()

	if _, ok := bus.subscribers[topic]; !ok {
		bus.subscribers[topic] = make(map[string]*subscriber)
	}
	bus.subscribers[topic][id] = sub

	unsubscribe := func() {
		bus.Lock()
		defer bus.Unlock()

		if subMap, ok := bus.subscribers[topic]; ok {
			if s, ok := subMap[id]; ok {
				s.close()
				delete(subMap, id)
				if len(subMap) == 0 {
					delete(bus.subscribers, topic)
				}
			}
		}
	}

	return sub.channel, unsubscribe
}

// CloseAllForPattern closes every subscriber whose topic matches the given
// pattern and removes the emptied topics from the bus.
func (bus *EventBus) CloseAllForPattern(pattern string) {
	bus.Lock()
	defer bus.Unlock()

	for topic, subMap := range bus.subscribers {
		if matchTopic(pattern, topic) {
			for _, sub := range subMap {
				sub.close()
			}
			delete(bus.subscribers, topic)
		}
	}
}

// Publish sends an event to all subscribers matching the topic.
// Non-blocking beyond the timeout; events for slow subscribers are dropped.
func (bus *EventBus) Publish(topic string, data any, timeout time.Duration) {
	event := Event{Topic: topic, Data: data}

	bus.RLock()
	defer bus.RUnlock()

	for pattern, subMap := range bus.subscribers {
		if matchTopic(pattern, topic) {
			for _, sub := range subMap {
				select {
				case <-sub.ctx.Done():
					continue
				default:
					sub.timedSend(event, timeout)
				}
			}
		}
	}
}

// Shutdown closes all subscribers and clears the bus.
func (bus *EventBus) Shutdown() {
	bus.Lock()
	defer bus.Unlock()

	for _, subs := range bus.subscribers {
		for _, sub := range subs {
			sub.close()
		}
	}
	bus.subscribers = make(map[string]map[string]*subscriber)
}

// matchTopic determines if a topic matches a pattern. Supports exact
// matches and "*" wildcards for whole dot-separated components.
func matchTopic(pattern, topic string) bool {
	if pattern == "" || topic == "" {
		return false
	}
	if pattern == "*" || pattern == topic {
		return true
	}
	patternParts := strings.Split(pattern, ".")
	topicParts := strings.Split(topic, ".")

	if len(patternParts) != len(topicParts) {
		return false
	}

	for i := range patternParts {
		if patternParts[i] == "*" {
			continue
		}
		if patternParts[i] != topicParts[i] {
			return false
		}
	}
	return true
}
