// Package event implements the synchronous publish/subscribe bus the
// graph uses for resize and pause/resume notifications. Dispatch runs
// on the thread that publishes; handlers must not block.
package event

import (
	"sync"

	"github.com/google/uuid"
)

// Topic names a class of events.
type Topic string

const (
	// TopicResize is published when the window surface changes size.
	TopicResize Topic = "resize"
	// TopicSwapchainInvalidated is published by the swapchain owner when
	// its images and views have been recreated.
	TopicSwapchainInvalidated Topic = "swapchain_invalidated"
	// TopicPause is published before a partial recompile touches a set
	// of nodes.
	TopicPause Topic = "pause"
	// TopicResume is published after a partial recompile completes.
	TopicResume Topic = "resume"
)

// Event is the payload delivered to handlers.
type Event struct {
	Topic Topic
	// Width/Height are set for TopicResize.
	Width, Height uint32
	// Node names the publishing node where relevant.
	Node string
	// Nodes lists the affected node IDs for pause/resume.
	Nodes []string
}

// Handler receives an event and reports whether it consumed it. A
// consumed event is not delivered to later subscribers of the topic.
type Handler func(Event) bool

// SubscriptionID identifies one subscription for later removal.
type SubscriptionID = uuid.UUID

type subscription struct {
	id      SubscriptionID
	handler Handler
}

// Bus is a topic-filtered synchronous event bus.
type Bus struct {
	mu   sync.Mutex
	subs map[Topic][]subscription
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]subscription)}
}

// Subscribe registers handler for the given topic and returns a handle
// for Unsubscribe.
func (b *Bus) Subscribe(topic Topic, handler Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := uuid.New()
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes the subscription with the given handle. Unknown
// handles are ignored.
func (b *Bus) Unsubscribe(id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.subs {
		for i, s := range subs {
			if s.id == id {
				b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to subscribers of its topic, in subscription
// order, stopping early when a handler consumes it. Delivery is
// synchronous on the calling goroutine.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs[ev.Topic]))
	copy(subs, b.subs[ev.Topic])
	b.mu.Unlock()

	for _, s := range subs {
		if s.handler(ev) {
			return
		}
	}
}
