package streaming

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Broadcaster manages topic subscriptions and fans events out to subscriber
// channels. It is the delivery primitive behind the profile state adapter
// and the WebSocket listen endpoints.
type Broadcaster interface {
	// Subscribe registers a channel to receive events for a topic.
	// subscriberID must be unique per consumer; the channel is owned by the
	// subscriber and must stay open until Unsubscribe returns.
	Subscribe(ctx context.Context, subscriberID string, topic string, events chan<- RealtimeEvent) error

	// Unsubscribe removes a consumer's subscription. After it returns, no
	// further events are sent to the consumer's channel for that topic.
	Unsubscribe(ctx context.Context, subscriberID string, topic string) error

	// Publish delivers an event to all subscribers of its topic.
	Publish(ctx context.Context, event RealtimeEvent) error

	// SubscriberCount reports how many consumers listen on a topic.
	SubscriberCount(topic string) int
}

type broadcaster struct {
	// subscriptions maps a topic to a map of subscriber IDs to their event channels.
	subscriptions map[string]map[string]chan<- RealtimeEvent
	mu            sync.RWMutex
	log           *zap.Logger
}

// NewBroadcaster creates an in-memory Broadcaster.
func NewBroadcaster(log *zap.Logger) Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &broadcaster{
		subscriptions: make(map[string]map[string]chan<- RealtimeEvent),
		log:           log,
	}
}

func (b *broadcaster) Subscribe(ctx context.Context, subscriberID string, topic string, events chan<- RealtimeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscriptions[topic]; !ok {
		b.subscriptions[topic] = make(map[string]chan<- RealtimeEvent)
	}

	if _, ok := b.subscriptions[topic][subscriberID]; ok {
		b.log.Warn("Subscriber already subscribed to topic, overwriting subscription",
			zap.String("subscriberID", subscriberID), zap.String("topic", topic))
	}

	b.subscriptions[topic][subscriberID] = events
	b.log.Info("Client subscribed",
		zap.String("subscriberID", subscriberID), zap.String("topic", topic))
	return nil
}

func (b *broadcaster) Unsubscribe(ctx context.Context, subscriberID string, topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, ok := b.subscriptions[topic]
	if !ok {
		b.log.Warn("Topic not found during unsubscribe",
			zap.String("subscriberID", subscriberID), zap.String("topic", topic))
		return nil
	}

	if _, ok := subscribers[subscriberID]; !ok {
		b.log.Warn("Subscriber not found for topic during unsubscribe",
			zap.String("subscriberID", subscriberID), zap.String("topic", topic))
		return nil
	}

	// Closing the channel is the subscriber's responsibility; the registry
	// only stops routing events to it.
	delete(subscribers, subscriberID)
	if len(subscribers) == 0 {
		delete(b.subscriptions, topic)
	}

	b.log.Info("Client unsubscribed",
		zap.String("subscriberID", subscriberID), zap.String("topic", topic))
	return nil
}

func (b *broadcaster) Publish(ctx context.Context, event RealtimeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subscribers, ok := b.subscriptions[event.Topic]
	if !ok {
		b.log.Debug("No subscribers for topic on event publish",
			zap.String("topic", event.Topic))
		return nil
	}

	b.log.Debug("Publishing event",
		zap.String("topic", event.Topic),
		zap.String("eventType", string(event.Type)),
		zap.Int("subscriberCount", len(subscribers)))

	for subID, ch := range subscribers {
		// Non-blocking send so a slow client cannot stall event distribution.
		// A full channel drops the event for that subscriber.
		select {
		case ch <- event:
		default:
			b.log.Warn("Dropped event for subscriber (channel full or closed)",
				zap.String("subscriberID", subID), zap.String("topic", event.Topic))
		}
	}
	return nil
}

func (b *broadcaster) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions[topic])
}
