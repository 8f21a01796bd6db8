package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"delixmi-order-core/internal/queue"
)

const publishTimeout = 2 * time.Second

// crossNodeEvent is what gets published to the RabbitMQ topic exchange:
// enough to reconstruct a local broadcast on every other node.
type crossNodeEvent struct {
	Room  string `json:"room"`
	Event Event  `json:"event"`
}

// Bus is the C7 Realtime Bus: an in-process room registry fronted by a
// RabbitMQ topic exchange for cross-node fan-out, so a restaurant's owner
// connected to node A still sees an event committed by a request served on
// node B. Every node both publishes its own committed events and consumes
// the exchange to re-broadcast into its own local registry.
type Bus struct {
	registry *registry
	mq       *queue.Client
	exchange string
	log      *zap.Logger
}

func NewBus(mq *queue.Client, exchange string, log *zap.Logger) (*Bus, error) {
	if mq != nil {
		if err := mq.EnsureExchange(exchange); err != nil {
			return nil, fmt.Errorf("realtime: ensure exchange: %w", err)
		}
	}
	return &Bus{registry: newRegistry(log), mq: mq, exchange: exchange, log: log}, nil
}

// PublishRestaurantEvent implements order.EventPublisher / payment.EventPublisher
// / dispatch.EventPublisher's restaurant leg.
func (b *Bus) PublishRestaurantEvent(restaurantID int64, eventType string, data any) {
	b.publish(restaurantRoom(restaurantID), eventType, data)
}

// PublishUserEvent implements the per-courier/per-user fan-out leg.
func (b *Bus) PublishUserEvent(userID int64, eventType string, data any) {
	b.publish(userRoom(userID), eventType, data)
}

func (b *Bus) publish(room, eventType string, data any) {
	event := newEvent(eventType, data)

	// Local delivery first: clients on this node see the event without
	// waiting on a broker round trip.
	b.registry.broadcast(room, event)

	if b.mq == nil {
		return
	}
	payload := crossNodeEvent{Room: room, Event: event}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.mq.PublishJSON(ctx, b.exchange, room, payload); err != nil {
		b.log.Error("realtime: cross-node publish failed", zap.Error(err), zap.String("room", room))
	}
}

// ConsumeCrossNode re-broadcasts events published by other nodes into this
// node's local registry. queueName should be unique per process (e.g.
// "order.events.<hostname>") so every node gets its own copy of the
// exchange's fan-out, per the topic-exchange idiom internal/queue already
// implements.
func (b *Bus) ConsumeCrossNode(queueName string) error {
	if b.mq == nil {
		return nil
	}
	if _, err := b.mq.EnsureQueue(queueName); err != nil {
		return fmt.Errorf("realtime: ensure consume queue: %w", err)
	}
	if err := b.mq.BindQueue(queueName, b.exchange, "#"); err != nil {
		return fmt.Errorf("realtime: bind consume queue: %w", err)
	}

	return b.mq.ConsumeWithRetry(queueName, func(ctx context.Context, body []byte) error {
		var payload crossNodeEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return fmt.Errorf("realtime: decode cross-node event: %w", err)
		}
		b.registry.broadcast(payload.Room, payload.Event)
		return nil
	}, 3, 0)
}
