package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/shelfwise/acquisitions/internal/services"
)

// PubSubOrderStatusPublisher publishes order status check events to a Pub/Sub topic.
type PubSubOrderStatusPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderStatusPublisher constructs a Pub/Sub backed order status publisher.
func NewPubSubOrderStatusPublisher(topic *pubsub.Topic) (*PubSubOrderStatusPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order status publisher: topic is required")
	}
	return &PubSubOrderStatusPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderStatusCheck enqueues a status re-evaluation message for a single order.
func (p *PubSubOrderStatusPublisher) PublishOrderStatusCheck(ctx context.Context, message services.OrderStatusCheckMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub order status publisher: not initialised")
	}

	if strings.TrimSpace(message.OrderID) == "" {
		return "", errors.New("pubsub order status publisher: order id is required")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal order status check: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "source", message.Source)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order status check: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
