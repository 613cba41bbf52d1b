package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/shelfwise/acquisitions/internal/services"
)

func TestPubSubOrderStatusPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "order-status-checks")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubOrderStatusPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderStatusPublisher: %v", err)
	}

	occurredAt := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	msg := services.OrderStatusCheckMessage{
		OrderID:      "order-1",
		OrderLineIDs: []string{"line-1", "line-2"},
		Source:       "receive",
		OccurredAt:   occurredAt,
	}

	if _, err := publisher.PublishOrderStatusCheck(ctx, msg); err != nil {
		t.Fatalf("PublishOrderStatusCheck: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderStatusCheckMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != msg.OrderID || len(payload.OrderLineIDs) != 2 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["orderId"]; attr != "order-1" {
		t.Fatalf("expected orderId attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["source"]; attr != "receive" {
		t.Fatalf("expected source attribute, got %q", attr)
	}
}

func TestPubSubOrderStatusPublisherRejectsEmptyOrderID(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "order-status-checks")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubOrderStatusPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderStatusPublisher: %v", err)
	}

	if _, err := publisher.PublishOrderStatusCheck(ctx, services.OrderStatusCheckMessage{}); err == nil {
		t.Fatal("expected error for empty order id")
	}
	if got := len(srv.Messages()); got != 0 {
		t.Fatalf("expected no messages, got %d", got)
	}
}
