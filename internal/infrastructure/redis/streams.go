package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// PaymentReceivedStream carries events for callbacks that reconciled
	// into a successful transaction.
	PaymentReceivedStream = "clickpesa:payments:received"

	// WebhookFailedStream carries callbacks that could not be processed.
	WebhookFailedStream = "clickpesa:webhooks:failed"
)

// StreamProducer publishes reconciliation events to Redis streams for
// downstream consumers.
type StreamProducer struct {
	client *redis.Client
}

func NewStreamProducer(client *redis.Client) *StreamProducer {
	return &StreamProducer{client: client}
}

// PublishPaymentReceived announces a transaction that reached a terminal
// successful state through a verified callback.
func (p *StreamProducer) PublishPaymentReceived(ctx context.Context, orderReference string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payment received event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: PaymentReceivedStream,
		Values: map[string]any{
			"order_reference": orderReference,
			"event_type":      "payment.received",
			"payload":         string(payload),
			"timestamp":       time.Now().Unix(),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("publish payment received event: %w", err)
	}
	return nil
}

// PublishWebhookFailed records a callback delivery that failed processing
// so it can be inspected or replayed.
func (p *StreamProducer) PublishWebhookFailed(ctx context.Context, deliveryID string, orderReference string, reason string) error {
	args := &redis.XAddArgs{
		Stream: WebhookFailedStream,
		Values: map[string]any{
			"delivery_id":     deliveryID,
			"order_reference": orderReference,
			"reason":          reason,
			"timestamp":       time.Now().Unix(),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("publish webhook failed event: %w", err)
	}
	return nil
}
