package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawilly/clickpesa/internal/domain/webhook"
	"github.com/dawilly/clickpesa/internal/infrastructure/redis"
	"github.com/dawilly/clickpesa/pkg/retry"
)

// Notifier announces reconciliation outcomes to downstream consumers.
// Notifications decouple reconciliation from business effects; a failed
// notification never fails the callback itself.
type Notifier interface {
	PaymentReceived(ctx context.Context, delivery *webhook.Delivery) error
	ProcessingFailed(ctx context.Context, delivery *webhook.Delivery, reason string)
}

// StreamNotifier publishes payment-received events to a Redis stream,
// retrying transient publish failures with backoff.
type StreamNotifier struct {
	producer *redis.StreamProducer
	retryCfg retry.Config
	logger   zerolog.Logger
}

func NewStreamNotifier(producer *redis.StreamProducer, logger zerolog.Logger) *StreamNotifier {
	cfg := retry.Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
	return &StreamNotifier{producer: producer, retryCfg: cfg, logger: logger}
}

func (n *StreamNotifier) PaymentReceived(ctx context.Context, delivery *webhook.Delivery) error {
	var payload map[string]any
	if err := json.Unmarshal(delivery.Payload, &payload); err != nil {
		payload = map[string]any{"raw": string(delivery.Payload)}
	}
	payload["deliveryId"] = delivery.ID.String()
	payload["eventType"] = delivery.EventType

	err := retry.Do(ctx, n.retryCfg, func() error {
		return n.producer.PublishPaymentReceived(ctx, delivery.OrderReference, payload)
	})
	if err != nil {
		n.logger.Error().Err(err).
			Str("order_reference", delivery.OrderReference).
			Msg("failed to publish payment received event")
	}
	return err
}

// ProcessingFailed publishes the failure to the failed-webhooks stream so
// it can be inspected or replayed. Best effort, single attempt.
func (n *StreamNotifier) ProcessingFailed(ctx context.Context, delivery *webhook.Delivery, reason string) {
	err := n.producer.PublishWebhookFailed(ctx, delivery.ID.String(), delivery.OrderReference, reason)
	if err != nil {
		n.logger.Error().Err(err).
			Str("order_reference", delivery.OrderReference).
			Msg("failed to publish webhook failed event")
	}
}

// LogNotifier is a Notifier for deployments without Redis; it only logs.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) PaymentReceived(_ context.Context, delivery *webhook.Delivery) error {
	n.logger.Info().
		Str("order_reference", delivery.OrderReference).
		Str("event_type", delivery.EventType).
		Msg("payment received")
	return nil
}

func (n *LogNotifier) ProcessingFailed(_ context.Context, delivery *webhook.Delivery, reason string) {
	n.logger.Warn().
		Str("order_reference", delivery.OrderReference).
		Str("reason", reason).
		Msg("webhook processing failed")
}
