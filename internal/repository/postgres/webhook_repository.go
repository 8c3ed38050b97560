package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/dawilly/clickpesa/internal/domain/errors"
	"github.com/dawilly/clickpesa/internal/domain/webhook"
)

const webhookColumns = `id, order_reference, event_type, payload, headers, verified,
	        processed_at, processing_error, retry_count, created_at, updated_at`

// WebhookRepository implements webhook.Repository using PostgreSQL.
type WebhookRepository struct {
	pool *pgxpool.Pool
}

// NewWebhookRepository creates a new WebhookRepository.
func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepository {
	return &WebhookRepository{pool: pool}
}

func (r *WebhookRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Create inserts a new delivery row.
func (r *WebhookRepository) Create(ctx context.Context, d *webhook.Delivery) error {
	headers, err := json.Marshal(d.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}

	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO clickpesa_webhooks
		 (id, order_reference, event_type, payload, headers, verified,
		  processed_at, processing_error, retry_count, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.OrderReference, d.EventType, []byte(d.Payload), headers, d.Verified,
		d.ProcessedAt, d.ProcessingError, d.RetryCount, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

// Update updates an existing delivery.
func (r *WebhookRepository) Update(ctx context.Context, d *webhook.Delivery) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE clickpesa_webhooks SET
		  verified=$1, processed_at=$2, processing_error=$3, retry_count=$4, updated_at=$5
		 WHERE id=$6`,
		d.Verified, d.ProcessedAt, d.ProcessingError, d.RetryCount, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update webhook delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrWebhookNotFound
	}
	return nil
}

// GetByID retrieves a delivery by its ID.
func (r *WebhookRepository) GetByID(ctx context.Context, id uuid.UUID) (*webhook.Delivery, error) {
	d, err := r.scanDelivery(r.db(ctx).QueryRow(ctx,
		`SELECT `+webhookColumns+`
		 FROM clickpesa_webhooks WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domainErrors.ErrWebhookNotFound
		}
		return nil, err
	}
	return d, nil
}

// FindProcessedSince returns a processed delivery for orderReference, other
// than excludeID, created after the cutoff. Returns (nil, nil) when no such
// delivery exists.
func (r *WebhookRepository) FindProcessedSince(ctx context.Context, orderReference string, excludeID uuid.UUID, cutoff time.Time) (*webhook.Delivery, error) {
	d, err := r.scanDelivery(r.db(ctx).QueryRow(ctx,
		`SELECT `+webhookColumns+`
		 FROM clickpesa_webhooks
		 WHERE order_reference = $1
		   AND id <> $2
		   AND processed_at IS NOT NULL
		   AND created_at >= $3
		 ORDER BY created_at DESC
		 LIMIT 1`, orderReference, excludeID, cutoff))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// ListByOrderReference returns all deliveries for an order reference,
// oldest first.
func (r *WebhookRepository) ListByOrderReference(ctx context.Context, orderReference string) ([]*webhook.Delivery, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+webhookColumns+`
		 FROM clickpesa_webhooks
		 WHERE order_reference = $1
		 ORDER BY created_at ASC`, orderReference)
	if err != nil {
		return nil, fmt.Errorf("list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*webhook.Delivery
	for rows.Next() {
		d, err := r.scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// --- scanning helpers ---

func (r *WebhookRepository) scanDelivery(s scanner) (*webhook.Delivery, error) {
	d := &webhook.Delivery{}
	var (
		payload []byte
		headers []byte
	)
	err := s.Scan(
		&d.ID, &d.OrderReference, &d.EventType, &payload, &headers, &d.Verified,
		&d.ProcessedAt, &d.ProcessingError, &d.RetryCount, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan webhook delivery: %w", err)
	}

	d.Payload = json.RawMessage(payload)
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &d.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	return d, nil
}
