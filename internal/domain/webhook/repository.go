package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for webhook deliveries.
type Repository interface {
	Create(ctx context.Context, d *Delivery) error
	Update(ctx context.Context, d *Delivery) error
	GetByID(ctx context.Context, id uuid.UUID) (*Delivery, error)

	// FindProcessedSince returns a delivery for orderReference, other than
	// excludeID, that was already processed and created after the cutoff.
	// Returns (nil, nil) when no such delivery exists.
	FindProcessedSince(ctx context.Context, orderReference string, excludeID uuid.UUID, cutoff time.Time) (*Delivery, error)

	// ListByOrderReference returns all deliveries for an order reference,
	// oldest first.
	ListByOrderReference(ctx context.Context, orderReference string) ([]*Delivery, error)
}
