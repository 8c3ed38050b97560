package webhook

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultEventType tags deliveries whose payload carries no event type.
// Event type is informational only and never gates reconciliation.
const DefaultEventType = "payment.callback"

// Headers holds the request headers captured with a delivery.
type Headers struct {
	Signature string `json:"signature,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	SourceIP  string `json:"source_ip,omitempty"`
}

// Delivery records one received callback attempt. The gateway may deliver
// the same event more than once; every attempt is persisted, including
// duplicates, and rows are never deleted.
//
// Verified records a cryptographic signature match, independent of whether
// enforcement was on. A delivery accepted unsigned in a pass-through
// deployment stays unverified.
type Delivery struct {
	ID              uuid.UUID
	OrderReference  string
	EventType       string
	Payload         json.RawMessage
	Headers         Headers
	Verified        bool
	ProcessedAt     *time.Time
	ProcessingError *string
	RetryCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewDelivery creates a delivery row for a just-received callback.
func NewDelivery(orderReference, eventType string, payload json.RawMessage, headers Headers, verified bool) *Delivery {
	if eventType == "" {
		eventType = DefaultEventType
	}
	now := time.Now()
	return &Delivery{
		ID:             uuid.New(),
		OrderReference: orderReference,
		EventType:      eventType,
		Payload:        payload,
		Headers:        headers,
		Verified:       verified,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// MarkProcessed records the successful application of this delivery.
func (d *Delivery) MarkProcessed(at time.Time) {
	d.ProcessedAt = &at
	d.ProcessingError = nil
	d.UpdatedAt = at
}

// MarkDuplicate records that this delivery replayed prior within the
// duplicate window. The row stays unprocessed so it never anchors the
// window for later deliveries.
func (d *Delivery) MarkDuplicate(prior uuid.UUID) {
	msg := "duplicate of " + prior.String()
	d.ProcessingError = &msg
	d.UpdatedAt = time.Now()
}

// RecordFailure captures a processing error and bumps the retry counter.
// The row itself is never rolled back; partial failure stays visible.
func (d *Delivery) RecordFailure(errMsg string) {
	d.ProcessedAt = nil
	d.ProcessingError = &errMsg
	d.RetryCount++
	d.UpdatedAt = time.Now()
}

// IsProcessed reports whether the delivery has been applied.
func (d *Delivery) IsProcessed() bool {
	return d.ProcessedAt != nil
}
