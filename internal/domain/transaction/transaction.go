package transaction

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/dawilly/clickpesa/internal/domain/errors"
	"github.com/google/uuid"
)

// Type represents the transaction direction.
type Type string

const (
	TypePayment Type = "payment"
	TypePayout  Type = "payout"
)

// Status represents the normalized transaction status.
// The gateway reports statuses in uppercase with a broader vocabulary;
// NormalizeStatus maps them into this closed set.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusAuthorized Status = "authorized"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
	StatusReversed   Status = "reversed"
)

// NormalizeStatus maps a gateway-reported status to the closed status set.
// Normalizing an already-normalized status is a no-op. Unknown statuses
// are lowercased and kept as-is so late vocabulary additions on the gateway
// side stay visible in storage instead of being silently dropped.
func NormalizeStatus(s string) Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS", "SETTLED", "SUCCESSFUL":
		return StatusSuccessful
	case "PROCESSING":
		return StatusProcessing
	case "PENDING":
		return StatusPending
	case "FAILED":
		return StatusFailed
	case "AUTHORIZED":
		return StatusAuthorized
	case "REVERSED":
		return StatusReversed
	default:
		return Status(strings.ToLower(strings.TrimSpace(s)))
	}
}

// Amount represents a monetary amount in the smallest currency unit (e.g. cents).
type Amount struct {
	ValueCents int64
	Currency   string
}

// CentsFromFloat converts a major-unit amount to cents. Binary floats
// cannot represent most decimal fractions exactly, so the product is
// rounded rather than truncated; 19.99 becomes 1999, not 1998.
func CentsFromFloat(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// String returns a human-readable representation of the amount.
func (a Amount) String() string {
	whole := a.ValueCents / 100
	frac := a.ValueCents % 100
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%02d %s", whole, frac, a.Currency)
}

// Validate checks that the amount is valid.
func (a Amount) Validate() error {
	if a.ValueCents <= 0 {
		return errors.NewValidationError("amount", "must be greater than 0")
	}
	if len(a.Currency) != 3 {
		return errors.NewValidationError("currency", "must be a 3-letter ISO code")
	}
	return nil
}

var orderReferencePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidOrderReference reports whether ref satisfies the gateway's
// order-reference format (alphanumeric, non-blank).
func ValidOrderReference(ref string) bool {
	return orderReferencePattern.MatchString(ref)
}

// Transaction is the merchant's durable record of one payment or payout attempt.
// OrderReference is the natural key: unique, immutable, and the idempotency
// key for every write the reconciler performs.
type Transaction struct {
	ID             uuid.UUID
	Type           Type
	Channel        string
	OrderReference string
	Amount         Amount
	Status         Status

	Reference      *string
	Description    *string
	AccountDetails map[string]any
	Metadata       map[string]any

	FeeCents        *int64
	FeeBearer       *string
	Exchanged       bool
	ExchangeDetails map[string]any

	ChannelProvider *string
	ResponseCode    *string
	ResponseMessage *string
	RequestPayload  map[string]any
	ResponsePayload map[string]any

	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// New creates a pending transaction.
func New(orderReference string, t Type, channel string, amount Amount) (*Transaction, error) {
	if !ValidOrderReference(orderReference) {
		return nil, errors.ErrInvalidOrderReference
	}
	if t != TypePayment && t != TypePayout {
		return nil, errors.ErrInvalidTransactionType
	}
	if err := amount.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	return &Transaction{
		ID:             uuid.New(),
		Type:           t,
		Channel:        channel,
		OrderReference: orderReference,
		Amount:         amount,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ApplyCallback overwrites the reconciliation fields from a gateway callback.
// Last write wins on status; per-order serialization is the caller's job.
func (t *Transaction) ApplyCallback(status Status, responsePayload map[string]any, at time.Time) {
	t.Status = status
	t.ResponsePayload = responsePayload
	t.ProcessedAt = &at
	t.UpdatedAt = at
}

// IsSuccessful reports whether the transaction reached a successful state.
func (t *Transaction) IsSuccessful() bool {
	return t.Status == StatusSuccessful
}

// IsPending reports whether the transaction is still in flight.
func (t *Transaction) IsPending() bool {
	return t.Status == StatusPending || t.Status == StatusProcessing || t.Status == StatusAuthorized
}

// IsFailed reports whether the transaction terminally failed.
func (t *Transaction) IsFailed() bool {
	return t.Status == StatusFailed || t.Status == StatusReversed
}

// TotalCents returns the amount including the fee, when known.
func (t *Transaction) TotalCents() int64 {
	total := t.Amount.ValueCents
	if t.FeeCents != nil {
		total += *t.FeeCents
	}
	return total
}
