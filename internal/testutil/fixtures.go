package testutil

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dawilly/clickpesa/internal/domain/transaction"
	"github.com/dawilly/clickpesa/internal/domain/webhook"
)

func NewTestTransaction(orderReference string, amountCents int64, currency string) *transaction.Transaction {
	now := time.Now()
	return &transaction.Transaction{
		ID:             uuid.New(),
		Type:           transaction.TypePayment,
		Channel:        "MOBILE MONEY",
		OrderReference: orderReference,
		Amount:         transaction.Amount{ValueCents: amountCents, Currency: currency},
		Status:         transaction.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func NewTestDelivery(orderReference string, payload map[string]any) *webhook.Delivery {
	raw, _ := json.Marshal(payload)
	return webhook.NewDelivery(orderReference, webhook.DefaultEventType, raw, webhook.Headers{}, true)
}

func NewProcessedDelivery(orderReference string, payload map[string]any) *webhook.Delivery {
	d := NewTestDelivery(orderReference, payload)
	d.MarkProcessed(time.Now())
	return d
}

// CallbackPayload builds a minimal gateway callback body.
func CallbackPayload(orderReference, status string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"orderReference": orderReference,
		"status":         status,
	})
	return raw
}
