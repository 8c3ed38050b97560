package controller

import (
	"strconv"
	"time"

	"github.com/dawilly/clickpesa/internal/domain/transaction"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns (float64 for money, validation
// tags). Controllers convert these to gateway payloads, where amounts
// travel as decimal strings.

// PushPaymentRequest starts or previews a USSD push collection.
type PushPaymentRequest struct {
	Amount             float64 `json:"amount" validate:"required,gt=0"`
	Currency           string  `json:"currency" validate:"omitempty,len=3"`
	OrderReference     string  `json:"order_reference" validate:"required,alphanum"`
	PhoneNumber        string  `json:"phone_number" validate:"omitempty,numeric"`
	FetchSenderDetails bool    `json:"fetch_sender_details,omitempty"`
}

// CardCustomerRequest identifies the payer for card payments.
type CardCustomerRequest struct {
	ID          string `json:"id,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// CardPaymentRequest starts or previews a card collection.
type CardPaymentRequest struct {
	Amount         float64              `json:"amount" validate:"required,gt=0"`
	Currency       string               `json:"currency" validate:"omitempty,len=3"`
	OrderReference string               `json:"order_reference" validate:"required,alphanum"`
	Customer       *CardCustomerRequest `json:"customer,omitempty"`
}

// MobilePayoutRequest previews or creates a mobile money payout.
type MobilePayoutRequest struct {
	Amount         float64 `json:"amount" validate:"required,gt=0"`
	PhoneNumber    string  `json:"phone_number" validate:"required,numeric"`
	Currency       string  `json:"currency" validate:"omitempty,len=3"`
	OrderReference string  `json:"order_reference" validate:"required,alphanum"`
}

// BankPayoutRequest previews or creates a bank payout.
type BankPayoutRequest struct {
	Amount          float64 `json:"amount" validate:"required,gt=0"`
	AccountNumber   string  `json:"account_number" validate:"required"`
	AccountName     string  `json:"account_name" validate:"required"`
	Currency        string  `json:"currency" validate:"omitempty,len=3"`
	OrderReference  string  `json:"order_reference" validate:"required,alphanum"`
	BIC             string  `json:"bic" validate:"required"`
	TransferType    string  `json:"transfer_type" validate:"required,oneof=ACH RTGS"`
	AccountCurrency string  `json:"account_currency,omitempty" validate:"omitempty,len=3"`
}

// --- Response DTOs ---

// ErrorResponse is the generic API error shape.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// TransactionResponse represents a stored transaction in API responses.
type TransactionResponse struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	Channel         string         `json:"channel,omitempty"`
	OrderReference  string         `json:"order_reference"`
	Amount          float64        `json:"amount"`
	Currency        string         `json:"currency"`
	Status          string         `json:"status"`
	Reference       *string        `json:"reference,omitempty"`
	Description     *string        `json:"description,omitempty"`
	Fee             *float64       `json:"fee,omitempty"`
	FeeBearer       *string        `json:"fee_bearer,omitempty"`
	Exchanged       bool           `json:"exchanged"`
	ChannelProvider *string        `json:"channel_provider,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func toTransactionResponse(t *transaction.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:              t.ID.String(),
		Type:            string(t.Type),
		Channel:         t.Channel,
		OrderReference:  t.OrderReference,
		Amount:          float64(t.Amount.ValueCents) / 100,
		Currency:        t.Amount.Currency,
		Status:          string(t.Status),
		Reference:       t.Reference,
		Description:     t.Description,
		FeeBearer:       t.FeeBearer,
		Exchanged:       t.Exchanged,
		ChannelProvider: t.ChannelProvider,
		Metadata:        t.Metadata,
		ProcessedAt:     t.ProcessedAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if t.FeeCents != nil {
		fee := float64(*t.FeeCents) / 100
		resp.Fee = &fee
	}
	return resp
}

// amountString formats a merchant-supplied amount the way the gateway
// expects it.
func amountString(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
