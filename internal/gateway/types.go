package gateway

import "encoding/json"

// Request payloads. Amounts travel as strings because the gateway expects
// decimal strings, not numbers.

// PushRequest starts or previews a USSD push collection.
type PushRequest struct {
	Amount             string `json:"amount"`
	Currency           string `json:"currency"`
	OrderReference     string `json:"orderReference"`
	PhoneNumber        string `json:"phoneNumber,omitempty"`
	FetchSenderDetails bool   `json:"fetchSenderDetails,omitempty"`
	Checksum           string `json:"checksum,omitempty"`
}

// Customer identifies the payer for card payments. Either ID references
// an existing customer or the remaining fields create one.
type Customer struct {
	ID          string `json:"id,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// CardPaymentRequest starts or previews a card collection. Card payments
// are USD only on the gateway side.
type CardPaymentRequest struct {
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	OrderReference string    `json:"orderReference"`
	Customer       *Customer `json:"customer,omitempty"`
	Checksum       string    `json:"checksum,omitempty"`
}

// MobilePayoutRequest previews or creates a mobile money payout.
type MobilePayoutRequest struct {
	Amount         string `json:"amount"`
	PhoneNumber    string `json:"phoneNumber"`
	Currency       string `json:"currency"`
	OrderReference string `json:"orderReference"`
	Checksum       string `json:"checksum,omitempty"`
}

// BankPayoutRequest previews or creates a bank payout.
type BankPayoutRequest struct {
	Amount          string `json:"amount"`
	AccountNumber   string `json:"accountNumber"`
	AccountName     string `json:"accountName"`
	Currency        string `json:"currency"`
	OrderReference  string `json:"orderReference"`
	BIC             string `json:"bic"`
	TransferType    string `json:"transferType"`
	AccountCurrency string `json:"accountCurrency,omitempty"`
	Checksum        string `json:"checksum,omitempty"`
}

// Response shapes.

// ActiveMethod describes one payment channel's availability and fee.
type ActiveMethod struct {
	Name    string  `json:"name"`
	Status  string  `json:"status"`
	Fee     float64 `json:"fee"`
	Message string  `json:"message,omitempty"`
}

// Sender holds payer account details resolved during a preview.
type Sender struct {
	AccountName     string `json:"accountName"`
	AccountNumber   string `json:"accountNumber"`
	AccountProvider string `json:"accountProvider"`
}

// PreviewResponse is returned by the collection preview operations.
type PreviewResponse struct {
	Result
	ActiveMethods []ActiveMethod `json:"activeMethods"`
	Sender        *Sender        `json:"sender,omitempty"`
}

// PaymentCustomer holds payer details the gateway attaches to a payment.
type PaymentCustomer struct {
	CustomerName        string `json:"customerName,omitempty"`
	CustomerPhoneNumber string `json:"customerPhoneNumber,omitempty"`
	CustomerEmail       string `json:"customerEmail,omitempty"`
}

// Payment is one gateway-side payment record.
type Payment struct {
	ID                string           `json:"id"`
	Status            string           `json:"status"`
	Channel           string           `json:"channel,omitempty"`
	PaymentReference  string           `json:"paymentReference,omitempty"`
	OrderReference    string           `json:"orderReference"`
	CollectedAmount   json.Number      `json:"collectedAmount,omitempty"`
	CollectedCurrency string           `json:"collectedCurrency,omitempty"`
	Customer          *PaymentCustomer `json:"customer,omitempty"`
	ClientID          string           `json:"clientId,omitempty"`
	CreatedAt         string           `json:"createdAt,omitempty"`
	UpdatedAt         string           `json:"updatedAt,omitempty"`
}

// PaymentResponse is returned when a collection is initiated.
type PaymentResponse struct {
	Result
	Payment
}

// PaymentStatusResponse is returned by the payment status query, which
// yields every transaction recorded for the order reference.
type PaymentStatusResponse struct {
	Result
	Payments []Payment `json:"-"`
}

// CardLinkResponse is returned when a card payment is initiated.
type CardLinkResponse struct {
	Result
	CardPaymentLink string `json:"cardPaymentLink"`
	ClientID        string `json:"clientId,omitempty"`
}

// Exchange describes a currency conversion applied to a payout.
type Exchange struct {
	SourceCurrency string      `json:"sourceCurrency"`
	TargetCurrency string      `json:"targetCurrency"`
	SourceAmount   json.Number `json:"sourceAmount"`
	Rate           json.Number `json:"rate"`
}

// PayoutOrder echoes the merchant's requested amount and currency.
type PayoutOrder struct {
	ID       string      `json:"id,omitempty"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
}

// Beneficiary identifies who receives a payout.
type Beneficiary struct {
	AccountNumber   string      `json:"accountNumber"`
	AccountName     string      `json:"accountName"`
	AccountCurrency string      `json:"accountCurrency,omitempty"`
	Amount          json.Number `json:"amount,omitempty"`
}

// PayoutPreviewResponse is returned by the payout preview operations.
type PayoutPreviewResponse struct {
	Result
	Amount          json.Number  `json:"amount"`
	Balance         json.Number  `json:"balance"`
	Fee             json.Number  `json:"fee"`
	ChannelProvider string       `json:"channelProvider,omitempty"`
	Exchanged       bool         `json:"exchanged"`
	Exchange        *Exchange    `json:"exchange,omitempty"`
	Order           *PayoutOrder `json:"order,omitempty"`
	PayoutFeeBearer string       `json:"payoutFeeBearer,omitempty"`
	Receiver        *Beneficiary `json:"receiver,omitempty"`
}

// PayoutResponse is returned when a payout is created or queried.
type PayoutResponse struct {
	Result
	ID              string       `json:"id"`
	OrderReference  string       `json:"orderReference"`
	Amount          json.Number  `json:"amount"`
	Currency        string       `json:"currency"`
	Fee             json.Number  `json:"fee"`
	Exchanged       bool         `json:"exchanged"`
	Exchange        *Exchange    `json:"exchange,omitempty"`
	Status          string       `json:"status"`
	Channel         string       `json:"channel,omitempty"`
	ChannelProvider string       `json:"channelProvider,omitempty"`
	TransferType    string       `json:"transferType,omitempty"`
	Order           *PayoutOrder `json:"order,omitempty"`
	Beneficiary     *Beneficiary `json:"beneficiary,omitempty"`
	ClientID        string       `json:"clientId,omitempty"`
	CreatedAt       string       `json:"createdAt,omitempty"`
	UpdatedAt       string       `json:"updatedAt,omitempty"`
}
