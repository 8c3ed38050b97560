package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dawilly/clickpesa/internal/domain/transaction"
	"github.com/dawilly/clickpesa/internal/gateway"
)

// PaymentController exposes the collections side of the gateway plus the
// locally stored transaction records.
type PaymentController struct {
	collections     gateway.Collections
	transactions    transaction.Repository
	defaultCurrency string
}

func NewPaymentController(collections gateway.Collections, transactions transaction.Repository, defaultCurrency string) *PaymentController {
	if defaultCurrency == "" {
		defaultCurrency = "TZS"
	}
	return &PaymentController{
		collections:     collections,
		transactions:    transactions,
		defaultCurrency: defaultCurrency,
	}
}

func (h *PaymentController) currencyOr(c string) string {
	if c == "" {
		return h.defaultCurrency
	}
	return c
}

// PreviewPush handles POST /api/v1/payments/preview-push.
func (h *PaymentController) PreviewPush(w http.ResponseWriter, r *http.Request) {
	var req PushPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.collections.PreviewUSSDPush(r.Context(), gateway.PushRequest{
		Amount:             amountString(req.Amount),
		Currency:           h.currencyOr(req.Currency),
		OrderReference:     req.OrderReference,
		PhoneNumber:        req.PhoneNumber,
		FetchSenderDetails: req.FetchSenderDetails,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeGatewayJSON(w, resp.Result, resp)
}

// InitiatePush handles POST /api/v1/payments/push. On gateway acceptance
// a pending local transaction is recorded for later reconciliation.
func (h *PaymentController) InitiatePush(w http.ResponseWriter, r *http.Request) {
	var req PushPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	gwReq := gateway.PushRequest{
		Amount:         amountString(req.Amount),
		Currency:       h.currencyOr(req.Currency),
		OrderReference: req.OrderReference,
		PhoneNumber:    req.PhoneNumber,
	}
	resp, err := h.collections.InitiateUSSDPush(r.Context(), gwReq)
	if err != nil {
		writeError(w, err)
		return
	}

	if resp.Success {
		h.recordPayment(r, req, gwReq, resp)
	}
	writeGatewayJSON(w, resp.Result, resp)
}

func (h *PaymentController) recordPayment(r *http.Request, req PushPaymentRequest, gwReq gateway.PushRequest, resp *gateway.PaymentResponse) {
	t, err := transaction.New(req.OrderReference, transaction.TypePayment, resp.Channel, transaction.Amount{
		ValueCents: transaction.CentsFromFloat(req.Amount),
		Currency:   h.currencyOr(req.Currency),
	})
	if err != nil {
		return
	}
	if resp.Status != "" {
		t.Status = transaction.NormalizeStatus(resp.Status)
	}
	if resp.ID != "" {
		ref := resp.ID
		t.Reference = &ref
	}
	t.RequestPayload = map[string]any{
		"amount":         gwReq.Amount,
		"currency":       gwReq.Currency,
		"orderReference": gwReq.OrderReference,
		"phoneNumber":    gwReq.PhoneNumber,
	}
	// A duplicate insert means the reference is already tracked locally.
	_ = h.transactions.Create(r.Context(), t)
}

// QueryStatus handles GET /api/v1/payments/{orderReference}/status,
// proxying the gateway's view of the payment.
func (h *PaymentController) QueryStatus(w http.ResponseWriter, r *http.Request) {
	orderReference := chi.URLParam(r, "orderReference")
	resp, err := h.collections.QueryPaymentStatus(r.Context(), orderReference)
	if err != nil {
		writeError(w, err)
		return
	}
	if resp.Success {
		writeJSON(w, http.StatusOK, resp.Payments)
		return
	}
	writeGatewayJSON(w, resp.Result, resp)
}

// PreviewCard handles POST /api/v1/payments/preview-card.
func (h *PaymentController) PreviewCard(w http.ResponseWriter, r *http.Request) {
	var req CardPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.collections.PreviewCardPayment(r.Context(), gateway.CardPaymentRequest{
		Amount:         amountString(req.Amount),
		Currency:       h.currencyOr(req.Currency),
		OrderReference: req.OrderReference,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeGatewayJSON(w, resp.Result, resp)
}

// InitiateCard handles POST /api/v1/payments/card, returning the hosted
// payment link.
func (h *PaymentController) InitiateCard(w http.ResponseWriter, r *http.Request) {
	var req CardPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	gwReq := gateway.CardPaymentRequest{
		Amount:         amountString(req.Amount),
		Currency:       h.currencyOr(req.Currency),
		OrderReference: req.OrderReference,
	}
	if req.Customer != nil {
		gwReq.Customer = &gateway.Customer{
			ID:          req.Customer.ID,
			FirstName:   req.Customer.FirstName,
			LastName:    req.Customer.LastName,
			Email:       req.Customer.Email,
			PhoneNumber: req.Customer.PhoneNumber,
		}
	}

	resp, err := h.collections.InitiateCardPayment(r.Context(), gwReq)
	if err != nil {
		writeError(w, err)
		return
	}

	if resp.Success {
		t, terr := transaction.New(req.OrderReference, transaction.TypePayment, "CARD", transaction.Amount{
			ValueCents: transaction.CentsFromFloat(req.Amount),
			Currency:   h.currencyOr(req.Currency),
		})
		if terr == nil {
			_ = h.transactions.Create(r.Context(), t)
		}
	}
	writeGatewayJSON(w, resp.Result, resp)
}

// Get handles GET /api/v1/payments/{orderReference}, serving the local
// transaction record.
func (h *PaymentController) Get(w http.ResponseWriter, r *http.Request) {
	orderReference := chi.URLParam(r, "orderReference")
	t, err := h.transactions.GetByOrderReference(r.Context(), orderReference)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

// List handles GET /api/v1/payments.
func (h *PaymentController) List(w http.ResponseWriter, r *http.Request) {
	f := listFilterFromQuery(r, transaction.TypePayment)
	ts, err := h.transactions.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]TransactionResponse, 0, len(ts))
	for _, t := range ts {
		resp = append(resp, toTransactionResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}
