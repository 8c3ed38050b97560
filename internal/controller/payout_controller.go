package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dawilly/clickpesa/internal/domain/transaction"
	"github.com/dawilly/clickpesa/internal/gateway"
)

// PayoutController exposes the disbursement side of the gateway plus the
// locally stored payout records.
type PayoutController struct {
	payouts         gateway.Payouts
	transactions    transaction.Repository
	defaultCurrency string
}

func NewPayoutController(payouts gateway.Payouts, transactions transaction.Repository, defaultCurrency string) *PayoutController {
	if defaultCurrency == "" {
		defaultCurrency = "TZS"
	}
	return &PayoutController{
		payouts:         payouts,
		transactions:    transactions,
		defaultCurrency: defaultCurrency,
	}
}

func (h *PayoutController) currencyOr(c string) string {
	if c == "" {
		return h.defaultCurrency
	}
	return c
}

// PreviewMobile handles POST /api/v1/payouts/preview-mobile.
func (h *PayoutController) PreviewMobile(w http.ResponseWriter, r *http.Request) {
	var req MobilePayoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.payouts.PreviewMobileMoneyPayout(r.Context(), gateway.MobilePayoutRequest{
		Amount:         amountString(req.Amount),
		PhoneNumber:    req.PhoneNumber,
		Currency:       h.currencyOr(req.Currency),
		OrderReference: req.OrderReference,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeGatewayJSON(w, resp.Result, resp)
}

// CreateMobile handles POST /api/v1/payouts/mobile.
func (h *PayoutController) CreateMobile(w http.ResponseWriter, r *http.Request) {
	var req MobilePayoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.payouts.CreateMobileMoneyPayout(r.Context(), gateway.MobilePayoutRequest{
		Amount:         amountString(req.Amount),
		PhoneNumber:    req.PhoneNumber,
		Currency:       h.currencyOr(req.Currency),
		OrderReference: req.OrderReference,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if resp.Success {
		h.recordPayout(r, req.OrderReference, req.Amount, h.currencyOr(req.Currency), resp)
	}
	writeGatewayJSON(w, resp.Result, resp)
}

// PreviewBank handles POST /api/v1/payouts/preview-bank.
func (h *PayoutController) PreviewBank(w http.ResponseWriter, r *http.Request) {
	var req BankPayoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.payouts.PreviewBankPayout(r.Context(), gateway.BankPayoutRequest{
		Amount:          amountString(req.Amount),
		AccountNumber:   req.AccountNumber,
		AccountName:     req.AccountName,
		Currency:        h.currencyOr(req.Currency),
		OrderReference:  req.OrderReference,
		BIC:             req.BIC,
		TransferType:    req.TransferType,
		AccountCurrency: req.AccountCurrency,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeGatewayJSON(w, resp.Result, resp)
}

// CreateBank handles POST /api/v1/payouts/bank.
func (h *PayoutController) CreateBank(w http.ResponseWriter, r *http.Request) {
	var req BankPayoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.payouts.CreateBankPayout(r.Context(), gateway.BankPayoutRequest{
		Amount:          amountString(req.Amount),
		AccountNumber:   req.AccountNumber,
		AccountName:     req.AccountName,
		Currency:        h.currencyOr(req.Currency),
		OrderReference:  req.OrderReference,
		BIC:             req.BIC,
		TransferType:    req.TransferType,
		AccountCurrency: req.AccountCurrency,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if resp.Success {
		h.recordPayout(r, req.OrderReference, req.Amount, h.currencyOr(req.Currency), resp)
	}
	writeGatewayJSON(w, resp.Result, resp)
}

func (h *PayoutController) recordPayout(r *http.Request, orderReference string, amount float64, currency string, resp *gateway.PayoutResponse) {
	t, err := transaction.New(orderReference, transaction.TypePayout, resp.Channel, transaction.Amount{
		ValueCents: transaction.CentsFromFloat(amount),
		Currency:   currency,
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
	if resp.ChannelProvider != "" {
		cp := resp.ChannelProvider
		t.ChannelProvider = &cp
	}
	if fee, err := resp.Fee.Float64(); err == nil && fee > 0 {
		cents := transaction.CentsFromFloat(fee)
		t.FeeCents = &cents
	}
	t.Exchanged = resp.Exchanged
	// A duplicate insert means the reference is already tracked locally.
	_ = h.transactions.Create(r.Context(), t)
}

// QueryStatus handles GET /api/v1/payouts/{orderReference}/status.
func (h *PayoutController) QueryStatus(w http.ResponseWriter, r *http.Request) {
	orderReference := chi.URLParam(r, "orderReference")
	resp, err := h.payouts.QueryPayoutStatus(r.Context(), orderReference)
	if err != nil {
		writeError(w, err)
		return
	}
	writeGatewayJSON(w, resp.Result, resp)
}

// Get handles GET /api/v1/payouts/{orderReference}.
func (h *PayoutController) Get(w http.ResponseWriter, r *http.Request) {
	orderReference := chi.URLParam(r, "orderReference")
	t, err := h.transactions.GetByOrderReference(r.Context(), orderReference)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

// List handles GET /api/v1/payouts.
func (h *PayoutController) List(w http.ResponseWriter, r *http.Request) {
	f := listFilterFromQuery(r, transaction.TypePayout)
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
