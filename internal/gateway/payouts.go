package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawilly/clickpesa/internal/infrastructure/observability"
)

// Payouts is the disbursement side of the gateway: mobile money and bank
// payouts plus status queries.
type Payouts interface {
	PreviewMobileMoneyPayout(ctx context.Context, req MobilePayoutRequest) (*PayoutPreviewResponse, error)
	CreateMobileMoneyPayout(ctx context.Context, req MobilePayoutRequest) (*PayoutResponse, error)
	PreviewBankPayout(ctx context.Context, req BankPayoutRequest) (*PayoutPreviewResponse, error)
	CreateBankPayout(ctx context.Context, req BankPayoutRequest) (*PayoutResponse, error)
	QueryPayoutStatus(ctx context.Context, orderReference string) (*PayoutResponse, error)
}

// PayoutsClient implements Payouts against the ClickPesa API. It takes an
// externally managed token source rather than minting its own tokens, so
// collections and payouts for one merchant share a single token.
type PayoutsClient struct {
	c *client
}

// NewPayoutsClient creates a payouts client using the given token source.
func NewPayoutsClient(env Environment, tokens TokenSource, timeout time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *PayoutsClient {
	return &PayoutsClient{
		c: newClient(env, tokens, timeout, metrics, logger),
	}
}

// PreviewMobileMoneyPayout validates payout details and reports fees and
// any exchange rate that will apply.
func (cl *PayoutsClient) PreviewMobileMoneyPayout(ctx context.Context, req MobilePayoutRequest) (*PayoutPreviewResponse, error) {
	var resp PayoutPreviewResponse
	if err := cl.c.call(ctx, "preview_mobile_payout", http.MethodPost, "/third-parties/payouts/preview-mobile-money-payout", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateMobileMoneyPayout transfers funds to the recipient's mobile wallet.
func (cl *PayoutsClient) CreateMobileMoneyPayout(ctx context.Context, req MobilePayoutRequest) (*PayoutResponse, error) {
	var resp PayoutResponse
	if err := cl.c.call(ctx, "create_mobile_payout", http.MethodPost, "/third-parties/payouts/create-mobile-money-payout", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PreviewBankPayout validates bank payout details and reports fees and
// any exchange rate that will apply.
func (cl *PayoutsClient) PreviewBankPayout(ctx context.Context, req BankPayoutRequest) (*PayoutPreviewResponse, error) {
	var resp PayoutPreviewResponse
	if err := cl.c.call(ctx, "preview_bank_payout", http.MethodPost, "/third-parties/payouts/preview-bank-payout", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateBankPayout transfers funds to the beneficiary's bank account via
// ACH or RTGS.
func (cl *PayoutsClient) CreateBankPayout(ctx context.Context, req BankPayoutRequest) (*PayoutResponse, error) {
	var resp PayoutResponse
	if err := cl.c.call(ctx, "create_bank_payout", http.MethodPost, "/third-parties/payouts/create-bank-payout", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueryPayoutStatus fetches the payout recorded for the order reference.
func (cl *PayoutsClient) QueryPayoutStatus(ctx context.Context, orderReference string) (*PayoutResponse, error) {
	var resp PayoutResponse
	if err := cl.c.call(ctx, "query_payout_status", http.MethodGet, "/third-parties/payouts/"+orderReference, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
