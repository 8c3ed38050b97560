package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dawilly/clickpesa/internal/infrastructure/observability"
)

// Collections is the payments side of the gateway: USSD push and card
// collections plus status queries.
type Collections interface {
	PreviewUSSDPush(ctx context.Context, req PushRequest) (*PreviewResponse, error)
	InitiateUSSDPush(ctx context.Context, req PushRequest) (*PaymentResponse, error)
	QueryPaymentStatus(ctx context.Context, orderReference string) (*PaymentStatusResponse, error)
	PreviewCardPayment(ctx context.Context, req CardPaymentRequest) (*PreviewResponse, error)
	InitiateCardPayment(ctx context.Context, req CardPaymentRequest) (*CardLinkResponse, error)
}

// CollectionsClient implements Collections against the ClickPesa API.
type CollectionsClient struct {
	c *client
}

// NewCollectionsClient creates a collections client. The token source is
// shared with other clients for the same credentials.
func NewCollectionsClient(env Environment, tokens TokenSource, timeout time.Duration, metrics *observability.Metrics, logger zerolog.Logger) *CollectionsClient {
	return &CollectionsClient{
		c: newClient(env, tokens, timeout, metrics, logger),
	}
}

// PreviewUSSDPush validates push details and reports available channels
// before the actual payment is initiated.
func (cl *CollectionsClient) PreviewUSSDPush(ctx context.Context, req PushRequest) (*PreviewResponse, error) {
	var resp PreviewResponse
	if err := cl.c.call(ctx, "preview_ussd_push", http.MethodPost, "/third-parties/payments/preview-ussd-push-request", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InitiateUSSDPush sends the USSD prompt to the customer's phone.
func (cl *CollectionsClient) InitiateUSSDPush(ctx context.Context, req PushRequest) (*PaymentResponse, error) {
	var resp PaymentResponse
	if err := cl.c.call(ctx, "initiate_ussd_push", http.MethodPost, "/third-parties/payments/initiate-ussd-push-request", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueryPaymentStatus fetches every gateway transaction recorded for the
// order reference.
func (cl *CollectionsClient) QueryPaymentStatus(ctx context.Context, orderReference string) (*PaymentStatusResponse, error) {
	var resp PaymentStatusResponse
	if err := cl.c.call(ctx, "query_payment_status", http.MethodGet, "/third-parties/payments/"+orderReference, nil, &resp); err != nil {
		return nil, err
	}
	// A successful query returns a bare JSON array.
	if resp.Success && len(resp.Raw) > 0 {
		if err := json.Unmarshal(resp.Raw, &resp.Payments); err != nil {
			resp.Payments = nil
		}
	}
	return &resp, nil
}

// PreviewCardPayment validates card payment details and availability.
func (cl *CollectionsClient) PreviewCardPayment(ctx context.Context, req CardPaymentRequest) (*PreviewResponse, error) {
	var resp PreviewResponse
	if err := cl.c.call(ctx, "preview_card_payment", http.MethodPost, "/third-parties/payments/preview-card-payment", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// InitiateCardPayment creates a hosted payment link for the customer.
func (cl *CollectionsClient) InitiateCardPayment(ctx context.Context, req CardPaymentRequest) (*CardLinkResponse, error) {
	var resp CardLinkResponse
	if err := cl.c.call(ctx, "initiate_card_payment", http.MethodPost, "/third-parties/payments/initiate-card-payment", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
