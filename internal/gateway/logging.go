package gateway

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/dawilly/clickpesa/internal/infrastructure/observability"
)

// redactedFields converts a request or response to a loggable map with
// sensitive values masked.
func redactedFields(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return observability.Redact(m)
}

// LoggingCollections wraps a Collections client with request and response
// logging. Failed gateway calls log at warn, successes at info.
type LoggingCollections struct {
	next   Collections
	logger zerolog.Logger
}

func NewLoggingCollections(next Collections, logger zerolog.Logger) *LoggingCollections {
	return &LoggingCollections{next: next, logger: logger}
}

func (l *LoggingCollections) logCall(operation string, req any, res *Result, err error) {
	if err != nil {
		l.logger.Error().Err(err).Str("operation", operation).
			Interface("request", redactedFields(req)).
			Msg("gateway call failed")
		return
	}

	evt := l.logger.Info()
	if !res.Success {
		evt = l.logger.Warn()
	}
	evt.Str("operation", operation).
		Int("status", res.StatusCode).
		Bool("success", res.Success).
		Interface("request", redactedFields(req)).
		Msg("gateway call")
}

func (l *LoggingCollections) PreviewUSSDPush(ctx context.Context, req PushRequest) (*PreviewResponse, error) {
	resp, err := l.next.PreviewUSSDPush(ctx, req)
	l.logCall("preview_ussd_push", req, resultOf(resp), err)
	return resp, err
}

func (l *LoggingCollections) InitiateUSSDPush(ctx context.Context, req PushRequest) (*PaymentResponse, error) {
	resp, err := l.next.InitiateUSSDPush(ctx, req)
	l.logCall("initiate_ussd_push", req, resultOfPayment(resp), err)
	return resp, err
}

func (l *LoggingCollections) QueryPaymentStatus(ctx context.Context, orderReference string) (*PaymentStatusResponse, error) {
	resp, err := l.next.QueryPaymentStatus(ctx, orderReference)
	var res *Result
	if resp != nil {
		res = &resp.Result
	}
	l.logCall("query_payment_status", map[string]any{"orderReference": orderReference}, res, err)
	return resp, err
}

func (l *LoggingCollections) PreviewCardPayment(ctx context.Context, req CardPaymentRequest) (*PreviewResponse, error) {
	resp, err := l.next.PreviewCardPayment(ctx, req)
	l.logCall("preview_card_payment", req, resultOf(resp), err)
	return resp, err
}

func (l *LoggingCollections) InitiateCardPayment(ctx context.Context, req CardPaymentRequest) (*CardLinkResponse, error) {
	resp, err := l.next.InitiateCardPayment(ctx, req)
	var res *Result
	if resp != nil {
		res = &resp.Result
	}
	l.logCall("initiate_card_payment", req, res, err)
	return resp, err
}

func resultOf(resp *PreviewResponse) *Result {
	if resp == nil {
		return nil
	}
	return &resp.Result
}

func resultOfPayment(resp *PaymentResponse) *Result {
	if resp == nil {
		return nil
	}
	return &resp.Result
}

// LoggingPayouts wraps a Payouts client with request and response logging.
type LoggingPayouts struct {
	next   Payouts
	logger zerolog.Logger
}

func NewLoggingPayouts(next Payouts, logger zerolog.Logger) *LoggingPayouts {
	return &LoggingPayouts{next: next, logger: logger}
}

func (l *LoggingPayouts) logCall(operation string, req any, res *Result, err error) {
	if err != nil {
		l.logger.Error().Err(err).Str("operation", operation).
			Interface("request", redactedFields(req)).
			Msg("gateway call failed")
		return
	}

	evt := l.logger.Info()
	if !res.Success {
		evt = l.logger.Warn()
	}
	evt.Str("operation", operation).
		Int("status", res.StatusCode).
		Bool("success", res.Success).
		Interface("request", redactedFields(req)).
		Msg("gateway call")
}

func (l *LoggingPayouts) PreviewMobileMoneyPayout(ctx context.Context, req MobilePayoutRequest) (*PayoutPreviewResponse, error) {
	resp, err := l.next.PreviewMobileMoneyPayout(ctx, req)
	l.logCall("preview_mobile_payout", req, resultOfPayoutPreview(resp), err)
	return resp, err
}

func (l *LoggingPayouts) CreateMobileMoneyPayout(ctx context.Context, req MobilePayoutRequest) (*PayoutResponse, error) {
	resp, err := l.next.CreateMobileMoneyPayout(ctx, req)
	l.logCall("create_mobile_payout", req, resultOfPayout(resp), err)
	return resp, err
}

func (l *LoggingPayouts) PreviewBankPayout(ctx context.Context, req BankPayoutRequest) (*PayoutPreviewResponse, error) {
	resp, err := l.next.PreviewBankPayout(ctx, req)
	l.logCall("preview_bank_payout", req, resultOfPayoutPreview(resp), err)
	return resp, err
}

func (l *LoggingPayouts) CreateBankPayout(ctx context.Context, req BankPayoutRequest) (*PayoutResponse, error) {
	resp, err := l.next.CreateBankPayout(ctx, req)
	l.logCall("create_bank_payout", req, resultOfPayout(resp), err)
	return resp, err
}

func (l *LoggingPayouts) QueryPayoutStatus(ctx context.Context, orderReference string) (*PayoutResponse, error) {
	resp, err := l.next.QueryPayoutStatus(ctx, orderReference)
	l.logCall("query_payout_status", map[string]any{"orderReference": orderReference}, resultOfPayout(resp), err)
	return resp, err
}

func resultOfPayoutPreview(resp *PayoutPreviewResponse) *Result {
	if resp == nil {
		return nil
	}
	return &resp.Result
}

func resultOfPayout(resp *PayoutResponse) *Result {
	if resp == nil {
		return nil
	}
	return &resp.Result
}
