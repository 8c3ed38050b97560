package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type stubTokens struct {
	token       string
	invalidates int32
}

func (s *stubTokens) Token(context.Context) (string, error) { return s.token, nil }

func (s *stubTokens) Invalidate(context.Context) { atomic.AddInt32(&s.invalidates, 1) }

func newTestCollections(t *testing.T, handler http.HandlerFunc) (*CollectionsClient, *stubTokens) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := &stubTokens{token: "Bearer test-token"}
	cl := NewCollectionsClient(EnvironmentSandbox, tokens, 5*time.Second, nil, zerolog.Nop())
	cl.c.baseURL = srv.URL
	return cl, tokens
}

func newTestPayouts(t *testing.T, handler http.HandlerFunc) *PayoutsClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cl := NewPayoutsClient(EnvironmentSandbox, &stubTokens{token: "Bearer test-token"}, 5*time.Second, nil, zerolog.Nop())
	cl.c.baseURL = srv.URL
	return cl
}

func TestCollections_PreviewUSSDPush(t *testing.T) {
	cl, _ := newTestCollections(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/third-parties/payments/preview-ussd-push-request" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q; want %q", got, "Bearer test-token")
		}

		var req PushRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Amount != "10000" || req.OrderReference != "TEST123" {
			t.Errorf("unexpected request %+v", req)
		}

		w.Write([]byte(`{
			"activeMethods": [
				{"name": "MPESA", "status": "AVAILABLE", "fee": 0},
				{"name": "AIRTEL-MONEY", "status": "UNAVAILABLE", "fee": 0, "message": "channel down"}
			],
			"sender": {"accountName": "JOHN DOE", "accountNumber": "255700000001", "accountProvider": "MPESA"}
		}`))
	})

	resp, err := cl.PreviewUSSDPush(context.Background(), PushRequest{
		Amount:         "10000",
		Currency:       "TZS",
		OrderReference: "TEST123",
	})
	if err != nil {
		t.Fatalf("PreviewUSSDPush() error: %v", err)
	}
	if !resp.Success {
		t.Errorf("Success = false; want true")
	}
	if len(resp.ActiveMethods) != 2 {
		t.Fatalf("ActiveMethods len = %d; want 2", len(resp.ActiveMethods))
	}
	if resp.ActiveMethods[0].Name != "MPESA" || resp.ActiveMethods[0].Status != "AVAILABLE" {
		t.Errorf("unexpected first method %+v", resp.ActiveMethods[0])
	}
	if resp.Sender == nil || resp.Sender.AccountProvider != "MPESA" {
		t.Errorf("unexpected sender %+v", resp.Sender)
	}
}

func TestCollections_GatewayRejectionIsResult(t *testing.T) {
	cl, _ := newTestCollections(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"order reference already exists"}`))
	})

	resp, err := cl.InitiateUSSDPush(context.Background(), PushRequest{
		Amount: "10000", Currency: "TZS", OrderReference: "DUP123",
	})
	if err != nil {
		t.Fatalf("gateway rejection must not be a Go error, got: %v", err)
	}
	if resp.Success {
		t.Error("Success = true; want false")
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d; want 409", resp.StatusCode)
	}
	if resp.Message != "order reference already exists" {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestCollections_TransportFailureIsResult(t *testing.T) {
	cl, _ := newTestCollections(t, func(w http.ResponseWriter, r *http.Request) {})
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	cl.c.baseURL = dead.URL

	resp, err := cl.PreviewUSSDPush(context.Background(), PushRequest{
		Amount: "10000", Currency: "TZS", OrderReference: "TEST123",
	})
	if err != nil {
		t.Fatalf("transport failure must not be a Go error, got: %v", err)
	}
	if resp.Success {
		t.Error("Success = true; want false")
	}
	if resp.StatusCode != 0 {
		t.Errorf("StatusCode = %d; want 0", resp.StatusCode)
	}
	if resp.Message == "" {
		t.Error("Message is empty; want the transport failure text")
	}
}

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) {
	return "", errors.New("token store unavailable")
}

func (failingTokens) Invalidate(context.Context) {}

func TestCollections_TokenFailureIsResult(t *testing.T) {
	cl := NewCollectionsClient(EnvironmentSandbox, failingTokens{}, 5*time.Second, nil, zerolog.Nop())

	resp, err := cl.InitiateUSSDPush(context.Background(), PushRequest{
		Amount: "10000", Currency: "TZS", OrderReference: "TEST123",
	})
	if err != nil {
		t.Fatalf("token failure must not be a Go error, got: %v", err)
	}
	if resp.Success {
		t.Error("Success = true; want false")
	}
	if !strings.Contains(resp.Message, "token store unavailable") {
		t.Errorf("Message = %q; want it to carry the token failure", resp.Message)
	}
}

func TestCollections_UnauthorizedRefreshesTokenOnce(t *testing.T) {
	var hits int32
	cl, tokens := newTestCollections(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"token expired"}`))
			return
		}
		w.Write([]byte(`{"id":"pay_1","status":"PROCESSING","orderReference":"TEST123"}`))
	})

	resp, err := cl.InitiateUSSDPush(context.Background(), PushRequest{
		Amount: "10000", Currency: "TZS", OrderReference: "TEST123",
	})
	if err != nil {
		t.Fatalf("InitiateUSSDPush() error: %v", err)
	}
	if !resp.Success {
		t.Errorf("Success = false after retry; status %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("server hits = %d; want 2", got)
	}
	if got := atomic.LoadInt32(&tokens.invalidates); got != 1 {
		t.Errorf("token invalidations = %d; want 1", got)
	}
}

func TestCollections_ServerErrorBodyReturned(t *testing.T) {
	cl, _ := newTestCollections(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"internal error"}`))
	})

	resp, err := cl.QueryPaymentStatus(context.Background(), "TEST123")
	if err != nil {
		t.Fatalf("5xx must surface as a Result, got error: %v", err)
	}
	if resp.Success {
		t.Error("Success = true; want false")
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d; want 500", resp.StatusCode)
	}
	if resp.Message != "internal error" {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestCollections_QueryPaymentStatus(t *testing.T) {
	cl, _ := newTestCollections(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/third-parties/payments/TEST123" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		// The status query returns a bare JSON array.
		w.Write([]byte(`[
			{"id":"pay_1","status":"SUCCESS","channel":"MPESA","orderReference":"TEST123","collectedAmount":"10000","collectedCurrency":"TZS"},
			{"id":"pay_2","status":"FAILED","channel":"MPESA","orderReference":"TEST123"}
		]`))
	})

	resp, err := cl.QueryPaymentStatus(context.Background(), "TEST123")
	if err != nil {
		t.Fatalf("QueryPaymentStatus() error: %v", err)
	}
	if !resp.Success {
		t.Fatal("Success = false; want true")
	}
	if len(resp.Payments) != 2 {
		t.Fatalf("Payments len = %d; want 2", len(resp.Payments))
	}
	if resp.Payments[0].Status != "SUCCESS" || resp.Payments[0].CollectedAmount.String() != "10000" {
		t.Errorf("unexpected first payment %+v", resp.Payments[0])
	}
}

func TestCollections_InitiateCardPayment(t *testing.T) {
	cl, _ := newTestCollections(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"cardPaymentLink":"https://checkout.example/abc","clientId":"client_1"}`))
	})

	resp, err := cl.InitiateCardPayment(context.Background(), CardPaymentRequest{
		Amount: "25.00", Currency: "USD", OrderReference: "CARD123",
	})
	if err != nil {
		t.Fatalf("InitiateCardPayment() error: %v", err)
	}
	if !resp.Success || resp.CardPaymentLink != "https://checkout.example/abc" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestPayouts_CreateMobileMoneyPayout(t *testing.T) {
	cl := newTestPayouts(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/third-parties/payouts/create-mobile-money-payout" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{
			"id": "payout_1",
			"orderReference": "PAYOUT123",
			"amount": "50000",
			"currency": "TZS",
			"fee": "500",
			"status": "AUTHORIZED",
			"channel": "MOBILE MONEY",
			"channelProvider": "VODACOM",
			"beneficiary": {"accountNumber": "255700000002", "accountName": "JANE DOE"}
		}`))
	})

	resp, err := cl.CreateMobileMoneyPayout(context.Background(), MobilePayoutRequest{
		Amount: "50000", PhoneNumber: "255700000002", Currency: "TZS", OrderReference: "PAYOUT123",
	})
	if err != nil {
		t.Fatalf("CreateMobileMoneyPayout() error: %v", err)
	}
	if !resp.Success {
		t.Fatal("Success = false; want true")
	}
	if resp.Status != "AUTHORIZED" || resp.ChannelProvider != "VODACOM" {
		t.Errorf("unexpected payout %+v", resp)
	}
	if resp.Fee.String() != "500" {
		t.Errorf("Fee = %s; want 500", resp.Fee)
	}
	if resp.Beneficiary == nil || resp.Beneficiary.AccountName != "JANE DOE" {
		t.Errorf("unexpected beneficiary %+v", resp.Beneficiary)
	}
}

func TestPayouts_PreviewBankPayout(t *testing.T) {
	cl := newTestPayouts(t, func(w http.ResponseWriter, r *http.Request) {
		var req BankPayoutRequest
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.TransferType != "RTGS" || req.BIC != "CORUTZTZ" {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{
			"amount": "1000000",
			"balance": "5000000",
			"fee": "2500",
			"exchanged": false,
			"payoutFeeBearer": "merchant"
		}`))
	})

	resp, err := cl.PreviewBankPayout(context.Background(), BankPayoutRequest{
		Amount:         "1000000",
		AccountNumber:  "0150000000001",
		AccountName:    "ACME LTD",
		Currency:       "TZS",
		OrderReference: "BANK123",
		BIC:            "CORUTZTZ",
		TransferType:   "RTGS",
	})
	if err != nil {
		t.Fatalf("PreviewBankPayout() error: %v", err)
	}
	if resp.Fee.String() != "2500" || resp.PayoutFeeBearer != "merchant" {
		t.Errorf("unexpected preview %+v", resp)
	}
}

func TestCachedCollections_PreviewServedFromCache(t *testing.T) {
	var hits int32
	cl, _ := newTestCollections(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"activeMethods":[{"name":"MPESA","status":"AVAILABLE","fee":0}]}`))
	})
	cached := NewCachedCollections(cl, NewMemoryCache(), time.Minute)

	req := PushRequest{Amount: "10000", Currency: "TZS", OrderReference: "TEST123"}
	for i := 0; i < 3; i++ {
		resp, err := cached.PreviewUSSDPush(context.Background(), req)
		if err != nil {
			t.Fatalf("PreviewUSSDPush() error: %v", err)
		}
		if !resp.Success || len(resp.ActiveMethods) != 1 {
			t.Fatalf("unexpected response on call %d: %+v", i, resp)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("server hits = %d; want 1", got)
	}

	// A different payload must bypass the cached entry.
	req.Amount = "20000"
	if _, err := cached.PreviewUSSDPush(context.Background(), req); err != nil {
		t.Fatalf("PreviewUSSDPush() error: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("server hits = %d; want 2", got)
	}
}

func TestCachedCollections_InitiateDropsPreview(t *testing.T) {
	var previews int32
	cl, _ := newTestCollections(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/preview-ussd-push-request") {
			atomic.AddInt32(&previews, 1)
			w.Write([]byte(`{"activeMethods":[{"name":"MPESA","status":"AVAILABLE","fee":0}]}`))
			return
		}
		w.Write([]byte(`{"id":"pay_1","status":"PROCESSING","orderReference":"TEST123"}`))
	})
	cached := NewCachedCollections(cl, NewMemoryCache(), time.Minute)

	req := PushRequest{Amount: "10000", Currency: "TZS", OrderReference: "TEST123"}
	ctx := context.Background()
	if _, err := cached.PreviewUSSDPush(ctx, req); err != nil {
		t.Fatalf("PreviewUSSDPush() error: %v", err)
	}
	if _, err := cached.PreviewUSSDPush(ctx, req); err != nil {
		t.Fatalf("PreviewUSSDPush() error: %v", err)
	}
	if got := atomic.LoadInt32(&previews); got != 1 {
		t.Fatalf("preview hits before initiate = %d; want 1", got)
	}

	resp, err := cached.InitiateUSSDPush(ctx, req)
	if err != nil || !resp.Success {
		t.Fatalf("InitiateUSSDPush() = %+v, %v", resp, err)
	}

	// The initiated payment invalidated its preview entry.
	if _, err := cached.PreviewUSSDPush(ctx, req); err != nil {
		t.Fatalf("PreviewUSSDPush() error: %v", err)
	}
	if got := atomic.LoadInt32(&previews); got != 2 {
		t.Errorf("preview hits after initiate = %d; want 2", got)
	}
}
