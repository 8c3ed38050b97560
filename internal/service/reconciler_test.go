package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/dawilly/clickpesa/internal/domain/errors"
	"github.com/dawilly/clickpesa/internal/domain/transaction"
	"github.com/dawilly/clickpesa/internal/domain/webhook"
	"github.com/dawilly/clickpesa/internal/testutil"
)

func newTestReconciler(webhooks *testutil.MockWebhookRepository, transactions *testutil.MockTransactionRepository, notifier *testutil.MockNotifier, enforced bool) *Reconciler {
	return NewReconciler(
		NewSignatureVerifier("test-api-key", enforced),
		webhooks,
		transactions,
		NewKeyedMutex(),
		nil,
		notifier,
		ReconcilerConfig{DefaultCurrency: "TZS"},
		nil,
		zerolog.Nop(),
	)
}

func TestReconciler_MissingOrderReference(t *testing.T) {
	webhooks := testutil.NewMockWebhookRepository()
	transactions := testutil.NewMockTransactionRepository()
	r := newTestReconciler(webhooks, transactions, &testutil.MockNotifier{}, false)

	tests := []struct {
		name string
		body string
	}{
		{"no reference key", `{"status":"SUCCESS"}`},
		{"empty reference", `{"orderReference":"","status":"SUCCESS"}`},
		{"non-string reference", `{"orderReference":123,"status":"SUCCESS"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Process(context.Background(), []byte(tt.body), webhook.Headers{})
			assert.ErrorIs(t, err, domainErrors.ErrOrderReferenceRequired)
		})
	}

	// Nothing may be persisted when there is no key to store it under.
	assert.Empty(t, webhooks.Deliveries())
}

func TestReconciler_InvalidPayload(t *testing.T) {
	webhooks := testutil.NewMockWebhookRepository()
	r := newTestReconciler(webhooks, testutil.NewMockTransactionRepository(), &testutil.MockNotifier{}, false)

	_, err := r.Process(context.Background(), []byte(`not json`), webhook.Headers{})
	assert.ErrorIs(t, err, domainErrors.ErrInvalidPayload)
	assert.Empty(t, webhooks.Deliveries())
}

func TestReconciler_SignatureRejectedBeforePersistence(t *testing.T) {
	webhooks := testutil.NewMockWebhookRepository()
	r := newTestReconciler(webhooks, testutil.NewMockTransactionRepository(), &testutil.MockNotifier{}, true)
	body := testutil.CallbackPayload("ORDER123", "SUCCESS")

	_, err := r.Process(context.Background(), body, webhook.Headers{})
	assert.ErrorIs(t, err, domainErrors.ErrSignatureRequired)

	_, err = r.Process(context.Background(), body, webhook.Headers{Signature: "bogus"})
	assert.ErrorIs(t, err, domainErrors.ErrInvalidSignature)

	assert.Empty(t, webhooks.Deliveries())
}

func TestReconciler_EndToEnd(t *testing.T) {
	webhooks := testutil.NewMockWebhookRepository()
	transactions := testutil.NewMockTransactionRepository()
	notifier := &testutil.MockNotifier{}
	r := newTestReconciler(webhooks, transactions, notifier, false)

	// Existing pending transaction, then a SUCCESS callback arrives.
	existing := testutil.NewTestTransaction("TEST123", 100000, "TZS")
	require.NoError(t, transactions.Create(context.Background(), existing))

	outcome, err := r.Process(context.Background(), testutil.CallbackPayload("TEST123", "SUCCESS"), webhook.Headers{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)

	got, err := transactions.GetByOrderReference(context.Background(), "TEST123")
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccessful, got.Status)
	require.NotNil(t, got.ProcessedAt)

	deliveries := webhooks.Deliveries()
	require.Len(t, deliveries, 1)
	assert.True(t, deliveries[0].IsProcessed())

	assert.Equal(t, 1, notifier.Count())
}

func TestReconciler_CreatesTransactionWhenAbsent(t *testing.T) {
	webhooks := testutil.NewMockWebhookRepository()
	transactions := testutil.NewMockTransactionRepository()
	r := newTestReconciler(webhooks, transactions, &testutil.MockNotifier{}, false)

	body, _ := json.Marshal(map[string]any{
		"orderReference":    "NEW123",
		"status":            "PROCESSING",
		"channel":           "TIGO-PESA",
		"collectedAmount":   "10000",
		"collectedCurrency": "TZS",
	})

	outcome, err := r.Process(context.Background(), body, webhook.Headers{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)

	got, err := transactions.GetByOrderReference(context.Background(), "NEW123")
	require.NoError(t, err)
	assert.Equal(t, transaction.TypePayment, got.Type)
	assert.Equal(t, transaction.StatusProcessing, got.Status)
	assert.Equal(t, "TIGO-PESA", got.Channel)
	assert.Equal(t, int64(1000000), got.Amount.ValueCents)
	assert.Equal(t, "TZS", got.Amount.Currency)
}

func TestReconciler_SnakeCaseOrderReference(t *testing.T) {
	webhooks := testutil.NewMockWebhookRepository()
	transactions := testutil.NewMockTransactionRepository()
	r := newTestReconciler(webhooks, transactions, &testutil.MockNotifier{}, false)

	body := []byte(`{"order_reference":"SNAKE123","status":"FAILED"}`)
	outcome, err := r.Process(context.Background(), body, webhook.Headers{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)

	got, err := transactions.GetByOrderReference(context.Background(), "SNAKE123")
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusFailed, got.Status)
}

func TestReconciler_VerifiedRecordsSignatureMatch(t *testing.T) {
	webhooks := testutil.NewMockWebhookRepository()
	transactions := testutil.NewMockTransactionRepository()
	r := newTestReconciler(webhooks, transactions, &testutil.MockNotifier{}, false)
	verifier := NewSignatureVerifier("test-api-key", false)

	// Pass-through mode accepts both, but only the signed delivery is
	// recorded as verified.
	unsigned := testutil.CallbackPayload("SIG123", "SUCCESS")
	_, err := r.Process(context.Background(), unsigned, webhook.Headers{})
	require.NoError(t, err)

	signed := testutil.CallbackPayload("SIG456", "SUCCESS")
	_, err = r.Process(context.Background(), signed, webhook.Headers{Signature: verifier.Sign(signed)})
	require.NoError(t, err)

	for _, d := range webhooks.Deliveries() {
		switch d.OrderReference {
		case "SIG123":
			assert.False(t, d.Verified, "unsigned delivery must stay unverified")
		case "SIG456":
			assert.True(t, d.Verified, "signed delivery must be verified")
		}
	}
}

func TestReconciler_DuplicateWithinWindow(t *testing.T) {
	webhooks := testutil.NewMockWebhookRepository()
	transactions := testutil.NewMockTransactionRepository()
	notifier := &testutil.MockNotifier{}
	r := newTestReconciler(webhooks, transactions, notifier, false)

	first := testutil.CallbackPayload("DUP123", "SUCCESS")
	outcome, err := r.Process(context.Background(), first, webhook.Headers{})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, outcome)

	// Redelivery with a different body must not touch the transaction.
	second := testutil.CallbackPayload("DUP123", "FAILED")
	outcome, err = r.Process(context.Background(), second, webhook.Headers{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	got, err := transactions.GetByOrderReference(context.Background(), "DUP123")
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccessful, got.Status, "duplicate must not overwrite status")

	// Both deliveries persisted, only the first processed; the replay
	// carries a marker naming the delivery it duplicated.
	deliveries := webhooks.Deliveries()
	require.Len(t, deliveries, 2)
	processed := 0
	var replay *webhook.Delivery
	for _, d := range deliveries {
		if d.IsProcessed() {
			processed++
		} else {
			replay = d
		}
	}
	assert.Equal(t, 1, processed)
	require.NotNil(t, replay)
	require.NotNil(t, replay.ProcessingError)
	assert.Contains(t, *replay.ProcessingError, "duplicate of ")
	assert.Equal(t, 1, notifier.Count())
}

func TestReconciler_RedeliveryOutsideWindow(t *testing.T) {
	webhooks := testutil.NewMockWebhookRepository()
	transactions := testutil.NewMockTransactionRepository()
	r := newTestReconciler(webhooks, transactions, &testutil.MockNotifier{}, false)

	// Simulate a delivery processed 10 minutes ago.
	old := testutil.NewProcessedDelivery("OLD123", map[string]any{"status": "SUCCESS"})
	old.CreatedAt = time.Now().Add(-10 * time.Minute)
	require.NoError(t, webhooks.Create(context.Background(), old))

	outcome, err := r.Process(context.Background(), testutil.CallbackPayload("OLD123", "SETTLED"), webhook.Headers{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome, "stale prior delivery falls through to reconciliation")

	got, err := transactions.GetByOrderReference(context.Background(), "OLD123")
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccessful, got.Status)
}

func TestReconciler_StorageFailureRecorded(t *testing.T) {
	webhooks := testutil.NewMockWebhookRepository()
	transactions := testutil.NewMockTransactionRepository()
	notifier := &testutil.MockNotifier{}
	r := newTestReconciler(webhooks, transactions, notifier, false)

	boom := errors.New("connection reset")
	transactions.GetByOrderReferenceFunc = func(ctx context.Context, ref string) (*transaction.Transaction, error) {
		return nil, boom
	}

	_, err := r.Process(context.Background(), testutil.CallbackPayload("ERR123", "SUCCESS"), webhook.Headers{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	deliveries := webhooks.Deliveries()
	require.Len(t, deliveries, 1)
	assert.False(t, deliveries[0].IsProcessed())
	require.NotNil(t, deliveries[0].ProcessingError)
	assert.Equal(t, 1, deliveries[0].RetryCount)

	assert.Equal(t, 0, notifier.Count())
	require.Len(t, notifier.Failed, 1)
	assert.Contains(t, notifier.Failed[0], "connection reset")
}

func TestReconciler_NotifierFailureDoesNotFailCallback(t *testing.T) {
	webhooks := testutil.NewMockWebhookRepository()
	transactions := testutil.NewMockTransactionRepository()
	notifier := &testutil.MockNotifier{
		PaymentReceivedFunc: func(ctx context.Context, d *webhook.Delivery) error {
			return errors.New("stream unavailable")
		},
	}
	r := newTestReconciler(webhooks, transactions, notifier, false)

	outcome, err := r.Process(context.Background(), testutil.CallbackPayload("NOTIF123", "SUCCESS"), webhook.Headers{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
}

func TestReconciler_ConcurrentDeliveries(t *testing.T) {
	webhooks := testutil.NewMockWebhookRepository()
	transactions := testutil.NewMockTransactionRepository()
	r := newTestReconciler(webhooks, transactions, &testutil.MockNotifier{}, false)

	const n = 10
	body := testutil.CallbackPayload("RACE123", "SUCCESS")

	outcomes := make([]Outcome, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = r.Process(context.Background(), body, webhook.Headers{})
		}(i)
	}
	wg.Wait()

	successes, duplicates := 0, 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		switch outcomes[i] {
		case OutcomeSuccess:
			successes++
		case OutcomeDuplicate:
			duplicates++
		}
	}

	assert.Equal(t, 1, successes, "exactly one delivery takes the full reconciliation path")
	assert.Equal(t, n-1, duplicates)

	processed := 0
	for _, d := range webhooks.Deliveries() {
		if d.IsProcessed() {
			processed++
		}
	}
	assert.Equal(t, 1, processed)
}

func TestAmountToCents(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected int64
		ok       bool
	}{
		{"float", 100.5, 10050, true},
		{"string", "100.50", 10050, true},
		{"integer string", "10000", 1000000, true},
		{"bad string", "abc", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := amountToCents(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
