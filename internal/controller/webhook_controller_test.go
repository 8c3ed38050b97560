package controller

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dawilly/clickpesa/internal/domain/transaction"
	"github.com/dawilly/clickpesa/internal/service"
	"github.com/dawilly/clickpesa/internal/testutil"
)

const callbackSecret = "test-api-key"

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(callbackSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newCallbackHandler(t *testing.T, transactions *testutil.MockTransactionRepository, enforce bool) http.HandlerFunc {
	t.Helper()
	reconciler := service.NewReconciler(
		service.NewSignatureVerifier(callbackSecret, enforce),
		testutil.NewMockWebhookRepository(),
		transactions,
		service.NewKeyedMutex(),
		nil,
		&testutil.MockNotifier{},
		service.ReconcilerConfig{},
		nil,
		zerolog.Nop(),
	)
	return NewWebhookController(reconciler, 0, zerolog.Nop()).Callback
}

func postCallback(handler http.HandlerFunc, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/clickpesa/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestCallback_Success(t *testing.T) {
	transactions := testutil.NewMockTransactionRepository()
	handler := newCallbackHandler(t, transactions, true)

	body := testutil.CallbackPayload("TEST123", "SUCCESS")
	rec := postCallback(handler, body, signBody(body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "success"}, decodeBody(t, rec))

	got, err := transactions.GetByOrderReference(context.Background(), "TEST123")
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusSuccessful, got.Status)
}

func TestCallback_Duplicate(t *testing.T) {
	handler := newCallbackHandler(t, testutil.NewMockTransactionRepository(), false)
	body := testutil.CallbackPayload("DUP123", "SUCCESS")

	rec := postCallback(handler, body, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postCallback(handler, body, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "duplicate"}, decodeBody(t, rec))
}

func TestCallback_MissingOrderReference(t *testing.T) {
	handler := newCallbackHandler(t, testutil.NewMockTransactionRepository(), false)

	tests := []struct {
		name string
		body string
	}{
		{"no reference", `{"status":"SUCCESS"}`},
		{"malformed json", `{"status":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postCallback(handler, []byte(tt.body), "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]string{"error": "Order reference required"}, decodeBody(t, rec))
		})
	}
}

func TestCallback_SignatureEnforcement(t *testing.T) {
	handler := newCallbackHandler(t, testutil.NewMockTransactionRepository(), true)
	body := testutil.CallbackPayload("TEST123", "SUCCESS")

	rec := postCallback(handler, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]string{"error": "Signature required"}, decodeBody(t, rec))

	rec = postCallback(handler, body, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, map[string]string{"error": "Invalid signature"}, decodeBody(t, rec))

	// Signature computed over a different body must not pass.
	other := testutil.CallbackPayload("TEST123", "FAILED")
	rec = postCallback(handler, body, signBody(other))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallback_ProcessingFailure(t *testing.T) {
	transactions := testutil.NewMockTransactionRepository()
	transactions.GetByOrderReferenceFunc = func(ctx context.Context, ref string) (*transaction.Transaction, error) {
		return nil, errors.New("connection refused")
	}
	handler := newCallbackHandler(t, transactions, false)

	rec := postCallback(handler, testutil.CallbackPayload("ERR123", "SUCCESS"), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]string{"error": "Processing failed"}, decodeBody(t, rec))
}
