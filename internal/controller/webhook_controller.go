package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	domainErrors "github.com/dawilly/clickpesa/internal/domain/errors"
	"github.com/dawilly/clickpesa/internal/domain/webhook"
	"github.com/dawilly/clickpesa/internal/service"
)

// SignatureHeader is the header the gateway signs callbacks with.
const SignatureHeader = "X-Clickpesa-Signature"

// WebhookController receives gateway callbacks. Its response contract is
// fixed by the gateway's retry behavior: 2xx stops redelivery, anything
// else triggers it.
type WebhookController struct {
	reconciler  *service.Reconciler
	maxBodySize int64
	logger      zerolog.Logger
}

func NewWebhookController(reconciler *service.Reconciler, maxBodySize int64, logger zerolog.Logger) *WebhookController {
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20
	}
	return &WebhookController{reconciler: reconciler, maxBodySize: maxBodySize, logger: logger}
}

// Callback handles POST /clickpesa/callback.
func (h *WebhookController) Callback(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	headers := webhook.Headers{
		Signature: r.Header.Get(SignatureHeader),
		UserAgent: r.UserAgent(),
		SourceIP:  r.RemoteAddr,
	}

	outcome, err := h.reconciler.Process(r.Context(), rawBody, headers)
	if err != nil {
		h.writeProcessError(w, r, err)
		return
	}

	if outcome == service.OutcomeDuplicate {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *WebhookController) writeProcessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domainErrors.ErrOrderReferenceRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Order reference required"})
	case errors.Is(err, domainErrors.ErrInvalidPayload):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Order reference required"})
	case errors.Is(err, domainErrors.ErrSignatureRequired):
		h.logger.Warn().Str("ip", r.RemoteAddr).Str("path", r.URL.Path).
			Msg("callback missing signature")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Signature required"})
	case errors.Is(err, domainErrors.ErrInvalidSignature):
		h.logger.Warn().Str("ip", r.RemoteAddr).Str("path", r.URL.Path).
			Str("user_agent", r.UserAgent()).
			Msg("invalid callback signature")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Processing failed"})
	}
}
