package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	domainErrors "github.com/dawilly/clickpesa/internal/domain/errors"
	"github.com/dawilly/clickpesa/internal/domain/transaction"
	"github.com/dawilly/clickpesa/internal/gateway"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrTransactionNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrWebhookNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrDuplicateOrderReference, http.StatusConflict, "duplicate_order_reference"},
	{domainErrors.ErrInvalidOrderReference, http.StatusBadRequest, "invalid_order_reference"},
	{domainErrors.ErrTokenUnavailable, http.StatusBadGateway, "gateway_auth_failed"},
	{domainErrors.ErrInvalidEnvironment, http.StatusInternalServerError, "misconfigured"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

// writeGatewayJSON mirrors the gateway's own status code to the caller so
// gateway-side rejections pass through unchanged. A failure result with no
// status code means the gateway was never reached.
func writeGatewayJSON(w http.ResponseWriter, res gateway.Result, v any) {
	status := res.StatusCode
	if status == 0 {
		status = http.StatusOK
		if !res.Success {
			status = http.StatusBadGateway
		}
	}
	writeJSON(w, status, v)
}

// listFilterFromQuery builds a list filter from common query parameters.
func listFilterFromQuery(r *http.Request, txType transaction.Type) transaction.ListFilter {
	q := r.URL.Query()
	f := transaction.ListFilter{
		Type:      &txType,
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	if s := q.Get("status"); s != "" {
		status := transaction.Status(s)
		f.Status = &status
	}
	if c := q.Get("channel"); c != "" {
		f.Channel = &c
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		f.Offset = offset
	}
	return f
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
