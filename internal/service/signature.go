package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	domainErrors "github.com/dawilly/clickpesa/internal/domain/errors"
)

// SignatureVerifier checks the HMAC-SHA256 signature the gateway attaches
// to callback deliveries. The signature covers the exact raw body bytes;
// verifying a re-serialized body would break on whitespace or key order.
type SignatureVerifier struct {
	secret   []byte
	enforced bool
}

// NewSignatureVerifier creates a verifier using the merchant API key as
// the shared secret. When enforced is false every delivery is accepted.
func NewSignatureVerifier(secret string, enforced bool) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret), enforced: enforced}
}

// Enforced reports whether verification is active.
func (v *SignatureVerifier) Enforced() bool {
	return v.enforced
}

// Verify checks the signature header against the raw body. It returns
// ErrSignatureRequired when enforcement is on and the header is absent,
// and ErrInvalidSignature on a mismatch.
func (v *SignatureVerifier) Verify(rawBody []byte, signatureHeader string) error {
	if !v.enforced {
		return nil
	}
	if signatureHeader == "" {
		return domainErrors.ErrSignatureRequired
	}
	if !v.Matches(rawBody, signatureHeader) {
		return domainErrors.ErrInvalidSignature
	}
	return nil
}

// Matches reports whether the header equals the expected signature for
// the raw body, using a constant-time comparison.
func (v *SignatureVerifier) Matches(rawBody []byte, signatureHeader string) bool {
	if len(v.secret) == 0 || signatureHeader == "" {
		return false
	}
	expected := v.Sign(rawBody)
	return hmac.Equal([]byte(expected), []byte(signatureHeader))
}

// Sign computes the hex-encoded HMAC-SHA256 signature of the body.
func (v *SignatureVerifier) Sign(rawBody []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
