package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/dawilly/clickpesa/internal/domain/errors"
)

func hmacHex(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSignatureVerifier_Verify(t *testing.T) {
	secret := "test-api-key"
	body := []byte(`{"orderReference":"ORDER123","status":"SUCCESS"}`)
	valid := hmacHex([]byte(secret), body)

	v := NewSignatureVerifier(secret, true)

	assert.NoError(t, v.Verify(body, valid))
	assert.ErrorIs(t, v.Verify(body, ""), domainErrors.ErrSignatureRequired)
	assert.ErrorIs(t, v.Verify(body, "deadbeef"), domainErrors.ErrInvalidSignature)
}

func TestSignatureVerifier_BitFlip(t *testing.T) {
	secret := "test-api-key"
	body := []byte(`{"orderReference":"ORDER123","status":"SUCCESS"}`)
	valid := hmacHex([]byte(secret), body)
	v := NewSignatureVerifier(secret, true)

	// Flip one bit in the body.
	mutated := make([]byte, len(body))
	copy(mutated, body)
	mutated[10] ^= 0x01
	assert.ErrorIs(t, v.Verify(mutated, valid), domainErrors.ErrInvalidSignature)

	// Flip one character in the signature.
	badSig := []byte(valid)
	if badSig[0] == 'a' {
		badSig[0] = 'b'
	} else {
		badSig[0] = 'a'
	}
	assert.ErrorIs(t, v.Verify(body, string(badSig)), domainErrors.ErrInvalidSignature)
}

func TestSignatureVerifier_NotEnforced(t *testing.T) {
	v := NewSignatureVerifier("test-api-key", false)
	body := []byte(`{"orderReference":"ORDER123"}`)

	assert.NoError(t, v.Verify(body, ""))
	assert.NoError(t, v.Verify(body, "garbage"))
	assert.False(t, v.Enforced())
}

func TestSignatureVerifier_RawBytes(t *testing.T) {
	// Signatures cover exact bytes; whitespace changes must break them.
	secret := "key"
	v := NewSignatureVerifier(secret, true)

	compact := []byte(`{"a":1}`)
	spaced := []byte(`{"a": 1}`)
	sig := v.Sign(compact)

	require.NoError(t, v.Verify(compact, sig))
	assert.Error(t, v.Verify(spaced, sig))
}

func TestSignatureVerifier_Matches(t *testing.T) {
	v := NewSignatureVerifier("key", false)
	body := []byte(`{}`)

	assert.True(t, v.Matches(body, v.Sign(body)))
	assert.False(t, v.Matches(body, ""))
	assert.False(t, v.Matches(body, "nope"))
}
