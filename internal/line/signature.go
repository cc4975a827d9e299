package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the raw request body.
const SignatureHeader = "x-line-signature"

var (
	// ErrMissingSecret means no channel secret is configured; callers fail closed.
	ErrMissingSecret = errors.New("line: channel secret not configured")
	// ErrInvalidSignature means the supplied signature does not match the body.
	ErrInvalidSignature = errors.New("line: invalid webhook signature")
)

// ComputeSignature returns base64(HMAC-SHA256(secret, body)).
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the raw, unparsed body bytes.
func VerifySignature(secret string, body []byte, signature string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if signature == "" {
		return ErrInvalidSignature
	}
	expected := ComputeSignature(secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
