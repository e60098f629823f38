package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifyWebhookSignature checks a hex-encoded HMAC-SHA256 of payload. The
// header may carry several space separated signatures, optionally prefixed
// with a version tag ("v1,<sig>"); any match is accepted.
func VerifyWebhookSignature(payload []byte, header string, secret string) error {
	if secret == "" {
		return nil
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Fields(header) {
		if _, sig, ok := strings.Cut(candidate, ","); ok {
			candidate = sig
		}
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignWebhookPayload returns the hex signature VerifyWebhookSignature expects.
func SignWebhookPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
