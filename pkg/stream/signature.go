package stream

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyWebhook reports whether signature is a valid hex HMAC-SHA256 of the
// raw request body under the API secret. Verification operates on the exact
// bytes as delivered, before any JSON parsing, and fails closed on an empty
// signature.
func (c *Client) VerifyWebhook(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the hex HMAC-SHA256 signature of body under the API secret.
// Exposed for tests and local webhook replay tooling.
func (c *Client) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
