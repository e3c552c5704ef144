package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature verifies the Linear webhook signature using HMAC SHA-256
// and constant-time comparison. Linear sends the bare hex digest in the
// Linear-Signature header, with no algorithm prefix.
//
// An empty secret disables verification so unconfigured deployments keep
// working; operators are warned at startup.
func VerifySignature(payload []byte, signature, secret string) bool {
	if secret == "" {
		return true
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
