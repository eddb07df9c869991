package clients

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the lowercase hex HMAC-SHA256 of queryString keyed by secret.
func Sign(queryString, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(queryString))
	return hex.EncodeToString(mac.Sum(nil))
}
