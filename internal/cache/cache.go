// Package cache stores raw source responses so repeated runs against the
// same portal can be answered locally.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores response bodies keyed by request identity
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
}

const keyPrefix = "oldp:v1:"

// Key derives a cache key from the request method, the full URL including
// its query string, and the encoded request body (empty for GET).
func Key(method, rawURL string, body []byte) string {
	h := sha256.New()
	for _, part := range [][]byte{[]byte(method), []byte(rawURL), body} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
