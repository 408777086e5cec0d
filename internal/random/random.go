// Package random generates URL-safe secrets for token values, continuation
// tokens, and interaction references.
package random

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// String returns a URL-safe string derived from byteLen random bytes.
func String(byteLen int) (string, error) {
	buf := make([]byte, byteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
