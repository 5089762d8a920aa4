// Package token generates opaque, URL-safe identifiers.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// DefaultBytes is the amount of random data backing a token when the
// caller does not ask for a specific size. 16 bytes is enough entropy
// to make identifiers unguessable.
const DefaultBytes = 16

// New returns a base64url-encoded token backed by n bytes of
// cryptographically random data. Values of n below 1 fall back to
// DefaultBytes.
func New(n int) (string, error) {
	if n < 1 {
		n = DefaultBytes
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random data: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
