package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

const tokenBytes = 32 // 256 bits

// NewAuthToken generates an opaque bearer token. Tokens are random, never
// derived from account data, and rotate by simply generating a new one.
func NewAuthToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
