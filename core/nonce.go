package core

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// nonceSize gives 96 bits of entropy.
const nonceSize = 12

// GenerateNonce returns a random, base64 encoded nonce.
func GenerateNonce() (string, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
