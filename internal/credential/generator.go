// Package credential produces raw API key secrets and their salted one-way
// hashes.
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// SecretBytes is the number of random bytes behind every raw secret (256 bits).
const SecretBytes = 32

// ErrEntropySourceUnavailable is returned when the secure random source
// cannot be read. It is not retryable within the same process.
var ErrEntropySourceUnavailable = errors.New("entropy source unavailable")

// Generator produces URL-safe opaque secrets from a secure random source.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator reading from crypto/rand.
func NewGenerator() *Generator {
	return &Generator{rand: rand.Reader}
}

// NewGeneratorWithReader returns a Generator reading from r. Intended for
// tests; r must be a cryptographically secure source in production.
func NewGeneratorWithReader(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// Generate returns a fresh raw secret encoded as unpadded URL-safe base64.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, SecretBytes)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropySourceUnavailable, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
