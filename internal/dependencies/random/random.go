package random

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// Random provides random value generation that can be mocked for testing
type Random interface {
	// Intn returns a random int in [0, n)
	Intn(n int) int

	// Token generates an opaque hex token of the given byte length
	Token(length int) string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Intn returns a cryptographically random int in [0, n)
func (r *CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	result, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// Should never happen with crypto/rand
		return 0
	}
	return int(result.Int64())
}

// Token generates a random hex token of the given byte length
func (r *CryptoRandom) Token(length int) string {
	if length <= 0 {
		return ""
	}
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
