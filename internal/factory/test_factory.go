package factory

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/klubhuset/backend/internal/auth"
	"github.com/klubhuset/backend/internal/dependencies/mocks"
	"github.com/klubhuset/backend/internal/storage/memory"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Store is the backing memory store, exposed for seeding
	Store *memory.Storage

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

var (
	testKeyOnce    sync.Once
	testPrivatePEM []byte
	testPublicPEM  []byte
)

// testKeyPair generates one RSA key pair shared by every TestApp in
// the process. Key generation is too slow to repeat per test.
func testKeyPair() (privatePEM, publicPEM []byte) {
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(fmt.Sprintf("failed to generate test key: %v", err))
		}
		testPrivatePEM = pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
		publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			panic(fmt.Sprintf("failed to marshal test key: %v", err))
		}
		testPublicPEM = pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: publicDER,
		})
	})
	return testPrivatePEM, testPublicPEM
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	privatePEM, publicPEM := testKeyPair()
	tokens, err := auth.NewTokenService(privatePEM, publicPEM, mockClock, logger)
	if err != nil {
		panic(fmt.Sprintf("failed to build token service: %v", err))
	}

	app := newWithDependencies(store, store, mockClock, mockRandom, tokens, logger)

	return &TestApp{
		App:        app,
		Store:      store,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
