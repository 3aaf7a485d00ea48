package auth

import (
	"crypto/rsa"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/klubhuset/backend/internal/dependencies/clock"
	"github.com/klubhuset/backend/internal/model"
)

// tokenTTL is how long an issued session token stays valid
const tokenTTL = 24 * time.Hour

// Claims are the JWT claims carried by a session token
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies RS256-signed session tokens
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	clock      clock.Clock
	logger     *slog.Logger
}

// NewTokenService parses the PEM-encoded RSA keypair and returns a
// ready token service.
func NewTokenService(privateKeyPEM, publicKeyPEM []byte, clk clock.Clock, logger *slog.Logger) (*TokenService, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	return &TokenService{
		privateKey: privateKey,
		publicKey:  publicKey,
		clock:      clk,
		logger:     logger.With(slog.String("component", "auth")),
	}, nil
}

// NewTokenServiceFromFiles loads the RSA keypair from PEM files
func NewTokenServiceFromFiles(privateKeyPath, publicKeyPath string, clk clock.Clock, logger *slog.Logger) (*TokenService, error) {
	privatePEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", privateKeyPath, err)
	}
	publicPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key %s: %w", publicKeyPath, err)
	}
	return NewTokenService(privatePEM, publicPEM, clk, logger)
}

// Issue signs a session token for the given account
func (s *TokenService) Issue(username string, role model.Role) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		Username: username,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a token and returns its
// claims. All failure modes map to ErrInvalidToken; the detail is
// logged, not exposed to the caller.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, model.ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			return s.publicKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		s.logger.Debug("token validation failed", slog.String("error", err.Error()))
		return nil, model.ErrInvalidToken
	}
	if !token.Valid {
		return nil, model.ErrInvalidToken
	}
	return claims, nil
}
