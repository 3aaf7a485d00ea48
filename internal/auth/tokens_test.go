package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/klubhuset/backend/internal/dependencies/mocks"
	"github.com/klubhuset/backend/internal/model"
	"github.com/klubhuset/backend/internal/testutil"
)

func generateKeyPair(t *testing.T) (privatePEM, publicPEM []byte) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	privatePEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}
	publicPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: publicDER,
	})
	return privatePEM, publicPEM
}

type TokenSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	service *TokenService
}

func TestTokenSuite(t *testing.T) {
	suite.Run(t, new(TokenSuite))
}

func (s *TokenSuite) SetupTest() {
	privatePEM, publicPEM := generateKeyPair(s.T())
	s.clock = mocks.NewMockClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	service, err := NewTokenService(privatePEM, publicPEM, s.clock, testutil.NopLogger())
	s.Require().NoError(err)
	s.service = service
}

func (s *TokenSuite) TestIssueAndVerify() {
	token, err := s.service.Issue("Mette", model.RoleAdmin)
	s.Require().NoError(err)

	claims, err := s.service.Verify(token)
	s.Require().NoError(err)
	s.Equal("Mette", claims.Username)
	s.Equal(string(model.RoleAdmin), claims.Role)
	s.Equal("Mette", claims.Subject)
}

func (s *TokenSuite) TestTokenExpiresAfterDay() {
	token, err := s.service.Issue("viggo", model.RoleUser)
	s.Require().NoError(err)

	s.clock.Advance(23 * time.Hour)
	_, err = s.service.Verify(token)
	s.NoError(err)

	s.clock.Advance(2 * time.Hour)
	_, err = s.service.Verify(token)
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *TokenSuite) TestVerifyRejectsGarbage() {
	_, err := s.service.Verify("")
	s.ErrorIs(err, model.ErrInvalidToken)

	_, err = s.service.Verify("not.a.token")
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *TokenSuite) TestVerifyRejectsForeignKey() {
	otherPrivate, otherPublic := generateKeyPair(s.T())
	other, err := NewTokenService(otherPrivate, otherPublic, s.clock, testutil.NopLogger())
	s.Require().NoError(err)

	token, err := other.Issue("Mette", model.RoleAdmin)
	s.Require().NoError(err)

	_, err = s.service.Verify(token)
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *TokenSuite) TestVerifyRejectsWrongAlgorithm() {
	claims := Claims{
		Username: "Mette",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(s.clock.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	s.Require().NoError(err)

	_, err = s.service.Verify(forged)
	s.ErrorIs(err, model.ErrInvalidToken)
}
