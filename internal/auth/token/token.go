// Package token signs and verifies wallet access tokens. Tokens are
// HS256 JWTs whose subject is the wallet ID; holding a valid token is
// what "controlling a wallet" means to the rest of the system.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "lineage/pkg/domain"
	dErrors "lineage/pkg/domain-errors"
)

// Service signs and verifies access tokens with a shared HMAC key.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewService constructs a token service. ttl bounds the lifetime of
// every token it issues.
func NewService(signingKey, issuer string, ttl time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
	}
}

// TTL reports the configured token lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the wallet. The expiry is anchored on the
// supplied time so the token and its event carry the same instant.
func (s *Service) Issue(wallet id.WalletID, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   wallet.String(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    s.issuer,
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyToken validates a bearer token and returns the wallet it was
// issued to. Satisfies the middleware's TokenVerifier.
func (s *Service) VerifyToken(tokenString string) (id.WalletID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return id.WalletID{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return id.WalletID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return id.WalletID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return id.WalletID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	wallet, err := id.ParseWalletID(claims.Subject)
	if err != nil {
		return id.WalletID{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return wallet, nil
}
