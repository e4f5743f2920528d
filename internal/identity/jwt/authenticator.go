// Package jwt provides JWT-based token issuance and verification.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bissquit/identity-garden/internal/domain"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a token fails signature, structure, or
// expiry checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// Config contains JWT authenticator configuration. The secret and duration
// are process-wide settings, never request input.
type Config struct {
	SecretKey           string
	AccessTokenDuration time.Duration
}

// Claims is the claim set bound into issued tokens: account id as subject,
// email, role, and an expiry derived from the configured duration.
type Claims struct {
	jwtlib.RegisteredClaims
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// Authenticator issues and verifies HMAC-signed access tokens.
type Authenticator struct {
	config Config
}

// NewAuthenticator creates a new JWT authenticator.
func NewAuthenticator(config Config) *Authenticator {
	return &Authenticator{config: config}
}

// Issue builds and signs a fresh claim set for the account.
func (a *Authenticator) Issue(_ context.Context, account *domain.Account) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   strconv.FormatInt(account.ID, 10),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(a.config.AccessTokenDuration)),
			ID:        uuid.NewString(),
		},
		Email: account.Email,
		Role:  account.Role,
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.config.SecretKey))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ValidateToken verifies signature and expiry and returns the embedded
// account id and role. It serves the transport middleware only; the identity
// service never verifies tokens.
func (a *Authenticator) ValidateToken(_ context.Context, tokenString string) (int64, domain.Role, error) {
	claims := &Claims{}

	token, err := jwtlib.ParseWithClaims(tokenString, claims, func(*jwtlib.Token) (any, error) {
		return []byte(a.config.SecretKey), nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidToken
	}

	accountID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, "", ErrInvalidToken
	}
	if !claims.Role.IsValid() {
		return 0, "", ErrInvalidToken
	}

	return accountID, claims.Role, nil
}
