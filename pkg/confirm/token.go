// Package confirm implements the administrative confirmation
// workflow: signed confirmation tokens and the notification mail
// asking an admin to approve a newly seen user.
package confirm

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

// Common errors for confirmation tokens.
var (
	ErrInvalidToken        = errors.New("invalid confirmation token")
	ErrExpiredToken        = errors.New("confirmation token has expired")
	ErrTokenSigningFailed  = errors.New("failed to sign confirmation token")
	ErrInvalidSecretLength = errors.New("confirmation secret must be at least 32 characters")
)

// Claims are the claims carried by a confirmation token.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the local user the token confirms.
	UserID int `json:"uid"`

	// Username is carried for log readability only.
	Username string `json:"username"`
}

// TokenConfig holds settings for the token service.
type TokenConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Validity is the confirmation link lifetime. Default: 24 hours.
	Validity time.Duration

	// Issuer is the token issuer claim. Default: "dtoolcfg".
	Issuer string
}

// TokenService issues and verifies confirmation tokens.
type TokenService struct {
	config TokenConfig
}

// NewTokenService creates a token service with the given
// configuration.
func NewTokenService(config TokenConfig) (*TokenService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if config.Validity == 0 {
		config.Validity = 24 * time.Hour
	}
	if config.Issuer == "" {
		config.Issuer = "dtoolcfg"
	}
	return &TokenService{config: config}, nil
}

// Issue creates a signed confirmation token for the given user.
func (s *TokenService) Issue(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Validity)),
		},
		UserID:   user.ID,
		Username: user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", ErrTokenSigningFailed
	}
	return signed, nil
}

// Verify validates a confirmation token and returns its claims.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Validity returns the configured token lifetime.
func (s *TokenService) Validity() time.Duration {
	return s.config.Validity
}
