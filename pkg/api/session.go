package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

// SessionCookieName is the name of the session cookie.
const SessionCookieName = "dtoolcfg_session"

// Common errors for session handling.
var (
	ErrInvalidSession       = errors.New("invalid session")
	ErrExpiredSession       = errors.New("session has expired")
	ErrSessionSigningFailed = errors.New("failed to sign session token")
	ErrInvalidSecretLength  = errors.New("session secret must be at least 32 characters")
)

// SessionClaims are the claims carried by a session token.
type SessionClaims struct {
	jwt.RegisteredClaims

	// UserID is the local user the session belongs to.
	UserID int `json:"uid"`

	Username string `json:"username"`
}

// SessionConfig holds settings for the session service.
type SessionConfig struct {
	// Secret is the HMAC signing key. Must be at least 32 characters.
	Secret string

	// Duration is the session lifetime. Default: 12 hours.
	Duration time.Duration

	// Secure marks issued cookies as HTTPS-only.
	Secure bool
}

// SessionService issues and verifies session tokens carried in an
// HttpOnly cookie.
type SessionService struct {
	config SessionConfig
}

// NewSessionService creates a session service.
func NewSessionService(config SessionConfig) (*SessionService, error) {
	if len(config.Secret) < 32 {
		return nil, ErrInvalidSecretLength
	}
	if config.Duration == 0 {
		config.Duration = 12 * time.Hour
	}
	return &SessionService{config: config}, nil
}

// Issue creates a signed session token for the given user.
func (s *SessionService) Issue(user *models.User) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "dtoolcfg",
			Subject:   user.Username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Duration)),
		},
		UserID:   user.ID,
		Username: user.Username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", ErrSessionSigningFailed
	}
	return signed, nil
}

// Verify validates a session token and returns its claims.
func (s *SessionService) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredSession
		}
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// SetCookie attaches a session cookie to the response.
func (s *SessionService) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.config.Duration.Seconds()),
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (s *SessionService) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
