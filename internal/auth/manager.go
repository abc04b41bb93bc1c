// Package auth issues and verifies the bearer tokens that authorize account
// actions.
package auth

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cardassist/internal/config"
	"cardassist/internal/constants"
	"cardassist/pkg/errors"
)

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Verifier is what the action dispatcher needs from this package.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(cfg config.AuthConfig) *Manager {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = constants.DefaultTokenIssuer
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = constants.DefaultTokenTTL
	}
	return &Manager{
		secret: []byte(cfg.JWTSecret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (m *Manager) Issue(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.ErrValidation.WithDetail("message", "user_id is required")
	}

	now := m.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify returns ErrUnauthorized for a missing, malformed, expired or
// foreign token.
func (m *Manager) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil, errors.ErrUnauthorized.WithDetail("message", constants.AuthRequiredReply)
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		reply := constants.InvalidTokenReply
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			reply = "Your session has expired. Please login again."
		}
		return nil, errors.ErrUnauthorized.WithDetail("message", reply).WithCause(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return nil, errors.ErrUnauthorized.WithDetail("message", constants.InvalidTokenReply)
	}
	return claims, nil
}
