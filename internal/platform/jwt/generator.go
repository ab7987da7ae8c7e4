package jwtmw

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeIngest grants access to the write endpoints.
const ScopeIngest = "candles:ingest"

// Generator defines the interface for JWT token generation.
type Generator interface {
	// GenerateToken creates a signed token for subject carrying ScopeIngest.
	GenerateToken(subject string) (string, error)
}

// generator implements the Generator interface.
type generator struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewGenerator creates a new JWT generator with the provided secret and expiration duration.
func NewGenerator(secret string, expiration time.Duration) *generator {
	return &generator{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
}

// GenerateToken creates a signed JWT token with standard claims.
func (g *generator) GenerateToken(subject string) (string, error) {
	if len(g.secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	if subject == "" {
		return "", errors.New("token subject is empty")
	}
	now := g.now()
	claims := jwt.MapClaims{
		"sub":   subject,
		"iat":   now.Unix(),
		"exp":   now.Add(g.expiration).Unix(),
		"scope": ScopeIngest,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}
