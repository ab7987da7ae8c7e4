package jwtmw

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewGenerator は各種設定でGeneratorが正しく生成されることを検証します。
func TestNewGenerator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		secret     string
		expiration time.Duration
	}{
		{"standard config", "my-secret-key", time.Hour},
		{"long expiration", "secret", 24 * time.Hour * 30},
		{"short expiration", "s", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := NewGenerator(tt.secret, tt.expiration)

			require.NotNil(t, gen)
			assert.Equal(t, tt.secret, string(gen.secret))
			assert.Equal(t, tt.expiration, gen.expiration)
		})
	}
}

// TestGenerator_GenerateToken は生成されたトークンが正しいクレームを含むことを検証します。
func TestGenerator_GenerateToken(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	gen := NewGenerator("secret", 2*time.Hour)
	gen.now = func() time.Time { return fixed }

	signed, err := gen.GenerateToken("ops")
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.NewParser(jwt.WithoutClaimsValidation()).ParseWithClaims(signed, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)

	assert.Equal(t, "ops", claims["sub"])
	assert.Equal(t, ScopeIngest, claims["scope"])
	assert.Equal(t, float64(fixed.Unix()), claims["iat"])
	assert.Equal(t, float64(fixed.Add(2*time.Hour).Unix()), claims["exp"])
}

// TestGenerator_GenerateToken_Errors は secret や subject が空の場合にエラーとなることを検証します。
func TestGenerator_GenerateToken_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewGenerator("", time.Hour).GenerateToken("ops")
	assert.Error(t, err)

	_, err = NewGenerator("secret", time.Hour).GenerateToken("")
	assert.Error(t, err)
}
