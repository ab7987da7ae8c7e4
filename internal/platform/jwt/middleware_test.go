package jwtmw

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret-key"

// TestMain はテスト実行前にGinをテストモードに設定します。
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func signed(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func serve(secret, authHeader string) (*httptest.ResponseRecorder, *gin.Context) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/candles/USD-KRW/ingest", nil)
	if authHeader != "" {
		c.Request.Header.Set("Authorization", authHeader)
	}
	AuthRequired(secret)(c)
	return w, c
}

// TestAuthRequired_MissingBearerToken はBearerトークンがない場合やプレフィックスが不正な場合に401が返されることを検証します。
func TestAuthRequired_MissingBearerToken(t *testing.T) {
	t.Parallel()

	for _, header := range []string{"", "Basic dXNlcjpwYXNz", "bearer token123", "Bearertoken123"} {
		w, c := serve(testSecret, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.True(t, c.IsAborted())
	}
}

// TestAuthRequired_NoSecret は secret 未設定時に書き込みが無効化されることを検証します。
func TestAuthRequired_NoSecret(t *testing.T) {
	t.Parallel()

	w, _ := serve("", "Bearer sometoken")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// TestAuthRequired_InvalidToken は不正なトークン（改ざん・期限切れ等）で401が返されることを検証します。
func TestAuthRequired_InvalidToken(t *testing.T) {
	t.Parallel()

	valid := jwt.MapClaims{"sub": "ops", "scope": ScopeIngest, "exp": time.Now().Add(time.Hour).Unix()}
	tests := []struct {
		name  string
		token string
	}{
		{"malformed token", "not.a.valid.token"},
		{"random string", "randomstring"},
		{"wrong secret", signed(t, jwt.SigningMethodHS256, []byte("wrong-secret"), valid)},
		{"expired token", signed(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "ops", "scope": ScopeIngest, "exp": time.Now().Add(-time.Hour).Unix()})},
		{"no expiry", signed(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "ops", "scope": ScopeIngest})},
		{"other hmac", signed(t, jwt.SigningMethodHS512, []byte(testSecret), valid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := serve(testSecret, "Bearer "+tt.token)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

// TestAuthRequired_WrongScope はスコープ不足で403が返されることを検証します。
func TestAuthRequired_WrongScope(t *testing.T) {
	t.Parallel()

	token := signed(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "ops", "scope": "read", "exp": time.Now().Add(time.Hour).Unix()})
	w, _ := serve(testSecret, "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

// TestAuthRequired_ValidToken は有効なトークンで通過し subject がコンテキストに設定されることを検証します。
func TestAuthRequired_ValidToken(t *testing.T) {
	t.Parallel()

	token, err := NewGenerator(testSecret, time.Hour).GenerateToken("ops")
	assert.NoError(t, err)

	w, c := serve(testSecret, "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, c.IsAborted())
	assert.Equal(t, "ops", c.GetString(ContextSubject))
}
