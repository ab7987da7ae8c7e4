// Package jwtmw guards write endpoints with HMAC-signed bearer tokens.
package jwtmw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ContextSubject = "subject"

// AuthRequired returns a Gin middleware function that validates JWT tokens
// signed with secret and carrying ScopeIngest.
func AuthRequired(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(c *gin.Context) {
		if len(key) == 0 {
			// http.jwt_secret 未設定
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "ingest disabled"})
			return
		}

		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimPrefix(auth, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if scope, _ := claims["scope"].(string); scope != ScopeIngest {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient scope"})
			return
		}
		if sub, err := claims.GetSubject(); err == nil {
			c.Set(ContextSubject, sub)
		}
		c.Next()
	}
}
