package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const UserIDKey = "user_id"

// OptionalIdentity extracts the website user id from a bearer token
// when one is present and valid. Anonymous visitors pass through; a
// bad token is treated the same as no token, never a rejection, since
// the widget works without authentication.
func OptionalIdentity(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.Next()
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
			func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
		if err == nil && token.Valid {
			if sub, ok := claims["sub"].(float64); ok && sub > 0 {
				c.Set(UserIDKey, uint64(sub))
			}
		}
		c.Next()
	}
}
