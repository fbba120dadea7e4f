package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/jengzang/zone-density/pkg/response"
)

// UserKey is the context key holding the authenticated subject
const UserKey = "user"

// JWTAuth requires an HS256 bearer token signed with secret and stores its
// subject under UserKey
func JWTAuth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}

		token, err := parser.Parse(raw, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			response.Unauthorized(c, "invalid token")
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil || sub == "" {
			response.Unauthorized(c, "token has no subject")
			return
		}

		c.Set(UserKey, sub)
		c.Next()
	}
}
