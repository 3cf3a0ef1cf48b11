package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"jadbank/internal/config"
	apperrors "jadbank/internal/errors"
)

const (
	tokenIssuer   = "jadbank-api"
	defaultExpiry = time.Hour
)

// getJWTKey returns the JWT key from configuration
func getJWTKey() []byte {
	return []byte(config.Get().JWTSecret)
}

// JWTClaims represents the claims in the JWT. Tokens are minted by the
// bank's identity service; the subject is the user id.
type JWTClaims struct {
	jwt.RegisteredClaims
}

// IssueToken signs a token for userID. The API only validates tokens; this
// exists for local tooling and tests.
func IssueToken(userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultExpiry
	}
	now := time.Now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(getJWTKey())
}

// unauthorized stops the chain; ErrorHandler writes the response.
func unauthorized(c *gin.Context, message string) {
	_ = c.Error(apperrors.WithMessage(apperrors.ErrUnauthorized, message))
	c.Abort()
}

// AuthMiddleware verifies the JWT token and sets the user in the context
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(c, "Invalid authorization header format")
			return
		}

		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return getJWTKey(), nil
		}, jwt.WithIssuer(tokenIssuer))

		if err != nil || !token.Valid || claims.Subject == "" {
			unauthorized(c, "Invalid or expired token")
			return
		}

		c.Set("userID", claims.Subject)
		c.Next()
	}
}
