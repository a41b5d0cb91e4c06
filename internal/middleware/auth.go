package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/complaintdesk/backend/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by Identity.
const (
	ActorNameKey = "actor_name"
	ActorRoleKey = "actor_role"
	StaffIDKey   = "staff_id"
)

// Claims is the token payload issued to staff members.
type Claims struct {
	StaffID string           `json:"staff_id"`
	Name    string           `json:"name"`
	Email   string           `json:"email"`
	Role    models.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for a staff member.
func IssueToken(secret string, user models.User, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, errors.New("jwt secret is not configured")
	}
	expiresAt := now.Add(ttl)
	claims := Claims{
		StaffID: user.StaffID,
		Name:    user.Name,
		Email:   user.Email,
		Role:    user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.StaffID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expiresAt, nil
}

// ParseToken validates a token string and returns its claims.
func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Identity reads an optional bearer token and exposes the caller as the
// default actor for lifecycle operations. With required set, requests
// without a valid token are refused. A malformed or expired token is always
// refused.
func Identity(secret string, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if required {
				unauthorized(c, "Authorization header required")
				return
			}
			c.Next()
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			unauthorized(c, "Invalid authorization header format")
			return
		}
		if secret == "" {
			unauthorized(c, "Token authentication is not configured")
			return
		}

		claims, err := ParseToken(secret, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			unauthorized(c, "Invalid token")
			return
		}

		c.Set(StaffIDKey, claims.StaffID)
		c.Set(ActorNameKey, claims.Name)
		c.Set(ActorRoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole refuses callers whose token role is not one of roles.
func RequireRole(roles ...models.ActorRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ActorRoleKey)
		if r, ok := role.(models.ActorRole); ok {
			for _, allowed := range roles {
				if r == allowed {
					c.Next()
					return
				}
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "forbidden",
			"message": "Insufficient role for this operation",
		})
	}
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   "unauthorized",
		"message": message,
	})
}
