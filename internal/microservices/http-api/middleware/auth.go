package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextClaims     = "claims"
	ContextAdminID    = "adminID"
	ContextVillageKey = "villageKey"
	ContextRole       = "role"

	RoleAdmin   = "admin"
	RoleService = "service" // backend callers such as the village CRUD layer
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is what the village auth service puts in an admin's access token.
type Claims struct {
	AdminID    string `json:"admin_id"`
	VillageKey string `json:"village_key"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken validates an HS256 token signed with secret.
func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AuthMiddleware is a Gin middleware for JWT authentication of API requests.
// Tokens are issued elsewhere; this only verifies them and exposes the claims.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		// format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := ParseToken(parts[1], secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextClaims, claims)
		c.Set(ContextAdminID, claims.AdminID)
		c.Set(ContextVillageKey, claims.VillageKey)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

// RequireRole checks if the caller has the specified role
func RequireRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{"error": "Role not found in token"})
			c.Abort()
			return
		}

		userRole, ok := role.(string)
		if !ok || userRole != requiredRole {
			c.JSON(http.StatusForbidden, gin.H{
				"error":    "Insufficient permissions",
				"required": requiredRole,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireAdmin is a convenience function for requiring admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(RoleAdmin)
}

// AdminID returns the authenticated admin id set by AuthMiddleware.
func AdminID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextAdminID)
	return id, id != ""
}
