package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"user-accounts/internal/service"
)

const (
	authUserIDKey       = "auth_user_id"
	authSessionTokenKey = "auth_session_token"
)

type sessionResolver interface {
	ResolveSession(ctx context.Context, sessionToken string) (int64, error)
}

// SessionAuthMiddleware exige "Authorization: Bearer <session token>" y guarda el user id en el contexto.
func SessionAuthMiddleware(resolver sessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if resolver == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "sessions not configured"})
			c.Abort()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
			c.Abort()
			return
		}

		userID, err := resolver.ResolveSession(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrSessionInvalid) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			} else {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
			}
			c.Abort()
			return
		}

		c.Set(authUserIDKey, userID)
		c.Set(authSessionTokenKey, token)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}

// GetSessionUserID obtiene el user id autenticado desde el contexto.
func GetSessionUserID(c *gin.Context) (int64, bool) {
	val, ok := c.Get(authUserIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := val.(int64)
	return userID, ok
}

func getSessionToken(c *gin.Context) string {
	return c.GetString(authSessionTokenKey)
}
