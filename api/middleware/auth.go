package middleware

import (
	"net/http"
	"strings"

	"creaverse/services"

	"github.com/gin-gonic/gin"
)

// bearerToken достаёт токен из Authorization или, для websocket, из ?token=
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return c.Query("token")
}

func setSession(c *gin.Context, userID int64) {
	c.Set("user_id", userID)
	c.Request = c.Request.WithContext(services.WithSession(c.Request.Context(), services.Session{UserID: userID}))
}

// AuthMiddleware требует валидный JWT
func AuthMiddleware(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		userID, err := tokens.Parse(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		setSession(c, userID)
		c.Next()
	}
}

// OptionalAuthMiddleware - middleware для опциональной аутентификации
func OptionalAuthMiddleware(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if userID, err := tokens.Parse(token); err == nil {
				setSession(c, userID)
			}
		}
		c.Next()
	}
}

// UserID returns the authenticated user id set by the auth middleware.
func UserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
