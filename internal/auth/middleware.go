package auth

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Middleware resolves the Authorization header to an acting user and injects
// the actor context into the request. Requests without a valid token proceed
// without context, so public endpoints work and protected handlers can check
// for the context themselves or sit behind RequireAuth.
func Middleware(authService *AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			slog.Debug("no authorization header provided")
			c.Next()
			return
		}

		token, err := TokenFromHeader(header)
		if err != nil {
			slog.Warn("failed to extract token from header", "error", err)
			c.Next()
			return
		}

		actor, err := authService.ResolveToken(c.Request.Context(), token)
		if err != nil {
			slog.Warn("failed to resolve actor from token", "error", err)
			c.Next()
			return
		}

		c.Set(string(ActorContextKey), actor)
		c.Next()
	}
}

// RequireAuth aborts with 401 when no actor context was injected. Apply after
// Middleware on protected routes.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetActorContext(c) == nil {
			slog.Warn("authentication required but not provided",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "authentication required",
			})
			return
		}
		c.Next()
	}
}

// GetActorContext extracts the ActorContext from a gin context. Returns nil
// when the request carried no valid token.
func GetActorContext(c *gin.Context) *ActorContext {
	value, exists := c.Get(string(ActorContextKey))
	if !exists {
		return nil
	}
	actor, ok := value.(*ActorContext)
	if !ok {
		return nil
	}
	return actor
}
