package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/openfactory/designcore/internal/types"
)

type contextKey string

const userKey contextKey = "user"

// ContextWithUser attaches the acting user to a context. The gateway's
// identity resolution reads it back out.
func ContextWithUser(ctx context.Context, user *types.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext extracts the acting user, if any.
func UserFromContext(ctx context.Context) (*types.User, bool) {
	user, ok := ctx.Value(userKey).(*types.User)
	return user, ok && user != nil
}

func parseUserID(id string) (uuid.UUID, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id: %w", err)
	}
	return userID, nil
}

// AuthMiddleware validates bearer tokens and injects the acting user into
// both the gin context and the request context.
func (a *AuthService) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, types.NewErrorResponse(
				"UNAUTHORIZED", "missing authorization header", nil))
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, types.NewErrorResponse(
				"UNAUTHORIZED", "invalid authorization header format", nil))
			c.Abort()
			return
		}

		claims, err := a.jwtHandler.ValidateAccessToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, types.NewErrorResponse(
				"UNAUTHORIZED", "invalid or expired token", nil))
			c.Abort()
			return
		}

		user := &types.User{
			ID:    claims.UserID.String(),
			Email: claims.Email,
		}
		c.Set("user", user)
		c.Request = c.Request.WithContext(ContextWithUser(c.Request.Context(), user))
		c.Next()
	}
}
