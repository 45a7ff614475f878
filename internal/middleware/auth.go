package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/httputil"
)

// Context keys set by Authenticate
const (
	ContextUserID    = "userID"
	ContextUserEmail = "userEmail"
	ContextUserRole  = "userRole"
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.Claims, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
}

func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Authenticate verifies the bearer token and sets the caller in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httputil.RespondWithError(c, &apperrors.AppError{Code: apperrors.ErrUnauthorized, Message: "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.RespondWithError(c, &apperrors.AppError{Code: apperrors.ErrUnauthorized, Message: "invalid authorization format"})
			return
		}

		claims, err := m.tokens.ValidateToken(c.Request.Context(), parts[1])
		if err != nil {
			httputil.RespondWithError(c, &apperrors.AppError{Code: apperrors.ErrUnauthorized, Message: "invalid token", Err: err})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role is not listed.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := Caller(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			return
		}
		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}
		httputil.RespondWithError(c, apperrors.NewForbidden("access denied for role "+string(caller.Role)))
	}
}

// Caller returns the principal set by Authenticate.
func Caller(c *gin.Context) (model.Caller, bool) {
	id, ok := c.Get(ContextUserID)
	if !ok {
		return model.Caller{}, false
	}
	role, ok := c.Get(ContextUserRole)
	if !ok {
		return model.Caller{}, false
	}
	caller := model.Caller{}
	caller.ID, ok = id.(uuid.UUID)
	if !ok {
		return model.Caller{}, false
	}
	caller.Role, ok = role.(model.Role)
	return caller, ok
}
