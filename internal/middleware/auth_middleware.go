// internal/middleware/auth_middleware.go
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"leaven-service/internal/domain/auth"
	"leaven-service/internal/pkg/response"
	ws "leaven-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ctxUserID = "user_id"
	ctxRoles  = "roles"
	ctxToken  = "token"
)

// AuthMiddleware guards HTTP routes with the same authenticator the
// websocket dispatcher uses, so bearer tokens and device keys work on both.
type AuthMiddleware struct {
	authenticator ws.Authenticator
	logger        *zap.Logger
}

func NewAuthMiddleware(authenticator ws.Authenticator, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
	}
}

// Auth rejects requests without a valid credential.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		res, err := m.authenticator.Authenticate(c.Request.Context(), nil, token)
		if err != nil {
			m.logger.Error("authentication backend failed", zap.Error(err))
			response.Error(c, http.StatusServiceUnavailable, "authentication unavailable", nil)
			return
		}
		if !res.IsAuthenticated {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", nil)
			return
		}

		c.Set(ctxUserID, res.UserID)
		c.Set(ctxRoles, res.Roles)
		c.Set(ctxToken, token)
		c.Next()
	}
}

// RequireRole requires at least one of roles. MUST be used after Auth().
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAuthenticated(c) {
			response.Error(c, http.StatusForbidden, "no roles found - authentication required", nil)
			return
		}

		userRoles := GetRoles(c)
		res := ws.AuthResult{IsAuthenticated: true, Roles: userRoles}
		if !res.HasAnyRole(roles...) {
			err := errors.New("user does not have required role")
			response.Error(c, http.StatusForbidden, "insufficient permissions", err, map[string]interface{}{
				"required_roles": roles,
				"user_roles":     userRoles,
			})
			return
		}

		c.Next()
	}
}

// AdminOnly returns middlewares for admin-only routes (Auth + RequireRole)
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(auth.RoleAdmin),
	}
}

// DeviceOnly admits device bridges and admins replaying device traffic.
func (m *AuthMiddleware) DeviceOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(auth.RoleDevice, auth.RoleAdmin),
	}
}

// extractToken returns the Authorization header value as is, scheme
// included, so the authenticator can tell "Bearer" from "Device".
func extractToken(c *gin.Context) string {
	if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
		return header
	}

	// Browsers cannot set headers on websocket upgrades.
	if token := c.Query("token"); token != "" {
		return "Bearer " + token
	}

	return ""
}
