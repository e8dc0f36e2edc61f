// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"net/http"

	"leaven-service/internal/middleware"
	"leaven-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenRevoker blacklists an access token until it expires.
type TokenRevoker interface {
	Revoke(ctx context.Context, token string) error
}

type AuthHandler struct {
	revoker TokenRevoker
	logger  *zap.Logger
}

func NewAuthHandler(revoker TokenRevoker, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		revoker: revoker,
		logger:  logger,
	}
}

// Logout revokes the bearer token the request was authenticated with.
// Websocket connections holding it are rejected from their next message on.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := middleware.MustGetUserID(c)

	if err := h.revoker.Revoke(c.Request.Context(), middleware.GetToken(c)); err != nil {
		h.logger.Warn("logout failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		response.FromError(c, "logout failed", err)
		return
	}

	response.Success(c, http.StatusOK, "logout successful", nil)
}

// GetMe echoes the identity resolved from the credential.
func (h *AuthHandler) GetMe(c *gin.Context) {
	response.Success(c, http.StatusOK, "identity retrieved", gin.H{
		"user_id": middleware.MustGetUserID(c),
		"roles":   middleware.GetRoles(c),
	})
}
