// internal/handlers/featuretoggle/featuretoggle_handler.go
package featuretoggle

import (
	"context"
	"net/http"
	"strings"

	"leaven-service/internal/domain/featuretoggle"
	"leaven-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Service interface {
	GetAllFeatures(ctx context.Context) ([]featuretoggle.FeatureResponse, error)
	SetFeatureEnabled(ctx context.Context, name string, enabled bool) error
	SetRolloutPercentage(ctx context.Context, name string, percentage int) error
	AddUserToFeature(ctx context.Context, name, userID string) error
	RemoveUserFromFeature(ctx context.Context, name, userID string) error
}

type FeatureToggleHandler struct {
	service Service
}

func NewFeatureToggleHandler(service Service) *FeatureToggleHandler {
	return &FeatureToggleHandler{service: service}
}

func (h *FeatureToggleHandler) ListFeatures(c *gin.Context) {
	features, err := h.service.GetAllFeatures(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to list features", err)
		return
	}
	response.Success(c, http.StatusOK, "features retrieved", gin.H{
		"features": features,
		"count":    len(features),
	})
}

func (h *FeatureToggleHandler) SetEnabled(c *gin.Context) {
	var req featuretoggle.SetEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	name := c.Param("name")
	if err := h.service.SetFeatureEnabled(c.Request.Context(), name, *req.Enabled); err != nil {
		response.FromError(c, "failed to update feature", err)
		return
	}
	response.Success(c, http.StatusOK, "feature updated", gin.H{
		"name":      name,
		"isEnabled": *req.Enabled,
	})
}

func (h *FeatureToggleHandler) SetRollout(c *gin.Context) {
	var req featuretoggle.SetRolloutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	name := c.Param("name")
	if err := h.service.SetRolloutPercentage(c.Request.Context(), name, *req.Percentage); err != nil {
		response.FromError(c, "failed to update rollout", err)
		return
	}
	response.Success(c, http.StatusOK, "rollout updated", gin.H{
		"name":              name,
		"rolloutPercentage": *req.Percentage,
	})
}

func (h *FeatureToggleHandler) AddUser(c *gin.Context) {
	name, userID, ok := featureUserParams(c)
	if !ok {
		return
	}
	if err := h.service.AddUserToFeature(c.Request.Context(), name, userID); err != nil {
		response.FromError(c, "failed to add user", err)
		return
	}
	response.Success(c, http.StatusOK, "user added to feature", gin.H{"name": name, "userId": userID})
}

func (h *FeatureToggleHandler) RemoveUser(c *gin.Context) {
	name, userID, ok := featureUserParams(c)
	if !ok {
		return
	}
	if err := h.service.RemoveUserFromFeature(c.Request.Context(), name, userID); err != nil {
		response.FromError(c, "failed to remove user", err)
		return
	}
	response.Success(c, http.StatusOK, "user removed from feature", gin.H{"name": name, "userId": userID})
}

func featureUserParams(c *gin.Context) (string, string, bool) {
	name := c.Param("name")
	userID := strings.TrimSpace(c.Param("userId"))
	if userID == "" {
		response.ValidationError(c, "user id is required", nil)
		return "", "", false
	}
	return name, userID, true
}
