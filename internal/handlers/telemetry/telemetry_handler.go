// internal/handlers/telemetry/telemetry_handler.go
package telemetry

import (
	"context"
	"net/http"

	"leaven-service/internal/domain/realtime"
	"leaven-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Publisher interface {
	PublishReading(ctx context.Context, req *realtime.ReadingRequest) (*realtime.PublishResult, error)
	PublishOtaProgress(ctx context.Context, req *realtime.OtaProgressRequest) (*realtime.PublishResult, error)
	PublishDiagnostics(ctx context.Context, req *realtime.DiagnosticsRequest) (*realtime.PublishResult, error)
}

// TelemetryHandler is the ingestion surface for device bridges.
type TelemetryHandler struct {
	publisher Publisher
}

func NewTelemetryHandler(publisher Publisher) *TelemetryHandler {
	return &TelemetryHandler{publisher: publisher}
}

func (h *TelemetryHandler) PostReading(c *gin.Context) {
	var req realtime.ReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid reading", err)
		return
	}

	res, err := h.publisher.PublishReading(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to publish reading", err)
		return
	}
	response.Success(c, http.StatusAccepted, "reading published", res)
}

func (h *TelemetryHandler) PostOtaProgress(c *gin.Context) {
	var req realtime.OtaProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid OTA progress", err)
		return
	}

	res, err := h.publisher.PublishOtaProgress(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to publish OTA progress", err)
		return
	}
	response.Success(c, http.StatusAccepted, "OTA progress published", res)
}

func (h *TelemetryHandler) PostDiagnostics(c *gin.Context) {
	var req realtime.DiagnosticsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid diagnostics", err)
		return
	}

	res, err := h.publisher.PublishDiagnostics(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to publish diagnostics", err)
		return
	}
	response.Success(c, http.StatusAccepted, "diagnostics published", res)
}
