// internal/service/telemetry/service.go
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"leaven-service/internal/domain/realtime"
	xerrors "leaven-service/internal/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Broadcaster is the cluster-wide topic fan-out.
type Broadcaster interface {
	Broadcast(ctx context.Context, topic string, message any) error
}

// TelemetryService turns device bridge submissions into topic broadcasts.
type TelemetryService struct {
	broadcaster Broadcaster
	logger      *zap.Logger
	now         func() time.Time
}

func NewTelemetryService(broadcaster Broadcaster, logger *zap.Logger) *TelemetryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelemetryService{
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// PublishReading sends a sourdough reading to the owner's data topic.
func (s *TelemetryService) PublishReading(ctx context.Context, req *realtime.ReadingRequest) (*realtime.PublishResult, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "userId must be a UUID")
	}

	reading := realtime.SourdoughReading{
		AnalyzerID:  req.AnalyzerID,
		Temperature: req.Temperature,
		Humidity:    req.Humidity,
		Rise:        req.Rise,
		Timestamp:   s.now().UTC(),
	}
	if req.Timestamp != nil {
		reading.Timestamp = req.Timestamp.UTC()
	}

	return s.publish(ctx, reading, realtime.SourdoughDataTopic(userID))
}

// PublishOtaProgress rejects progress that moves a finished update.
func (s *TelemetryService) PublishOtaProgress(ctx context.Context, req *realtime.OtaProgressRequest) (*realtime.PublishResult, error) {
	analyzerID, err := uuid.Parse(req.AnalyzerID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "analyzerId must be a UUID")
	}
	if req.Status == realtime.OtaCompleted && req.Progress != 100 {
		return nil, &xerrors.BusinessRuleViolation{Rule: "a completed update must report 100% progress"}
	}

	update := realtime.OtaProgressUpdate{
		AnalyzerID: analyzerID.String(),
		Status:     req.Status,
		Progress:   req.Progress,
		Message:    req.Message,
	}
	return s.publish(ctx, update, realtime.OtaProgressTopic(analyzerID))
}

// PublishDiagnostics goes to the admin-wide topic and to the analyzer's own
// response topic.
func (s *TelemetryService) PublishDiagnostics(ctx context.Context, req *realtime.DiagnosticsRequest) (*realtime.PublishResult, error) {
	analyzerID, err := uuid.Parse(req.AnalyzerID)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "analyzerId must be a UUID")
	}

	now := s.now().UTC()
	resp := realtime.DiagnosticsResponse{
		AnalyzerID: analyzerID.String(),
		EpochTime:  req.EpochTime,
		Timestamp:  now,
		LocalTime:  now,
		Uptime:     req.Uptime,
		FreeHeap:   req.FreeHeap,
		State:      req.State,
		Wifi:       req.Wifi,
		Sensors:    req.Sensors,
		Humidity:   req.Humidity,
	}
	if req.LocalTime != nil {
		resp.LocalTime = *req.LocalTime
	}

	return s.publish(ctx, resp,
		realtime.TopicAllDiagnostics,
		realtime.DiagnosticsResponseTopic(analyzerID),
	)
}

// event is an admin-authored broadcast with a caller-chosen type.
type event struct {
	typ     string
	payload map[string]any
}

func (e event) MessageType() string { return e.typ }

func (e event) MarshalJSON() ([]byte, error) {
	if e.payload == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(e.payload)
}

// PublishEvent broadcasts an arbitrary payload to one topic.
func (s *TelemetryService) PublishEvent(ctx context.Context, topic string, req *realtime.BroadcastRequest) (*realtime.PublishResult, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "topic is required")
	}
	if strings.EqualFold(req.Type, "Error") {
		return nil, &xerrors.BusinessRuleViolation{Rule: "Error is reserved for replies"}
	}
	return s.publish(ctx, event{typ: req.Type, payload: req.Payload}, topic)
}

func (s *TelemetryService) publish(ctx context.Context, message any, topics ...string) (*realtime.PublishResult, error) {
	for _, topic := range topics {
		if err := s.broadcaster.Broadcast(ctx, topic, message); err != nil {
			s.logger.Error("telemetry broadcast failed",
				zap.String("topic", topic),
				zap.Error(err),
			)
			return nil, fmt.Errorf("failed to broadcast to %s: %w", topic, err)
		}
	}

	s.logger.Debug("telemetry broadcast", zap.Strings("topics", topics))
	return &realtime.PublishResult{Topics: topics}, nil
}
