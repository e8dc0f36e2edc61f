// internal/websocket/middleware/feature_toggle.go
package middleware

import (
	"context"
	"fmt"
	"strings"

	wstypes "leaven-service/internal/domain/websocket"
	ws "leaven-service/internal/websocket"

	"go.uber.org/zap"
)

const featureDisabledMessage = "This feature is currently disabled"

// FeatureChecker answers whether a named feature is on.
type FeatureChecker interface {
	IsEnabled(ctx context.Context, name string) (bool, error)
	IsEnabledForUser(ctx context.Context, name, userID string) (bool, error)
}

// FeatureToggle gates every message type behind the feature
// "Websocket.{Type}", using the registered spelling of the type when the
// dispatcher provides it. It fails open: when the message cannot be read or
// the check itself fails, the message goes through.
type FeatureToggle struct {
	features FeatureChecker
	logger   *zap.Logger
}

var _ ws.Middleware = (*FeatureToggle)(nil)

func NewFeatureToggle(features FeatureChecker, logger *zap.Logger) *FeatureToggle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeatureToggle{features: features, logger: logger}
}

// FeatureName is the toggle consulted for a message type.
func FeatureName(messageType string) string {
	return fmt.Sprintf("Websocket.%s", messageType)
}

func (m *FeatureToggle) Invoke(ctx context.Context, conn ws.Connection, raw []byte, next ws.Next) error {
	env, err := wstypes.ParseEnvelope(raw)
	if err != nil {
		m.logger.Warn("feature toggle could not read message", zap.Error(err))
		return next(ctx)
	}
	messageType, ok := ws.MessageTypeFromContext(ctx)
	if !ok {
		messageType = strings.TrimSpace(env.Type)
	}
	if messageType == "" {
		return next(ctx)
	}

	feature := FeatureName(messageType)
	enabled, err := m.isEnabled(ctx, feature)
	if err != nil {
		m.logger.Warn("feature toggle check failed",
			zap.String("feature", feature),
			zap.Error(err),
		)
		return next(ctx)
	}
	if enabled {
		return next(ctx)
	}

	m.logger.Info("websocket handler disabled",
		zap.String("message_type", messageType),
		zap.String("connection_id", conn.ID()),
	)

	requestID := env.RequestID
	if requestID == "" {
		requestID = wstypes.NoRequestID
	}
	data, err := wstypes.NewError(requestID, wstypes.CodeFeatureDisabled, featureDisabledMessage).ToJSON()
	if err != nil {
		return err
	}
	return conn.Send(data)
}

func (m *FeatureToggle) isEnabled(ctx context.Context, feature string) (bool, error) {
	if auth, ok := ws.AuthFromContext(ctx); ok && auth.IsAuthenticated && auth.UserID != "" {
		return m.features.IsEnabledForUser(ctx, feature, auth.UserID)
	}
	return m.features.IsEnabled(ctx, feature)
}
