// internal/service/auth/device.go
package auth

import (
	"context"
	"fmt"
	"strings"

	"leaven-service/internal/domain/auth"
	xerrors "leaven-service/internal/pkg/errors"
	ws "leaven-service/internal/websocket"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const devicePrefix = "Device "

type DeviceCredentialStore interface {
	FindByDeviceID(ctx context.Context, deviceID string) (*auth.DeviceCredential, error)
	TouchLastSeen(ctx context.Context, deviceID string) error
}

// DeviceAuthenticator accepts "Device {deviceId}:{secret}" credentials
// issued to device bridges and analyzers.
type DeviceAuthenticator struct {
	store  DeviceCredentialStore
	logger *zap.Logger
}

var _ ws.Authenticator = (*DeviceAuthenticator)(nil)

func NewDeviceAuthenticator(store DeviceCredentialStore, logger *zap.Logger) *DeviceAuthenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeviceAuthenticator{store: store, logger: logger}
}

// ParseDeviceToken splits a device credential. ok is false when the token
// is not in device form at all.
func ParseDeviceToken(token string) (deviceID, secret string, ok bool) {
	token = strings.TrimSpace(token)
	if len(token) < len(devicePrefix) || !strings.EqualFold(token[:len(devicePrefix)], devicePrefix) {
		return "", "", false
	}
	deviceID, secret, found := strings.Cut(strings.TrimSpace(token[len(devicePrefix):]), ":")
	if !found || deviceID == "" || secret == "" {
		return "", "", false
	}
	return deviceID, secret, true
}

func (a *DeviceAuthenticator) Authenticate(ctx context.Context, _ ws.Connection, token string) (ws.AuthResult, error) {
	deviceID, secret, ok := ParseDeviceToken(token)
	if !ok {
		return ws.Unauthenticated(), nil
	}

	cred, err := a.store.FindByDeviceID(ctx, deviceID)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		a.logger.Debug("unknown device", zap.String("device_id", deviceID))
		return ws.Unauthenticated(), nil
	}
	if err != nil {
		return ws.Unauthenticated(), err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.SecretHash), []byte(secret)); err != nil {
		a.logger.Warn("device secret mismatch", zap.String("device_id", deviceID))
		return ws.Unauthenticated(), nil
	}

	if err := a.store.TouchLastSeen(ctx, deviceID); err != nil {
		a.logger.Warn("failed to record device activity", zap.String("device_id", deviceID), zap.Error(err))
	}

	roles := cred.Roles
	if len(roles) == 0 {
		roles = []string{auth.RoleDevice}
	}
	return ws.AuthResult{
		IsAuthenticated: true,
		UserID:          cred.DeviceID,
		Roles:           roles,
	}, nil
}

// HashDeviceSecret produces the value stored in device_credentials.secret_hash.
func HashDeviceSecret(secret string) (string, error) {
	if len(secret) < 16 {
		return "", xerrors.Wrap(xerrors.ErrInvalidInput, "device secret must be at least 16 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash device secret: %w", err)
	}
	return string(hash), nil
}
