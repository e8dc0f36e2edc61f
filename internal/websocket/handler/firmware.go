// internal/websocket/handler/firmware.go
package handler

import (
	"context"
	"fmt"

	"leaven-service/internal/domain/realtime"
	xerrors "leaven-service/internal/pkg/errors"
	ws "leaven-service/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SubscribeToFirmwareNotifications struct {
	ClientType string `json:"clientType"`
}

type FirmwareNotificationsSubscribed struct {
	Topic string `json:"topic"`
}

type FirmwareNotificationSubscriptionHandler struct {
	subs Subscriptions
}

func NewFirmwareNotificationSubscriptionHandler(subs Subscriptions) *FirmwareNotificationSubscriptionHandler {
	return &FirmwareNotificationSubscriptionHandler{subs: subs}
}

func (h *FirmwareNotificationSubscriptionHandler) TopicKey(req *SubscribeToFirmwareNotifications, clientID string) string {
	return realtime.TopicFirmwareAvailable
}

func (h *FirmwareNotificationSubscriptionHandler) Handle(ctx context.Context, req *SubscribeToFirmwareNotifications, clientID string, conn ws.Connection) (*FirmwareNotificationsSubscribed, error) {
	topic := h.TopicKey(req, clientID)
	if err := h.subs.Subscribe(ctx, clientID, topic); err != nil {
		return nil, err
	}
	return &FirmwareNotificationsSubscribed{Topic: topic}, nil
}

type MakeFirmwareAvailableRequest struct {
	FirmwareID string `json:"firmwareId" validate:"required,uuid"`
}

type MakeFirmwareAvailableResponse struct {
	FirmwareID uuid.UUID `json:"firmwareId"`
}

// MakeFirmwareAvailableHandler announces a stored firmware build to every
// subscriber of the firmware topic.
type MakeFirmwareAvailableHandler struct {
	subs     Subscriptions
	firmware FirmwareRepository
	logger   *zap.Logger
}

func NewMakeFirmwareAvailableHandler(subs Subscriptions, repo FirmwareRepository, logger *zap.Logger) *MakeFirmwareAvailableHandler {
	return &MakeFirmwareAvailableHandler{subs: subs, firmware: repo, logger: logger}
}

func (h *MakeFirmwareAvailableHandler) Handle(ctx context.Context, req *MakeFirmwareAvailableRequest, clientID string, conn ws.Connection) (*MakeFirmwareAvailableResponse, error) {
	id, err := uuid.Parse(req.FirmwareID)
	if err != nil {
		return nil, fmt.Errorf("parse firmware id: %w", err)
	}

	fw, err := h.firmware.GetByID(ctx, id)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, ws.InvalidOperation("Firmware not found: %s", id)
		}
		return nil, err
	}

	notification := realtime.FirmwareAvailable{
		FirmwareID:   fw.ID.String(),
		Version:      fw.Version,
		Description:  fw.Description,
		ReleaseNotes: fw.ReleaseNotes.String,
		IsStable:     fw.IsStable,
		FileSize:     fw.FileSize,
	}
	if err := h.subs.Broadcast(ctx, realtime.TopicFirmwareAvailable, notification); err != nil {
		return nil, err
	}

	h.logger.Info("broadcasted firmware availability",
		zap.String("firmware_id", fw.ID.String()),
		zap.String("version", fw.Version),
	)
	return &MakeFirmwareAvailableResponse{FirmwareID: fw.ID}, nil
}
