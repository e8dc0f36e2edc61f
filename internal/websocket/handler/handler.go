// internal/websocket/handler/handler.go
package handler

import (
	"context"

	"leaven-service/internal/domain/firmware"
	ws "leaven-service/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscriptions is the part of the connection manager handlers use.
type Subscriptions interface {
	Subscribe(ctx context.Context, clientID, topic string) error
	Unsubscribe(ctx context.Context, clientID, topic string) error
	GetTopics(ctx context.Context, clientID string) ([]string, error)
	Broadcast(ctx context.Context, topic string, message any) error
}

// FirmwareRepository returns xerrors.ErrNotFound for unknown ids.
type FirmwareRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*firmware.Firmware, error)
}

// Deps are the collaborators shared by the message handlers.
type Deps struct {
	Subscriptions Subscriptions
	Firmware      FirmwareRepository
	Logger        *zap.Logger
}

// Registry builds the handler registry served on the websocket endpoint.
func Registry(deps Deps) (*ws.Registry, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	subs := deps.Subscriptions

	return ws.NewRegistry(
		ws.Register[Ping, Pong](NewPingHandler(logger), ws.AllowAnonymous()),
		ws.Register[JoinRoom, UserJoined](NewJoinRoomHandler(subs),
			ws.AllowAnonymous(),
			ws.WithValidator(joinRoomValidator),
		),
		ws.Register[SubscribeToSourdoughData, SourdoughDataSubscribed](NewSourdoughDataHandler(subs),
			ws.AllowAnonymous(),
			ws.WithValidator(ws.StructValidator[SubscribeToSourdoughData]()),
		),
		ws.Register[SubscribeToDiagnosticsData, DiagnosticsDataSubscribed](NewDiagnosticsHandler(subs),
			ws.Authorize(roleAdmin),
		),
		ws.Register[UnsubscribeFromDiagnosticsData, DiagnosticsDataUnsubscribed](NewDiagnosticsUnsubscriptionHandler(subs),
			ws.Authorize(roleAdmin),
		),
		ws.Register[SubscribeToFirmwareNotifications, FirmwareNotificationsSubscribed](NewFirmwareNotificationSubscriptionHandler(subs),
			ws.Authorize(),
		),
		ws.Register[SubscribeToOtaProgress, OtaProgressSubscribed](NewOtaProgressSubscriptionHandler(subs),
			ws.Authorize(),
			ws.WithValidator(ws.StructValidator[SubscribeToOtaProgress]()),
		),
		ws.Register[UnsubscribeFromOtaProgress, OtaProgressUnsubscribed](NewOtaProgressUnsubscriptionHandler(subs),
			ws.Authorize(),
			ws.WithValidator(ws.StructValidator[UnsubscribeFromOtaProgress]()),
		),
		ws.Register[MakeFirmwareAvailableRequest, MakeFirmwareAvailableResponse](NewMakeFirmwareAvailableHandler(subs, deps.Firmware, logger),
			ws.Authorize(roleAdmin),
			ws.WithValidator(ws.StructValidator[MakeFirmwareAvailableRequest]()),
		),
	)
}
