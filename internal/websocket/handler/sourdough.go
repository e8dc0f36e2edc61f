// internal/websocket/handler/sourdough.go
package handler

import (
	"context"

	"leaven-service/internal/domain/realtime"
	ws "leaven-service/internal/websocket"

	"github.com/google/uuid"
)

type SubscribeToSourdoughData struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
}

type SourdoughDataSubscribed struct {
	UserID       uuid.UUID `json:"userId"`
	ConnectionID string    `json:"connectionId"`
}

// SourdoughDataHandler subscribes the client to a user's live readings.
type SourdoughDataHandler struct {
	subs Subscriptions
}

func NewSourdoughDataHandler(subs Subscriptions) *SourdoughDataHandler {
	return &SourdoughDataHandler{subs: subs}
}

func (h *SourdoughDataHandler) TopicKey(req *SubscribeToSourdoughData, clientID string) string {
	return realtime.SourdoughDataTopic(req.UserID)
}

func (h *SourdoughDataHandler) Handle(ctx context.Context, req *SubscribeToSourdoughData, clientID string, conn ws.Connection) (*SourdoughDataSubscribed, error) {
	if err := h.subs.Subscribe(ctx, clientID, h.TopicKey(req, clientID)); err != nil {
		return nil, err
	}
	return &SourdoughDataSubscribed{UserID: req.UserID, ConnectionID: conn.ID()}, nil
}
