// internal/websocket/handler/diagnostics.go
package handler

import (
	"context"

	"leaven-service/internal/domain/auth"
	"leaven-service/internal/domain/realtime"
	ws "leaven-service/internal/websocket"

	"github.com/google/uuid"
)

const roleAdmin = auth.RoleAdmin

type SubscribeToDiagnosticsData struct {
	UserID uuid.UUID `json:"userId"`
}

type DiagnosticsDataSubscribed struct {
	UserID       uuid.UUID `json:"userId"`
	ConnectionID string    `json:"connectionId"`
}

// DiagnosticsHandler subscribes an admin to diagnostics from every analyzer.
type DiagnosticsHandler struct {
	subs Subscriptions
}

func NewDiagnosticsHandler(subs Subscriptions) *DiagnosticsHandler {
	return &DiagnosticsHandler{subs: subs}
}

func (h *DiagnosticsHandler) TopicKey(req *SubscribeToDiagnosticsData, clientID string) string {
	return realtime.TopicAllDiagnostics
}

func (h *DiagnosticsHandler) Handle(ctx context.Context, req *SubscribeToDiagnosticsData, clientID string, conn ws.Connection) (*DiagnosticsDataSubscribed, error) {
	if err := h.subs.Subscribe(ctx, clientID, h.TopicKey(req, clientID)); err != nil {
		return nil, err
	}
	return &DiagnosticsDataSubscribed{UserID: req.UserID, ConnectionID: conn.ID()}, nil
}

type UnsubscribeFromDiagnosticsData struct {
	UserID uuid.UUID `json:"userId"`
}

type DiagnosticsDataUnsubscribed struct {
	UserID uuid.UUID `json:"userId"`
	Topic  string    `json:"topic"`
}

type DiagnosticsUnsubscriptionHandler struct {
	subs Subscriptions
}

func NewDiagnosticsUnsubscriptionHandler(subs Subscriptions) *DiagnosticsUnsubscriptionHandler {
	return &DiagnosticsUnsubscriptionHandler{subs: subs}
}

func (h *DiagnosticsUnsubscriptionHandler) TopicKey(req *UnsubscribeFromDiagnosticsData, clientID string) string {
	return realtime.TopicAllDiagnostics
}

func (h *DiagnosticsUnsubscriptionHandler) Handle(ctx context.Context, req *UnsubscribeFromDiagnosticsData, clientID string, conn ws.Connection) (*DiagnosticsDataUnsubscribed, error) {
	topic := h.TopicKey(req, clientID)
	if err := h.subs.Unsubscribe(ctx, clientID, topic); err != nil {
		return nil, err
	}
	return &DiagnosticsDataUnsubscribed{UserID: req.UserID, Topic: topic}, nil
}
