// internal/websocket/handler/ota.go
package handler

import (
	"context"

	"leaven-service/internal/domain/realtime"
	ws "leaven-service/internal/websocket"

	"github.com/google/uuid"
)

type SubscribeToOtaProgress struct {
	AnalyzerID string `json:"analyzerId" validate:"required,uuid"`
}

type OtaProgressSubscribed struct {
	Topic string `json:"topic"`
}

// OtaProgressSubscriptionHandler follows firmware update progress of one analyzer.
type OtaProgressSubscriptionHandler struct {
	subs Subscriptions
}

func NewOtaProgressSubscriptionHandler(subs Subscriptions) *OtaProgressSubscriptionHandler {
	return &OtaProgressSubscriptionHandler{subs: subs}
}

// TopicKey relies on the validator having accepted AnalyzerID.
func (h *OtaProgressSubscriptionHandler) TopicKey(req *SubscribeToOtaProgress, clientID string) string {
	return realtime.OtaProgressTopic(uuid.MustParse(req.AnalyzerID))
}

func (h *OtaProgressSubscriptionHandler) Handle(ctx context.Context, req *SubscribeToOtaProgress, clientID string, conn ws.Connection) (*OtaProgressSubscribed, error) {
	topic := h.TopicKey(req, clientID)
	if err := h.subs.Subscribe(ctx, clientID, topic); err != nil {
		return nil, err
	}
	return &OtaProgressSubscribed{Topic: topic}, nil
}

type UnsubscribeFromOtaProgress struct {
	AnalyzerID string `json:"analyzerId" validate:"required,uuid"`
}

type OtaProgressUnsubscribed struct {
	Topic string `json:"topic"`
}

type OtaProgressUnsubscriptionHandler struct {
	subs Subscriptions
}

func NewOtaProgressUnsubscriptionHandler(subs Subscriptions) *OtaProgressUnsubscriptionHandler {
	return &OtaProgressUnsubscriptionHandler{subs: subs}
}

func (h *OtaProgressUnsubscriptionHandler) TopicKey(req *UnsubscribeFromOtaProgress, clientID string) string {
	return realtime.OtaProgressTopic(uuid.MustParse(req.AnalyzerID))
}

func (h *OtaProgressUnsubscriptionHandler) Handle(ctx context.Context, req *UnsubscribeFromOtaProgress, clientID string, conn ws.Connection) (*OtaProgressUnsubscribed, error) {
	topic := h.TopicKey(req, clientID)
	if err := h.subs.Unsubscribe(ctx, clientID, topic); err != nil {
		return nil, err
	}
	return &OtaProgressUnsubscribed{Topic: topic}, nil
}
