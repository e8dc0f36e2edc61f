// internal/websocket/handler/ping.go
package handler

import (
	"context"
	"time"

	ws "leaven-service/internal/websocket"

	"go.uber.org/zap"
)

type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

type Pong struct {
	Timestamp       int64 `json:"timestamp"`
	ServerTimestamp int64 `json:"serverTimestamp"`
}

type PingHandler struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewPingHandler(logger *zap.Logger) *PingHandler {
	return &PingHandler{logger: logger, now: time.Now}
}

func (h *PingHandler) Handle(ctx context.Context, req *Ping, clientID string, conn ws.Connection) (*Pong, error) {
	h.logger.Debug("ping", zap.String("client_id", clientID))
	return &Pong{
		Timestamp:       req.Timestamp,
		ServerTimestamp: h.now().UnixMilli(),
	}, nil
}
