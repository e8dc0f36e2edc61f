// internal/websocket/handler/room.go
package handler

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"leaven-service/internal/domain/realtime"
	ws "leaven-service/internal/websocket"
)

type JoinRoom struct {
	RoomID   string `json:"roomId" validate:"required"`
	Username string `json:"username" validate:"required,min=2,max=50"`
}

type UserJoined struct {
	RoomID       string `json:"roomId"`
	Username     string `json:"username"`
	ConnectionID string `json:"connectionId"`
}

var joinRoomValidator = ws.StructValidator[JoinRoom](func(r *JoinRoom) []string {
	if r.Username != "" && strings.TrimSpace(r.Username) == "" {
		return []string{"username cannot be whitespace only"}
	}
	return nil
})

// JoinRoomHandler subscribes the client to a chat room and announces it
// to the room the first time.
type JoinRoomHandler struct {
	subs Subscriptions
}

func NewJoinRoomHandler(subs Subscriptions) *JoinRoomHandler {
	return &JoinRoomHandler{subs: subs}
}

func (h *JoinRoomHandler) TopicKey(req *JoinRoom, clientID string) string {
	return realtime.RoomTopic(req.RoomID)
}

func (h *JoinRoomHandler) Handle(ctx context.Context, req *JoinRoom, clientID string, conn ws.Connection) (*UserJoined, error) {
	topic := h.TopicKey(req, clientID)

	existing, err := h.subs.GetTopics(ctx, clientID)
	if err != nil {
		return nil, err
	}
	alreadySubscribed := slices.Contains(existing, topic)

	if err := h.subs.Subscribe(ctx, clientID, topic); err != nil {
		return nil, err
	}

	if !alreadySubscribed {
		if err := h.subs.Broadcast(ctx, topic, realtime.RoomMessage{RoomID: req.RoomID, Status: "User joined"}); err != nil {
			return nil, fmt.Errorf("announce join: %w", err)
		}
	}

	return &UserJoined{
		RoomID:       req.RoomID,
		Username:     req.Username,
		ConnectionID: conn.ID(),
	}, nil
}
