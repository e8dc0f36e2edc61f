// internal/handlers/websocket/websocket.go
package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"leaven-service/internal/domain/realtime"
	"leaven-service/internal/pkg/response"
	ws "leaven-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const closeTimeout = 5 * time.Second

// EventPublisher pushes admin-authored events to a topic.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, req *realtime.BroadcastRequest) (*realtime.PublishResult, error)
}

type Config struct {
	InstanceID     string
	AllowedOrigins []string
	SendBuffer     int
}

type WebSocketHandler struct {
	manager    *ws.RedisManager
	dispatcher ws.MessageDispatcher
	registry   *ws.Registry
	publisher  EventPublisher
	upgrader   websocket.Upgrader
	cfg        Config
	logger     *zap.Logger

	mu       sync.Mutex
	live     map[*ws.Client]struct{}
	draining bool
	wg       sync.WaitGroup
}

func NewWebSocketHandler(
	manager *ws.RedisManager,
	dispatcher ws.MessageDispatcher,
	registry *ws.Registry,
	publisher EventPublisher,
	cfg Config,
	logger *zap.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		manager:    manager,
		dispatcher: dispatcher,
		registry:   registry,
		publisher:  publisher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		cfg:    cfg,
		logger: logger,
		live:   make(map[*ws.Client]struct{}),
	}
}

// originChecker allows the listed origins. "*" allows any origin; an empty
// list falls back to gorilla's same-origin check.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

// HandleConnection upgrades GET {WS_PATH}?id={clientId} and serves the
// socket until the peer goes away. Authentication happens per message.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	clientID := strings.TrimSpace(c.Query("id"))
	if clientID == "" {
		response.Error(c, http.StatusBadRequest, "missing client id", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed",
			zap.Error(err),
			zap.String("ip", c.ClientIP()),
		)
		return
	}

	client := ws.NewClient(uuid.NewString(), clientID, conn, h.cfg.SendBuffer, h.logger)
	if !h.track(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	defer h.untrack(client)

	openCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	err = h.manager.OnOpen(openCtx, client, clientID)
	cancel()
	if err != nil {
		h.logger.Error("failed to register websocket connection",
			zap.String("client_id", clientID),
			zap.Error(err),
		)
		h.close(client)
		_ = conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump(h.dispatcher)

	h.close(client)
}

func (h *WebSocketHandler) track(client *ws.Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.live[client] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *WebSocketHandler) untrack(client *ws.Client) {
	h.mu.Lock()
	delete(h.live, client)
	h.mu.Unlock()
	h.wg.Done()
}

// Drain refuses new upgrades, closes every socket this handler serves and
// waits until each one has been deregistered from the shared store. It
// returns ctx.Err() if the deadline passes first.
func (h *WebSocketHandler) Drain(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	clients := make([]*ws.Client, 0, len(h.live))
	for c := range h.live {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		h.logger.Info("websocket connections drained", zap.Int("connections", len(clients)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WebSocketHandler) close(client *ws.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := h.manager.OnClose(ctx, client); err != nil {
		h.logger.Warn("failed to deregister websocket connection",
			zap.String("connection_id", client.ID()),
			zap.Error(err),
		)
	}
}

// GetStats returns this instance's connection counts and the cluster's topics.
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	topics, err := h.manager.GetAllTopics(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to load topics", err)
		return
	}
	sort.Strings(topics)

	response.Success(c, http.StatusOK, "WebSocket stats", realtime.RealtimeStats{
		InstanceID:        h.cfg.InstanceID,
		LocalConnections:  h.manager.LocalConnectionCount(),
		LocalClients:      h.manager.LocalClientCount(),
		Topics:            topics,
		RegisteredHandles: h.registry.MessageTypes(),
	})
}

func (h *WebSocketHandler) GetTopicSubscribers(c *gin.Context) {
	topic := c.Param("topic")
	subs, err := h.manager.GetSubscribers(c.Request.Context(), topic)
	if err != nil {
		response.FromError(c, "failed to load subscribers", err)
		return
	}
	sort.Strings(subs)
	response.Success(c, http.StatusOK, "topic subscribers", gin.H{
		"topic":       topic,
		"subscribers": subs,
	})
}

func (h *WebSocketHandler) GetClientTopics(c *gin.Context) {
	clientID := c.Param("clientId")
	topics, err := h.manager.GetTopics(c.Request.Context(), clientID)
	if err != nil {
		response.FromError(c, "failed to load topics", err)
		return
	}
	sort.Strings(topics)
	response.Success(c, http.StatusOK, "client topics", gin.H{
		"clientId": clientID,
		"topics":   topics,
	})
}

func (h *WebSocketHandler) GetClientSockets(c *gin.Context) {
	clientID := c.Param("clientId")
	sockets, err := h.manager.GetSockets(c.Request.Context(), clientID)
	if err != nil {
		response.FromError(c, "failed to load sockets", err)
		return
	}
	sort.Strings(sockets)
	response.Success(c, http.StatusOK, "client sockets", gin.H{
		"clientId": clientID,
		"sockets":  sockets,
	})
}

// Broadcast pushes an admin event to every subscriber of the topic.
func (h *WebSocketHandler) Broadcast(c *gin.Context) {
	var req realtime.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid broadcast request", err)
		return
	}

	res, err := h.publisher.PublishEvent(c.Request.Context(), c.Param("topic"), &req)
	if err != nil {
		response.FromError(c, "broadcast failed", err)
		return
	}
	response.Success(c, http.StatusAccepted, "broadcast queued", res)
}
