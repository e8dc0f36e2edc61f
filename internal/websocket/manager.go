// internal/websocket/manager.go
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	wstypes "leaven-service/internal/domain/websocket"
	"leaven-service/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Manager tracks connections, client ids and topic membership.
//
// Broadcast reaches subscribers on every instance. SendToLocalClient only
// reaches connections held by this instance and must not be used to
// notify a client that may be connected elsewhere.
type Manager interface {
	ClientResolver
	OnOpen(ctx context.Context, conn Connection, clientID string) error
	OnClose(ctx context.Context, conn Connection) error
	Subscribe(ctx context.Context, clientID, topic string) error
	Unsubscribe(ctx context.Context, clientID, topic string) error
	IsSubscribed(ctx context.Context, clientID, topic string) (bool, error)
	GetTopics(ctx context.Context, clientID string) ([]string, error)
	GetSubscribers(ctx context.Context, topic string) ([]string, error)
	Broadcast(ctx context.Context, topic string, message any) error
	SendToLocalClient(ctx context.Context, clientID string, message any) (int, error)
}

// ManagerOption configures a RedisManager.
type ManagerOption func(*RedisManager)

func WithInstanceID(id string) ManagerOption {
	return func(m *RedisManager) {
		m.instanceID = id
	}
}

func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(m *RedisManager) {
		m.logger = l
	}
}

func WithManagerMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *RedisManager) {
		m.metrics = mt
	}
}

// RedisManager keeps live sockets in the local Hub and everything that
// must be visible cluster-wide in redis.
type RedisManager struct {
	rdb        redis.UniversalClient
	hub        *Hub
	instanceID string
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

var _ Manager = (*RedisManager)(nil)

func NewRedisManager(rdb redis.UniversalClient, hub *Hub, opts ...ManagerOption) *RedisManager {
	m := &RedisManager{
		rdb:    rdb,
		hub:    hub,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnOpen registers conn under clientID. A client may hold any number of
// connections at once.
func (m *RedisManager) OnOpen(ctx context.Context, conn Connection, clientID string) error {
	id := conn.ID()
	if _, ok := m.hub.ClientID(id); !ok {
		m.metrics.ConnectionOpened()
	}
	m.hub.Add(conn, clientID)

	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, socketKey(id),
			"clientId", clientID,
			"instance", m.instanceID,
			"connectedAt", m.now().UTC().Format(time.RFC3339),
		)
		pipe.Set(ctx, socketToClientKey(id), clientID, 0)
		pipe.SAdd(ctx, activeSocketsKey, id)
		pipe.SAdd(ctx, clientSocketsKey(clientID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register socket %s: %w", id, err)
	}

	m.logger.Info("websocket client connected",
		zap.String("client_id", clientID),
		zap.String("connection_id", id),
		zap.Int("local_connections", m.hub.TotalConnections()),
	)
	return nil
}

// OnClose deregisters conn. The client's topic memberships are kept so a
// reconnect under the same id resumes its subscriptions.
func (m *RedisManager) OnClose(ctx context.Context, conn Connection) error {
	id := conn.ID()
	clientID, ok := m.hub.Remove(id)
	if !ok {
		return nil
	}
	m.metrics.ConnectionClosed()

	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, socketKey(id), socketToClientKey(id))
		pipe.SRem(ctx, activeSocketsKey, id)
		pipe.SRem(ctx, clientSocketsKey(clientID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to deregister socket %s: %w", id, err)
	}

	m.logger.Info("websocket client disconnected",
		zap.String("client_id", clientID),
		zap.String("connection_id", id),
		zap.Int("local_connections", m.hub.TotalConnections()),
	)
	return nil
}

func (m *RedisManager) TryGetClientID(conn Connection) (string, bool) {
	if conn == nil {
		return "", false
	}
	return m.hub.ClientID(conn.ID())
}

func (m *RedisManager) Subscribe(ctx context.Context, clientID, topic string) error {
	_, err := m.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, clientTopicsKey(clientID), topic)
		pipe.SAdd(ctx, topicSubscribersKey(topic), clientID)
		pipe.SAdd(ctx, topicsKey, topic)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe %s to %s: %w", clientID, topic, err)
	}
	return nil
}

// unsubscribeScript drops the membership and prunes the topic from the
// index only if no subscriber is left. It runs as one step so a concurrent
// Subscribe cannot land between the emptiness check and the prune.
var unsubscribeScript = redis.NewScript(`
redis.call('SREM', KEYS[1], ARGV[2])
redis.call('SREM', KEYS[2], ARGV[1])
if redis.call('SCARD', KEYS[2]) == 0 then
	redis.call('SREM', KEYS[3], ARGV[2])
	return 1
end
return 0
`)

func (m *RedisManager) Unsubscribe(ctx context.Context, clientID, topic string) error {
	keys := []string{clientTopicsKey(clientID), topicSubscribersKey(topic), topicsKey}
	if err := unsubscribeScript.Run(ctx, m.rdb, keys, clientID, topic).Err(); err != nil {
		return fmt.Errorf("failed to unsubscribe %s from %s: %w", clientID, topic, err)
	}
	return nil
}

func (m *RedisManager) IsSubscribed(ctx context.Context, clientID, topic string) (bool, error) {
	ok, err := m.rdb.SIsMember(ctx, topicSubscribersKey(topic), clientID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}
	return ok, nil
}

func (m *RedisManager) GetTopics(ctx context.Context, clientID string) ([]string, error) {
	topics, err := m.rdb.SMembers(ctx, clientTopicsKey(clientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get topics for %s: %w", clientID, err)
	}
	return topics, nil
}

func (m *RedisManager) GetSubscribers(ctx context.Context, topic string) ([]string, error) {
	subs, err := m.rdb.SMembers(ctx, topicSubscribersKey(topic)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get subscribers of %s: %w", topic, err)
	}
	return subs, nil
}

// GetAllTopics lists every topic with at least one subscriber.
func (m *RedisManager) GetAllTopics(ctx context.Context) ([]string, error) {
	topics, err := m.rdb.SMembers(ctx, topicsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// GetSockets lists the client's connection ids across all instances.
func (m *RedisManager) GetSockets(ctx context.Context, clientID string) ([]string, error) {
	ids, err := m.rdb.SMembers(ctx, clientSocketsKey(clientID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get sockets for %s: %w", clientID, err)
	}
	return ids, nil
}

// Broadcast publishes message once on the topic channel. Every instance's
// SubscriptionListener, including this one, writes it to the topic's
// subscribers that it holds locally. Delivery is best effort.
func (m *RedisManager) Broadcast(ctx context.Context, topic string, message any) error {
	data, err := json.Marshal(wstypes.Broadcast{
		Type:    MessageTypeOf(message),
		Topic:   topic,
		Payload: message,
	})
	if err != nil {
		m.metrics.RecordBroadcast("error")
		return fmt.Errorf("failed to marshal broadcast for %s: %w", topic, err)
	}

	n, err := m.rdb.SCard(ctx, topicSubscribersKey(topic)).Result()
	if err != nil {
		m.metrics.RecordBroadcast("error")
		return fmt.Errorf("failed to count subscribers of %s: %w", topic, err)
	}
	if n == 0 {
		m.metrics.RecordBroadcast("skipped")
		return nil
	}

	if err := m.rdb.Publish(ctx, topicChannel(topic), data).Err(); err != nil {
		m.metrics.RecordBroadcast("error")
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	m.metrics.RecordBroadcast("published")
	return nil
}

// SendToLocalClient writes message to the client's connections on this
// instance only and returns how many accepted it. Use Broadcast for
// cluster-wide delivery.
func (m *RedisManager) SendToLocalClient(ctx context.Context, clientID string, message any) (int, error) {
	data, err := json.Marshal(wstypes.Broadcast{
		Type:    MessageTypeOf(message),
		Payload: message,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message for %s: %w", clientID, err)
	}

	sent := 0
	for _, conn := range m.hub.Connections(clientID) {
		if err := conn.Send(data); err != nil {
			m.logger.Debug("local send failed",
				zap.String("client_id", clientID),
				zap.String("connection_id", conn.ID()),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	m.metrics.RecordDeliveries(sent)
	return sent, nil
}

// LocalConnectionCount is the number of sockets held by this instance.
func (m *RedisManager) LocalConnectionCount() int {
	return m.hub.TotalConnections()
}

func (m *RedisManager) LocalClientCount() int {
	return m.hub.TotalClients()
}
