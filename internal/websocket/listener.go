// internal/websocket/listener.go
package websocket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"leaven-service/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SubscriptionListener receives every topic publish in the cluster and
// writes it to the subscribers connected to this instance.
type SubscriptionListener struct {
	rdb     redis.UniversalClient
	hub     *Hub
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewSubscriptionListener(rdb redis.UniversalClient, hub *Hub, logger *zap.Logger, m *metrics.Metrics) *SubscriptionListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionListener{
		rdb:     rdb,
		hub:     hub,
		logger:  logger,
		metrics: m,
	}
}

// Start subscribes to the topic channel pattern and returns once redis
// has acknowledged the subscription, so no broadcast published after
// Start returns is missed.
func (l *SubscriptionListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pubsub != nil {
		return errors.New("subscription listener already started")
	}

	ps := l.rdb.PSubscribe(ctx, topicChannelPattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", topicChannelPattern, err)
	}

	l.pubsub = ps
	l.done = make(chan struct{})
	go l.run(ctx, ps.Channel(), l.done)

	l.logger.Info("subscription listener started", zap.String("pattern", topicChannelPattern))
	return nil
}

func (l *SubscriptionListener) run(ctx context.Context, ch <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			l.deliver(ctx, msg)
		}
	}
}

// deliver writes one published frame to local subscribers. Frames are
// handled in publish order, so each connection sees broadcasts in order.
func (l *SubscriptionListener) deliver(ctx context.Context, msg *redis.Message) int {
	topic := strings.TrimPrefix(msg.Channel, topicChannelPrefix)

	subscribers, err := l.rdb.SMembers(ctx, topicSubscribersKey(topic)).Result()
	if err != nil {
		l.logger.Error("failed to load topic subscribers",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return 0
	}

	data := []byte(msg.Payload)
	sent := 0
	for _, clientID := range subscribers {
		for _, conn := range l.hub.Connections(clientID) {
			if err := conn.Send(data); err != nil {
				l.logger.Debug("broadcast delivery failed",
					zap.String("topic", topic),
					zap.String("client_id", clientID),
					zap.String("connection_id", conn.ID()),
					zap.Error(err),
				)
				continue
			}
			sent++
		}
	}

	l.metrics.RecordDeliveries(sent)
	return sent
}

// Close stops the listener and waits for the delivery loop to exit.
func (l *SubscriptionListener) Close() error {
	l.mu.Lock()
	ps, done := l.pubsub, l.done
	l.pubsub = nil
	l.mu.Unlock()

	if ps == nil {
		return nil
	}
	err := ps.Close()
	<-done
	return err
}
