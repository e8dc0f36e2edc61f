// internal/websocket/dispatcher.go
package websocket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	wstypes "leaven-service/internal/domain/websocket"
	"leaven-service/internal/metrics"

	"go.uber.org/zap"
)

const (
	outcomeOK      = "ok"
	outcomeStopped = "stopped"
	unknownType    = "unknown"
)

// ClientResolver maps a physical connection to its client id.
type ClientResolver interface {
	TryGetClientID(conn Connection) (string, bool)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

func WithAuthPolicy(p AuthPolicy) DispatcherOption {
	return func(d *Dispatcher) {
		d.policy = p
	}
}

func WithAuthenticator(a Authenticator) DispatcherOption {
	return func(d *Dispatcher) {
		d.authenticator = a
	}
}

// WithMiddleware appends middlewares. Registration order is nesting order.
func WithMiddleware(mws ...Middleware) DispatcherOption {
	return func(d *Dispatcher) {
		d.middlewares = append(d.middlewares, mws...)
	}
}

func WithErrorMapper(m ErrorMapper) DispatcherOption {
	return func(d *Dispatcher) {
		d.mapper = m
	}
}

func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// Dispatcher runs the per-message pipeline: parse, resolve client,
// resolve type, decode, validate, authorize, middleware, invoke, reply.
// It is safe for concurrent use; every call is independent.
type Dispatcher struct {
	registry      *Registry
	clients       ClientResolver
	authenticator Authenticator
	policy        AuthPolicy
	middlewares   []Middleware
	mapper        ErrorMapper
	logger        *zap.Logger
	metrics       *metrics.Metrics

	pipeline stage
}

func NewDispatcher(registry *Registry, clients ClientResolver, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		clients:  clients,
		policy:   PolicyBlacklist,
		mapper:   DefaultErrorMapper{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.pipeline = chain(d.middlewares, d.invoke)
	return d
}

// call is the state of one dispatch.
type call struct {
	conn      Connection
	raw       []byte
	requestID string
	clientID  string
	env       *wstypes.Envelope
	desc      *Descriptor
	req       any

	resp      any
	topicKey  string
	completed bool
}

func (c *call) messageType() string {
	if c.desc == nil {
		return unknownType
	}
	return c.desc.MessageType
}

// Dispatch processes one raw frame from conn and writes the reply, if
// any, to conn only. It never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, conn Connection, raw []byte) {
	start := time.Now()
	c := &call{
		conn:      conn,
		raw:       raw,
		requestID: wstypes.RequestIDUnavailable,
	}

	outcome := d.run(ctx, c)
	d.metrics.ObserveMessage(c.messageType(), outcome, time.Since(start))
}

func (d *Dispatcher) run(ctx context.Context, c *call) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			outcome = d.fail(c, fmt.Errorf("panic: %v", r))
		}
	}()

	env, err := wstypes.ParseEnvelope(c.raw)
	if err != nil {
		return d.reject(c, wstypes.CodeInvalidMessage, "Invalid message format")
	}
	c.env = env
	c.requestID = env.RequestID
	if c.requestID == "" {
		c.requestID = wstypes.NoRequestID
	}

	clientID, ok := d.clients.TryGetClientID(c.conn)
	if !ok {
		return d.reject(c, wstypes.CodeConnectionError, "Connection is not registered")
	}
	c.clientID = clientID

	if strings.TrimSpace(env.Type) == "" {
		return d.reject(c, wstypes.CodeInvalidMessage, "Message type is required")
	}
	desc, ok := d.registry.Lookup(env.Type)
	if !ok {
		return d.reject(c, wstypes.CodeUnknownMessage, fmt.Sprintf("Unknown message type: %s", env.Type))
	}
	c.desc = desc

	if !env.HasPayload() {
		return d.reject(c, wstypes.CodeInvalidMessage, "Message payload is required")
	}
	req, err := desc.decode(env.Payload)
	if err != nil {
		return d.reject(c, wstypes.CodeInvalidMessage, fmt.Sprintf("Invalid payload for %s", desc.MessageType))
	}
	c.req = req

	if desc.validate != nil {
		if err := desc.validate(ctx, req); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				return d.reject(c, wstypes.CodeValidationError, verr.Error())
			}
			return d.fail(c, err)
		}
	}

	auth := Unauthenticated()
	if d.policy.RequiresAuth(desc) {
		auth, err = d.authenticate(ctx, c)
		if err != nil {
			return d.fail(c, err)
		}
		if !auth.IsAuthenticated {
			return d.reject(c, wstypes.CodeUnauthorized, "Authentication required")
		}
		if len(desc.Roles) > 0 && !auth.HasAnyRole(desc.Roles...) {
			return d.reject(c, wstypes.CodeForbidden, "Insufficient permissions")
		}
	}
	ctx = ContextWithAuth(ctx, auth)
	ctx = ContextWithMessageType(ctx, desc.MessageType)

	if err := d.pipeline(ctx, c); err != nil {
		return d.fail(c, err)
	}
	if !c.completed {
		return outcomeStopped
	}

	d.send(c, wstypes.NewReply(desc.ResponseType, c.requestID, c.topicKey, c.resp))
	return outcomeOK
}

func (d *Dispatcher) authenticate(ctx context.Context, c *call) (AuthResult, error) {
	token := strings.TrimSpace(c.env.Token)
	if token == "" || d.authenticator == nil {
		return Unauthenticated(), nil
	}
	return d.authenticator.Authenticate(ctx, c.conn, token)
}

func (d *Dispatcher) invoke(ctx context.Context, c *call) error {
	resp, err := c.desc.invoke(ctx, c.req, c.clientID, c.conn)
	if err != nil {
		return err
	}
	c.resp = resp
	if c.desc.topicKey != nil {
		c.topicKey = c.desc.topicKey(c.req, c.clientID)
	}
	c.completed = true
	return nil
}

func (d *Dispatcher) reject(c *call, code wstypes.ErrorCode, message string) string {
	d.send(c, wstypes.NewError(c.requestID, code, message))
	return string(code)
}

func (d *Dispatcher) fail(c *call, err error) string {
	code, message := d.mapper.MapError(err)

	fields := []zap.Field{
		zap.String("message_type", c.messageType()),
		zap.String("request_id", c.requestID),
		zap.String("client_id", c.clientID),
		zap.String("connection_id", c.conn.ID()),
		zap.String("code", string(code)),
		zap.Error(err),
	}
	if code == wstypes.CodeInternalError {
		d.logger.Error("websocket dispatch failed", fields...)
	} else {
		d.logger.Debug("websocket dispatch rejected", fields...)
	}

	return d.reject(c, code, message)
}

type jsonMessage interface {
	ToJSON() ([]byte, error)
}

func (d *Dispatcher) send(c *call, msg jsonMessage) {
	data, err := msg.ToJSON()
	if err != nil {
		d.logger.Error("failed to marshal reply",
			zap.String("message_type", c.messageType()),
			zap.String("request_id", c.requestID),
			zap.Error(err),
		)
		data, _ = wstypes.NewError(c.requestID, wstypes.CodeInternalError, "An unexpected error occurred").ToJSON()
	}

	if err := c.conn.Send(data); err != nil {
		d.logger.Debug("failed to send reply",
			zap.String("connection_id", c.conn.ID()),
			zap.String("request_id", c.requestID),
			zap.Error(err),
		)
	}
}
