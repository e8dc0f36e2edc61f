// internal/websocket/middleware.go
package websocket

import "context"

// Next continues the pipeline.
type Next func(ctx context.Context) error

// Middleware wraps handler invocation. Returning without calling next
// stops the pipeline; a middleware that stops is responsible for any
// reply the client should see.
type Middleware interface {
	Invoke(ctx context.Context, conn Connection, raw []byte, next Next) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(ctx context.Context, conn Connection, raw []byte, next Next) error

func (f MiddlewareFunc) Invoke(ctx context.Context, conn Connection, raw []byte, next Next) error {
	return f(ctx, conn, raw, next)
}

type stage func(ctx context.Context, c *call) error

// chain composes the middlewares around terminal once. The first
// middleware is outermost.
func chain(mws []Middleware, terminal stage) stage {
	h := terminal
	for i := len(mws) - 1; i >= 0; i-- {
		mw, next := mws[i], h
		h = func(ctx context.Context, c *call) error {
			return mw.Invoke(ctx, c.conn, c.raw, func(ctx context.Context) error {
				return next(ctx, c)
			})
		}
	}
	return h
}

type messageTypeContextKey struct{}

// ContextWithMessageType records the registered message type of the
// dispatch, whatever casing the client used.
func ContextWithMessageType(ctx context.Context, messageType string) context.Context {
	return context.WithValue(ctx, messageTypeContextKey{}, messageType)
}

// MessageTypeFromContext returns the registered message type set by the
// dispatcher.
func MessageTypeFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(messageTypeContextKey{}).(string)
	return t, ok && t != ""
}
