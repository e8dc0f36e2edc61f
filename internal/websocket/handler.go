// internal/websocket/handler.go
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Handler is a unit of business logic bound to exactly one message type.
type Handler[Req, Resp any] interface {
	Handle(ctx context.Context, req *Req, clientID string, conn Connection) (*Resp, error)
}

// TopicKeyer is implemented by subscription and unsubscription handlers.
// TopicKey must be pure: the dispatcher calls it after Handle to fill
// the TopicKey of the reply.
type TopicKeyer[Req any] interface {
	TopicKey(req *Req, clientID string) string
}

// Descriptor is the uniform, statically typed registration of one handler.
// The closures are built by Register, so dispatch never reflects on types.
type Descriptor struct {
	MessageType    string
	ResponseType   string
	AllowAnonymous bool
	RequireAuth    bool
	Roles          []string

	decode   func(payload json.RawMessage) (any, error)
	validate func(ctx context.Context, req any) error
	invoke   func(ctx context.Context, req any, clientID string, conn Connection) (any, error)
	topicKey func(req any, clientID string) string

	err error
}

// IsSubscription reports whether replies carry a TopicKey.
func (d *Descriptor) IsSubscription() bool {
	return d.topicKey != nil
}

type handlerOptions struct {
	messageType    string
	responseType   string
	allowAnonymous bool
	requireAuth    bool
	roles          []string
	validator      any
}

// HandlerOption configures a registration.
type HandlerOption func(*handlerOptions)

// WithMessageType overrides the message type derived from the handler's type name.
func WithMessageType(name string) HandlerOption {
	return func(o *handlerOptions) {
		o.messageType = name
	}
}

// WithResponseType overrides the response type derived from the response's type name.
func WithResponseType(name string) HandlerOption {
	return func(o *handlerOptions) {
		o.responseType = name
	}
}

// AllowAnonymous exempts the handler from authentication under every policy.
func AllowAnonymous() HandlerOption {
	return func(o *handlerOptions) {
		o.allowAnonymous = true
	}
}

// Authorize marks the handler as requiring authentication. When roles are
// given the caller must hold at least one of them.
func Authorize(roles ...string) HandlerOption {
	return func(o *handlerOptions) {
		o.requireAuth = true
		o.roles = append(o.roles, roles...)
	}
}

// WithValidator attaches a validator for the handler's request type.
func WithValidator[Req any](v Validator[Req]) HandlerOption {
	return func(o *handlerOptions) {
		o.validator = v
	}
}

// Register builds the descriptor for h. Configuration mistakes are kept on
// the descriptor and reported by NewRegistry.
func Register[Req, Resp any](h Handler[Req, Resp], opts ...HandlerOption) Descriptor {
	var o handlerOptions
	for _, opt := range opts {
		opt(&o)
	}

	desc := Descriptor{
		MessageType:    o.messageType,
		ResponseType:   o.responseType,
		AllowAnonymous: o.allowAnonymous,
		RequireAuth:    o.requireAuth,
		Roles:          o.roles,
		decode: func(payload json.RawMessage) (any, error) {
			req := new(Req)
			if err := json.Unmarshal(payload, req); err != nil {
				return nil, err
			}
			return req, nil
		},
		invoke: func(ctx context.Context, req any, clientID string, conn Connection) (any, error) {
			resp, err := h.Handle(ctx, req.(*Req), clientID, conn)
			if err != nil {
				return nil, err
			}
			return resp, nil
		},
	}

	if desc.MessageType == "" {
		desc.MessageType = strings.TrimSuffix(TypeName(h), "Handler")
	}
	if desc.ResponseType == "" {
		desc.ResponseType = TypeName(new(Resp))
	}

	if tk, ok := any(h).(TopicKeyer[Req]); ok {
		desc.topicKey = func(req any, clientID string) string {
			return tk.TopicKey(req.(*Req), clientID)
		}
	}

	if o.validator != nil {
		v, ok := o.validator.(Validator[Req])
		if !ok {
			desc.err = fmt.Errorf("validator %T does not accept %s", o.validator, TypeName(new(Req)))
		} else {
			desc.validate = func(ctx context.Context, req any) error {
				return v.Validate(ctx, req.(*Req))
			}
		}
	}

	return desc
}

// Registry is the immutable, case-insensitive map from message type to
// descriptor. It is safe for concurrent lookups without locking.
type Registry struct {
	handlers map[string]*Descriptor
}

// NewRegistry fails on empty or duplicate message types.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		handlers: make(map[string]*Descriptor, len(descs)),
	}

	for i := range descs {
		d := descs[i]
		if d.err != nil {
			return nil, fmt.Errorf("register %q: %w", d.MessageType, d.err)
		}
		if strings.TrimSpace(d.MessageType) == "" {
			return nil, ErrEmptyMessageType
		}
		key := strings.ToLower(d.MessageType)
		if existing, ok := r.handlers[key]; ok {
			return nil, fmt.Errorf("%w: %q conflicts with %q", ErrDuplicateMessageType, d.MessageType, existing.MessageType)
		}
		r.handlers[key] = &d
	}

	return r, nil
}

// Lookup returns the descriptor registered for messageType.
func (r *Registry) Lookup(messageType string) (*Descriptor, bool) {
	d, ok := r.handlers[strings.ToLower(messageType)]
	return d, ok
}

// MessageTypes lists the registered message types in sorted order.
func (r *Registry) MessageTypes() []string {
	types := make([]string, 0, len(r.handlers))
	for _, d := range r.handlers {
		types = append(types, d.MessageType)
	}
	sort.Strings(types)
	return types
}
