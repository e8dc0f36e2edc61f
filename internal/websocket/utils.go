// internal/websocket/utils.go
package websocket

import (
	"fmt"
	"strings"
)

// Typed lets a broadcast payload choose its envelope Type.
type Typed interface {
	MessageType() string
}

// TypeName returns the bare Go type name of v: no pointer, package or
// type arguments. "*handler.PingHandler" becomes "PingHandler".
func TypeName(v any) string {
	name := strings.TrimLeft(fmt.Sprintf("%T", v), "*[]")
	if i := strings.IndexByte(name, '['); i > 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// MessageTypeOf names the envelope Type used for an outbound message.
func MessageTypeOf(v any) string {
	if t, ok := v.(Typed); ok {
		return t.MessageType()
	}
	return TypeName(v)
}
