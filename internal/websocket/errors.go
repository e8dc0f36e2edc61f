// internal/websocket/errors.go
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"

	wstypes "leaven-service/internal/domain/websocket"

	"github.com/gorilla/websocket"
)

var (
	ErrDuplicateMessageType = errors.New("duplicate message type")
	ErrEmptyMessageType     = errors.New("empty message type")
	ErrSendBufferFull       = errors.New("send buffer full")
	ErrConnectionClosed     = errors.New("connection closed")

	// ErrMissingField marks a lookup of a required field that was absent.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidOperation marks an illegal-state condition raised by a handler.
	ErrInvalidOperation = errors.New("invalid operation")
)

// MissingField reports a required field that was not present.
func MissingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

// OperationError carries a client-safe message for an illegal-state condition.
type OperationError struct {
	Message string
}

func (e *OperationError) Error() string {
	return e.Message
}

func (e *OperationError) Is(target error) bool {
	return target == ErrInvalidOperation
}

// InvalidOperation returns an error mapped to OperationError whose
// message is shown to the client as is.
func InvalidOperation(format string, args ...any) error {
	return &OperationError{Message: fmt.Sprintf(format, args...)}
}

// ErrorMapper converts a failure into the wire error taxonomy. It must be
// total: every error maps to some code.
type ErrorMapper interface {
	MapError(err error) (wstypes.ErrorCode, string)
}

// ErrorMapperFunc adapts a function to ErrorMapper.
type ErrorMapperFunc func(err error) (wstypes.ErrorCode, string)

func (f ErrorMapperFunc) MapError(err error) (wstypes.ErrorCode, string) {
	return f(err)
}

// DefaultErrorMapper holds the library-level mappings. Domain mappers
// wrap it and fall back to it for anything they do not recognise.
type DefaultErrorMapper struct{}

func (DefaultErrorMapper) MapError(err error) (wstypes.ErrorCode, string) {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		opErr     *OperationError
		closeErr  *websocket.CloseError
	)

	switch {
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return wstypes.CodeInvalidMessage, "Invalid message format"
	case errors.Is(err, ErrMissingField):
		return wstypes.CodeMissingFields, "Message missing required fields"
	case errors.As(err, &opErr):
		return wstypes.CodeOperationError, opErr.Message
	case errors.Is(err, ErrInvalidOperation):
		return wstypes.CodeOperationError, err.Error()
	case errors.As(err, &closeErr),
		errors.Is(err, websocket.ErrCloseSent),
		errors.Is(err, ErrConnectionClosed),
		errors.Is(err, ErrSendBufferFull),
		errors.Is(err, net.ErrClosed):
		return wstypes.CodeConnectionError, "WebSocket connection error"
	default:
		return wstypes.CodeInternalError, "An unexpected error occurred"
	}
}
