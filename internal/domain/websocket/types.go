// internal/domain/websocket/types.go
package websocket

import (
	"encoding/json"
)

// ErrorCode is the stable error taxonomy sent to clients.
type ErrorCode string

const (
	CodeInvalidMessage  ErrorCode = "InvalidMessage"
	CodeMissingFields   ErrorCode = "MissingFields"
	CodeUnknownMessage  ErrorCode = "UnknownMessage"
	CodeValidationError ErrorCode = "ValidationError"
	CodeUnauthorized    ErrorCode = "Unauthorized"
	CodeForbidden       ErrorCode = "Forbidden"
	CodeConnectionError ErrorCode = "ConnectionError"
	CodeOperationError  ErrorCode = "OperationError"
	CodeInternalError   ErrorCode = "InternalError"

	// Sent by the feature gate rather than the dispatcher.
	CodeFeatureDisabled ErrorCode = "FEATURE_DISABLED"
)

const (
	// TypeError is the envelope type of every error reply.
	TypeError = "Error"

	// RequestIDUnavailable is echoed when the inbound envelope could not be parsed.
	RequestIDUnavailable = "REQUEST_ID_NOT_AVAILABLE"
	// NoRequestID is echoed when the envelope parsed but carried no RequestId.
	NoRequestID = "NO_REQUEST_ID"
)

// Envelope is the wire unit in both directions. encoding/json matches
// field names case-insensitively, so "type" and "TYPE" both land in Type.
type Envelope struct {
	Type      string          `json:"Type"`
	Payload   json.RawMessage `json:"Payload,omitempty"`
	RequestID string          `json:"RequestId,omitempty"`
	Token     string          `json:"Token,omitempty"`
	TopicKey  string          `json:"TopicKey,omitempty"`
}

// HasPayload reports whether the envelope carried a non-null payload.
func (e *Envelope) HasPayload() bool {
	return len(e.Payload) > 0 && string(e.Payload) != "null"
}

// Reply is an outbound success envelope.
type Reply struct {
	Type      string `json:"Type"`
	RequestID string `json:"RequestId"`
	TopicKey  string `json:"TopicKey,omitempty"`
	Payload   any    `json:"Payload"`
}

// ErrorPayload is the body of an error reply
type ErrorPayload struct {
	Code    ErrorCode `json:"Code"`
	Message string    `json:"Message"`
}

// ErrorReply is an outbound error envelope.
type ErrorReply struct {
	Type      string       `json:"Type"`
	RequestID string       `json:"RequestId"`
	Payload   ErrorPayload `json:"Payload"`
}

// Broadcast is the envelope written to topic subscribers.
type Broadcast struct {
	Type    string `json:"Type"`
	Topic   string `json:"Topic,omitempty"`
	Payload any    `json:"Payload"`
}

func NewReply(typeName, requestID, topicKey string, payload any) *Reply {
	return &Reply{
		Type:      typeName,
		RequestID: requestID,
		TopicKey:  topicKey,
		Payload:   payload,
	}
}

func NewError(requestID string, code ErrorCode, message string) *ErrorReply {
	return &ErrorReply{
		Type:      TypeError,
		RequestID: requestID,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}

func (r *Reply) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func (r *ErrorReply) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
