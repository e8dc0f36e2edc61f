package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	wstypes "leaven-service/internal/domain/websocket"

	"go.uber.org/zap/zaptest"
)

type pingRequest struct {
	Timestamp int64 `json:"timestamp"`
}

type Pong struct {
	Timestamp       int64 `json:"timestamp"`
	ServerTimestamp int64 `json:"serverTimestamp"`
}

type PingHandler struct{}

func (PingHandler) Handle(ctx context.Context, req *pingRequest, clientID string, conn Connection) (*Pong, error) {
	return &Pong{Timestamp: req.Timestamp, ServerTimestamp: time.Now().UnixMilli()}, nil
}

type greetRequest struct {
	Username string `json:"username" validate:"required"`
}

type Greeting struct {
	Text string `json:"text"`
}

type GreetHandler struct {
	calls atomic.Int32
}

func (h *GreetHandler) Handle(ctx context.Context, req *greetRequest, clientID string, conn Connection) (*Greeting, error) {
	h.calls.Add(1)
	return &Greeting{Text: "hello " + req.Username}, nil
}

type failRequest struct {
	Mode string `json:"mode"`
}

type FailHandler struct{}

func (FailHandler) Handle(ctx context.Context, req *failRequest, clientID string, conn Connection) (*Greeting, error) {
	switch req.Mode {
	case "panic":
		panic("boom")
	case "operation":
		return nil, InvalidOperation("firmware %s is not published", "fw-1")
	case "missing":
		return nil, MissingField("analyzerId")
	default:
		return nil, errors.New("database exploded")
	}
}

type whoamiRequest struct{}

type Identity struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

type WhoAmIHandler struct{}

func (WhoAmIHandler) Handle(ctx context.Context, req *whoamiRequest, clientID string, conn Connection) (*Identity, error) {
	auth, _ := AuthFromContext(ctx)
	return &Identity{UserID: auth.UserID, Roles: auth.Roles}, nil
}

var tokenAuth = AuthenticatorFunc(func(ctx context.Context, conn Connection, token string) (AuthResult, error) {
	switch token {
	case "user-token":
		return AuthResult{IsAuthenticated: true, UserID: "u1", Roles: []string{"User"}}, nil
	case "admin-token":
		return AuthResult{IsAuthenticated: true, UserID: "a1", Roles: []string{"Admin"}}, nil
	case "broken":
		return AuthResult{}, errors.New("token store unavailable")
	default:
		return Unauthenticated(), nil
	}
})

type testRig struct {
	conn  *fakeConn
	greet *GreetHandler
	d     *Dispatcher
}

func newRig(t *testing.T, opts ...DispatcherOption) *testRig {
	t.Helper()
	greet := &GreetHandler{}
	registry, err := NewRegistry(
		Register[pingRequest, Pong](PingHandler{}, AllowAnonymous()),
		Register[greetRequest, Greeting](greet, WithValidator(StructValidator[greetRequest]())),
		Register[greetRequest, Greeting](greet, WithMessageType("OpenGreet"), AllowAnonymous(),
			WithValidator(StructValidator[greetRequest]())),
		Register[failRequest, Greeting](FailHandler{}, AllowAnonymous()),
		Register[whoamiRequest, Identity](WhoAmIHandler{}),
		Register[whoamiRequest, Identity](WhoAmIHandler{}, WithMessageType("AdminOnly"), Authorize("admin")),
		Register[roomRequest, RoomJoined](JoinHandler{}, AllowAnonymous()),
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	conn := newFakeConn("conn-1")
	base := []DispatcherOption{
		WithAuthenticator(tokenAuth),
		WithLogger(zaptest.NewLogger(t)),
	}
	d := NewDispatcher(registry, staticResolver{"conn-1": "client-1"}, append(base, opts...)...)
	return &testRig{conn: conn, greet: greet, d: d}
}

func (r *testRig) dispatch(raw string) {
	r.d.Dispatch(context.Background(), r.conn, []byte(raw))
}

func TestDispatchPingRoundTrip(t *testing.T) {
	rig := newRig(t)
	rig.dispatch(`{"Type":"Ping","Payload":{"timestamp":1700000000000},"RequestId":"r1"}`)

	reply := decodeReply(t, lastFrame(t, rig.conn))
	if reply.Type != "Pong" {
		t.Fatalf("expected Pong, got %q", reply.Type)
	}
	if reply.RequestID != "r1" {
		t.Errorf("expected request id r1, got %q", reply.RequestID)
	}
	if reply.TopicKey != "" {
		t.Errorf("expected no topic key, got %q", reply.TopicKey)
	}

	var pong Pong
	if err := json.Unmarshal(reply.Payload, &pong); err != nil {
		t.Fatalf("decode pong: %v", err)
	}
	if pong.Timestamp != 1700000000000 {
		t.Errorf("expected timestamp echoed, got %d", pong.Timestamp)
	}
	if pong.ServerTimestamp < pong.Timestamp {
		t.Errorf("server timestamp %d before client timestamp %d", pong.ServerTimestamp, pong.Timestamp)
	}
}

func TestDispatchFieldNamesCaseInsensitive(t *testing.T) {
	rig := newRig(t)
	rig.dispatch(`{"type":"ping","payload":{"TIMESTAMP":5},"requestid":"r-lower"}`)

	reply := decodeReply(t, lastFrame(t, rig.conn))
	if reply.Type != "Pong" || reply.RequestID != "r-lower" {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestDispatchProtocolErrors(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		code      wstypes.ErrorCode
		requestID string
	}{
		{"malformed json", `{"Type":"Ping",`, wstypes.CodeInvalidMessage, wstypes.RequestIDUnavailable},
		{"not an object", `[1,2,3]`, wstypes.CodeInvalidMessage, wstypes.RequestIDUnavailable},
		{"unknown type", `{"Type":"DoesNotExist","Payload":{},"RequestId":"r2"}`, wstypes.CodeUnknownMessage, "r2"},
		{"missing type", `{"Payload":{},"RequestId":"r3"}`, wstypes.CodeInvalidMessage, "r3"},
		{"blank type", `{"Type":"  ","Payload":{},"RequestId":"r4"}`, wstypes.CodeInvalidMessage, "r4"},
		{"missing payload", `{"Type":"Ping","RequestId":"r5"}`, wstypes.CodeInvalidMessage, "r5"},
		{"null payload", `{"Type":"Ping","Payload":null,"RequestId":"r6"}`, wstypes.CodeInvalidMessage, "r6"},
		{"payload of wrong shape", `{"Type":"Ping","Payload":{"timestamp":"soon"},"RequestId":"r7"}`, wstypes.CodeInvalidMessage, "r7"},
		{"no request id", `{"Type":"DoesNotExist","Payload":{}}`, wstypes.CodeUnknownMessage, wstypes.NoRequestID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newRig(t)
			rig.dispatch(tt.raw)

			reply, e := decodeError(t, lastFrame(t, rig.conn))
			if e.Code != string(tt.code) {
				t.Errorf("expected code %s, got %s (%s)", tt.code, e.Code, e.Message)
			}
			if reply.RequestID != tt.requestID {
				t.Errorf("expected request id %q, got %q", tt.requestID, reply.RequestID)
			}
			if e.Message == "" {
				t.Error("expected a human readable message")
			}
		})
	}
}

func TestDispatchUnregisteredConnection(t *testing.T) {
	rig := newRig(t)
	stranger := newFakeConn("conn-unknown")
	rig.d.Dispatch(context.Background(), stranger, []byte(`{"Type":"Ping","Payload":{},"RequestId":"r1"}`))

	reply, e := decodeError(t, lastFrame(t, stranger))
	if e.Code != string(wstypes.CodeConnectionError) {
		t.Errorf("expected ConnectionError, got %s", e.Code)
	}
	if reply.RequestID != "r1" {
		t.Errorf("expected request id r1, got %q", reply.RequestID)
	}
}

func TestDispatchValidationGate(t *testing.T) {
	rig := newRig(t)
	rig.dispatch(`{"Type":"OpenGreet","Payload":{"username":""},"RequestId":"v1"}`)

	_, e := decodeError(t, lastFrame(t, rig.conn))
	if e.Code != string(wstypes.CodeValidationError) {
		t.Fatalf("expected ValidationError, got %s", e.Code)
	}
	if !strings.Contains(e.Message, "username is required") {
		t.Errorf("unexpected message %q", e.Message)
	}
	if n := rig.greet.calls.Load(); n != 0 {
		t.Errorf("handler invoked %d times on invalid input", n)
	}

	rig.dispatch(`{"Type":"OpenGreet","Payload":{"username":"ada"},"RequestId":"v2"}`)
	reply := decodeReply(t, lastFrame(t, rig.conn))
	if reply.Type != "Greeting" {
		t.Fatalf("expected Greeting, got %s", reply.Type)
	}
	if n := rig.greet.calls.Load(); n != 1 {
		t.Errorf("expected exactly one invocation, got %d", n)
	}
}

func TestDispatchValidationRunsBeforeAuth(t *testing.T) {
	rig := newRig(t)
	rig.dispatch(`{"Type":"Greet","Payload":{"username":""},"RequestId":"v3"}`)

	_, e := decodeError(t, lastFrame(t, rig.conn))
	if e.Code != string(wstypes.CodeValidationError) {
		t.Errorf("expected ValidationError before Unauthorized, got %s", e.Code)
	}
}

func TestDispatchBlacklistPolicy(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		code  wstypes.ErrorCode
		reply string
	}{
		{"protected without token", `{"Type":"Greet","Payload":{"username":"ada"},"RequestId":"a1"}`, wstypes.CodeUnauthorized, ""},
		{"protected with bad token", `{"Type":"Greet","Payload":{"username":"ada"},"RequestId":"a2","Token":"nope"}`, wstypes.CodeUnauthorized, ""},
		{"protected with token", `{"Type":"Greet","Payload":{"username":"ada"},"RequestId":"a3","Token":"user-token"}`, "", "Greeting"},
		{"anonymous without token", `{"Type":"OpenGreet","Payload":{"username":"ada"},"RequestId":"a4"}`, "", "Greeting"},
		{"role required, wrong role", `{"Type":"AdminOnly","Payload":{},"RequestId":"a5","Token":"user-token"}`, wstypes.CodeForbidden, ""},
		{"role required, role matches case-insensitively", `{"Type":"AdminOnly","Payload":{},"RequestId":"a6","Token":"admin-token"}`, "", "Identity"},
		{"role required, no token", `{"Type":"AdminOnly","Payload":{},"RequestId":"a7"}`, wstypes.CodeUnauthorized, ""},
		{"authenticator failure", `{"Type":"WhoAmI","Payload":{},"RequestId":"a8","Token":"broken"}`, wstypes.CodeInternalError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newRig(t)
			rig.dispatch(tt.raw)
			frame := lastFrame(t, rig.conn)

			if tt.code != "" {
				_, e := decodeError(t, frame)
				if e.Code != string(tt.code) {
					t.Errorf("expected %s, got %s", tt.code, e.Code)
				}
				return
			}
			if reply := decodeReply(t, frame); reply.Type != tt.reply {
				t.Errorf("expected %s reply, got %s", tt.reply, frame)
			}
		})
	}
}

func TestDispatchWhitelistPolicy(t *testing.T) {
	rig := newRig(t, WithAuthPolicy(PolicyWhitelist))

	rig.dispatch(`{"Type":"Greet","Payload":{"username":"ada"},"RequestId":"w1"}`)
	if reply := decodeReply(t, lastFrame(t, rig.conn)); reply.Type != "Greeting" {
		t.Errorf("unannotated handler should be open under whitelist, got %+v", reply)
	}

	rig.dispatch(`{"Type":"AdminOnly","Payload":{},"RequestId":"w2"}`)
	_, e := decodeError(t, lastFrame(t, rig.conn))
	if e.Code != string(wstypes.CodeUnauthorized) {
		t.Errorf("annotated handler should require auth under whitelist, got %s", e.Code)
	}
}

func TestDispatchWithoutAuthenticator(t *testing.T) {
	registry, err := NewRegistry(Register[whoamiRequest, Identity](WhoAmIHandler{}))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	conn := newFakeConn("c")
	d := NewDispatcher(registry, staticResolver{"c": "client"})
	d.Dispatch(context.Background(), conn, []byte(`{"Type":"WhoAmI","Payload":{},"RequestId":"x","Token":"user-token"}`))

	_, e := decodeError(t, lastFrame(t, conn))
	if e.Code != string(wstypes.CodeUnauthorized) {
		t.Errorf("expected Unauthorized without an authenticator, got %s", e.Code)
	}
}

func TestDispatchHandlerSeesAuthResult(t *testing.T) {
	rig := newRig(t)
	rig.dispatch(`{"Type":"WhoAmI","Payload":{},"RequestId":"i1","Token":"Admin-token"}`)
	_, e := decodeError(t, lastFrame(t, rig.conn))
	if e.Code != string(wstypes.CodeUnauthorized) {
		t.Fatalf("tokens are opaque and case-sensitive, got %s", e.Code)
	}

	rig.dispatch(`{"Type":"WhoAmI","Payload":{},"RequestId":"i2","Token":"admin-token"}`)
	reply := decodeReply(t, lastFrame(t, rig.conn))
	var id Identity
	if err := json.Unmarshal(reply.Payload, &id); err != nil {
		t.Fatalf("decode identity: %v", err)
	}
	if id.UserID != "a1" {
		t.Errorf("expected user a1, got %q", id.UserID)
	}
}

func TestDispatchErrorMapping(t *testing.T) {
	tests := []struct {
		mode    string
		code    wstypes.ErrorCode
		message string
	}{
		{"panic", wstypes.CodeInternalError, "An unexpected error occurred"},
		{"operation", wstypes.CodeOperationError, "firmware fw-1 is not published"},
		{"missing", wstypes.CodeMissingFields, "Message missing required fields"},
		{"other", wstypes.CodeInternalError, "An unexpected error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			rig := newRig(t)
			rig.dispatch(fmt.Sprintf(`{"Type":"Fail","Payload":{"mode":%q},"RequestId":"e-%s"}`, tt.mode, tt.mode))

			reply, e := decodeError(t, lastFrame(t, rig.conn))
			if e.Code != string(tt.code) || e.Message != tt.message {
				t.Errorf("expected %s %q, got %s %q", tt.code, tt.message, e.Code, e.Message)
			}
			if reply.RequestID != "e-"+tt.mode {
				t.Errorf("expected original request id, got %q", reply.RequestID)
			}
		})
	}
}

func TestDispatchCustomErrorMapper(t *testing.T) {
	mapper := ErrorMapperFunc(func(err error) (wstypes.ErrorCode, string) {
		return wstypes.CodeValidationError, "mapped: " + err.Error()
	})
	rig := newRig(t, WithErrorMapper(mapper))
	rig.dispatch(`{"Type":"Fail","Payload":{"mode":"other"},"RequestId":"m1"}`)

	_, e := decodeError(t, lastFrame(t, rig.conn))
	if e.Code != string(wstypes.CodeValidationError) || e.Message != "mapped: database exploded" {
		t.Errorf("custom mapper not used: %+v", e)
	}
}

func TestDispatchSubscriptionTopicKey(t *testing.T) {
	rig := newRig(t)
	rig.dispatch(`{"Type":"Join","Payload":{"roomId":"lol"},"RequestId":"s1"}`)

	reply := decodeReply(t, lastFrame(t, rig.conn))
	if reply.TopicKey != "room:lol" {
		t.Errorf("expected topic key room:lol, got %q", reply.TopicKey)
	}
	if reply.Type != "RoomJoined" {
		t.Errorf("expected RoomJoined, got %q", reply.Type)
	}
}

func TestDispatchMiddlewareOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		trace []string
	)
	record := func(s string) {
		mu.Lock()
		trace = append(trace, s)
		mu.Unlock()
	}
	layer := func(name string) Middleware {
		return MiddlewareFunc(func(ctx context.Context, conn Connection, raw []byte, next Next) error {
			record(name + ":before")
			err := next(ctx)
			record(name + ":after")
			return err
		})
	}

	rig := newRig(t, WithMiddleware(layer("outer"), layer("inner")))
	rig.dispatch(`{"Type":"Ping","Payload":{},"RequestId":"o1"}`)

	want := []string{"outer:before", "inner:before", "inner:after", "outer:after"}
	if strings.Join(trace, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, trace)
	}
	if reply := decodeReply(t, lastFrame(t, rig.conn)); reply.Type != "Pong" {
		t.Errorf("expected Pong after middleware, got %s", reply.Type)
	}
}

func TestDispatchMiddlewareVeto(t *testing.T) {
	veto := MiddlewareFunc(func(ctx context.Context, conn Connection, raw []byte, next Next) error {
		data, _ := wstypes.NewError("vetoed", wstypes.CodeFeatureDisabled, "nope").ToJSON()
		return conn.Send(data)
	})

	rig := newRig(t, WithMiddleware(veto))
	rig.dispatch(`{"Type":"OpenGreet","Payload":{"username":"ada"},"RequestId":"x1"}`)

	frames := rig.conn.sent()
	if len(frames) != 1 {
		t.Fatalf("expected only the middleware's reply, got %d frames", len(frames))
	}
	_, e := decodeError(t, frames[0])
	if e.Code != string(wstypes.CodeFeatureDisabled) {
		t.Errorf("expected FEATURE_DISABLED, got %s", e.Code)
	}
	if n := rig.greet.calls.Load(); n != 0 {
		t.Errorf("handler invoked %d times after veto", n)
	}
}

func TestDispatchMiddlewareError(t *testing.T) {
	failing := MiddlewareFunc(func(ctx context.Context, conn Connection, raw []byte, next Next) error {
		return InvalidOperation("maintenance window")
	})

	rig := newRig(t, WithMiddleware(failing))
	rig.dispatch(`{"Type":"Ping","Payload":{},"RequestId":"x2"}`)

	_, e := decodeError(t, lastFrame(t, rig.conn))
	if e.Code != string(wstypes.CodeOperationError) || e.Message != "maintenance window" {
		t.Errorf("unexpected error %+v", e)
	}
}

func TestDispatchConcurrent(t *testing.T) {
	rig := newRig(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rig.dispatch(fmt.Sprintf(`{"Type":"Ping","Payload":{"timestamp":%d},"RequestId":"p%d"}`, i, i))
		}(i)
	}
	wg.Wait()

	frames := rig.conn.sent()
	if len(frames) != 50 {
		t.Fatalf("expected 50 replies, got %d", len(frames))
	}
	seen := make(map[string]bool)
	for _, f := range frames {
		seen[decodeReply(t, f).RequestID] = true
	}
	if len(seen) != 50 {
		t.Errorf("expected 50 distinct request ids, got %d", len(seen))
	}
}
