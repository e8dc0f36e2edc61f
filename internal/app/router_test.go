package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	telemetryHandler "leaven-service/internal/handlers/telemetry"
	"leaven-service/internal/metrics"
	"leaven-service/internal/middleware"
	telemetryUsecase "leaven-service/internal/service/telemetry"
	ws "leaven-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type nopBroadcaster struct{ topics []string }

func (b *nopBroadcaster) Broadcast(ctx context.Context, topic string, message any) error {
	b.topics = append(b.topics, topic)
	return nil
}

var tokens = ws.AuthenticatorFunc(func(ctx context.Context, conn ws.Connection, token string) (ws.AuthResult, error) {
	switch token {
	case "Bearer user":
		return ws.AuthResult{IsAuthenticated: true, UserID: "u1", Roles: []string{"user"}}, nil
	case "Device bridge:secret":
		return ws.AuthResult{IsAuthenticated: true, UserID: "bridge", Roles: []string{"device"}}, nil
	}
	return ws.Unauthenticated(), nil
})

func newTestHandler(t *testing.T) (http.Handler, *nopBroadcaster) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	reg := prometheus.NewRegistry()
	m := metrics.New()
	m.Register(reg)

	b := &nopBroadcaster{}
	engine := gin.New()
	engine.Use(middleware.MetricsMiddleware(m))
	// Handlers left nil are only reachable behind guards these tests trip.
	SetupRouter(engine, logger, RouterConfig{WSPath: "/ws", Gatherer: reg}, &Handlers{
		TelemetryHandler: telemetryHandler.NewTelemetryHandler(telemetryUsecase.NewTelemetryService(b, logger)),
		AuthMiddleware:   middleware.NewAuthMiddleware(tokens, logger),
	})
	return WithCORS(engine, []string{"https://app.example"}), b
}

func serve(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouteGuards(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name   string
		method string
		path   string
		auth   string
		want   int
	}{
		{"health", http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{"stats anonymous", http.MethodGet, "/api/v1/realtime/stats", "", http.StatusUnauthorized},
		{"stats as user", http.MethodGet, "/api/v1/realtime/stats", "Bearer user", http.StatusForbidden},
		{"features as device", http.MethodGet, "/api/v1/features", "Device bridge:secret", http.StatusForbidden},
		{"telemetry as user", http.MethodPost, "/api/v1/telemetry/readings", "Bearer user", http.StatusForbidden},
		{"me anonymous", http.MethodGet, "/api/v1/auth/me", "", http.StatusUnauthorized},
		{"unknown route", http.MethodGet, "/api/v1/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := serve(h, tt.method, tt.path, tt.auth, ""); w.Code != tt.want {
				t.Errorf("status %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestTelemetryRouteForDevices(t *testing.T) {
	h, b := newTestHandler(t)

	body := `{"userId":"2f0c1a9e-8d7b-4c6a-9e5f-4b3a2c1d0e9f","analyzerId":"a1","temperature":24.5,"humidity":70,"rise":1.8}`
	w := serve(h, http.MethodPost, "/api/v1/telemetry/readings", "Device bridge:secret", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status %d body %s", w.Code, w.Body.String())
	}
	if len(b.topics) != 1 || b.topics[0] != "sourdough-data:2f0c1a9e-8d7b-4c6a-9e5f-4b3a2c1d0e9f" {
		t.Errorf("unexpected topics %v", b.topics)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	serve(h, http.MethodGet, "/api/v1/health", "", "")

	w := serve(h, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "leaven_http_requests_total") {
		t.Error("expected http request counter in exposition")
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/features", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/features", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected allow origin %q", got)
	}
}
