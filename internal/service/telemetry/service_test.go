package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"leaven-service/internal/domain/realtime"
	xerrors "leaven-service/internal/pkg/errors"
	ws "leaven-service/internal/websocket"

	"go.uber.org/zap/zaptest"
)

type sent struct {
	topic   string
	message any
}

type recorder struct {
	sent []sent
	err  error
}

func (r *recorder) Broadcast(ctx context.Context, topic string, message any) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, sent{topic: topic, message: message})
	return nil
}

const (
	userID     = "5f0c2a39-4c6e-4a53-9a33-5b3f1c1d2e10"
	analyzerID = "9b2d4e61-0d7f-4b8e-8a1c-7e6f5d4c3b2a"
)

func newService(t *testing.T) (*TelemetryService, *recorder) {
	t.Helper()
	rec := &recorder{}
	svc := NewTelemetryService(rec, zaptest.NewLogger(t))
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, rec
}

func TestPublishReading(t *testing.T) {
	svc, rec := newService(t)

	res, err := svc.PublishReading(context.Background(), &realtime.ReadingRequest{
		UserID:     userID,
		AnalyzerID: "bench-1",
		Humidity:   71.5,
		Rise:       1.8,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(rec.sent) != 1 || rec.sent[0].topic != "sourdough-data:"+userID || res.Topics[0] != rec.sent[0].topic {
		t.Fatalf("unexpected broadcasts %+v", rec.sent)
	}
	reading := rec.sent[0].message.(realtime.SourdoughReading)
	if !reading.Timestamp.Equal(svc.now()) || reading.Humidity != 71.5 {
		t.Errorf("unexpected reading %+v", reading)
	}
	if ws.MessageTypeOf(reading) != "SourdoughReading" {
		t.Errorf("unexpected envelope type %q", ws.MessageTypeOf(reading))
	}

	if _, err := svc.PublishReading(context.Background(), &realtime.ReadingRequest{UserID: "nope"}); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPublishOtaProgress(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()

	_, err := svc.PublishOtaProgress(ctx, &realtime.OtaProgressRequest{
		AnalyzerID: analyzerID,
		Status:     realtime.OtaDownloading,
		Progress:   40,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if rec.sent[0].topic != "ota-progress:"+analyzerID {
		t.Errorf("unexpected topic %q", rec.sent[0].topic)
	}

	_, err = svc.PublishOtaProgress(ctx, &realtime.OtaProgressRequest{
		AnalyzerID: analyzerID,
		Status:     realtime.OtaCompleted,
		Progress:   90,
	})
	var rule *xerrors.BusinessRuleViolation
	if !errors.As(err, &rule) {
		t.Errorf("expected a business rule violation, got %v", err)
	}
}

func TestPublishDiagnostics(t *testing.T) {
	svc, rec := newService(t)

	res, err := svc.PublishDiagnostics(context.Background(), &realtime.DiagnosticsRequest{
		AnalyzerID: analyzerID,
		State:      "idle",
		Uptime:     3600,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := []string{"admin:diagnostics", "admin:diagnostics:" + analyzerID}
	if len(res.Topics) != 2 || res.Topics[0] != want[0] || res.Topics[1] != want[1] {
		t.Errorf("topics = %v, want %v", res.Topics, want)
	}
	if len(rec.sent) != 2 {
		t.Errorf("expected two broadcasts, got %d", len(rec.sent))
	}
}

func TestPublishEvent(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()

	_, err := svc.PublishEvent(ctx, "room:lobby", &realtime.BroadcastRequest{
		Type:    "Announcement",
		Payload: map[string]any{"text": "maintenance at noon"},
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	msg := rec.sent[0].message
	if ws.MessageTypeOf(msg) != "Announcement" {
		t.Errorf("unexpected type %q", ws.MessageTypeOf(msg))
	}
	data, _ := json.Marshal(msg)
	if string(data) != `{"text":"maintenance at noon"}` {
		t.Errorf("unexpected payload %s", data)
	}

	if _, err := svc.PublishEvent(ctx, " ", &realtime.BroadcastRequest{Type: "X"}); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.PublishEvent(ctx, "t", &realtime.BroadcastRequest{Type: "error"}); err == nil {
		t.Error("Error type is reserved")
	}
}

func TestPublishFailure(t *testing.T) {
	svc, rec := newService(t)
	rec.err = errors.New("redis down")

	if _, err := svc.PublishReading(context.Background(), &realtime.ReadingRequest{UserID: userID}); err == nil {
		t.Error("expected the broadcast error")
	}
}
