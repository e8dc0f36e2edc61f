package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "WS_PATH", "REDIS_URL", "WS_SEND_BUFFER", "JWT_TTL", "WS_ALLOWED_ORIGINS", "APP_ENV"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.HTTPAddr != ":8000" || cfg.WSPath != "/ws" {
		t.Errorf("unexpected server defaults %q %q", cfg.HTTPAddr, cfg.WSPath)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("unexpected redis url %q", cfg.RedisURL)
	}
	if cfg.WSSendBuffer != 256 || cfg.JWT.TTL != 24*time.Hour || cfg.FeatureCacheTTL != 5*time.Minute {
		t.Errorf("unexpected realtime defaults %+v", cfg)
	}
	if len(cfg.WSAllowedOrigins) != 1 || cfg.WSAllowedOrigins[0] != "*" {
		t.Errorf("unexpected origins %v", cfg.WSAllowedOrigins)
	}
	if cfg.InstanceID == "" {
		t.Error("instance id must default to the host name")
	}
	if cfg.IsDevelopment() {
		t.Error("default env is production")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "Development")
	t.Setenv("INSTANCE_ID", "node-a")
	t.Setenv("WS_SEND_BUFFER", "32")
	t.Setenv("JWT_TTL", "15m")
	t.Setenv("WS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("FEATURE_CACHE_TTL", "not-a-duration")

	cfg := Load()
	if !cfg.IsDevelopment() || cfg.InstanceID != "node-a" {
		t.Errorf("unexpected %+v", cfg)
	}
	if cfg.WSSendBuffer != 32 || cfg.JWT.TTL != 15*time.Minute {
		t.Errorf("unexpected overrides %d %v", cfg.WSSendBuffer, cfg.JWT.TTL)
	}
	if len(cfg.WSAllowedOrigins) != 2 || cfg.WSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %q", cfg.WSAllowedOrigins)
	}
	if cfg.FeatureCacheTTL != 5*time.Minute {
		t.Error("an unparseable duration falls back to the default")
	}
}
