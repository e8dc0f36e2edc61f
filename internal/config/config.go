package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"leaven-service/internal/pkg/jwt"
)

type AppConfig struct {
	// Server
	Env      string
	HTTPAddr string
	WSPath   string

	// InstanceID names this process in the connection registry.
	InstanceID string

	// Storage
	RedisURL    string
	RedisPass   string
	DatabaseURL string

	// JWT
	JWT jwt.Config

	// Realtime
	WSAuthPolicy     string
	WSAllowedOrigins []string
	WSSendBuffer     int
	FeatureCacheTTL  time.Duration

	CORSAllowedOrigins []string
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		Env:        getEnv("APP_ENV", "production"),
		HTTPAddr:   getEnv("HTTP_ADDR", ":8000"),
		WSPath:     getEnv("WS_PATH", "/ws"),
		InstanceID: getEnv("INSTANCE_ID", hostname()),

		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPass:   getEnv("REDIS_PASS", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWT: jwt.Config{
			PrivPath: getEnv("JWT_PRIVATE_KEY_PATH", "/app/secrets/jwt_private.pem"),
			PubPath:  getEnv("JWT_PUBLIC_KEY_PATH", "/app/secrets/jwt_public.pem"),
			Issuer:   getEnv("JWT_ISSUER", "leaven"),
			Audience: getEnv("JWT_AUDIENCE", "leaven-clients"),
			TTL:      getEnvDuration("JWT_TTL", 24*time.Hour),
			KID:      getEnv("JWT_KID", "leaven-key"),
		},

		WSAuthPolicy:     getEnv("WS_AUTH_POLICY", "blacklist"),
		WSAllowedOrigins: getEnvSlice("WS_ALLOWED_ORIGINS", []string{"*"}),
		WSSendBuffer:     getEnvInt("WS_SEND_BUFFER", 256),
		FeatureCacheTTL:  getEnvDuration("FEATURE_CACHE_TTL", 5*time.Minute),

		CORSAllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

func (c AppConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func hostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "leaven"
}
