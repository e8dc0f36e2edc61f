// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"leaven-service/internal/config"
	"leaven-service/internal/db"
	authHandler "leaven-service/internal/handlers/auth"
	featureHandler "leaven-service/internal/handlers/featuretoggle"
	telemetryHandler "leaven-service/internal/handlers/telemetry"
	wsHandler "leaven-service/internal/handlers/websocket"
	"leaven-service/internal/metrics"
	"leaven-service/internal/middleware"
	"leaven-service/internal/pkg/jwt"
	"leaven-service/internal/pkg/session"
	"leaven-service/internal/repository/postgres"
	authUsecase "leaven-service/internal/service/auth"
	featureUsecase "leaven-service/internal/service/featuretoggle"
	telemetryUsecase "leaven-service/internal/service/telemetry"
	"leaven-service/internal/websocket"
	wsHandlers "leaven-service/internal/websocket/handler"
	wsMiddleware "leaven-service/internal/websocket/middleware"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownGrace = 10 * time.Second

type Server struct {
	cfg        config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	httpServer *http.Server

	pool      *pgxpool.Pool
	redis     redis.UniversalClient
	hub       *websocket.Hub
	wsHandler *wsHandler.WebSocketHandler
	listener  *websocket.SubscriptionListener
	cancel    context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: gin.New()}
}

// Init connects the stores and wires every component. It must succeed
// before Run is called.
func (s *Server) Init(ctx context.Context) error {
	// ----- Logger -----
	logger, err := newLogger(s.cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	s.logger = logger.With(zap.String("instance_id", s.cfg.InstanceID))

	policy, err := websocket.ParseAuthPolicy(s.cfg.WSAuthPolicy)
	if err != nil {
		return err
	}

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool
	s.logger.Info("connected to PostgreSQL")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(ctx, db.RedisConfig{
		URL:      s.cfg.RedisURL,
		Password: s.cfg.RedisPass,
	})
	if err != nil {
		return err
	}
	s.redis = redisClient
	s.logger.Info("connected to Redis")

	// ----- Metrics -----
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New()
	m.Register(registry)

	// ----- JWT & Revocation -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to load JWT verifier: %w", err)
	}
	blacklist := session.NewBlacklist(redisClient)

	// ----- Repositories -----
	featureRepo := postgres.NewFeatureToggleRepository(pool)
	firmwareRepo := postgres.NewFirmwareRepository(pool)
	deviceRepo := postgres.NewDeviceCredentialRepository(pool)

	// ----- Services (Usecases) -----
	jwtAuth := authUsecase.NewJWTAuthenticator(verifier, blacklist, s.logger)
	authenticator := authUsecase.NewChainAuthenticator(
		jwtAuth,
		authUsecase.NewDeviceAuthenticator(deviceRepo, s.logger),
	)
	featureService := featureUsecase.NewFeatureToggleService(featureRepo, redisClient, s.cfg.FeatureCacheTTL, s.logger)

	// ----- WebSocket -----
	s.hub = websocket.NewHub()
	manager := websocket.NewRedisManager(redisClient, s.hub,
		websocket.WithInstanceID(s.cfg.InstanceID),
		websocket.WithManagerLogger(s.logger),
		websocket.WithManagerMetrics(m),
	)

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.listener = websocket.NewSubscriptionListener(redisClient, s.hub, s.logger, m)
	if err := s.listener.Start(runCtx); err != nil {
		return err
	}

	wsRegistry, err := wsHandlers.Registry(wsHandlers.Deps{
		Subscriptions: manager,
		Firmware:      firmwareRepo,
		Logger:        s.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to build handler registry: %w", err)
	}
	dispatcher := websocket.NewDispatcher(wsRegistry, manager,
		websocket.WithAuthPolicy(policy),
		websocket.WithAuthenticator(authenticator),
		websocket.WithMiddleware(wsMiddleware.NewFeatureToggle(featureService, s.logger)),
		websocket.WithErrorMapper(wsHandlers.NewErrorMapper()),
		websocket.WithLogger(s.logger),
		websocket.WithMetrics(m),
	)

	telemetryService := telemetryUsecase.NewTelemetryService(manager, s.logger)

	// ----- Handlers -----
	s.wsHandler = wsHandler.NewWebSocketHandler(manager, dispatcher, wsRegistry, telemetryService, wsHandler.Config{
		InstanceID:     s.cfg.InstanceID,
		AllowedOrigins: s.cfg.WSAllowedOrigins,
		SendBuffer:     s.cfg.WSSendBuffer,
	}, s.logger)
	handlers := &Handlers{
		AuthHandler:      authHandler.NewAuthHandler(jwtAuth, s.logger),
		WSHandler:        s.wsHandler,
		TelemetryHandler: telemetryHandler.NewTelemetryHandler(telemetryService),
		FeatureHandler:   featureHandler.NewFeatureToggleHandler(featureService),
		AuthMiddleware:   middleware.NewAuthMiddleware(authenticator, s.logger),
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.MetricsMiddleware(m),
	)

	// ----- Router -----
	SetupRouter(s.engine, s.logger, RouterConfig{WSPath: s.cfg.WSPath, Gatherer: registry}, handlers)

	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           WithCORS(s.engine, s.cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("server initialised",
		zap.String("auth_policy", policy.String()),
		zap.Strings("message_types", wsRegistry.MessageTypes()),
	)
	return nil
}

// Run serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	if s.httpServer == nil {
		return errors.New("server is not initialised")
	}
	s.logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes open websocket connections and
// waits for them to be deregistered, then releases the listener and stores.
// Redis stays open until every socket key has been removed.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	// hijacked sockets are invisible to http.Server.Shutdown
	if s.hub != nil {
		s.hub.CloseAll()
	}
	if s.wsHandler != nil {
		if err := s.wsHandler.Drain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("websocket drain: %w", err))
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			errs = append(errs, fmt.Errorf("listener close: %w", err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.logger != nil {
		s.logger.Info("server stopped")
		_ = s.logger.Sync()
	}
	return errors.Join(errs...)
}

// ShutdownTimeout is the grace period main gives Shutdown.
func ShutdownTimeout() time.Duration {
	return shutdownGrace
}

func newLogger(cfg config.AppConfig) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
