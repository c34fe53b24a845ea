// Package main runs the workshop access HTTP server with graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/workshop-access/config"
	"github.com/aura-webinar/workshop-access/internal/access"
	"github.com/aura-webinar/workshop-access/internal/auth"
	"github.com/aura-webinar/workshop-access/internal/enrollment"
	"github.com/aura-webinar/workshop-access/internal/issuer"
	"github.com/aura-webinar/workshop-access/internal/joinlog"
	"github.com/aura-webinar/workshop-access/internal/middleware"
	"github.com/aura-webinar/workshop-access/internal/models"
	"github.com/aura-webinar/workshop-access/internal/provider"
	"github.com/aura-webinar/workshop-access/internal/workshops"
	"github.com/aura-webinar/workshop-access/pkg/database"
	"github.com/aura-webinar/workshop-access/pkg/queue"
	"github.com/aura-webinar/workshop-access/pkg/redis"
	"github.com/aura-webinar/workshop-access/pkg/response"
	"github.com/aura-webinar/workshop-access/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			RostersBucket:        cfg.AWS.RostersBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Providers. A provider that fails to configure stays nil and joins for its
	// workshops are denied with provider_misconfigured.
	var sdkProvider, roomProvider provider.Provider
	if p, err := newSDKProvider(cfg); err != nil {
		logger.Warn("sdk provider disabled", zap.Error(err))
	} else {
		sdkProvider = p
		logger.Info("sdk provider enabled", zap.String("signing", cfg.SDK.Signing))
	}
	var room *provider.RoomProvider
	if cfg.Room.BaseURL != "" {
		room = provider.NewRoomProvider(cfg.Room.BaseURL, provider.NewRedisRefStore(rdb.Client))
		roomProvider = room
		logger.Info("room provider enabled", zap.String("base_url", cfg.Room.BaseURL))
	} else {
		logger.Warn("room provider disabled (ROOM_BASE_URL not set)")
	}
	registry := provider.NewRegistry(sdkProvider, roomProvider)
	providerHandler := provider.NewHandler(room, logger)

	// Workshops
	workshopRepo := workshops.NewRepository(pool)
	workshopHandler := workshops.NewHandler(workshopRepo, logger)

	// Enrollment
	enrollmentRepo := enrollment.NewRepository(pool)
	enrollmentHandler := enrollment.NewHandler(enrollmentRepo, cfg.Session.RetryBackoff, logger)
	if s3Client != nil {
		enrollmentHandler.EnableRosterExport(jobQueue, s3Client)
	}

	// Join path
	credentialIssuer := issuer.New(registry, cfg.Session, cfg.Breaker, logger)
	orchestrator := access.NewOrchestrator(workshopRepo, enrollmentRepo, credentialIssuer, jobQueue, cfg.Session, logger)
	accessHandler := access.NewHandler(orchestrator, logger)

	joinLogHandler := joinlog.NewHandler(joinlog.NewRepository(pool), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil || !rdb.Healthy(c.Request.Context()) {
			response.ServiceUnavailable(c, "dependencies unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		admin := middleware.RequireRole(models.RoleAdmin)

		// Workshops
		api.GET("/workshops", workshopHandler.List)
		api.POST("/workshops", admin, workshopHandler.Create)
		api.GET("/workshops/:id", workshopHandler.GetByID)
		api.POST("/workshops/:id/cancel", admin, workshopHandler.Cancel)

		// Joining
		api.POST("/workshops/:id/join", accessHandler.Join)
		api.GET("/workshops/:id/clock", accessHandler.Clock)
		api.POST("/join-refs/:ref/redeem", providerHandler.Redeem)

		// Attendees
		api.POST("/workshops/:id/enroll", enrollmentHandler.SelfEnroll)
		api.GET("/workshops/:id/attendees", admin, enrollmentHandler.List)
		api.POST("/workshops/:id/attendees/export", admin, enrollmentHandler.Export)
		api.PUT("/workshops/:id/attendees/:userId", admin, enrollmentHandler.Put)
		api.DELETE("/workshops/:id/attendees/:userId", admin, enrollmentHandler.Delete)
		api.GET("/workshops/:id/attendees/:userId", admin, enrollmentHandler.Get)

		// Audit
		api.GET("/workshops/:id/join-audit", admin, joinLogHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newCORS(cfg.Server.CORSAllowedOrigins).Handler(router),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// newSDKProvider builds the signature provider for the configured signing scheme.
func newSDKProvider(cfg *config.Config) (*provider.SDKProvider, error) {
	switch cfg.SDK.Signing {
	case "jwt":
		signer, err := provider.NewJWTSigner(cfg.SDK.AppKey, cfg.SDK.AppSecret)
		if err != nil {
			return nil, err
		}
		return provider.NewSDKProvider(signer), nil
	case "zego":
		signer, err := provider.NewZegoSigner(cfg.Zego.AppID, cfg.Zego.ServerSecret)
		if err != nil {
			return nil, err
		}
		return provider.NewSDKProvider(signer), nil
	default:
		return nil, fmt.Errorf("unknown SDK_SIGNING %q", cfg.SDK.Signing)
	}
}

// newCORS parses a comma-separated origin list; "*" allows any origin.
func newCORS(allowed string) *cors.Cors {
	var origins []string
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
