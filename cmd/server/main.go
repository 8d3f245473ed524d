package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devicehub/devicehub/internal/adapter/ai"
	httpadapter "github.com/devicehub/devicehub/internal/adapter/http"
	"github.com/devicehub/devicehub/internal/adapter/persistence"
	"github.com/devicehub/devicehub/internal/app"
	"github.com/devicehub/devicehub/internal/config"
	"github.com/devicehub/devicehub/internal/infra/ratelimit"
	"github.com/devicehub/devicehub/internal/ports"
	"github.com/devicehub/devicehub/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	structuredLogger := app.NewLogger(cfg, "devicehub")
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"env":              cfg.Server.Environment,
		"fallback_backend": cfg.Audit.FallbackBackend,
		"ai_provider":      cfg.AI.Provider,
	})

	// Connect to database
	db, err := app.OpenDatabase(ctx, cfg, structuredLogger)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fallback, fallbackCloser, err := app.OpenFallback(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open audit fallback store: %v", err)
	}
	defer fallbackCloser.Close()

	limiter, err := ratelimit.NewService(ctx, ratelimit.Config{
		Enabled:  cfg.Security.RateLimitEnabled,
		RedisURL: cfg.Redis.URL,
	}, structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to initialize Redis rate limiter, using in-process limiter", err, nil)
		limiter = ratelimit.NewLocalService(time.Minute)
	}

	chatProvider, err := ai.NewChatProvider(cfg.ToChatConfig())
	if err != nil {
		log.Fatalf("Failed to initialize chat provider: %v", err)
	}

	// Initialize use cases
	auditService := app.NewAuditLogService(cfg, db, fallback, structuredLogger)
	deviceUseCase := usecase.NewDeviceUseCase(
		persistence.NewPostgresDeviceRepository(db),
		persistence.NewPostgresReadingRepository(db),
		auditService,
		ports.SystemClock{},
		structuredLogger,
	)
	chatUseCase := usecase.NewChatUseCase(chatProvider, structuredLogger)

	// Controllers do not survive a restart
	if err := deviceUseCase.MarkAllOffline(ctx); err != nil {
		structuredLogger.Warn(ctx, "Failed to reset device status at startup", map[string]interface{}{"error": err.Error()})
	}

	server := httpadapter.NewServer(httpadapter.ServerConfig{
		Host:                 cfg.Server.Host,
		Port:                 cfg.Server.Port,
		ReadTimeout:          cfg.Server.ReadTimeout,
		WriteTimeout:         cfg.Server.WriteTimeout,
		IdleTimeout:          cfg.Server.IdleTimeout,
		CORSOrigins:          cfg.Security.CORSOrigins,
		CORSAllowCredentials: cfg.Security.CORSAllowCredentials,
		JWTSecret:            cfg.Security.JWTSecret,
		RateLimit: httpadapter.RateLimitConfig{
			Requests:     cfg.Security.RateLimitRequests,
			Window:       cfg.Security.RateLimitWindow,
			ChatRequests: cfg.Security.ChatRateLimit,
		},
	}, httpadapter.Handlers{
		Audit: httpadapter.NewAuditHandler(auditService, ports.SystemClock{}, httpadapter.AuditHandlerConfig{
			DefaultPageSize: cfg.Audit.DefaultPageSize,
			MaxPageSize:     cfg.Audit.MaxPageSize,
			ExportLimit:     cfg.Audit.ExportLimit,
		}),
		Device: httpadapter.NewDeviceHandler(deviceUseCase),
		Chat:   httpadapter.NewChatHandler(chatUseCase),
		Health: db.PingContext,
	}, limiter, structuredLogger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		structuredLogger.Error(context.Background(), "Server stopped with error", err, nil)
		os.Exit(1)
	}
	structuredLogger.Info(context.Background(), "Server exited", nil)
}
