package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/devicehub/devicehub/internal/infra/logger"
	"github.com/devicehub/devicehub/internal/infra/metrics"
	"github.com/devicehub/devicehub/internal/infra/ratelimit"
)

// Server represents the HTTP server
type Server struct {
	addr   string
	logger logger.Logger
	server *http.Server
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host                 string
	Port                 string
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	CORSOrigins          []string
	CORSAllowCredentials bool
	JWTSecret            string
	RateLimit            RateLimitConfig
}

// Handlers groups the route handlers mounted by the server
type Handlers struct {
	Audit  *AuditHandler
	Device *DeviceHandler
	Chat   *ChatHandler
	// Health reports backing store reachability; nil means always healthy
	Health func(ctx context.Context) error
}

// NewServer creates a new HTTP server
func NewServer(config ServerConfig, handlers Handlers, limiter ratelimit.Service, log logger.Logger) *Server {
	addr := config.Host + ":" + config.Port
	return &Server{
		addr:   addr,
		logger: log,
		server: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(config, handlers, limiter, log),
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// NewRouter builds the full handler chain. Correlation and CORS wrap the
// router so preflights are answered even for routes without an OPTIONS method.
func NewRouter(config ServerConfig, handlers Handlers, limiter ratelimit.Service, log logger.Logger) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthHandler(handlers.Health)).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	if handlers.Audit != nil {
		handlers.Audit.RegisterRoutes(router)
	}
	if handlers.Device != nil {
		handlers.Device.RegisterRoutes(router)
	}
	if handlers.Chat != nil {
		handlers.Chat.RegisterRoutes(router)
	}

	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(rateLimitMiddleware(limiter, config.RateLimit, log))
	router.Use(actorMiddleware(config.JWTSecret, log))

	return correlationMiddleware(corsMiddleware(config.CORSOrigins, config.CORSAllowCredentials)(router))
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				writeSuccess(w, http.StatusOK, "Service degraded", map[string]string{
					"status":   "degraded",
					"database": err.Error(),
				})
				return
			}
		}
		writeSuccess(w, http.StatusOK, "Service healthy", map[string]string{"status": "ok"})
	}
}

// Start starts the HTTP server and blocks until it stops.
// A graceful shutdown is not reported as an error.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Starting HTTP server", map[string]interface{}{"addr": s.addr})
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}
