package http

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/infra/logger"
	"github.com/devicehub/devicehub/internal/infra/metrics"
	"github.com/devicehub/devicehub/internal/infra/ratelimit"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"
	AdminEmailHeader    = "X-Admin-Email"
)

// correlationMiddleware ensures every request and response carries a correlation id
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(CorrelationIDHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		w.Header().Set(CorrelationIDHeader, cid)
		next.ServeHTTP(w, r.WithContext(logger.WithCorrelationID(r.Context(), cid)))
	})
}

// corsMiddleware allows exact origins from allowedOrigins and answers preflights
func corsMiddleware(allowedOrigins []string, allowCredentials bool) mux.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			w.Header().Add("Vary", "Origin")

			if origin != "" {
				if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					if allowCredentials {
						w.Header().Set("Access-Control-Allow-Credentials", "true")
					}
					w.Header().Set("Access-Control-Expose-Headers", "X-Correlation-ID, Content-Disposition")
				}
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
				} else {
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Correlation-ID, X-Admin-Email")
				}
				w.Header().Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs each request and observes its latency by route template
func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			metrics.HTTPRequestDuration.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Observe(elapsed.Seconds())

			log.Info(r.Context(), "HTTP request", map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": elapsed.Milliseconds(),
				"remote_addr": clientIP(r),
			})
		})
	}
}

// recoveryMiddleware turns a panic into a 500 envelope
func recoveryMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(r.Context(), "Panic recovered", fmt.Errorf("%v", rec), map[string]interface{}{
						"path": r.URL.Path,
					})
					writeErrorResponse(w, http.StatusInternalServerError, string(domain.ErrCodeInternalServerError), "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitConfig sets request budgets per client IP
type RateLimitConfig struct {
	Requests     int
	Window       time.Duration
	ChatRequests int
}

// rateLimitMiddleware rejects clients over budget and blocks them for one window
func rateLimitMiddleware(limiter ratelimit.Service, cfg RateLimitConfig, log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			ip := clientIP(r)

			key := "general:ip:" + ip
			limit := cfg.Requests
			if strings.HasPrefix(r.URL.Path, "/api/chat") {
				key = "chat:ip:" + ip
				limit = cfg.ChatRequests
			}

			blocked, err := limiter.IsBlocked(ctx, key)
			if err != nil {
				log.Error(ctx, "Failed to check block status", err, map[string]interface{}{"key": key})
			}
			if blocked {
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				writeErrorResponse(w, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again later.")
				return
			}

			allowed, err := limiter.Allow(ctx, key, limit, cfg.Window)
			if err != nil {
				log.Error(ctx, "Failed to check rate limit", err, map[string]interface{}{"key": key})
			}
			if !allowed {
				if err := limiter.Block(ctx, key, cfg.Window, "Rate limit exceeded"); err != nil {
					log.Error(ctx, "Failed to block client", err, map[string]interface{}{"key": key})
				}
				logger.LogSecurityEvent(ctx, log, "rate_limit_exceeded", "MEDIUM", map[string]interface{}{
					"ip":        ip,
					"path":      r.URL.Path,
					"userAgent": r.UserAgent(),
				})
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.Window.Seconds())))
				writeErrorResponse(w, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// supabaseClaims are the access-token claims used to name the acting admin
type supabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// actorMiddleware identifies the caller for audit purposes. It never rejects a request.
func actorMiddleware(jwtSecret string, log logger.Logger) mux.MiddlewareFunc {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := domain.Actor{IPAddress: clientIP(r)}

			if claims, err := parseBearer(r.Header.Get("Authorization"), secret); err == nil && claims != nil {
				actor.Email = claims.Email
				actor.Role = claims.Role
				actor.Subject = claims.Subject
			} else if err != nil {
				log.Debug(r.Context(), "Ignoring unusable bearer token", map[string]interface{}{"error": err.Error()})
			}
			if actor.Email == "" {
				actor.Email = strings.TrimSpace(r.Header.Get(AdminEmailHeader))
			}

			next.ServeHTTP(w, r.WithContext(domain.WithActor(r.Context(), actor)))
		})
	}
}

var errNoSecret = errors.New("jwt secret not configured")

// parseBearer returns nil claims and nil error when no bearer token is present
func parseBearer(header string, secret []byte) (*supabaseClaims, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, nil
	}
	if len(secret) == 0 {
		return nil, errNoSecret
	}

	claims := &supabaseClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// clientIP prefers X-Forwarded-For, then X-Real-IP, then the connection address
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
