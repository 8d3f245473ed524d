package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/infra/logger"
	"github.com/devicehub/devicehub/internal/infra/ratelimit"
)

func TestCORS_Preflight(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		wantOrigin string
	}{
		{"allowed origin", "http://localhost:3000", "http://localhost:3000"},
		{"unknown origin", "http://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/admin/logs", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", "POST")
			rr := httptest.NewRecorder()
			newTestRouter(Handlers{}, nil).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusNoContent, rr.Code)
			assert.Equal(t, tt.wantOrigin, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET,POST,OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
		})
	}
}

func TestCorrelationID(t *testing.T) {
	t.Run("echoes caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(CorrelationIDHeader, "abc-123")
		rr := httptest.NewRecorder()
		newTestRouter(Handlers{}, nil).ServeHTTP(rr, req)

		assert.Equal(t, "abc-123", rr.Header().Get(CorrelationIDHeader))
	})

	t.Run("generates an id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rr := httptest.NewRecorder()
		newTestRouter(Handlers{}, nil).ServeHTTP(rr, req)

		_, err := uuid.Parse(rr.Header().Get(CorrelationIDHeader))
		assert.NoError(t, err)
	})

	t.Run("available to handlers", func(t *testing.T) {
		var seen string
		h := correlationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = logger.CorrelationID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(CorrelationIDHeader, "from-caller")
		h.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "from-caller", seen)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewLocalService(time.Minute)
	cfg := testServerConfig()
	cfg.RateLimit = RateLimitConfig{Requests: 1, Window: time.Minute, ChatRequests: 1}
	devices := new(MockDeviceUseCase)
	devices.On("ListDevices", mock.Anything).Return([]*domain.Device{}, nil)
	router := NewRouter(cfg, Handlers{Device: NewDeviceHandler(devices)}, limiter, logger.NewDiscardLogger())

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, get("/api/devices").Code)

	rr := get("/api/devices")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeEnvelope(t, rr).Code)

	blocked, err := limiter.IsBlocked(context.Background(), "general:ip:203.0.113.9")
	require.NoError(t, err)
	assert.True(t, blocked)
	devices.AssertNumberOfCalls(t, "ListDevices", 1)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get("/health").Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.NewDiscardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, string(domain.ErrCodeInternalServerError), decodeEnvelope(t, rr).Code)
}

func TestActorMiddleware(t *testing.T) {
	claims := supabaseClaims{
		Email: "jwt@example.com",
		Role:  "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	expired := claims
	expired.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name    string
		secret  string
		headers map[string]string
		want    domain.Actor
	}{
		{
			name: "anonymous",
			want: domain.Actor{IPAddress: "192.0.2.1"},
		},
		{
			name:    "admin header",
			headers: map[string]string{AdminEmailHeader: " ops@example.com "},
			want:    domain.Actor{Email: "ops@example.com", IPAddress: "192.0.2.1"},
		},
		{
			name:    "valid token",
			secret:  testJWTSecret,
			headers: map[string]string{"Authorization": "Bearer " + signToken(t, jwt.SigningMethodHS256, testJWTSecret, claims)},
			want:    domain.Actor{Email: "jwt@example.com", Role: "admin", Subject: "user-1", IPAddress: "192.0.2.1"},
		},
		{
			name:   "token with wrong secret falls back to header",
			secret: testJWTSecret,
			headers: map[string]string{
				"Authorization":  "Bearer " + signToken(t, jwt.SigningMethodHS256, "another-secret", claims),
				AdminEmailHeader: "ops@example.com",
			},
			want: domain.Actor{Email: "ops@example.com", IPAddress: "192.0.2.1"},
		},
		{
			name:    "expired token ignored",
			secret:  testJWTSecret,
			headers: map[string]string{"Authorization": "Bearer " + signToken(t, jwt.SigningMethodHS256, testJWTSecret, expired)},
			want:    domain.Actor{IPAddress: "192.0.2.1"},
		},
		{
			name:    "token without configured secret ignored",
			headers: map[string]string{"Authorization": "Bearer " + signToken(t, jwt.SigningMethodHS256, testJWTSecret, claims)},
			want:    domain.Actor{IPAddress: "192.0.2.1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got domain.Actor
			h := actorMiddleware(tt.secret, logger.NewDiscardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = domain.ActorFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBearer(t *testing.T) {
	claims := supabaseClaims{Email: "a@example.com"}

	got, err := parseBearer("", []byte(testJWTSecret))
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseBearer("Basic dXNlcjpwYXNz", []byte(testJWTSecret))
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = parseBearer("Bearer "+signToken(t, jwt.SigningMethodHS256, testJWTSecret, claims), nil)
	assert.True(t, errors.Is(err, errNoSecret))

	_, err = parseBearer("Bearer "+signToken(t, jwt.SigningMethodHS512, testJWTSecret, claims), []byte(testJWTSecret))
	assert.Error(t, err)

	got, err = parseBearer("bearer "+signToken(t, jwt.SigningMethodHS256, testJWTSecret, claims), []byte(testJWTSecret))
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded for first hop", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.2:5555", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.2:5555", "198.51.100.2"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "203.0.113.1", "X-Real-IP": "198.51.100.2"}, "10.0.0.2:5555", "203.0.113.1"},
		{"remote addr", nil, "10.0.0.2:5555", "10.0.0.2"},
		{"remote addr without port", nil, "10.0.0.2", "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newTestRouter(Handlers{Health: func(context.Context) error { return nil }}, nil).
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ok", decodeEnvelope(t, rr).Data.(map[string]interface{})["status"])
	})

	t.Run("database down", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newTestRouter(Handlers{Health: func(context.Context) error { return errors.New("connection refused") }}, nil).
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		data := decodeEnvelope(t, rr).Data.(map[string]interface{})
		assert.Equal(t, "degraded", data["status"])
		assert.Equal(t, "connection refused", data["database"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(Handlers{}, nil)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "devicehub_http_request_duration_seconds")
}
