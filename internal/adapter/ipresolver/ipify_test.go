package ipresolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPResolver_PublicIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ip":"203.0.113.7"}`))
	}))
	defer srv.Close()

	ip, err := NewHTTPResolver(srv.URL+"?format=json", time.Second).PublicIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", ip)
}

func TestHTTPResolver_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr string
	}{
		{
			name:    "non 200",
			handler: func(w http.ResponseWriter, r *http.Request) { http.Error(w, "nope", http.StatusBadGateway) },
			wantErr: "status: 502",
		},
		{
			name:    "bad json",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("203.0.113.7")) },
			wantErr: "decode",
		},
		{
			name:    "empty ip",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"ip":""}`)) },
			wantErr: "empty address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPResolver(srv.URL, time.Second).PublicIP(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHTTPResolver_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := NewHTTPResolver(srv.URL, 50*time.Millisecond).PublicIP(context.Background())
	assert.Error(t, err)
}

func TestNew_Disabled(t *testing.T) {
	r := New(false, "https://api.ipify.org?format=json", time.Second)
	_, err := r.PublicIP(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)
}
