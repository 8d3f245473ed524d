// Package ipresolver looks up the public address recorded on audit entries.
package ipresolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devicehub/devicehub/internal/ports"
)

// ErrDisabled is returned by the disabled resolver
var ErrDisabled = errors.New("ip lookup disabled")

// HTTPResolver queries an ipify-compatible endpoint returning {"ip": "..."}
type HTTPResolver struct {
	url        string
	httpClient *http.Client
}

var _ ports.IPResolver = (*HTTPResolver)(nil)

// NewHTTPResolver creates a resolver for url with a per-request timeout
func NewHTTPResolver(url string, timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PublicIP returns the address reported by the lookup service
func (r *HTTPResolver) PublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create ip lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ip lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ip lookup returned status: %d - %s", resp.StatusCode, string(body))
	}

	var payload struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode ip lookup response: %w", err)
	}

	ip := strings.TrimSpace(payload.IP)
	if ip == "" {
		return "", errors.New("ip lookup returned an empty address")
	}
	return ip, nil
}

// Disabled never performs a lookup
type Disabled struct{}

// PublicIP always returns ErrDisabled
func (Disabled) PublicIP(context.Context) (string, error) {
	return "", ErrDisabled
}

// New returns an HTTP resolver when enabled, Disabled otherwise
func New(enabled bool, url string, timeout time.Duration) ports.IPResolver {
	if !enabled || url == "" {
		return Disabled{}
	}
	return NewHTTPResolver(url, timeout)
}
