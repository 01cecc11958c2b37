// Package registry provides a client for the dataset-lookup registry
// service. The registry keeps per-base-URI search and register
// permission lists and a roster of known users.
package registry

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
)

var (
	// ErrRequestFailed is returned on unclassified remote failures.
	ErrRequestFailed = errors.New("registry request failed")

	// ErrAuthorizationFailed is returned when the registry credentials
	// are rejected by the token generator.
	ErrAuthorizationFailed = errors.New("registry authorization failed")

	// ErrUnknownBaseURI is returned when a base URI is not registered.
	ErrUnknownBaseURI = errors.New("base URI not known to registry")

	// ErrUnknownUser is returned when a username is not registered.
	ErrUnknownUser = errors.New("user not known to registry")
)

// Config holds the connection settings for a registry endpoint.
type Config struct {
	// URL is the registry base URL.
	URL string

	// TokenURL is the token generator endpoint credentials are
	// exchanged against.
	TokenURL string

	Username string
	Password string

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// Client talks to a single registry endpoint. The bearer token is
// obtained lazily from the token generator and cached; the cached
// token is validated against /config/info before reuse.
type Client struct {
	baseURL    string
	cfg        Config
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// New creates a client for the given registry.
func New(cfg Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		cfg:     cfg,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// do performs an authenticated request against the registry and
// decodes the response body into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.validToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrUnknownBaseURI
	}
	if resp.StatusCode >= 400 {
		logger.Debug("registry request rejected",
			"method", method, "path", path, "status", resp.StatusCode, "body", string(respBody))
		return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// validToken returns the cached bearer token, requesting a fresh one
// from the token generator when no token is cached or the cached one
// no longer validates.
func (c *Client) validToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.checkToken(ctx, c.token) {
		return c.token, nil
	}

	token, err := c.authorize(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	return token, nil
}

// authorize exchanges the registry credentials for a bearer token at
// the token generator.
func (c *Client) authorize(ctx context.Context) (string, error) {
	logger.Debug("requesting registry token", "token_url", c.cfg.TokenURL, "username", c.cfg.Username)

	body, err := json.Marshal(map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		logger.Warn("registry token request failed", "status", resp.StatusCode)
		logger.Debug("token generator response", "body", string(respBody))
		return "", ErrAuthorizationFailed
	}

	var tokenResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(respBody, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.Token == "" {
		return "", ErrAuthorizationFailed
	}

	return tokenResp.Token, nil
}

// checkToken validates a token against the access-restricted config
// route.
func (c *Client) checkToken(ctx context.Context, token string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/config/info", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// CheckHealth verifies the registry is reachable with valid
// credentials.
func (c *Client) CheckHealth(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/config/info", nil, nil)
}
