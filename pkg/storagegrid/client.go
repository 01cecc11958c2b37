// Package storagegrid provides a client for the NetApp StorageGRID
// tenant management API (API v3). It administers local tenant users
// and their S3 access keys on behalf of the credential manager.
package storagegrid

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

// ErrRequestFailed is returned when the endpoint answers with a
// non-success envelope status.
var ErrRequestFailed = errors.New("storagegrid request failed")

// ErrAuthorizationFailed is returned when the management credentials
// are rejected.
var ErrAuthorizationFailed = errors.New("storagegrid authorization failed")

// ErrNotFound is returned when the requested entity does not exist.
var ErrNotFound = errors.New("storagegrid entity not found")

// Config holds the connection settings for a tenant management
// endpoint.
type Config struct {
	// Host is the management API host, without scheme.
	Host string

	// AccountID identifies the tenant account.
	AccountID string

	// Username and Password authenticate the management user.
	Username string
	Password string

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// Client talks to a single StorageGRID tenant management endpoint.
// A bearer token is obtained lazily and cached across calls; the
// cached token is validated before reuse and re-acquired when stale.
type Client struct {
	baseURL    string
	cfg        Config
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// envelope is the response wrapper every management endpoint returns.
type envelope struct {
	ResponseTime string          `json:"responseTime"`
	Status       string          `json:"status"`
	APIVersion   string          `json:"apiVersion"`
	Data         json.RawMessage `json:"data"`
	Message      *struct {
		Text string `json:"text"`
	} `json:"message,omitempty"`
}

// New creates a client for the given endpoint. A bare host is reached
// over https; a host with an explicit scheme is used as given.
func New(cfg Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402
	}
	base := cfg.Host
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/") + "/api/v3",
		cfg:     cfg,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// do performs a request against the management API and decodes the
// success envelope into result. Authenticated requests carry the
// cached bearer token.
func (c *Client) do(ctx context.Context, method, path string, body, result any, authenticated bool) error {
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

	if authenticated {
		token, err := c.validToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

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
		return ErrNotFound
	}

	// Deletes answer 204 with an empty body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if env.Status != "success" {
		logger.Debug("storagegrid request rejected",
			"method", method, "path", path, "status", resp.StatusCode, "body", string(respBody))
		if env.Message != nil && env.Message.Text != "" {
			return fmt.Errorf("%w: %s", ErrRequestFailed, env.Message.Text)
		}
		return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

// CheckHealth probes the unauthenticated versions endpoint.
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/versions", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}
	return nil
}
