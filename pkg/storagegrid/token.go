package storagegrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
)

// validToken returns the cached bearer token, re-authorizing first
// when no token is cached or the cached one no longer validates.
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

// authorize exchanges the management credentials for a bearer token.
func (c *Client) authorize(ctx context.Context) (string, error) {
	logger.Debug("authorizing against storagegrid", "host", c.cfg.Host, "account_id", c.cfg.AccountID)

	body, err := json.Marshal(map[string]any{
		"accountId": c.cfg.AccountID,
		"username":  c.cfg.Username,
		"password":  c.cfg.Password,
		"cookie":    true,
		"csrfToken": false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/authorize", bytes.NewReader(body))
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

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if env.Status != "success" {
		logger.Warn("storagegrid authorization failed", "host", c.cfg.Host, "status", resp.StatusCode)
		logger.Debug("authorization response", "body", string(respBody))
		return "", ErrAuthorizationFailed
	}

	var token string
	if err := json.Unmarshal(env.Data, &token); err != nil {
		return "", fmt.Errorf("failed to decode token: %w", err)
	}

	logger.Debug("storagegrid authorization successful", "host", c.cfg.Host)
	return token, nil
}

// checkToken validates a token against the access-restricted tenant
// config route.
func (c *Client) checkToken(ctx context.Context, token string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/org/config", nil)
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
