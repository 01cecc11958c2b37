package storagegrid

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
)

// AccessKey describes an S3 access key attached to a tenant user.
// SecretAccessKey is only populated on the response to key creation
// and cannot be retrieved afterwards.
type AccessKey struct {
	ID              string `json:"id"`
	DisplayName     string `json:"displayName"`
	UserURN         string `json:"userURN"`
	UserUUID        string `json:"userUUID"`
	Expires         string `json:"expires"`
	AccessKey       string `json:"accessKey,omitempty"`
	SecretAccessKey string `json:"secretAccessKey,omitempty"`
}

// ListAccessKeys lists the S3 access keys of a tenant user.
func (c *Client) ListAccessKeys(ctx context.Context, userID string) ([]AccessKey, error) {
	var keys []AccessKey
	path := "/org/users/" + url.PathEscape(userID) + "/s3-access-keys"
	if err := c.do(ctx, http.MethodGet, path, nil, &keys, true); err != nil {
		return nil, fmt.Errorf("failed to list access keys for user %s: %w", userID, err)
	}
	return keys, nil
}

// CreateAccessKey issues a new S3 access key for a tenant user,
// expiring after validity from now.
func (c *Client) CreateAccessKey(ctx context.Context, userID string, validity time.Duration) (*AccessKey, error) {
	expires := time.Now().UTC().Add(validity).Format("2006-01-02T15:04:05.000Z")

	logger.Debug("creating s3 access key", "user_id", userID, "expires", expires)

	var key AccessKey
	path := "/org/users/" + url.PathEscape(userID) + "/s3-access-keys"
	body := map[string]any{"expires": expires}
	if err := c.do(ctx, http.MethodPost, path, body, &key, true); err != nil {
		return nil, fmt.Errorf("failed to create access key for user %s: %w", userID, err)
	}
	return &key, nil
}

// DeleteAccessKey revokes a single S3 access key.
func (c *Client) DeleteAccessKey(ctx context.Context, userID, keyID string) error {
	logger.Debug("deleting s3 access key", "user_id", userID, "key_id", keyID)
	path := "/org/users/" + url.PathEscape(userID) + "/s3-access-keys/" + url.PathEscape(keyID)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, true); err != nil {
		return fmt.Errorf("failed to delete access key %s for user %s: %w", keyID, userID, err)
	}
	return nil
}
