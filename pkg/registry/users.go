package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
)

// UserRecord is a registry roster entry.
type UserRecord struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// UserInfo describes a registered user with its permissions.
type UserInfo struct {
	Username                 string   `json:"username"`
	IsAdmin                  bool     `json:"is_admin"`
	SearchPermissionsOnBases []string `json:"search_permissions_on_base_uris"`
	RegisterPermissionsOn    []string `json:"register_permissions_on_base_uris"`
}

// ListUsers lists the registry's user roster.
func (c *Client) ListUsers(ctx context.Context) ([]UserRecord, error) {
	var users []UserRecord
	if err := c.do(ctx, http.MethodGet, "/admin/user/list", nil, &users); err != nil {
		return nil, fmt.Errorf("failed to list registry users: %w", err)
	}
	return users, nil
}

// GetUserInfo returns a registered user's details.
func (c *Client) GetUserInfo(ctx context.Context, username string) (*UserInfo, error) {
	var info UserInfo
	err := c.do(ctx, http.MethodGet, "/user/info/"+url.PathEscape(username), nil, &info)
	if err != nil {
		if errors.Is(err, ErrUnknownBaseURI) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("failed to query registry user %q: %w", username, err)
	}
	return &info, nil
}

// RegisterUser registers a user at the registry. Registering an
// already known user is a no-op on the registry side.
func (c *Client) RegisterUser(ctx context.Context, username string, isAdmin bool) error {
	logger.Debug("registering registry user", "username", username, "is_admin", isAdmin)
	body := []UserRecord{{Username: username, IsAdmin: isAdmin}}
	if err := c.do(ctx, http.MethodPost, "/admin/user/register", body, nil); err != nil {
		return fmt.Errorf("failed to register user %q: %w", username, err)
	}
	return nil
}
