package storagegrid

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
)

// RemoteIdentity is a tenant-local user record as held by the
// endpoint.
type RemoteIdentity struct {
	ID         string   `json:"id"`
	AccountID  string   `json:"accountId"`
	FullName   string   `json:"fullName"`
	UniqueName string   `json:"uniqueName"`
	UserURN    string   `json:"userURN"`
	Federated  bool     `json:"federated"`
	MemberOf   []string `json:"memberOf"`
	Disable    bool     `json:"disable"`
}

// ShortName returns the username portion of the unique name, i.e.
// "jh1130" for "user/jh1130".
func (r *RemoteIdentity) ShortName() string {
	for i := len(r.UniqueName) - 1; i >= 0; i-- {
		if r.UniqueName[i] == '/' {
			return r.UniqueName[i+1:]
		}
	}
	return r.UniqueName
}

// ListUsersOptions narrow a user listing. The zero value lists the
// first 25 users.
type ListUsersOptions struct {
	// Type filters by "local" or "federated".
	Type string

	// Limit caps the number of results. Zero means the endpoint
	// default of 25.
	Limit int

	// Marker is a pagination offset holding the previous page's last
	// user URN. IncludeMarker also returns the marker element itself.
	Marker        string
	IncludeMarker bool

	// Order is "asc" or "desc".
	Order string
}

// ListUsers lists tenant users.
func (c *Client) ListUsers(ctx context.Context, opts ListUsersOptions) ([]RemoteIdentity, error) {
	params := url.Values{}
	limit := opts.Limit
	if limit <= 0 {
		limit = 25
	}
	params.Set("limit", strconv.Itoa(limit))
	if opts.Type != "" {
		params.Set("type", opts.Type)
	}
	if opts.Marker != "" {
		params.Set("marker", opts.Marker)
	}
	if opts.IncludeMarker {
		params.Set("includeMarker", "true")
	}
	if opts.Order != "" {
		params.Set("order", opts.Order)
	}

	var users []RemoteIdentity
	if err := c.do(ctx, http.MethodGet, "/org/users?"+params.Encode(), nil, &users, true); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// GetUserByShortName looks up a tenant user by the username portion
// of its unique name.
func (c *Client) GetUserByShortName(ctx context.Context, shortName string) (*RemoteIdentity, error) {
	var user RemoteIdentity
	err := c.do(ctx, http.MethodGet, "/org/users/user/"+url.PathEscape(shortName), nil, &user, true)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user %q: %w", shortName, err)
	}
	return &user, nil
}

// GetUserByID looks up a tenant user by id.
func (c *Client) GetUserByID(ctx context.Context, id string) (*RemoteIdentity, error) {
	var user RemoteIdentity
	err := c.do(ctx, http.MethodGet, "/org/users/"+url.PathEscape(id), nil, &user, true)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user %s: %w", id, err)
	}
	return &user, nil
}

// CreateUser creates a local tenant user. uniqueName must begin with
// "user/"; the portion after the slash is the sign-in username.
func (c *Client) CreateUser(ctx context.Context, uniqueName, fullName string, memberOf []string, disable bool) (*RemoteIdentity, error) {
	body := map[string]any{
		"uniqueName": uniqueName,
		"fullName":   fullName,
	}
	if memberOf != nil {
		body["memberOf"] = memberOf
	}
	if disable {
		body["disable"] = true
	}

	logger.Debug("creating storagegrid user", "unique_name", uniqueName)

	var user RemoteIdentity
	if err := c.do(ctx, http.MethodPost, "/org/users", body, &user, true); err != nil {
		return nil, fmt.Errorf("failed to create user %q: %w", uniqueName, err)
	}
	return &user, nil
}

// DeleteUser deletes a tenant user by id.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	logger.Debug("deleting storagegrid user", "id", id)
	if err := c.do(ctx, http.MethodDelete, "/org/users/"+url.PathEscape(id), nil, nil, true); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", id, err)
	}
	return nil
}
