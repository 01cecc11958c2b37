package registry

import (
	"context"
	"fmt"
	"slices"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
)

// SyncAllUsers registers every given username that is absent from the
// registry roster. When grantSearch is set, every username is also
// granted search permissions on each of the given base URIs.
func (c *Client) SyncAllUsers(ctx context.Context, usernames []string, grantSearch bool, baseURIs []string) error {
	roster, err := c.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch registry roster: %w", err)
	}

	known := make([]string, 0, len(roster))
	for _, u := range roster {
		known = append(known, u.Username)
	}

	for _, username := range usernames {
		if slices.Contains(known, username) {
			logger.Debug("user already registered", "username", username)
		} else {
			logger.Debug("registering user", "username", username)
			if err := c.RegisterUser(ctx, username, false); err != nil {
				return err
			}
		}

		if !grantSearch {
			continue
		}
		for _, baseURI := range baseURIs {
			logger.Debug("granting search permissions",
				"username", username, "base_uri", baseURI)
			if err := c.AllowUser(ctx, baseURI, username, false); err != nil {
				return err
			}
		}
	}

	return nil
}
