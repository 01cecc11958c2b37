// Package credentials implements the credential lifecycle against the
// object-storage identity provider: syncing the local user to a
// remote identity, listing, revoking and issuing S3 access keys.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
	"github.com/dtool-infra/dtool-config-generator/pkg/models"
	"github.com/dtool-infra/dtool-config-generator/pkg/storagegrid"
)

var (
	// ErrSyncFailed is returned when the local user could not be
	// mapped to a remote identity.
	ErrSyncFailed = errors.New("failed to sync user to remote identity")

	// ErrIssueFailed is returned when no new access key could be
	// issued.
	ErrIssueFailed = errors.New("failed to issue access key")
)

// KeyPair is a freshly issued access/secret key pair. The secret is
// only available at issue time.
type KeyPair struct {
	AccessKey string
	SecretKey string
	Expires   string
}

// Manager drives the credential lifecycle for local users.
//
// Manager is not safe against concurrent invocation for the same
// user: two simultaneous Recreate calls can interleave revoke and
// issue steps and leave zero or two live key pairs.
type Manager struct {
	grid *storagegrid.Client

	// defaultGroupUUID is added to the membership of newly created
	// remote identities when set.
	defaultGroupUUID string

	// keyValidity is the lifetime of issued keys.
	keyValidity time.Duration
}

// NewManager creates a credential lifecycle manager.
func NewManager(grid *storagegrid.Client, defaultGroupUUID string, keyValidity time.Duration) *Manager {
	return &Manager{
		grid:             grid,
		defaultGroupUUID: defaultGroupUUID,
		keyValidity:      keyValidity,
	}
}

// SyncUser maps a local user to its remote identity, creating the
// identity when it does not exist yet. The lookup by short name
// before creation makes the operation idempotent. Returns the remote
// identity id.
func (m *Manager) SyncUser(ctx context.Context, user *models.User) (string, error) {
	identity, err := m.grid.GetUserByShortName(ctx, user.Username)
	if err == nil {
		return identity.ID, nil
	}
	if !errors.Is(err, storagegrid.ErrNotFound) {
		return "", fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}

	logger.Debug("no remote identity yet, creating", "username", user.Username)

	var memberOf []string
	if m.defaultGroupUUID != "" {
		memberOf = []string{m.defaultGroupUUID}
	}

	identity, err = m.grid.CreateUser(ctx, "user/"+user.Username, user.GetDisplayName(), memberOf, false)
	if err != nil {
		logger.Error("remote identity creation failed", "username", user.Username, "error", err)
		return "", fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}

	syncsTotal.Inc()
	return identity.ID, nil
}

// ListKeys lists the access keys attached to the user's remote
// identity, syncing the identity first.
func (m *Manager) ListKeys(ctx context.Context, user *models.User) ([]storagegrid.AccessKey, error) {
	userID, err := m.SyncUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return m.grid.ListAccessKeys(ctx, userID)
}

// RevokeAll revokes every access key attached to the user's remote
// identity. Individual deletion failures are logged and skipped so
// that every key is attempted.
func (m *Manager) RevokeAll(ctx context.Context, user *models.User) error {
	userID, err := m.SyncUser(ctx, user)
	if err != nil {
		return err
	}

	keys, err := m.grid.ListAccessKeys(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list access keys: %w", err)
	}
	if len(keys) == 0 {
		logger.Debug("user has no access keys", "username", user.Username)
		return nil
	}

	for _, key := range keys {
		if err := m.grid.DeleteAccessKey(ctx, userID, key.ID); err != nil {
			logger.Error("failed to delete access key",
				"key_id", key.ID, "username", user.Username, "error", err)
			continue
		}
		logger.Debug("deleted access key", "key_id", key.ID, "username", user.Username)
		revocationsTotal.Inc()
	}

	return nil
}

// IssueKey issues a fresh access key pair for the user, expiring
// after the configured validity from now.
func (m *Manager) IssueKey(ctx context.Context, user *models.User) (*KeyPair, error) {
	userID, err := m.SyncUser(ctx, user)
	if err != nil {
		return nil, err
	}

	key, err := m.grid.CreateAccessKey(ctx, userID, m.keyValidity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIssueFailed, err)
	}

	issuesTotal.Inc()
	return &KeyPair{
		AccessKey: key.AccessKey,
		SecretKey: key.SecretAccessKey,
		Expires:   key.Expires,
	}, nil
}

// Recreate revokes all live keys and issues a single fresh pair.
func (m *Manager) Recreate(ctx context.Context, user *models.User) (*KeyPair, error) {
	if _, err := m.SyncUser(ctx, user); err != nil {
		return nil, err
	}
	if err := m.RevokeAll(ctx, user); err != nil {
		return nil, err
	}
	return m.IssueKey(ctx, user)
}
