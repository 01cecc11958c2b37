// Package directory authenticates users against an LDAP directory
// service and exposes the verified identity record used to create or
// look up local user accounts.
package directory

import (
	"context"
	"errors"
)

// Common errors for Authenticator operations.
var (
	// ErrAuthenticationFailed covers bad credentials and unknown
	// users. Callers must not distinguish the two.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrDirectoryUnavailable indicates the directory service could
	// not be reached.
	ErrDirectoryUnavailable = errors.New("directory service unavailable")
)

// Identity is the verified identity record returned by the directory.
type Identity struct {
	// ID is the directory-assigned stable key (uidNumber).
	ID int

	// Username is the login attribute value.
	Username string

	// DN is the distinguished name of the directory entry.
	DN string

	// Name and Email are taken from the directory entry when present,
	// and seed the local user's profile.
	Name  string
	Email string
}

// Authenticator validates username/password credentials against a
// directory service.
//
// Implementations must return ErrAuthenticationFailed for invalid
// credentials and ErrDirectoryUnavailable for transport failures.
type Authenticator interface {
	// Authenticate validates the credentials and returns the verified
	// identity record.
	Authenticate(ctx context.Context, username, password string) (*Identity, error)
}
