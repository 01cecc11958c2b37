package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
)

// Config configures the LDAP authenticator.
type Config struct {
	// Host is the LDAP URL, e.g. ldap://localhost:1389 or
	// ldaps://directory.example.org.
	Host string

	// BaseDN is the directory base, e.g. dc=example,dc=org.
	BaseDN string

	// UserDN is prepended to the base DN for user searches, e.g.
	// ou=users. Empty searches the whole base.
	UserDN string

	// LoginAttr is the attribute users authenticate with, e.g. uid.
	LoginAttr string

	// BindDN/BindPassword are optional service credentials for the
	// search bind. Empty means anonymous bind.
	BindDN       string
	BindPassword string

	// ObjectFilter restricts the user search, e.g. (objectclass=*).
	ObjectFilter string

	// StartTLS upgrades the connection before binding.
	StartTLS bool

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// LDAPAuthenticator implements Authenticator against an LDAP server.
//
// Authentication is search-then-bind: locate the entry under the user
// DN by login attribute, then bind as that entry with the supplied
// password. Each call dials a fresh connection; the directory is only
// contacted on login, so connection pooling buys nothing here.
type LDAPAuthenticator struct {
	config Config
}

// NewLDAPAuthenticator creates an LDAP authenticator.
func NewLDAPAuthenticator(config Config) *LDAPAuthenticator {
	if config.LoginAttr == "" {
		config.LoginAttr = "uid"
	}
	if config.ObjectFilter == "" {
		config.ObjectFilter = "(objectclass=*)"
	}
	return &LDAPAuthenticator{config: config}
}

// searchBase returns the DN user searches start from.
func (a *LDAPAuthenticator) searchBase() string {
	if a.config.UserDN == "" {
		return a.config.BaseDN
	}
	return a.config.UserDN + "," + a.config.BaseDN
}

// Authenticate validates the credentials against the directory and
// returns the verified identity record.
func (a *LDAPAuthenticator) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	if username == "" || password == "" {
		return nil, ErrAuthenticationFailed
	}

	conn, err := a.dial(ctx)
	if err != nil {
		logger.Warn("failed to reach directory service", "host", a.config.Host, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer conn.Close()

	if a.config.BindDN != "" {
		if err := conn.Bind(a.config.BindDN, a.config.BindPassword); err != nil {
			return nil, fmt.Errorf("%w: service bind failed: %v", ErrDirectoryUnavailable, err)
		}
	}

	entry, err := a.findUser(conn, username)
	if err != nil {
		return nil, err
	}

	// Bind as the located entry to verify the password.
	if err := conn.Bind(entry.DN, password); err != nil {
		logger.Debug("directory bind rejected", "username", username)
		return nil, ErrAuthenticationFailed
	}

	identity, err := entryToIdentity(entry, username)
	if err != nil {
		return nil, err
	}

	logger.Debug("directory authentication succeeded",
		"username", identity.Username, "dn", identity.DN, "id", identity.ID)
	return identity, nil
}

func (a *LDAPAuthenticator) dial(ctx context.Context) (*ldap.Conn, error) {
	conn, err := ldap.DialURL(a.config.Host)
	if err != nil {
		return nil, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(deadline))
	}

	if a.config.StartTLS {
		tlsConfig := &tls.Config{InsecureSkipVerify: a.config.InsecureSkipVerify}
		if err := conn.StartTLS(tlsConfig); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return conn, nil
}

func (a *LDAPAuthenticator) findUser(conn *ldap.Conn, username string) (*ldap.Entry, error) {
	filter := fmt.Sprintf("(&%s(%s=%s))",
		a.config.ObjectFilter, a.config.LoginAttr, ldap.EscapeFilter(username))

	req := ldap.NewSearchRequest(
		a.searchBase(),
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2, 0, false,
		filter,
		[]string{"dn", a.config.LoginAttr, "uidNumber", "cn", "mail"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", ErrDirectoryUnavailable, err)
	}

	switch len(res.Entries) {
	case 0:
		logger.Debug("no directory entry for user", "username", username)
		return nil, ErrAuthenticationFailed
	case 1:
		return res.Entries[0], nil
	default:
		// Ambiguous entries are a directory misconfiguration; refuse
		// to pick one.
		logger.Warn("multiple directory entries for user", "username", username)
		return nil, ErrAuthenticationFailed
	}
}

func entryToIdentity(entry *ldap.Entry, username string) (*Identity, error) {
	uidNumber := entry.GetAttributeValue("uidNumber")
	id, err := strconv.Atoi(uidNumber)
	if err != nil {
		return nil, fmt.Errorf("directory entry %s has no usable uidNumber %q", entry.DN, uidNumber)
	}

	return &Identity{
		ID:       id,
		Username: username,
		DN:       entry.DN,
		Name:     entry.GetAttributeValue("cn"),
		Email:    entry.GetAttributeValue("mail"),
	}, nil
}
