package api

import (
	"errors"
	"net/http"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
	"github.com/dtool-infra/dtool-config-generator/pkg/config"
	"github.com/dtool-infra/dtool-config-generator/pkg/confirm"
	"github.com/dtool-infra/dtool-config-generator/pkg/credentials"
	"github.com/dtool-infra/dtool-config-generator/pkg/directory"
	"github.com/dtool-infra/dtool-config-generator/pkg/models"
	"github.com/dtool-infra/dtool-config-generator/pkg/registry"
	"github.com/dtool-infra/dtool-config-generator/pkg/render"
	"github.com/dtool-infra/dtool-config-generator/pkg/store"
)

// Handlers bundles the collaborators every route needs.
type Handlers struct {
	cfg      *config.Config
	users    store.UserStore
	auth     directory.Authenticator
	sessions *SessionService
	tokens   *confirm.TokenService
	notifier *confirm.Notifier
	creds    *credentials.Manager
	renderer *render.Renderer
	registry *registry.Client
	ready    func(r *http.Request) error
	version  string
}

// NewHandlers creates the handler set.
func NewHandlers(
	cfg *config.Config,
	users store.UserStore,
	auth directory.Authenticator,
	sessions *SessionService,
	tokens *confirm.TokenService,
	notifier *confirm.Notifier,
	creds *credentials.Manager,
	renderer *render.Renderer,
	reg *registry.Client,
	ready func(r *http.Request) error,
	version string,
) *Handlers {
	return &Handlers{
		cfg:      cfg,
		users:    users,
		auth:     auth,
		sessions: sessions,
		tokens:   tokens,
		notifier: notifier,
		creds:    creds,
		renderer: renderer,
		registry: reg,
		ready:    ready,
		version:  version,
	}
}

// currentUser resolves the principal from the session cookie and
// loads a fresh user row.
func (h *Handlers) currentUser(r *http.Request) (*models.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, ErrInvalidSession
	}

	claims, err := h.sessions.Verify(cookie.Value)
	if err != nil {
		return nil, err
	}

	user, err := h.users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	if !user.Activated {
		return nil, models.ErrUserDeactivated
	}
	return user, nil
}

// requireUser resolves the principal or redirects to the login page.
// A nil return means the response has been written.
func (h *Handlers) requireUser(w http.ResponseWriter, r *http.Request) *models.User {
	user, err := h.currentUser(r)
	if err != nil {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return nil
	}
	return user
}

// requireConfirmed resolves the principal and redirects unconfirmed
// users to the unconfirmed landing page.
func (h *Handlers) requireConfirmed(w http.ResponseWriter, r *http.Request) *models.User {
	user := h.requireUser(w, r)
	if user == nil {
		return nil
	}
	if !user.CanGenerateCredentials() {
		http.Redirect(w, r, "/auth/unconfirmed", http.StatusSeeOther)
		return nil
	}
	return user
}

// requireAdmin resolves the principal and redirects non-admins to the
// home page.
func (h *Handlers) requireAdmin(w http.ResponseWriter, r *http.Request) *models.User {
	user := h.requireUser(w, r)
	if user == nil {
		return nil
	}
	if !user.IsAdmin {
		logger.Debug("non-admin denied", "username", user.Username, "path", r.URL.Path)
		http.Redirect(w, r, "/auth/home", http.StatusSeeOther)
		return nil
	}
	return user
}
