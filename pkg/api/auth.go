package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

var validate = validator.New()

// LoginPage renders the login form.
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, http.StatusOK, "login.html.tmpl", pageData{})
}

// Login authenticates the submitted credentials against the
// directory. On the first successful login of an unknown identity a
// local record is created unconfirmed and the admin mailbox is
// notified.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderPage(w, http.StatusBadRequest, "login.html.tmpl", pageData{Error: "Malformed form submission."})
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		renderPage(w, http.StatusUnprocessableEntity, "login.html.tmpl", pageData{Error: "Username and password are required."})
		return
	}

	identity, err := h.auth.Authenticate(r.Context(), username, password)
	if err != nil {
		logger.Info("login failed", "username", username, "error", err)
		renderPage(w, http.StatusUnauthorized, "login.html.tmpl", pageData{Error: "Invalid username or password."})
		return
	}

	user, err := h.users.GetUserByID(r.Context(), identity.ID)
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		user = &models.User{
			ID:       identity.ID,
			Username: identity.Username,
			DN:       identity.DN,
			Name:     identity.Name,
			Email:    identity.Email,
		}
		if err := h.users.CreateUser(r.Context(), user); err != nil {
			logger.Error("failed to record first-time user", "username", username, "error", err)
			InternalServerError(w, "failed to record user")
			return
		}
		logger.Info("first login of unknown identity, confirmation required", "username", username, "id", user.ID)
		if err := h.notifier.RequireConfirmation(r.Context(), user); err != nil {
			logger.Error("failed to notify admin mailbox", "username", username, "error", err)
		}
	case err != nil:
		logger.Error("failed to load user", "username", username, "error", err)
		InternalServerError(w, "failed to load user")
		return
	}

	if !user.Activated {
		renderPage(w, http.StatusForbidden, "login.html.tmpl", pageData{Error: "Account is deactivated."})
		return
	}

	token, err := h.sessions.Issue(user)
	if err != nil {
		logger.Error("failed to issue session", "username", username, "error", err)
		InternalServerError(w, "failed to issue session")
		return
	}
	h.sessions.SetCookie(w, token)

	logger.Info("user logged in", "username", user.Username, "id", user.ID)
	http.Redirect(w, r, "/auth/home", http.StatusSeeOther)
}

// Logout clears the session cookie.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

// Home renders the landing page. Unconfirmed users are sent to the
// unconfirmed page instead.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	if !user.Confirmed {
		http.Redirect(w, r, "/auth/unconfirmed", http.StatusSeeOther)
		return
	}
	renderPage(w, http.StatusOK, "home.html.tmpl", pageData{User: user})
}

// Unconfirmed renders the waiting-for-confirmation page.
func (h *Handlers) Unconfirmed(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	renderPage(w, http.StatusOK, "unconfirmed.html.tmpl", pageData{User: user})
}

// Confirm validates a confirmation token and marks the user
// confirmed. Bad or expired tokens answer 404; the token is the only
// capability required, the admin follows the mailed link without
// logging in first.
func (h *Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	claims, err := h.tokens.Verify(token)
	if err != nil {
		logger.Info("confirmation token rejected", "error", err)
		NotFound(w, "unknown confirmation link")
		return
	}

	user, err := h.users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		logger.Info("confirmation for unknown user", "id", claims.UserID)
		NotFound(w, "unknown confirmation link")
		return
	}

	if err := h.users.SetConfirmed(r.Context(), user.ID, true); err != nil {
		logger.Error("failed to confirm user", "username", user.Username, "error", err)
		InternalServerError(w, "failed to confirm user")
		return
	}
	logger.Info("user confirmed", "username", user.Username, "id", user.ID)

	h.runConfirmationHooks(r, user)

	http.Redirect(w, r, "/auth/home", http.StatusSeeOther)
}

// runConfirmationHooks optionally registers the freshly confirmed
// user at the registry and grants default search permissions.
// Failures are logged, never fatal for the confirmation itself.
func (h *Handlers) runConfirmationHooks(r *http.Request, user *models.User) {
	if h.registry == nil {
		return
	}

	if h.cfg.Registry.RegisterUserOnConfirmation {
		logger.Debug("registering confirmed user at registry", "username", user.Username)
		if err := h.registry.RegisterUser(r.Context(), user.Username, false); err != nil {
			logger.Warn("registry registration failed", "username", user.Username, "error", err)
		}
	}

	if h.cfg.Registry.GrantDefaultSearchPermissionsOnConfirmation {
		for _, baseURI := range h.cfg.Registry.DefaultSearchPermissions {
			logger.Debug("granting search permissions",
				"username", user.Username, "base_uri", baseURI)
			if err := h.registry.AllowUser(r.Context(), baseURI, user.Username, false); err != nil {
				logger.Warn("granting search permissions failed",
					"username", user.Username, "base_uri", baseURI, "error", err)
			}
		}
	}
}

// profileForm is the validated profile submission.
type profileForm struct {
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
	ORCID string `validate:"omitempty"`
}

// ProfilePage renders the profile form.
func (h *Handlers) ProfilePage(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}
	renderPage(w, http.StatusOK, "profile.html.tmpl", pageData{User: user})
}

// UpdateProfile validates and stores the submitted profile fields.
// Validation errors redisplay the form.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := h.requireUser(w, r)
	if user == nil {
		return
	}

	if err := r.ParseForm(); err != nil {
		renderPage(w, http.StatusBadRequest, "profile.html.tmpl", pageData{User: user, Error: "Malformed form submission."})
		return
	}

	form := profileForm{
		Name:  r.PostFormValue("name"),
		Email: r.PostFormValue("email"),
		ORCID: r.PostFormValue("orcid"),
	}
	if err := validate.Struct(form); err != nil {
		renderPage(w, http.StatusUnprocessableEntity, "profile.html.tmpl",
			pageData{User: user, Error: "Name and a valid email address are required."})
		return
	}

	user.Name = form.Name
	user.Email = form.Email
	user.ORCID = form.ORCID
	if err := h.users.UpdateUser(r.Context(), user); err != nil {
		logger.Error("failed to update profile", "username", user.Username, "error", err)
		InternalServerError(w, "failed to update profile")
		return
	}

	logger.Debug("profile updated", "username", user.Username)
	http.Redirect(w, r, "/auth/home", http.StatusSeeOther)
}
