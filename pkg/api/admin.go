package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dtool-infra/dtool-config-generator/internal/logger"
	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

// ConfigInfo returns the redacted server configuration with lowercase
// keys plus the running version. Admin only.
func (h *Handlers) ConfigInfo(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	info, err := h.cfg.Redacted()
	if err != nil {
		logger.Error("failed to serialize configuration", "error", err)
		InternalServerError(w, "failed to serialize configuration")
		return
	}
	info["version"] = h.version

	WriteJSONOK(w, info)
}

// userResponse is the JSON shape of a user in the admin console.
type userResponse struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	ORCID     string `json:"orcid,omitempty"`
	Activated bool   `json:"activated"`
	Confirmed bool   `json:"confirmed"`
	IsAdmin   bool   `json:"is_admin"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Email:     u.Email,
		ORCID:     u.ORCID,
		Activated: u.Activated,
		Confirmed: u.Confirmed,
		IsAdmin:   u.IsAdmin,
	}
}

// ListUsers returns all local user records. Admin only.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		logger.Error("failed to list users", "error", err)
		InternalServerError(w, "failed to list users")
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	WriteJSONOK(w, resp)
}

// pathUserID parses the {id} route parameter.
func pathUserID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		BadRequest(w, "invalid user id")
		return 0, false
	}
	return id, true
}

// ConfirmUser marks a user confirmed, running the same post
// confirmation hooks as the mailed link. Admin only.
func (h *Handlers) ConfirmUser(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		h.writeUserError(w, id, err)
		return
	}

	if err := h.users.SetConfirmed(r.Context(), id, true); err != nil {
		h.writeUserError(w, id, err)
		return
	}
	logger.Info("user confirmed by admin", "username", user.Username, "id", id)

	h.runConfirmationHooks(r, user)

	user.Confirmed = true
	WriteJSONOK(w, toUserResponse(user))
}

// DeactivateUser clears the activated flag; the user can no longer
// log in or keep a session. Admin only.
func (h *Handlers) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}

	if err := h.users.SetActivated(r.Context(), id, false); err != nil {
		h.writeUserError(w, id, err)
		return
	}
	logger.Info("user deactivated", "id", id)
	WriteNoContent(w)
}

// DeleteUser removes the local user record. The remote identity is
// left untouched. Admin only.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}

	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		h.writeUserError(w, id, err)
		return
	}
	logger.Info("user deleted", "id", id)
	WriteNoContent(w)
}

func (h *Handlers) writeUserError(w http.ResponseWriter, id int, err error) {
	if errors.Is(err, models.ErrUserNotFound) {
		NotFound(w, "no such user")
		return
	}
	logger.Error("user operation failed", "id", id, "error", err)
	InternalServerError(w, "user operation failed")
}
