package api

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

func loginForm(username, password string) url.Values {
	return url.Values{
		"username": {username},
		"password": {password},
	}
}

func TestLoginCreatesUnconfirmedUserAndNotifies(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.postForm(t, "/auth/login", loginForm("jh1130", "hunter2"), nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/auth/home", w.Header().Get("Location"))

	user, err := env.store.GetUser(context.Background(), "jh1130")
	require.NoError(t, err)
	assert.Equal(t, 1130, user.ID)
	assert.Equal(t, "Jessica Hoyle", user.Name)
	assert.False(t, user.Confirmed)

	require.Len(t, env.sender.messages, 1)
	assert.Equal(t, "admin@example.com", env.sender.messages[0].To)

	// A second login of the known identity must not notify again.
	w = env.postForm(t, "/auth/login", loginForm("jh1130", "hunter2"), nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Len(t, env.sender.messages, 1)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.postForm(t, "/auth/login", loginForm("jh1130", "wrong"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies())

	w = env.postForm(t, "/auth/login", loginForm("", ""), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestLoginRejectsDeactivatedUser(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.seedUser(t, &models.User{ID: 1130, Username: "jh1130", Activated: false})
	require.NoError(t, env.store.SetActivated(context.Background(), 1130, false))

	w := env.postForm(t, "/auth/login", loginForm("jh1130", "hunter2"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHomeRedirectsUnconfirmedUser(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	user := env.seedUser(t, &models.User{ID: 1130, Username: "jh1130"})

	w := env.get(t, "/auth/home", env.sessionCookie(t, user))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/auth/unconfirmed", w.Header().Get("Location"))
}

func TestHomeRequiresSession(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.get(t, "/auth/home", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/auth/login", w.Header().Get("Location"))
}

func TestConfirmLinkMarksUserConfirmed(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.postForm(t, "/auth/login", loginForm("jh1130", "hunter2"), nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	cookie := sessionFromResponse(t, w)

	token := confirmTokenFromMail(t, env.sender)

	// The admin follows the link without a session of their own.
	w = env.get(t, "/auth/confirm/"+token, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)

	user, err := env.store.GetUser(context.Background(), "jh1130")
	require.NoError(t, err)
	assert.True(t, user.Confirmed)

	w = env.get(t, "/auth/home", cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConfirmRejectsBadToken(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.get(t, "/auth/confirm/not-a-token", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfirmRejectsTokenForDeletedUser(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	user := env.seedUser(t, &models.User{ID: 1130, Username: "jh1130"})

	token, err := env.tokens.Issue(user)
	require.NoError(t, err)
	require.NoError(t, env.store.DeleteUser(context.Background(), 1130))

	w := env.get(t, "/auth/confirm/"+token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	user := env.seedUser(t, &models.User{ID: 1130, Username: "jh1130"})

	w := env.get(t, "/auth/logout", env.sessionCookie(t, user))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/auth/login", w.Header().Get("Location"))

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "logout must expire the session cookie")
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	user := env.seedUser(t, &models.User{ID: 1130, Username: "jh1130"})
	cookie := env.sessionCookie(t, user)

	form := url.Values{
		"name":  {"Jessica A. Hoyle"},
		"email": {"jah@example.com"},
		"orcid": {"0000-0001-2345-6789"},
	}
	w := env.postForm(t, "/auth/profile", form, cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)

	got, err := env.store.GetUserByID(context.Background(), 1130)
	require.NoError(t, err)
	assert.Equal(t, "Jessica A. Hoyle", got.Name)
	assert.Equal(t, "jah@example.com", got.Email)
	assert.Equal(t, "0000-0001-2345-6789", got.ORCID)
}

func TestUpdateProfileValidation(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	user := env.seedUser(t, &models.User{ID: 1130, Username: "jh1130"})
	cookie := env.sessionCookie(t, user)

	w := env.postForm(t, "/auth/profile", url.Values{
		"name":  {"Jessica"},
		"email": {"not-an-address"},
	}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	got, err := env.store.GetUserByID(context.Background(), 1130)
	require.NoError(t, err)
	assert.Empty(t, got.Email, "invalid submission must not be stored")
}

func TestDeactivatedUserSessionIsRejected(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	user := env.seedUser(t, &models.User{ID: 1130, Username: "jh1130"})
	cookie := env.sessionCookie(t, user)

	require.NoError(t, env.store.SetActivated(context.Background(), 1130, false))

	w := env.get(t, "/auth/home", cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/auth/login", w.Header().Get("Location"))
}

func TestRootRedirectsHome(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.get(t, "/", nil)
	require.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/auth/home", w.Header().Get("Location"))
}
