package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

func confirmedUser(t *testing.T, env *testEnv) *models.User {
	t.Helper()
	user := env.seedUser(t, &models.User{
		ID:       1130,
		Username: "jh1130",
		Name:     "Jessica Hoyle",
		Email:    "jh1130@example.com",
	})
	require.NoError(t, env.store.SetConfirmed(context.Background(), user.ID, true))
	user.Confirmed = true
	return user
}

func TestGenerateConfigRequiresSession(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.get(t, "/generate/config", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/auth/login", w.Header().Get("Location"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}

func TestGenerateConfigRejectsUnconfirmedUser(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	user := env.seedUser(t, &models.User{ID: 1130, Username: "jh1130"})

	w := env.get(t, "/generate/config", env.sessionCookie(t, user))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/auth/unconfirmed", w.Header().Get("Location"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.Equal(t, 0, env.grid.keyCount(), "no credentials may be issued")
}

func TestGenerateConfigIssuesFreshCredentials(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	user := confirmedUser(t, env)

	w := env.get(t, "/generate/config", env.sessionCookie(t, user))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment;filename=dtool.json`, w.Header().Get("Content-Disposition"))

	var cfg map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))

	assert.Equal(t, "jh1130", cfg["DTOOL_LOOKUP_SERVER_USERNAME"])
	assert.Equal(t, "Jessica Hoyle", cfg["DTOOL_USER_FULL_NAME"])
	assert.Equal(t, "jh1130@example.com", cfg["DTOOL_USER_EMAIL"])
	assert.Equal(t, "https://lookup.example.com/lookup", cfg["DTOOL_LOOKUP_SERVER_URL"])
	assert.Equal(t, "https://lookup.example.com/token", cfg["DTOOL_LOOKUP_SERVER_TOKEN_GENERATOR_URL"])
	assert.Equal(t, "u/jh1130/", cfg["DTOOL_S3_DATASET_PREFIX"])
	assert.Equal(t, "https://s3.example.com", cfg["DTOOL_S3_ENDPOINT_datasets"])

	// The embedded credentials are the single live pair.
	identity := env.grid.users["jh1130"]
	require.NotNil(t, identity)
	keys := env.grid.keys[identity.ID]
	require.Len(t, keys, 1)
	assert.Equal(t, keys[0].AccessKey, cfg["DTOOL_S3_ACCESS_KEY_ID_datasets"])
	assert.Equal(t, keys[0].SecretAccessKey, cfg["DTOOL_S3_SECRET_ACCESS_KEY_datasets"])
}

func TestGenerateConfigRotatesCredentials(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	user := confirmedUser(t, env)
	cookie := env.sessionCookie(t, user)

	w := env.get(t, "/generate/config", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var first map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	w = env.get(t, "/generate/config", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var second map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))

	assert.NotEqual(t,
		first["DTOOL_S3_ACCESS_KEY_ID_datasets"],
		second["DTOOL_S3_ACCESS_KEY_ID_datasets"])
	assert.Equal(t, 1, env.grid.keyCount(), "the previous pair must be revoked")
}

func TestGenerateReadme(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	user := confirmedUser(t, env)

	w := env.get(t, "/generate/readme", env.sessionCookie(t, user))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment;filename=dtool_readme.yml`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "Jessica Hoyle")

	assert.Equal(t, 0, env.grid.keyCount(), "the readme must not touch credentials")
}

func TestLoginConfirmGenerateEndToEnd(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	w := env.postForm(t, "/auth/login", loginForm("jh1130", "hunter2"), nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	cookie := sessionFromResponse(t, w)

	// Blocked until the admin follows the mailed link.
	w = env.get(t, "/generate/config", cookie)
	require.Equal(t, http.StatusSeeOther, w.Code)

	token := confirmTokenFromMail(t, env.sender)
	w = env.get(t, "/auth/confirm/"+token, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = env.get(t, "/generate/config", cookie)
	require.Equal(t, http.StatusOK, w.Code)

	var cfg map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	assert.Equal(t, "Jessica Hoyle", cfg["DTOOL_USER_FULL_NAME"])
	assert.NotEmpty(t, cfg["DTOOL_S3_ACCESS_KEY_ID_datasets"])
	assert.NotEmpty(t, cfg["DTOOL_S3_SECRET_ACCESS_KEY_datasets"])
}
