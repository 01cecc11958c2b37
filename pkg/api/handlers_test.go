package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/dtool-infra/dtool-config-generator/pkg/config"
	"github.com/dtool-infra/dtool-config-generator/pkg/confirm"
	"github.com/dtool-infra/dtool-config-generator/pkg/credentials"
	"github.com/dtool-infra/dtool-config-generator/pkg/directory"
	"github.com/dtool-infra/dtool-config-generator/pkg/mail"
	"github.com/dtool-infra/dtool-config-generator/pkg/models"
	"github.com/dtool-infra/dtool-config-generator/pkg/registry"
	"github.com/dtool-infra/dtool-config-generator/pkg/render"
	"github.com/dtool-infra/dtool-config-generator/pkg/storagegrid"
	"github.com/dtool-infra/dtool-config-generator/pkg/store"
)

const (
	testSessionSecret = "session-test-secret-0123456789abcdef"
	testConfirmSecret = "confirm-test-secret-0123456789abcdef"
)

// fakeDirectory authenticates a fixed set of identities.
type fakeDirectory struct {
	identities map[string]*directory.Identity
	passwords  map[string]string
}

func (f *fakeDirectory) Authenticate(_ context.Context, username, password string) (*directory.Identity, error) {
	identity, ok := f.identities[username]
	if !ok || f.passwords[username] != password {
		return nil, directory.ErrAuthenticationFailed
	}
	return identity, nil
}

// recordingSender captures outgoing mail.
type recordingSender struct {
	messages []*mail.Message
}

func (r *recordingSender) Send(_ context.Context, msg *mail.Message) error {
	r.messages = append(r.messages, msg)
	return nil
}

// fakeGrid is an in-memory tenant endpoint backing the credential
// manager during handler tests.
type fakeGrid struct {
	users   map[string]*storagegrid.RemoteIdentity
	keys    map[string][]storagegrid.AccessKey
	nextSeq int
}

func newFakeGrid() *fakeGrid {
	return &fakeGrid{
		users: map[string]*storagegrid.RemoteIdentity{},
		keys:  map[string][]storagegrid.AccessKey{},
	}
}

// keyCount counts live keys across all identities.
func (f *fakeGrid) keyCount() int {
	n := 0
	for _, keys := range f.keys {
		n += len(keys)
	}
	return n
}

func (f *fakeGrid) handler() http.Handler {
	// chi rather than http.ServeMux: users/user/{short} and
	// users/{id}/s3-access-keys are ambiguous under ServeMux's
	// pattern-conflict rules and would panic at registration.
	mux := chi.NewRouter()
	envelope := func(w http.ResponseWriter, data any) {
		raw, _ := json.Marshal(data)
		_, _ = w.Write([]byte(`{"status":"success","data":` + string(raw) + `}`))
	}

	mux.Post("/api/v3/authorize", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, "grid-token")
	})
	mux.Get("/api/v3/org/config", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, map[string]string{"name": "tenant"})
	})
	mux.Get("/api/v3/org/users/user/{short}", func(w http.ResponseWriter, r *http.Request) {
		identity, ok := f.users[chi.URLParam(r, "short")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		envelope(w, identity)
	})
	mux.Post("/api/v3/org/users", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UniqueName string `json:"uniqueName"`
			FullName   string `json:"fullName"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.nextSeq++
		identity := &storagegrid.RemoteIdentity{
			ID:         fmt.Sprintf("user-%d", f.nextSeq),
			UniqueName: body.UniqueName,
			FullName:   body.FullName,
		}
		f.users[identity.ShortName()] = identity
		envelope(w, identity)
	})
	mux.Get("/api/v3/org/users/{id}/s3-access-keys", func(w http.ResponseWriter, r *http.Request) {
		keys := f.keys[chi.URLParam(r, "id")]
		if keys == nil {
			keys = []storagegrid.AccessKey{}
		}
		envelope(w, keys)
	})
	mux.Post("/api/v3/org/users/{id}/s3-access-keys", func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "id")
		f.nextSeq++
		key := storagegrid.AccessKey{
			ID:              fmt.Sprintf("key-%d", f.nextSeq),
			AccessKey:       fmt.Sprintf("AKIA%d", f.nextSeq),
			SecretAccessKey: fmt.Sprintf("secret-%d", f.nextSeq),
		}
		f.keys[userID] = append(f.keys[userID], key)
		envelope(w, key)
	})
	mux.Delete("/api/v3/org/users/{id}/s3-access-keys/{key}", func(w http.ResponseWriter, r *http.Request) {
		userID, keyID := chi.URLParam(r, "id"), chi.URLParam(r, "key")
		kept := f.keys[userID][:0]
		for _, k := range f.keys[userID] {
			if k.ID != keyID {
				kept = append(kept, k)
			}
		}
		f.keys[userID] = kept
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

// testEnv wires a full handler stack against in-memory fakes.
type testEnv struct {
	router   http.Handler
	store    *store.GORMStore
	sessions *SessionService
	tokens   *confirm.TokenService
	sender   *recordingSender
	grid     *fakeGrid
	cfg      *config.Config
}

func newTestEnv(t *testing.T, reg *registry.Client, cfgHook func(*config.Config)) *testEnv {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	grid := newFakeGrid()
	gridServer := httptest.NewServer(grid.handler())
	t.Cleanup(gridServer.Close)

	gridClient := storagegrid.New(storagegrid.Config{
		Host:      gridServer.URL,
		AccountID: "12345",
		Username:  "manager",
		Password:  "secret",
	})
	creds := credentials.NewManager(gridClient, "", 24*time.Hour)

	sessions, err := NewSessionService(SessionConfig{Secret: testSessionSecret})
	require.NoError(t, err)
	tokens, err := confirm.NewTokenService(confirm.TokenConfig{Secret: testConfirmSecret})
	require.NoError(t, err)

	sender := &recordingSender{}
	notifier := confirm.NewNotifier(confirm.NotifierConfig{
		ExternalURL: "https://dtool.example.com",
		Sender:      "noreply@example.com",
		Recipient:   "admin@example.com",
	}, tokens, sender)

	renderer, err := render.New(render.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = renderer.Close() })

	auth := &fakeDirectory{
		identities: map[string]*directory.Identity{
			"jh1130": {
				ID:       1130,
				Username: "jh1130",
				DN:       "uid=jh1130,ou=people,dc=example,dc=com",
				Name:     "Jessica Hoyle",
				Email:    "jh1130@example.com",
			},
		},
		passwords: map[string]string{"jh1130": "hunter2"},
	}

	cfg := &config.Config{
		Registry: config.RegistryConfig{
			URL:      "https://lookup.example.com/lookup",
			TokenURL: "https://lookup.example.com/token",
		},
		Generate: config.GenerateConfig{
			Bucket:        "datasets",
			S3Endpoint:    "https://s3.example.com",
			DatasetPrefix: "u/",
		},
	}
	if cfgHook != nil {
		cfgHook(cfg)
	}

	handlers := NewHandlers(cfg, st, auth, sessions, tokens, notifier, creds, renderer, reg,
		func(*http.Request) error { return nil }, "test")

	return &testEnv{
		router:   NewRouter(handlers),
		store:    st,
		sessions: sessions,
		tokens:   tokens,
		sender:   sender,
		grid:     grid,
		cfg:      cfg,
	}
}

// seedUser inserts a user row directly.
func (e *testEnv) seedUser(t *testing.T, user *models.User) *models.User {
	t.Helper()
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

// sessionCookie mints a valid session cookie for the user.
func (e *testEnv) sessionCookie(t *testing.T, user *models.User) *http.Cookie {
	t.Helper()
	token, err := e.sessions.Issue(user)
	require.NoError(t, err)
	return &http.Cookie{Name: SessionCookieName, Value: token}
}

// get performs a GET with optional session cookie.
func (e *testEnv) get(t *testing.T, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// postForm performs a form POST with optional session cookie.
func (e *testEnv) postForm(t *testing.T, path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// sessionFromResponse extracts the session cookie set by a response.
func sessionFromResponse(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("response did not set a session cookie")
	return nil
}

// confirmTokenFromMail extracts the confirmation token from the last
// recorded notification mail.
func confirmTokenFromMail(t *testing.T, sender *recordingSender) string {
	t.Helper()
	require.NotEmpty(t, sender.messages, "no notification mail recorded")
	body := sender.messages[len(sender.messages)-1].Body
	for _, field := range strings.Fields(body) {
		if strings.HasPrefix(field, "https://dtool.example.com/auth/confirm/") {
			return strings.TrimPrefix(field, "https://dtool.example.com/auth/confirm/")
		}
	}
	t.Fatal("notification mail carries no confirmation link")
	return ""
}
