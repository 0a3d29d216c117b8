package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/location-tracker/app/internal/auth"
	"github.com/location-tracker/app/internal/config"
	"github.com/location-tracker/app/internal/database"
	"github.com/location-tracker/app/internal/models"
	"github.com/stretchr/testify/require"
)

// countingLocations records how often the handlers reach the location store.
type countingLocations struct {
	LocationStore
	calls atomic.Int64
}

func (c *countingLocations) Record(ctx context.Context, userID int64, lat, lng float64) (*models.LocationSample, error) {
	c.calls.Add(1)
	return c.LocationStore.Record(ctx, userID, lat, lng)
}

func (c *countingLocations) RecentFor(ctx context.Context, userID int64, limit int) ([]*models.LocationSample, error) {
	c.calls.Add(1)
	return c.LocationStore.RecentFor(ctx, userID, limit)
}

func (c *countingLocations) LatestForAllUsers(ctx context.Context) (map[int64]*models.LocationSample, error) {
	c.calls.Add(1)
	return c.LocationStore.LatestForAllUsers(ctx)
}

// testServer holds a running server and its dependencies.
type testServer struct {
	server    *httptest.Server
	db        *sql.DB
	users     *database.UserStore
	locations *database.LocationStore
	counting  *countingLocations
	sessions  *auth.MemorySessionStore
	client    *http.Client
}

// setupTestServer wires the real router over an in-memory database, the
// same way main does.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithConfig(t, RouterConfig{RateLimitDisabled: true})
}

func setupTestServerWithConfig(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()

	db, err := database.InitDB(context.Background(), ":memory:")
	require.NoError(t, err, "initialize test database")

	users := database.NewUserStore(db)
	locations := database.NewLocationStore(db)
	counting := &countingLocations{LocationStore: locations}

	sessions := auth.NewMemorySessionStore()
	authService := auth.NewService(users, sessions, time.Hour)
	authMiddleware := auth.NewMiddleware(authService, config.SessionConfig{CookieName: "session"})

	templates, err := LoadTemplates(authMiddleware.Flash())
	require.NoError(t, err, "load templates")

	h := New(users, counting, authService, authMiddleware, templates, db)
	ts := &testServer{
		server:    httptest.NewServer(NewRouter(h, cfg)),
		db:        db,
		users:     users,
		locations: locations,
		counting:  counting,
		sessions:  sessions,
	}
	ts.client = ts.newClient(t)

	t.Cleanup(ts.Teardown)
	return ts
}

// newClient returns a client with its own cookie jar that does not follow
// redirects.
func (ts *testServer) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Teardown closes the test server and database connection.
func (ts *testServer) Teardown() {
	ts.server.Close()
	ts.db.Close()
}

func mustParseURL(t *testing.T, rawURL string) *url.URL {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return u
}

func (ts *testServer) cookie(t *testing.T, client *http.Client, name string) *http.Cookie {
	t.Helper()
	for _, c := range client.Jar.Cookies(mustParseURL(t, ts.server.URL)) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// csrfToken makes sure the client holds a CSRF cookie and returns its value.
func (ts *testServer) csrfToken(t *testing.T, client *http.Client) string {
	t.Helper()
	if c := ts.cookie(t, client, "_csrf"); c != nil {
		return c.Value
	}
	resp := ts.get(t, client, "/login")
	resp.Body.Close()
	c := ts.cookie(t, client, "_csrf")
	require.NotNil(t, c, "GET /login should issue a CSRF cookie")
	return c.Value
}

func (ts *testServer) get(t *testing.T, client *http.Client, path string) *http.Response {
	t.Helper()
	resp, err := client.Get(ts.server.URL + path)
	require.NoError(t, err, "GET %s", path)
	return resp
}

// postForm submits a form with the client's CSRF token.
func (ts *testServer) postForm(t *testing.T, client *http.Client, path string, form url.Values) *http.Response {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", ts.csrfToken(t, client))
	resp, err := client.PostForm(ts.server.URL+path, form)
	require.NoError(t, err, "POST %s", path)
	return resp
}

// postJSON sends a JSON body with the CSRF header.
func (ts *testServer) postJSON(t *testing.T, client *http.Client, path, body string) *http.Response {
	t.Helper()
	token := ts.csrfToken(t, client)
	req, err := http.NewRequest(http.MethodPost, ts.server.URL+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", token)
	resp, err := client.Do(req)
	require.NoError(t, err, "POST %s", path)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func (ts *testServer) register(t *testing.T, client *http.Client, email, password string) *http.Response {
	t.Helper()
	return ts.postForm(t, client, "/register", url.Values{"email": {email}, "password": {password}})
}

// loginAs registers nothing; the account must exist.
func (ts *testServer) loginAs(t *testing.T, client *http.Client, email, password string) {
	t.Helper()
	resp := ts.postForm(t, client, "/login", url.Values{"email": {email}, "password": {password}})
	body := readBody(t, resp)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode, "login as %s: %s", email, body)
}

// newUser creates an account directly in the store.
func (ts *testServer) newUser(t *testing.T, email, password string, isAdmin bool) *models.User {
	t.Helper()
	u, err := ts.users.Create(context.Background(), email, password, isAdmin)
	require.NoError(t, err)
	return u
}

func (ts *testServer) locationCount(t *testing.T, userID int64) int {
	t.Helper()
	samples, err := ts.locations.RecentFor(context.Background(), userID, 0)
	require.NoError(t, err)
	return len(samples)
}
