package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboard_ShowsHistory(t *testing.T) {
	ts := setupTestServer(t)
	user := ts.newUser(t, "hist@example.com", "pw", false)
	ts.loginAs(t, ts.client, "hist@example.com", "pw")

	t.Run("empty", func(t *testing.T) {
		resp := ts.get(t, ts.client, "/dashboard")
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "No location recorded yet.")
		assert.Contains(t, body, "Nothing here yet.")
	})

	ctx := context.Background()
	_, err := ts.locations.Record(ctx, user.ID, 10.1, 20.2)
	require.NoError(t, err)
	_, err = ts.locations.Record(ctx, user.ID, 30.3, 40.4)
	require.NoError(t, err)

	t.Run("with samples", func(t *testing.T) {
		resp := ts.get(t, ts.client, "/dashboard")
		body := readBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "Last location: 30.300000, 40.400000")
		assert.Contains(t, body, "10.100000")

		// newest first
		assert.Less(t, strings.Index(body, "<td>30.300000</td>"), strings.Index(body, "<td>10.100000</td>"))
	})
}

func TestDashboard_HistoryIsCapped(t *testing.T) {
	ts := setupTestServer(t)
	user := ts.newUser(t, "busy@example.com", "pw", false)
	ts.loginAs(t, ts.client, "busy@example.com", "pw")

	for i := 0; i < historyLimit+5; i++ {
		_, err := ts.locations.Record(context.Background(), user.ID, 1+float64(i)/100, 2)
		require.NoError(t, err)
	}

	body := readBody(t, ts.get(t, ts.client, "/dashboard"))
	assert.Equal(t, historyLimit, strings.Count(body, "<td>2.000000</td>"))
}

func TestDashboard_OnlyOwnSamples(t *testing.T) {
	ts := setupTestServer(t)
	ts.newUser(t, "me@example.com", "pw", false)
	other := ts.newUser(t, "other@example.com", "pw", false)

	_, err := ts.locations.Record(context.Background(), other.ID, 55.5, 66.6)
	require.NoError(t, err)

	ts.loginAs(t, ts.client, "me@example.com", "pw")
	body := readBody(t, ts.get(t, ts.client, "/dashboard"))
	assert.NotContains(t, body, "55.500000")
}

func TestDashboard_Unauthenticated(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.get(t, ts.client, "/dashboard")
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Zero(t, ts.counting.calls.Load(), "store must not be reached")
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "N/A", FormatDateTime(time.Time{}))

	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "2024-03-09 13:05:07", FormatDateTime(ts))

	assert.Equal(t, "12.500000", FormatCoord(12.5))
	assert.Equal(t, "-0.123457", FormatCoord(-0.1234567))
}

func TestDashboard_RefreshesSessionCookie(t *testing.T) {
	ts := setupTestServer(t)
	ts.newUser(t, "active@example.com", "pw", false)
	ts.loginAs(t, ts.client, "active@example.com", "pw")

	session := ts.cookie(t, ts.client, "session")
	require.NotNil(t, session)

	// the session is about to lapse on the server
	ctx := context.Background()
	require.NoError(t, ts.sessions.Touch(ctx, session.Value, time.Now().Add(time.Minute)))

	resp := ts.get(t, ts.client, "/dashboard")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var refreshed *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			refreshed = c
		}
	}
	require.NotNil(t, refreshed, "session cookie re-issued")
	assert.Equal(t, session.Value, refreshed.Value)
	assert.True(t, refreshed.HttpOnly)
	assert.WithinDuration(t, time.Now().Add(time.Hour), refreshed.Expires, 5*time.Second)

	stored, err := ts.sessions.Get(ctx, session.Value)
	require.NoError(t, err)
	assert.WithinDuration(t, refreshed.Expires, stored.ExpiresAt, 2*time.Second)
}
