package xbl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopAuthorizer struct{}

func (nopAuthorizer) Authorize(context.Context, *http.Request) error { return nil }

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(nopAuthorizer{}, zerolog.Nop())
	c.peopleBase = srv.URL
	c.presenceBase = srv.URL
	return c
}

func TestReputationParsesMetrics(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.Header.Get("x-xbl-contract-version"))
		_, _ = w.Write([]byte(`{"people":[{"gamerScore":"12345","detail":{"followerCount":7,"followingCount":19}}]}`))
	})

	snap, err := c.Reputation(context.Background(), "2535412345678901")
	require.NoError(t, err)
	assert.Equal(t, 12345, snap.SocialScore)
	assert.Equal(t, 19, snap.Connections)
	assert.Equal(t, 7, snap.Followers)
}

func TestReputationZeroMetricsAreNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"people":[{"gamerScore":"0","detail":{"followerCount":0,"followingCount":0}}]}`))
	})

	snap, err := c.Reputation(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, Snapshot{}, *snap)
}

func TestReputationPrivateProfileIsUnavailable(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusNotFound, http.StatusTooManyRequests} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		_, err := c.Reputation(context.Background(), "1")
		assert.ErrorIs(t, err, ErrUnavailable, "status %d", status)
	}
}

func TestReputationEmptyPeopleIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"people":[]}`))
	})
	_, err := c.Reputation(context.Background(), "1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestReputationCaches(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"people":[{"gamerScore":"5","detail":{}}]}`))
	})

	_, err := c.Reputation(context.Background(), "42")
	require.NoError(t, err)
	_, err = c.Reputation(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestPresenceFiltersInactiveTitles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"state": "Online",
			"devices": [
				{"type": "Android", "titles": [
					{"name": "Minecraft", "state": "Active"},
					{"name": "Home", "state": "Inactive"}
				]},
				{"type": "XboxOne", "titles": [
					{"name": "Dashboard", "state": "Inactive"}
				]}
			]}`))
	})

	sessions, err := c.Presence(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Android", sessions[0].DeviceType)
	assert.Equal(t, "Minecraft", sessions[0].TitleName)
}

func TestPresenceOfflineIsEmptyNotError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"state": "Offline", "devices": []}`))
	})

	sessions, err := c.Presence(context.Background(), "1")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
