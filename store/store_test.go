package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-ac/warden/player"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "warden.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBanRoundTrip(t *testing.T) {
	s := newTestStore(t)

	banned, _ := s.IsBanned("Steve")
	assert.False(t, banned)

	require.NoError(t, s.Ban("Steve", "griefing"))
	banned, reason := s.IsBanned("Steve")
	assert.True(t, banned)
	assert.Equal(t, "griefing", reason)

	// Case-insensitive match, same as the game's name handling.
	banned, _ = s.IsBanned("sTeVe")
	assert.True(t, banned)

	require.NoError(t, s.Unban("Steve"))
	banned, _ = s.IsBanned("Steve")
	assert.False(t, banned)
}

func TestAllowlist(t *testing.T) {
	s := newTestStore(t)

	assert.False(t, s.IsOnAllowlist("Alex"))
	require.NoError(t, s.Allow("Alex"))
	assert.True(t, s.IsOnAllowlist("alex"))
	require.NoError(t, s.Disallow("Alex"))
	assert.False(t, s.IsOnAllowlist("Alex"))
}

func TestMaintenanceFlag(t *testing.T) {
	s := newTestStore(t)

	assert.False(t, s.Maintenance())
	require.NoError(t, s.SetMaintenance(true))
	assert.True(t, s.Maintenance())
	require.NoError(t, s.SetMaintenance(false))
	assert.False(t, s.Maintenance())
}

func TestStatPersistence(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	stat := player.Stat{
		Key:          "xuid-1",
		Name:         "Steve",
		JoinCount:    3,
		TotalElapsed: 90 * time.Second,
		FirstJoined:  now.Add(-time.Hour),
		LastSeen:     now,
	}
	require.NoError(t, s.UpsertStat(stat))

	stat.JoinCount = 4
	stat.TotalElapsed = 2 * time.Minute
	require.NoError(t, s.UpsertStat(stat))

	stats, err := s.LoadStats()
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Steve", stats[0].Name)
	assert.Equal(t, 4, stats[0].JoinCount)
	assert.Equal(t, 2*time.Minute, stats[0].TotalElapsed)
}

func TestSecurityEventNeverFailsCaller(t *testing.T) {
	s := newTestStore(t)

	// Must not panic or error even after the store is closed.
	s.LogSecurityEvent("alt_detected", "Steve", "score=10", "warn")
	require.NoError(t, s.Close())
	s.LogSecurityEvent("alt_detected", "Steve", "score=10", "warn")
}
