package player

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warden-ac/warden/clock"
)

func newTestTracker(t *testing.T) (*Tracker, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewTracker(clk, zerolog.Nop(), nil), clk
}

func ident(name string) Identity {
	return Identity{XUID: "xuid-" + name, DisplayName: name}
}

func TestFirstJoinDetected(t *testing.T) {
	tr, _ := newTestTracker(t)

	stat, first := tr.OnAdmit(ident("Steve"))
	assert.True(t, first)
	assert.Equal(t, 1, stat.JoinCount)

	_, _ = tr.OnConfirmDeparture(ident("Steve"))
	stat, first = tr.OnAdmit(ident("Steve"))
	assert.False(t, first)
	assert.Equal(t, 2, stat.JoinCount)
}

func TestAccrualAcrossCycles(t *testing.T) {
	tr, clk := newTestTracker(t)
	id := ident("Alex")

	var want time.Duration
	for i, d := range []time.Duration{7 * time.Second, 42 * time.Second, 3 * time.Minute} {
		tr.OnAdmit(id)
		clk.Advance(d)
		got, ok := tr.OnConfirmDeparture(id)
		require.True(t, ok, "cycle %d", i)
		assert.Equal(t, d, got)
		want += d
	}

	stat, ok := tr.Stat(id)
	require.True(t, ok)
	assert.Equal(t, want, stat.TotalElapsed)
}

func TestDepartureWithoutSessionIsNoop(t *testing.T) {
	tr, _ := newTestTracker(t)

	_, ok := tr.OnConfirmDeparture(ident("Ghost"))
	assert.False(t, ok)
}

func TestDoubleDepartureCountsOnce(t *testing.T) {
	tr, clk := newTestTracker(t)
	id := ident("Alex")

	tr.OnAdmit(id)
	clk.Advance(10 * time.Second)
	_, ok := tr.OnConfirmDeparture(id)
	require.True(t, ok)
	_, ok = tr.OnConfirmDeparture(id)
	assert.False(t, ok, "second departure must not accrue again")

	stat, _ := tr.Stat(id)
	assert.Equal(t, 10*time.Second, stat.TotalElapsed)
}

func TestShutdownUsesSameAccrual(t *testing.T) {
	tr, clk := newTestTracker(t)
	id := ident("Alex")

	tr.OnAdmit(id)
	clk.Advance(90 * time.Second)
	tr.OnShutdown()

	stat, _ := tr.Stat(id)
	assert.Equal(t, 90*time.Second, stat.TotalElapsed)
	assert.False(t, stat.SessionOpen())

	// A second shutdown (or a departure after shutdown) must not double-count.
	tr.OnShutdown()
	_, ok := tr.OnConfirmDeparture(id)
	assert.False(t, ok)
	stat, _ = tr.Stat(id)
	assert.Equal(t, 90*time.Second, stat.TotalElapsed)
}

func TestSeedNeverRestoresOpenSessions(t *testing.T) {
	tr, clk := newTestTracker(t)
	id := ident("Alex")
	tr.OnAdmit(id)
	open, _ := tr.Stat(id)
	require.True(t, open.SessionOpen())

	tr2 := NewTracker(clk, zerolog.Nop(), nil)
	tr2.Seed([]Stat{open})
	seeded, ok := tr2.Stat(id)
	require.True(t, ok)
	assert.False(t, seeded.SessionOpen())
}

func TestPersistCalledWithCopies(t *testing.T) {
	clk := clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	var persisted []Stat
	tr := NewTracker(clk, zerolog.Nop(), func(s Stat) { persisted = append(persisted, s) })

	id := ident("Steve")
	tr.OnAdmit(id)
	clk.Advance(time.Minute)
	tr.OnConfirmDeparture(id)

	require.Len(t, persisted, 2)
	assert.Equal(t, 1, persisted[0].JoinCount)
	assert.Equal(t, time.Minute, persisted[1].TotalElapsed)
}
