package check

import (
	"context"
	"testing"

	"github.com/sandertv/gophertunnel/minecraft/protocol"
	"github.com/stretchr/testify/assert"

	"github.com/warden-ac/warden/player"
	"github.com/warden-ac/warden/werror"
	"github.com/warden-ac/warden/xbl"
)

// fakeEnv is a deterministic Env for check tests.
type fakeEnv struct {
	trusted       map[string]bool
	altEnabled    bool
	minSocial     int
	minFriends    int
	minFollowers  int
	snapshot      *xbl.Snapshot
	snapshotErr   error
	sessions      []xbl.DeviceSession
	sessionsErr   error
	bans          map[string]string
	maintenance   bool
	allowlist     map[string]bool
	bannedDevices map[protocol.DeviceOS]bool
	deviceCheck   bool
}

func (f *fakeEnv) Trusted(name string) bool { return f.trusted[name] }
func (f *fakeEnv) AltDetection() (bool, int, int, int) {
	return f.altEnabled, f.minSocial, f.minFriends, f.minFollowers
}
func (f *fakeEnv) Reputation(context.Context, string) (*xbl.Snapshot, error) {
	return f.snapshot, f.snapshotErr
}
func (f *fakeEnv) Presence(context.Context, string) ([]xbl.DeviceSession, error) {
	return f.sessions, f.sessionsErr
}
func (f *fakeEnv) BanEntry(name string) (string, bool) {
	r, ok := f.bans[name]
	return r, ok
}
func (f *fakeEnv) Maintenance() bool              { return f.maintenance }
func (f *fakeEnv) Allowlisted(name string) bool   { return f.allowlist[name] }
func (f *fakeEnv) DeviceBanned(os protocol.DeviceOS) bool {
	return f.bannedDevices[os]
}
func (f *fakeEnv) DeviceCheck() bool { return f.deviceCheck }

func steve() player.Identity {
	return player.Identity{XUID: "123", DisplayName: "Steve", Platform: protocol.DeviceAndroid}
}

func TestValidName(t *testing.T) {
	c := NewValidName()
	env := &fakeEnv{}

	for _, name := range []string{"Steve", "Alex 42", "a_b-c"} {
		v := c.Process(context.Background(), env, player.Identity{DisplayName: name})
		assert.False(t, v.Deny, "name %q should pass", name)
	}
	for _, name := range []string{"", "bad name!", "§cSteve", "steve\n", "<system>"} {
		v := c.Process(context.Background(), env, player.Identity{DisplayName: name})
		assert.True(t, v.Deny, "name %q should be rejected", name)
	}
}

func TestAltAccountRejectsBelowAllThresholds(t *testing.T) {
	c := NewAltAccount()
	env := &fakeEnv{
		altEnabled: true, minSocial: 100, minFriends: 50, minFollowers: 50,
		snapshot: &xbl.Snapshot{SocialScore: 10, Connections: 2, Followers: 1},
	}

	v := c.Process(context.Background(), env, steve())
	assert.True(t, v.Deny)
	assert.Equal(t, "alt_account", v.Kind)
}

func TestAltAccountPassesWithOneMetricAboveThreshold(t *testing.T) {
	c := NewAltAccount()
	env := &fakeEnv{
		altEnabled: true, minSocial: 100, minFriends: 50, minFollowers: 50,
		snapshot: &xbl.Snapshot{SocialScore: 10, Connections: 2, Followers: 60},
	}

	v := c.Process(context.Background(), env, steve())
	assert.False(t, v.Deny)
}

func TestAltAccountZeroMetricsAreAValidSignal(t *testing.T) {
	c := NewAltAccount()
	env := &fakeEnv{
		altEnabled: true, minSocial: 100, minFriends: 50, minFollowers: 50,
		snapshot: &xbl.Snapshot{},
	}

	v := c.Process(context.Background(), env, steve())
	assert.True(t, v.Deny, "a readable profile with zero metrics is a low-reputation signal")
}

func TestAltAccountFailsOpen(t *testing.T) {
	c := NewAltAccount()
	for _, err := range []error{xbl.ErrUnavailable, werror.New("timeout")} {
		env := &fakeEnv{
			altEnabled: true, minSocial: 100, minFriends: 50, minFollowers: 50,
			snapshotErr: err,
		}
		v := c.Process(context.Background(), env, steve())
		assert.False(t, v.Deny, "lookup failure %v must not reject", err)
	}
}

func TestAltAccountSkippedForTrusted(t *testing.T) {
	c := NewAltAccount()
	env := &fakeEnv{
		trusted:    map[string]bool{"Steve": true},
		altEnabled: true, minSocial: 100, minFriends: 50, minFollowers: 50,
		snapshot: &xbl.Snapshot{},
	}

	v := c.Process(context.Background(), env, steve())
	assert.False(t, v.Deny)
}

func TestAltAccountSkippedWhenDisabled(t *testing.T) {
	c := NewAltAccount()
	env := &fakeEnv{altEnabled: false, snapshot: &xbl.Snapshot{}}

	v := c.Process(context.Background(), env, steve())
	assert.False(t, v.Deny)
}

func TestBanned(t *testing.T) {
	c := NewBanned()
	env := &fakeEnv{bans: map[string]string{"Steve": "griefing"}}

	v := c.Process(context.Background(), env, steve())
	assert.True(t, v.Deny)
	assert.Equal(t, "griefing", v.Reason)

	v = c.Process(context.Background(), env, player.Identity{DisplayName: "Alex"})
	assert.False(t, v.Deny)
}

func TestMaintenance(t *testing.T) {
	c := NewMaintenance()

	env := &fakeEnv{maintenance: true, allowlist: map[string]bool{"Alex": true}}
	assert.True(t, c.Process(context.Background(), env, steve()).Deny)
	assert.False(t, c.Process(context.Background(), env, player.Identity{DisplayName: "Alex"}).Deny)

	env.maintenance = false
	assert.False(t, c.Process(context.Background(), env, steve()).Deny)
}

func TestBannedDevice(t *testing.T) {
	c := NewBannedDevice()
	env := &fakeEnv{bannedDevices: map[protocol.DeviceOS]bool{protocol.DeviceAndroid: true}}

	assert.True(t, c.Process(context.Background(), env, steve()).Deny)

	win := steve()
	win.Platform = protocol.DeviceWin10
	assert.False(t, c.Process(context.Background(), env, win).Deny)

	env.trusted = map[string]bool{"Steve": true}
	assert.False(t, c.Process(context.Background(), env, steve()).Deny)
}

func TestDeviceSpoofNoActiveSession(t *testing.T) {
	c := NewDeviceSpoof()
	env := &fakeEnv{deviceCheck: true, sessions: nil}

	v := c.Process(context.Background(), env, steve())
	assert.True(t, v.Deny)
	assert.Contains(t, v.Reason, "No active session")
}

func TestDeviceSpoofMismatch(t *testing.T) {
	c := NewDeviceSpoof()
	env := &fakeEnv{deviceCheck: true, sessions: []xbl.DeviceSession{
		{DeviceType: "XboxOne", TitleName: "Minecraft"},
	}}

	v := c.Process(context.Background(), env, steve())
	assert.True(t, v.Deny)
	assert.Contains(t, v.Reason, "claimed Android")
	assert.Contains(t, v.Reason, "XboxOne")
}

func TestDeviceSpoofMatchingSessionPasses(t *testing.T) {
	c := NewDeviceSpoof()
	env := &fakeEnv{deviceCheck: true, sessions: []xbl.DeviceSession{
		{DeviceType: "XboxOne", TitleName: "Minecraft"},
		{DeviceType: "Android", TitleName: "Minecraft"},
	}}

	assert.False(t, c.Process(context.Background(), env, steve()).Deny)
}

func TestDeviceSpoofFailsOpen(t *testing.T) {
	c := NewDeviceSpoof()
	env := &fakeEnv{deviceCheck: true, sessionsErr: xbl.ErrUnavailable}

	assert.False(t, c.Process(context.Background(), env, steve()).Deny)
}

func TestDeviceSpoofSkippedWhenDisabled(t *testing.T) {
	c := NewDeviceSpoof()
	env := &fakeEnv{deviceCheck: false, sessions: nil}

	assert.False(t, c.Process(context.Background(), env, steve()).Deny)
}

func TestRegisterOrder(t *testing.T) {
	pre, post := Register()

	preNames := make([]string, 0, len(pre))
	for _, c := range pre {
		assert.Equal(t, StagePreAdmit, c.Stage())
		preNames = append(preNames, c.Name())
	}
	assert.Equal(t, []string{"ValidName", "AltAccount", "Banned", "Maintenance"}, preNames)

	postNames := make([]string, 0, len(post))
	for _, c := range post {
		assert.Equal(t, StagePostAdmit, c.Stage())
		postNames = append(postNames, c.Name())
	}
	assert.Equal(t, []string{"BannedDevice", "DeviceSpoof"}, postNames)
}
