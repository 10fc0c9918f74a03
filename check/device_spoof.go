package check

import (
	"context"
	"strings"

	"github.com/warden-ac/warden/device"
	"github.com/warden-ac/warden/player"
)

// DeviceSpoof verifies the platform a client claims against the sessions
// the Xbox Live presence service actually sees for the account. A player
// with no active session at all is spoofed (the claimed device would show
// up); a player whose active sessions are all on other device types is
// lying about the platform, usually to dodge a device ban.
//
// A private or unavailable presence profile yields no verdict.
type DeviceSpoof struct{}

// NewDeviceSpoof creates a new DeviceSpoof check.
func NewDeviceSpoof() *DeviceSpoof {
	return &DeviceSpoof{}
}

// Name ...
func (*DeviceSpoof) Name() string {
	return "DeviceSpoof"
}

// Description ...
func (*DeviceSpoof) Description() string {
	return "This checks if the player is faking their device os."
}

// Stage ...
func (*DeviceSpoof) Stage() Stage {
	return StagePostAdmit
}

// Process ...
func (*DeviceSpoof) Process(ctx context.Context, env Env, id player.Identity) Verdict {
	if !env.DeviceCheck() {
		return Allow()
	}

	sessions, err := env.Presence(ctx, id.XUID)
	if err != nil {
		return Allow()
	}

	claimed := device.Name(id.Platform)
	if len(sessions) == 0 {
		return Deny("device_spoof", "No active session found for your account", map[string]any{
			"Claimed": claimed,
		})
	}

	observed := make([]string, 0, len(sessions))
	for _, s := range sessions {
		if device.PresenceMatches(id.Platform, s.DeviceType) {
			return Allow()
		}
		observed = append(observed, s.DeviceType)
	}
	return Deny("device_spoof", "Device mismatch: claimed "+claimed+", observed "+strings.Join(observed, ", "), map[string]any{
		"Claimed":  claimed,
		"Observed": strings.Join(observed, ", "),
	})
}
