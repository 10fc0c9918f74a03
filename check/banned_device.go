package check

import (
	"context"

	"github.com/warden-ac/warden/device"
	"github.com/warden-ac/warden/player"
)

// BannedDevice expels players connecting from a platform on the banned
// device list. Runs post-admission so the join is visible in the audit
// trail even when the device is refused.
type BannedDevice struct{}

// NewBannedDevice creates a new BannedDevice check.
func NewBannedDevice() *BannedDevice {
	return &BannedDevice{}
}

// Name ...
func (*BannedDevice) Name() string {
	return "BannedDevice"
}

// Description ...
func (*BannedDevice) Description() string {
	return "This checks if the player's platform is refused on this server."
}

// Stage ...
func (*BannedDevice) Stage() Stage {
	return StagePostAdmit
}

// Process ...
func (*BannedDevice) Process(_ context.Context, env Env, id player.Identity) Verdict {
	if env.Trusted(id.DisplayName) {
		return Allow()
	}
	if !env.DeviceBanned(id.Platform) {
		return Allow()
	}
	return Deny("banned_device", "Your device is not permitted on this server", map[string]any{
		"Device": device.Name(id.Platform),
	})
}
