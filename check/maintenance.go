package check

import (
	"context"

	"github.com/warden-ac/warden/player"
)

// Maintenance rejects everyone not on the allowlist while maintenance mode
// is active.
type Maintenance struct{}

// NewMaintenance creates a new Maintenance check.
func NewMaintenance() *Maintenance {
	return &Maintenance{}
}

// Name ...
func (*Maintenance) Name() string {
	return "Maintenance"
}

// Description ...
func (*Maintenance) Description() string {
	return "This gates the server to allowlisted players during maintenance."
}

// Stage ...
func (*Maintenance) Stage() Stage {
	return StagePreAdmit
}

// Process ...
func (*Maintenance) Process(_ context.Context, env Env, id player.Identity) Verdict {
	if !env.Maintenance() || env.Allowlisted(id.DisplayName) {
		return Allow()
	}
	return Deny("maintenance", "The server is under maintenance", nil)
}
