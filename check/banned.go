package check

import (
	"context"

	"github.com/warden-ac/warden/player"
)

// Banned rejects identities on the persisted ban list.
type Banned struct{}

// NewBanned creates a new Banned check.
func NewBanned() *Banned {
	return &Banned{}
}

// Name ...
func (*Banned) Name() string {
	return "Banned"
}

// Description ...
func (*Banned) Description() string {
	return "This checks if the player is on the ban list."
}

// Stage ...
func (*Banned) Stage() Stage {
	return StagePreAdmit
}

// Process ...
func (*Banned) Process(_ context.Context, env Env, id player.Identity) Verdict {
	reason, banned := env.BanEntry(id.DisplayName)
	if !banned {
		return Allow()
	}
	if reason == "" {
		reason = "You are banned from this server"
	}
	return Deny("banned", reason, map[string]any{
		"Reason": reason,
	})
}
