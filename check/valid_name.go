package check

import (
	"context"
	"regexp"

	"github.com/warden-ac/warden/player"
)

// namePattern is the allowed character set for display names. Gamertags
// may contain spaces; anything else outside the alphanumeric set is used
// by clients injecting formatting codes or impersonating system messages.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)

// ValidName rejects identities whose display name contains characters
// outside the allowed set.
type ValidName struct{}

// NewValidName creates a new ValidName check.
func NewValidName() *ValidName {
	return &ValidName{}
}

// Name ...
func (*ValidName) Name() string {
	return "ValidName"
}

// Description ...
func (*ValidName) Description() string {
	return "This checks if the player's display name contains illegal characters."
}

// Stage ...
func (*ValidName) Stage() Stage {
	return StagePreAdmit
}

// Process ...
func (*ValidName) Process(_ context.Context, _ Env, id player.Identity) Verdict {
	if id.DisplayName == "" || !namePattern.MatchString(id.DisplayName) {
		return Deny("invalid_name", "Invalid characters in name", map[string]any{
			"Name": id.DisplayName,
		})
	}
	return Allow()
}
