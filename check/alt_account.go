package check

import (
	"context"
	"fmt"

	"github.com/warden-ac/warden/player"
)

// AltAccount flags throwaway accounts by their Xbox Live social metrics.
// An account is treated as an alt only when all three metrics are below
// their thresholds; a profile that cannot be read yields no verdict, so a
// flaky lookup can never reject a legitimate player.
type AltAccount struct{}

// NewAltAccount creates a new AltAccount check.
func NewAltAccount() *AltAccount {
	return &AltAccount{}
}

// Name ...
func (*AltAccount) Name() string {
	return "AltAccount"
}

// Description ...
func (*AltAccount) Description() string {
	return "This checks if the player is joining on a throwaway alt account."
}

// Stage ...
func (*AltAccount) Stage() Stage {
	return StagePreAdmit
}

// Process ...
func (*AltAccount) Process(ctx context.Context, env Env, id player.Identity) Verdict {
	if env.Trusted(id.DisplayName) {
		return Allow()
	}
	enabled, minSocial, minConnections, minFollowers := env.AltDetection()
	if !enabled {
		return Allow()
	}

	snap, err := env.Reputation(ctx, id.XUID)
	if err != nil || snap == nil {
		// No verdict. Rejecting here would punish players for our own
		// lookup failures and for privacy-restricted profiles.
		return Allow()
	}

	if snap.SocialScore < minSocial && snap.Connections < minConnections && snap.Followers < minFollowers {
		return Deny("alt_account", "Alt accounts are not permitted on this server", map[string]any{
			"Gamerscore": fmt.Sprintf("%d (min %d)", snap.SocialScore, minSocial),
			"Friends":    fmt.Sprintf("%d (min %d)", snap.Connections, minConnections),
			"Followers":  fmt.Sprintf("%d (min %d)", snap.Followers, minFollowers),
		})
	}
	return Allow()
}
