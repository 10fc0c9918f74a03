// Package check implements the ordered admission checks the gateway runs
// against every newly sighted player.
package check

import (
	"context"

	"github.com/sandertv/gophertunnel/minecraft/protocol"

	"github.com/warden-ac/warden/player"
	"github.com/warden-ac/warden/xbl"
)

// Stage determines when a check runs relative to admission. Pre-admission
// checks gate entry into the membership table; post-admission checks can
// still retroactively expel a player that was just admitted.
type Stage int

const (
	StagePreAdmit Stage = iota
	StagePostAdmit
)

// Env is the capability surface checks read their configuration and
// external state through. The gateway implements it; tests substitute a
// deterministic fake.
type Env interface {
	// Trusted reports whether the name is on the static trusted list.
	// Trusted identities skip the alt-account and banned-device checks.
	Trusted(name string) bool

	// AltDetection returns whether alt detection is enabled and the three
	// metric thresholds an account must not be entirely below.
	AltDetection() (enabled bool, minSocial, minConnections, minFollowers int)
	// Reputation queries the social-graph snapshot for an account. Any
	// error means "no verdict" and must never cause a rejection.
	Reputation(ctx context.Context, xuid string) (*xbl.Snapshot, error)
	// Presence queries the active game sessions for an account. Any error
	// means "no verdict" and must never cause a rejection.
	Presence(ctx context.Context, xuid string) ([]xbl.DeviceSession, error)

	// BanEntry returns the recorded reason if the name is banned.
	BanEntry(name string) (reason string, banned bool)

	// Maintenance reports whether maintenance mode is active.
	Maintenance() bool
	// Allowlisted reports whether the name may join during maintenance.
	Allowlisted(name string) bool

	// DeviceBanned reports whether the platform is refused outright.
	DeviceBanned(os protocol.DeviceOS) bool
	// DeviceCheck reports whether device-spoof verification is enabled.
	DeviceCheck() bool
}

// Verdict is the outcome of one check for one identity.
type Verdict struct {
	Deny bool
	// Kind is the security-event kind recorded in the audit trail.
	Kind string
	// Reason is the kick message shown to the player.
	Reason string
	// Detail carries check-specific fields for the notification.
	Detail map[string]any
}

// Allow returns a passing verdict.
func Allow() Verdict {
	return Verdict{}
}

// Deny returns a rejecting verdict.
func Deny(kind, reason string, detail map[string]any) Verdict {
	return Verdict{Deny: true, Kind: kind, Reason: reason, Detail: detail}
}

// Check represents one admission check.
type Check interface {
	// Name returns the short name of the check, used in logs and the
	// audit trail.
	Name() string
	// Description is a description of what this check is for.
	Description() string
	// Stage returns when the check runs.
	Stage() Stage
	// Process evaluates the check for the given identity.
	Process(ctx context.Context, env Env, id player.Identity) Verdict
}
