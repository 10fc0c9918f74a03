// Package xbl queries Xbox Live for the reputation signals the admission
// pipeline consumes: social-graph metrics for alt-account detection and
// device presence for spoof verification.
//
// Every failure mode here (transport error, timeout, privacy-restricted
// profile, rate limiting) collapses to an error at the call site, and the
// pipeline treats any error as "no verdict". A snapshot that is returned
// always carries concrete values; zero metrics on a real profile are a
// legitimate low-reputation signal and are not an error.
package xbl

import (
	"context"

	"github.com/warden-ac/warden/werror"
)

// ErrUnavailable is returned when the profile exists but cannot be read,
// typically because it is privacy-restricted or the service throttled us.
var ErrUnavailable = werror.New("xbl: profile unavailable")

// Snapshot holds the social-graph metrics for one account.
type Snapshot struct {
	// SocialScore is the account's gamerscore.
	SocialScore int
	// Connections is the number of accounts this one follows.
	Connections int
	// Followers is the number of accounts following this one.
	Followers int
}

// DeviceSession is one active game session reported by the presence
// service.
type DeviceSession struct {
	DeviceType string
	TitleName  string
}

// Source is the capability the admission pipeline depends on. The concrete
// Client implements it against Xbox Live; tests substitute deterministic
// fakes.
type Source interface {
	// Reputation fetches the social-graph snapshot for the given XUID.
	Reputation(ctx context.Context, xuid string) (*Snapshot, error)
	// Presence fetches the currently active game sessions for the given
	// XUID across all devices.
	Presence(ctx context.Context, xuid string) ([]DeviceSession, error)
}
