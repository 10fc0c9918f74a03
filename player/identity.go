package player

import (
	"github.com/google/uuid"
	"github.com/sandertv/gophertunnel/minecraft/protocol"
)

// Identity describes one player as seen in the roster. It is immutable for
// the lifetime of a single connection session; the server re-issues the
// entity unique ID when the player rejoins.
type Identity struct {
	XUID           string
	UUID           uuid.UUID
	DisplayName    string
	Platform       protocol.DeviceOS
	EntityUniqueID int64
}

// FromListEntry builds an Identity from a player-list entry.
func FromListEntry(e protocol.PlayerListEntry) Identity {
	return Identity{
		XUID:           e.XUID,
		UUID:           e.UUID,
		DisplayName:    e.Username,
		Platform:       protocol.DeviceOS(e.BuildPlatform),
		EntityUniqueID: e.EntityUniqueID,
	}
}

// Key returns the stable key identities are tracked under. The XUID is
// preferred since display names can be reused; players without one (never
// the case on Xbox-authenticated servers, but seen on test setups) fall
// back to the display name.
func (i Identity) Key() string {
	if i.XUID != "" {
		return i.XUID
	}
	return i.DisplayName
}
