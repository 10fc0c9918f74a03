// Package gate contains the core of the gateway: the admission pipeline
// run over every roster snapshot, the membership bookkeeping behind it,
// the chat relay, and the supervisor that owns the single outbound
// connection to the game server.
package gate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/rs/zerolog"
	"github.com/sandertv/gophertunnel/minecraft"
	"github.com/sandertv/gophertunnel/minecraft/protocol"

	"github.com/warden-ac/warden/check"
	"github.com/warden-ac/warden/clock"
	"github.com/warden-ac/warden/device"
	"github.com/warden-ac/warden/notify"
	"github.com/warden-ac/warden/player"
	"github.com/warden-ac/warden/settings"
	"github.com/warden-ac/warden/xbl"
)

// Lists is the persisted moderation state the pipeline reads. Reads are
// synchronous; LogSecurityEvent is fire-and-forget.
type Lists interface {
	IsBanned(name string) (bool, string)
	IsOnAllowlist(name string) bool
	Maintenance() bool
	LogSecurityEvent(kind, name, details, severity string)
}

// CommandSink writes raw commands to the live game connection. Errors are
// logged by the caller and never retried inline.
type CommandSink interface {
	SendCommand(line string) error
}

// MembershipEntry is one admitted player in the local membership table. A
// name present in the table means the player was admitted and has not yet
// been confirmed departed.
type MembershipEntry struct {
	Identity   player.Identity
	LastSeenAt time.Time
}

// Gate applies the admission pipeline and owns all per-connection state.
//
// The membership table, entity index and pending-departure map are guarded
// by a single mutex: the read loop and the departure sweep run on separate
// goroutines, and a partially interleaved admit/departure would corrupt
// the bookkeeping.
type Gate struct {
	conf     *settings.Settings
	log      zerolog.Logger
	lists    Lists
	rep      xbl.Source
	notifier notify.Notifier
	tracker  *player.Tracker
	clk      clock.Clock

	preChecks  []check.Check
	postChecks []check.Check

	state atomic.Int32

	mu               sync.Mutex
	membership       *orderedmap.OrderedMap[string, *MembershipEntry]
	entityIndex      map[int64]string
	pendingDeparture map[string]time.Time
	roster           map[string]player.Identity
	sink             CommandSink
	conn             *minecraft.Conn
	selfName         string
	selfXUID         string
}

// New creates a Gate. The command sink is attached by the supervisor once
// a connection is live.
func New(conf *settings.Settings, lists Lists, rep xbl.Source, notifier notify.Notifier, tracker *player.Tracker, clk clock.Clock, log zerolog.Logger) *Gate {
	pre, post := check.Register()
	return &Gate{
		conf:     conf,
		log:      log.With().Str("component", "gate").Logger(),
		lists:    lists,
		rep:      rep,
		notifier: notifier,
		tracker:  tracker,
		clk:      clk,

		preChecks:  pre,
		postChecks: post,

		membership:       orderedmap.NewOrderedMap[string, *MembershipEntry](),
		entityIndex:      make(map[int64]string),
		pendingDeparture: make(map[string]time.Time),
		roster:           make(map[string]player.Identity),
	}
}

// CurrentPlayers returns the names currently in the membership table, in
// admission order.
func (g *Gate) CurrentPlayers() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.membership.Keys()
}

// SetSink attaches (or with nil, detaches) the command sink for the live
// connection.
func (g *Gate) SetSink(sink CommandSink) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sink = sink
}

// Conn returns the live connection handle, or nil while disconnected.
func (g *Gate) Conn() *minecraft.Conn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conn
}

// PlayerByEntityID resolves a protocol entity unique ID to the admitted
// player's name. The index only spans the current connection.
func (g *Gate) PlayerByEntityID(id int64) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	name, ok := g.entityIndex[id]
	return name, ok
}

// SetSelf records the gateway's own in-game identity, which is excluded
// from the pipeline and the chat relay.
func (g *Gate) SetSelf(name, xuid string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selfName = name
	g.selfXUID = xuid
}

// sendCommand writes one command to the live connection. Failures are
// logged and swallowed; the pipeline does not verify delivery.
// Callers must hold g.mu.
func (g *Gate) sendCommand(line string) {
	if g.sink == nil {
		g.log.Warn().Str("command", line).Msg("No live connection, command dropped")
		return
	}
	if err := g.sink.SendCommand(line); err != nil {
		g.log.Error().Err(err).Str("command", line).Msg("Command write failed")
	}
}

// Check env implementation. The Gate itself is the Env the checks run
// against, mirroring how the config and the external services are shared
// state across the pipeline.

var _ check.Env = (*Gate)(nil)

func (g *Gate) Trusted(name string) bool {
	return g.conf.Admission.IsTrusted(name)
}

func (g *Gate) AltDetection() (bool, int, int, int) {
	a := g.conf.Admission
	return a.AltDetection, a.MinSocial, a.MinFriends, a.MinFollowers
}

func (g *Gate) Reputation(ctx context.Context, xuid string) (*xbl.Snapshot, error) {
	return g.rep.Reputation(ctx, xuid)
}

func (g *Gate) Presence(ctx context.Context, xuid string) ([]xbl.DeviceSession, error) {
	return g.rep.Presence(ctx, xuid)
}

func (g *Gate) BanEntry(name string) (string, bool) {
	banned, reason := g.lists.IsBanned(name)
	return reason, banned
}

func (g *Gate) Maintenance() bool {
	return g.lists.Maintenance()
}

func (g *Gate) Allowlisted(name string) bool {
	return g.lists.IsOnAllowlist(name)
}

func (g *Gate) DeviceBanned(os protocol.DeviceOS) bool {
	name := device.Name(os)
	for _, banned := range g.conf.Admission.BannedDevices {
		if banned == name {
			return true
		}
	}
	return false
}

func (g *Gate) DeviceCheck() bool {
	return g.conf.Admission.DeviceCheck
}
