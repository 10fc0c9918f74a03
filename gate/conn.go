package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sandertv/go-raknet"
	"github.com/sandertv/gophertunnel/minecraft"
	"github.com/sandertv/gophertunnel/minecraft/protocol"
	"github.com/sandertv/gophertunnel/minecraft/protocol/packet"
	"golang.org/x/oauth2"

	"github.com/warden-ac/warden/notify"
	"github.com/warden-ac/warden/player"
)

// State is the connection lifecycle state of the supervisor.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateActive
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// ConnectionState returns the supervisor's current state.
func (g *Gate) ConnectionState() State {
	return State(g.state.Load())
}

func (g *Gate) setState(s State) {
	old := State(g.state.Swap(int32(s)))
	if old != s {
		g.log.Debug().Stringer("from", old).Stringer("to", s).Msg("Connection state change")
	}
}

// duplicateSessionMarkers are the phrases servers use when the account is
// still considered connected elsewhere. A reconnect against such a server
// fails again immediately, so this class gets the long backoff and a full
// reset of per-connection state.
var duplicateSessionMarkers = []string{
	"logged in from another location",
	"already logged in",
	"duplicate login",
	"You are already connected",
}

// IsDuplicateSession classifies a transport error or disconnect reason as
// a duplicate-session conflict.
func IsDuplicateSession(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range duplicateSessionMarkers {
		if strings.Contains(msg, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

// Backoff selects the reconnect delay for a disconnect reason.
func (g *Gate) Backoff(reason string) time.Duration {
	if IsDuplicateSession(reason) {
		return g.conf.Connection.LongBackoff
	}
	return g.conf.Connection.ShortBackoff
}

// connSink adapts a live minecraft.Conn to the CommandSink interface.
type connSink struct {
	conn *minecraft.Conn
}

func (s *connSink) SendCommand(line string) error {
	return s.conn.WritePacket(&packet.CommandRequest{
		CommandLine: line,
		CommandOrigin: protocol.CommandOrigin{
			Origin:    protocol.CommandOriginPlayer,
			UUID:      uuid.New(),
			RequestID: uuid.NewString(),
		},
	})
}

// Run owns the connection lifecycle: establish, read until failure,
// classify, back off, repeat. It only returns when the context is
// cancelled; nothing in the connection path is fatal to the process.
func (g *Gate) Run(ctx context.Context, tokens oauth2.TokenSource) error {
	defer sentry.Recover()

	for {
		g.setState(StateConnecting)
		conn, err := g.dial(ctx, tokens)
		if err != nil {
			if ctx.Err() != nil {
				g.setState(StateDisconnected)
				return ctx.Err()
			}
			backoff := g.Backoff(err.Error())
			if IsDuplicateSession(err.Error()) {
				g.resetConnectionState()
			}
			g.log.Error().Err(err).Dur("backoff", backoff).Msg("Connection failed")
			g.setState(StateReconnecting)
			if !sleepCtx(ctx, backoff) {
				g.setState(StateDisconnected)
				return ctx.Err()
			}
			continue
		}

		g.attach(conn)
		g.setState(StateActive)
		g.log.Info().Str("remote", g.conf.Connection.RemoteAddress).Msg("Connected to server")
		g.notifier.Notify(notify.Event{
			Title:   "Connected",
			Color:   notify.ColorGood,
			Channel: notify.ChannelStatus,
		})

		reason := g.readLoop(ctx, conn)
		_ = conn.Close()
		g.detach()

		if ctx.Err() != nil {
			g.setState(StateDisconnected)
			return ctx.Err()
		}

		dup := IsDuplicateSession(reason)
		backoff := g.Backoff(reason)
		if dup {
			// The server still considers the old session live; reconnecting
			// immediately would race it. Drop everything tied to the dead
			// connection and wait it out.
			g.resetConnectionState()
		}

		g.log.Warn().Str("reason", reason).Bool("duplicate_session", dup).Dur("backoff", backoff).Msg("Disconnected")
		g.notifier.Notify(notify.Event{
			Title:       "Disconnected",
			Description: reason,
			Color:       notify.ColorDanger,
			Channel:     notify.ChannelStatus,
		})

		g.setState(StateReconnecting)
		if !sleepCtx(ctx, backoff) {
			g.setState(StateDisconnected)
			return ctx.Err()
		}
	}
}

// dial performs one full connection-establishment sequence: reachability
// probe, dial with fresh credentials, spawn. Nothing of a torn-down
// connection is reused.
func (g *Gate) dial(ctx context.Context, tokens oauth2.TokenSource) (*minecraft.Conn, error) {
	addr := g.conf.Connection.RemoteAddress

	dialCtx, cancel := context.WithTimeout(ctx, g.conf.Connection.DialTimeout)
	defer cancel()

	if _, err := raknet.PingContext(dialCtx, addr); err != nil {
		return nil, fmt.Errorf("ping %s: %w", addr, err)
	}

	conn, err := minecraft.Dialer{
		TokenSource: tokens,
	}.DialContext(dialCtx, "raknet", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	if err := conn.DoSpawnContext(dialCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("spawn: %w", err)
	}
	return conn, nil
}

// attach registers the live connection with the pipeline.
func (g *Gate) attach(conn *minecraft.Conn) {
	g.SetSink(&connSink{conn: conn})
	id := conn.IdentityData()
	g.SetSelf(id.DisplayName, id.XUID)
	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()
}

// detach drops the connection handle and command sink. Membership state is
// kept: a short transport blip should not produce leave events for
// everyone online, and the departure grace period reconciles the roster
// after reconnect.
func (g *Gate) detach() {
	g.SetSink(nil)
	g.mu.Lock()
	g.conn = nil
	g.mu.Unlock()
}

// resetConnectionState clears all state tied to the dead connection. The
// entity index is rebuilt from scratch on the next connection; membership
// departures flow through the usual grace-period path.
func (g *Gate) resetConnectionState() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entityIndex = make(map[int64]string)
	g.roster = make(map[string]player.Identity)
}

// packetConn is the part of minecraft.Conn the read loop consumes, split
// out so the loop can be tested without a live connection.
type packetConn interface {
	ReadPacket() (packet.Packet, error)
	Close() error
}

// readLoop dispatches inbound packets until the connection dies, returning
// the disconnect reason. A sweep ticker drives the departure confirmations
// while the connection is live; the same goroutine closes the connection
// on context cancellation, since ReadPacket has no other way to unblock.
func (g *Gate) readLoop(ctx context.Context, conn packetConn) string {
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				g.ConfirmDepartures()
			}
		}
	}()

	for {
		pk, err := conn.ReadPacket()
		if err != nil {
			var disc minecraft.DisconnectError
			if errors.As(err, &disc) {
				return disc.Error()
			}
			return err.Error()
		}

		switch pk := pk.(type) {
		case *packet.PlayerList:
			g.handlePlayerList(ctx, pk)
		case *packet.Text:
			g.HandleText(pk)
		}
	}
}

// sleepCtx waits for d, returning false if the context was cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// handlePlayerList folds a player-list delta into the roster and runs a
// pipeline pass over the resulting snapshot.
func (g *Gate) handlePlayerList(ctx context.Context, pk *packet.PlayerList) {
	g.mu.Lock()
	switch pk.ActionType {
	case packet.PlayerListActionAdd:
		for _, id := range lo.Map(pk.Entries, func(e protocol.PlayerListEntry, _ int) player.Identity {
			return player.FromListEntry(e)
		}) {
			g.roster[id.DisplayName] = id
		}
	case packet.PlayerListActionRemove:
		// Remove entries only carry the UUID.
		for _, e := range pk.Entries {
			for name, id := range g.roster {
				if id.UUID == e.UUID {
					delete(g.roster, name)
					break
				}
			}
		}
	}
	snapshot := lo.Values(g.roster)
	g.mu.Unlock()

	g.HandleRoster(ctx, snapshot)
}
