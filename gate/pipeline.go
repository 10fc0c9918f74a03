package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/warden-ac/warden/check"
	"github.com/warden-ac/warden/device"
	"github.com/warden-ac/warden/notify"
	"github.com/warden-ac/warden/player"
)

// HandleRoster processes one roster snapshot. New records go through the
// full admission pipeline; known records only get their last-seen refresh.
// Checks for one identity run to completion before the next identity
// begins, which also serializes the outbound reputation queries.
func (g *Gate) HandleRoster(ctx context.Context, snapshot []player.Identity) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clk.Now()
	g.roster = make(map[string]player.Identity, len(snapshot))
	seen := make(map[string]struct{}, len(snapshot))

	for _, id := range snapshot {
		if id.DisplayName == g.selfName {
			continue
		}
		g.roster[id.DisplayName] = id
		seen[id.DisplayName] = struct{}{}

		if entry, ok := g.membership.Get(id.DisplayName); ok {
			entry.LastSeenAt = now
			g.tracker.Refresh(id)
			delete(g.pendingDeparture, id.DisplayName)
			continue
		}

		g.processNew(ctx, id)
	}

	// Names in the membership table but absent from the snapshot enter the
	// grace window. The timestamp records the first missed sighting; the
	// sweep re-validates presence when it fires, so a re-arrival in any
	// later snapshot implicitly cancels the pending departure.
	for _, name := range g.membership.Keys() {
		if _, ok := seen[name]; ok {
			continue
		}
		if _, pending := g.pendingDeparture[name]; !pending {
			g.pendingDeparture[name] = now
		}
	}
}

// processNew runs the ordered checks for one identity not yet admitted.
// The first denying check expels and stops; at most one expulsion command
// and one rejection notification are ever issued per identity per pass.
// Callers must hold g.mu.
func (g *Gate) processNew(ctx context.Context, id player.Identity) {
	for _, c := range g.preChecks {
		if v := c.Process(ctx, g, id); v.Deny {
			g.expelLocked(id, c.Name(), v)
			return
		}
	}

	g.admitLocked(id)

	for _, c := range g.postChecks {
		if v := c.Process(ctx, g, id); v.Deny {
			g.removeLocked(id.DisplayName)
			g.expelLocked(id, c.Name(), v)
			return
		}
	}
}

// admitLocked inserts the identity into the membership table, updates its
// session stat and announces the join. Callers must hold g.mu.
func (g *Gate) admitLocked(id player.Identity) {
	now := g.clk.Now()
	g.membership.Set(id.DisplayName, &MembershipEntry{Identity: id, LastSeenAt: now})
	g.entityIndex[id.EntityUniqueID] = id.DisplayName

	stat, first := g.tracker.OnAdmit(id)
	g.applyRankLocked(id, stat)

	g.log.Info().
		Str("name", id.DisplayName).
		Str("device", device.Name(id.Platform)).
		Int("joins", stat.JoinCount).
		Msg("Player admitted")

	if first {
		g.notifier.Notify(notify.Event{
			Title:       "Welcome!",
			Description: fmt.Sprintf("**%s** joined for the first time.", id.DisplayName),
			Color:       notify.ColorGood,
			Channel:     notify.ChannelModeration,
		})
	}
	g.notifier.Notify(notify.Event{
		Title:       "Player joined",
		Description: id.DisplayName,
		Color:       notify.ColorInfo,
		Channel:     notify.ChannelModeration,
		Fields: notify.Fields(map[string]any{
			"Device": device.Name(id.Platform),
			"Joins":  stat.JoinCount,
		}),
	})
}

// applyRankLocked applies the highest earned playtime rank tag, if any.
// The tag add is idempotent on the server side. Callers must hold g.mu.
func (g *Gate) applyRankLocked(id player.Identity, stat player.Stat) {
	var tag string
	for _, tier := range g.conf.Admission.RankTiers() {
		if stat.TotalElapsed >= tier.Playtime {
			tag = tier.Tag
		}
	}
	if tag == "" {
		return
	}
	g.sendCommand(fmt.Sprintf(`/tag "%s" add %s`, id.DisplayName, tag))
}

// expelLocked performs the single expulsion for a denied identity: one
// kick command, one notification, one audit record. Callers must hold
// g.mu and must not call it twice for the same identity within one pass.
func (g *Gate) expelLocked(id player.Identity, checkName string, v check.Verdict) {
	g.sendCommand(fmt.Sprintf(`/kick "%s" %s`, id.DisplayName, v.Reason))

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: "admission",
		Message:  fmt.Sprintf("%s expelled by %s: %s", id.DisplayName, checkName, v.Reason),
		Level:    sentry.LevelWarning,
	})

	g.log.Warn().
		Str("name", id.DisplayName).
		Str("check", checkName).
		Str("reason", v.Reason).
		Str("detail", notify.FormatFields(v.Detail)).
		Msg("Player expelled")

	g.notifier.Notify(notify.Event{
		Title:       "Player expelled: " + checkName,
		Description: fmt.Sprintf("**%s** — %s", id.DisplayName, v.Reason),
		Color:       notify.ColorDanger,
		Channel:     notify.ChannelModeration,
		Fields:      notify.Fields(v.Detail),
	})

	g.lists.LogSecurityEvent(v.Kind, id.DisplayName, notify.FormatFields(v.Detail), "warn")
}

// removeLocked drops an identity from the membership bookkeeping and folds
// its open session. Used for explicit expulsions, which skip the departure
// grace period. Callers must hold g.mu.
func (g *Gate) removeLocked(name string) {
	entry, ok := g.membership.Get(name)
	if !ok {
		return
	}
	g.tracker.OnConfirmDeparture(entry.Identity)
	g.membership.Delete(name)
	delete(g.entityIndex, entry.Identity.EntityUniqueID)
	delete(g.pendingDeparture, name)
}

// ExpelNonAllowlisted sweeps the current membership table and expels every
// player not on the allowlist, reusing the per-identity expulsion path. It
// returns the number of players expelled. Used when maintenance mode is
// switched on with players already connected.
func (g *Gate) ExpelNonAllowlisted() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := 0
	for _, name := range g.membership.Keys() {
		entry, ok := g.membership.Get(name)
		if !ok {
			continue
		}
		if g.lists.IsOnAllowlist(name) {
			continue
		}
		id := entry.Identity
		g.removeLocked(name)
		g.expelLocked(id, "Maintenance", check.Deny("maintenance", "The server is under maintenance", nil))
		count++
	}
	return count
}

// sessionDuration formats an elapsed session for the departure notice.
func sessionDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}
