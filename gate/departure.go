package gate

import (
	"fmt"

	"github.com/warden-ac/warden/notify"
)

// ConfirmDepartures fires the pending-departure checks whose grace period
// has elapsed. The check is level-triggered: presence is re-read against
// the current roster and the entry's last-seen timestamp at fire time, so
// a stale timestamp can never evict a player that was re-observed, and
// stacked timers for the same identity collapse into one decision.
func (g *Gate) ConfirmDepartures() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clk.Now()
	grace := g.conf.Admission.LeaveGrace

	for name, since := range g.pendingDeparture {
		if now.Sub(since) < grace {
			continue
		}

		entry, ok := g.membership.Get(name)
		if !ok {
			delete(g.pendingDeparture, name)
			continue
		}
		if _, present := g.roster[name]; present || now.Sub(entry.LastSeenAt) < grace {
			// Re-observed during the grace window; departure cancelled.
			delete(g.pendingDeparture, name)
			continue
		}

		elapsed, _ := g.tracker.OnConfirmDeparture(entry.Identity)
		g.membership.Delete(name)
		delete(g.entityIndex, entry.Identity.EntityUniqueID)
		delete(g.pendingDeparture, name)

		g.log.Info().Str("name", name).Dur("session", elapsed).Msg("Player left")
		g.notifier.Notify(notify.Event{
			Title:       "Player left",
			Description: fmt.Sprintf("**%s** — session %s", name, sessionDuration(elapsed)),
			Color:       notify.ColorInfo,
			Channel:     notify.ChannelModeration,
		})
	}
}
