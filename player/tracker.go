package player

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warden-ac/warden/clock"
)

// Stat is the per-identity accumulator that survives across connection
// sessions. TotalElapsed only ever grows through accrue, so the departure
// and shutdown paths cannot drift apart.
type Stat struct {
	Key          string
	Name         string
	JoinCount    int
	TotalElapsed time.Duration
	FirstJoined  time.Time
	LastSeen     time.Time

	// sessionStart is non-zero while a session is open. It is folded into
	// TotalElapsed exactly once, on confirmed departure or shutdown.
	sessionStart time.Time
}

// SessionOpen reports whether the stat currently has an open session.
func (s Stat) SessionOpen() bool {
	return !s.sessionStart.IsZero()
}

// Tracker keeps join counters and elapsed-time accrual for every identity
// the gateway has ever admitted. It is independent of any single connection
// and flushed to persistent storage through the persist callback.
type Tracker struct {
	clk     clock.Clock
	log     zerolog.Logger
	persist func(Stat)

	mu    sync.Mutex
	stats map[string]*Stat
}

// NewTracker creates a Tracker. persist is invoked after every mutation
// with a copy of the updated stat; it must not block and must never fail
// the caller (fire-and-forget).
func NewTracker(clk clock.Clock, log zerolog.Logger, persist func(Stat)) *Tracker {
	if persist == nil {
		persist = func(Stat) {}
	}
	return &Tracker{
		clk:     clk,
		log:     log.With().Str("component", "tracker").Logger(),
		persist: persist,
	}
}

// Seed loads previously persisted stats, typically at startup. Open
// sessions are never seeded: a restart implies every prior session was
// already folded by OnShutdown.
func (t *Tracker) Seed(stats []Stat) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats = make(map[string]*Stat, len(stats))
	for _, s := range stats {
		s := s
		s.sessionStart = time.Time{}
		t.stats[s.Key] = &s
	}
}

// OnAdmit records an admission: increments the join counter, opens the
// session and refreshes LastSeen. It returns the updated stat and whether
// this was the identity's very first recorded join.
func (t *Tracker) OnAdmit(id Identity) (Stat, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clk.Now()
	s := t.get(id)
	first := s.JoinCount == 0
	s.JoinCount++
	s.Name = id.DisplayName
	s.LastSeen = now
	if s.FirstJoined.IsZero() {
		s.FirstJoined = now
	}
	if s.sessionStart.IsZero() {
		s.sessionStart = now
	}

	t.persist(*s)
	return *s, first
}

// Refresh updates LastSeen for an identity sighted in the roster.
func (t *Tracker) Refresh(id Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[id.Key()]
	if !ok {
		return
	}
	s.LastSeen = t.clk.Now()
}

// OnConfirmDeparture folds the open session into TotalElapsed and returns
// the duration of the session that just ended. The second return value is
// false if no session was open for the identity.
func (t *Tracker) OnConfirmDeparture(id Identity) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[id.Key()]
	if !ok || s.sessionStart.IsZero() {
		return 0, false
	}

	elapsed := t.accrue(s)
	t.persist(*s)
	return elapsed, true
}

// OnShutdown folds every open session, using the same accrual arithmetic
// as OnConfirmDeparture so a restart never loses or double-counts time.
func (t *Tracker) OnShutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.stats {
		if s.sessionStart.IsZero() {
			continue
		}
		t.accrue(s)
		t.persist(*s)
		t.log.Debug().Str("name", s.Name).Dur("total", s.TotalElapsed).Msg("Flushed open session")
	}
}

// Stat returns a copy of the stat for the given identity.
func (t *Tracker) Stat(id Identity) (Stat, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[id.Key()]
	if !ok {
		return Stat{}, false
	}
	return *s, true
}

// All returns a copy of every tracked stat.
func (t *Tracker) All() []Stat {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Stat, 0, len(t.stats))
	for _, s := range t.stats {
		out = append(out, *s)
	}
	return out
}

// accrue applies totalElapsed += now - sessionStart and closes the session.
// Callers must hold t.mu.
func (t *Tracker) accrue(s *Stat) time.Duration {
	now := t.clk.Now()
	elapsed := now.Sub(s.sessionStart)
	s.TotalElapsed += elapsed
	s.sessionStart = time.Time{}
	s.LastSeen = now
	return elapsed
}

// get returns the stat for id, creating it if needed. Callers must hold t.mu.
func (t *Tracker) get(id Identity) *Stat {
	if t.stats == nil {
		t.stats = make(map[string]*Stat)
	}
	s, ok := t.stats[id.Key()]
	if !ok {
		s = &Stat{Key: id.Key(), Name: id.DisplayName}
		t.stats[id.Key()] = s
	}
	return s
}
