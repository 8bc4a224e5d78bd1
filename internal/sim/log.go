package sim

import (
	"fmt"
	"strings"
	"time"

	"github.com/cory-johannsen/shooter/internal/engine"
	"github.com/cory-johannsen/shooter/internal/game/schedule"
	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// Entry kinds.
const (
	KindInput     = "input"
	KindState     = "state"
	KindEquipped  = "equipped"
	KindFired     = "fired"
	KindOutOfAmmo = "out_of_ammo"
	KindHit       = "hit"
	KindSwitch    = "switch"
)

// Entry is one line of the scenario log.
type Entry struct {
	At     time.Duration
	Kind   string
	Weapon string
	Detail string
}

// String renders the entry as a log line.
func (e Entry) String() string {
	return fmt.Sprintf("[%8.3fs] %-11s %-8s %s", e.At.Seconds(), e.Kind, e.Weapon, e.Detail)
}

// Result is everything a scenario run produced.
type Result struct {
	Entries []Entry
	Shots   int
	Hits    []engine.Hit
	Targets []engine.Target
	Ammo    []weapon.Snapshot
}

// Filter returns the entries of the given kind.
func (r *Result) Filter(kind string) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// String renders the full log.
func (r *Result) String() string {
	var b strings.Builder
	for _, e := range r.Entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// recorder turns weapon and world notifications into log entries stamped
// with the virtual clock.
type recorder struct {
	weapon.NopListener
	clock   schedule.Clock
	result  *Result
	onEntry func(Entry)
	// closed drops everything reported during teardown.
	closed bool
}

func (r *recorder) add(kind, wpn, format string, args ...any) {
	if r.closed {
		return
	}
	e := Entry{
		At:     r.clock.Now(),
		Kind:   kind,
		Weapon: wpn,
		Detail: fmt.Sprintf(format, args...),
	}
	r.result.Entries = append(r.result.Entries, e)
	if r.onEntry != nil {
		r.onEntry(e)
	}
}

func defID(w *weapon.Weapon) string {
	if w == nil {
		return "-"
	}
	return w.Def().ID
}

func (r *recorder) OnFired(w *weapon.Weapon, ev weapon.FireEvent) {
	if r.closed {
		return
	}
	r.result.Shots++
	target := "miss"
	switch {
	case ev.Result.Hit:
		target = fmt.Sprintf("hit=%s dmg=%.1f", ev.Result.Impact.Target, ev.Result.Damage)
	case ev.Result.Spawned:
		target = "projectile"
	}
	r.add(KindFired, defID(w), "burst=%d clip=%d reserve=%d %s",
		ev.Burst, w.CurrentAmmoInClip(), w.CurrentAmmo(), target)
}

func (r *recorder) OnStateChanged(w *weapon.Weapon, s weapon.State) {
	r.add(KindState, defID(w), "%s clip=%d reserve=%d", s, w.CurrentAmmoInClip(), w.CurrentAmmo())
}

func (r *recorder) OnEquipped(w *weapon.Weapon) {
	r.add(KindEquipped, defID(w), "clip=%d reserve=%d", w.CurrentAmmoInClip(), w.CurrentAmmo())
}

func (r *recorder) OnOutOfAmmo(w *weapon.Weapon) {
	r.add(KindOutOfAmmo, defID(w), "")
}

func (r *recorder) hit(h engine.Hit) {
	if r.closed {
		return
	}
	r.result.Hits = append(r.result.Hits, h)
	r.add(KindHit, "", "target=%s dmg=%.1f killed=%v projectile=%v", h.Target, h.Damage, h.Killed, h.Projectile)
}

func (r *recorder) weaponChanged(cur, prev *weapon.Weapon) {
	r.add(KindSwitch, defID(cur), "from=%s", defID(prev))
}
