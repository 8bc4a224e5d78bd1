package weapon

import "fmt"

// Snapshot is the persisted ammo state of one weapon instance.
type Snapshot struct {
	DefID   string
	Clip    int
	Reserve int
}

// Snapshot captures the current ammo counters.
func (w *Weapon) Snapshot() Snapshot {
	return Snapshot{DefID: w.def.ID, Clip: w.ammo.Clip(), Reserve: w.ammo.Reserve()}
}

// Restore loads persisted ammo counters, clamped to the weapon's invariants.
//
// Precondition: s.DefID matches the weapon's definition.
// Postcondition: returns an error and leaves the counters unchanged on mismatch.
func (w *Weapon) Restore(s Snapshot) error {
	if s.DefID != w.def.ID {
		return fmt.Errorf("weapon: restoring %q snapshot into %q", s.DefID, w.def.ID)
	}
	w.ammo.Restore(s.Clip, s.Reserve)
	w.listeners.OnAmmoChanged(w, w.ammo.Clip(), w.ammo.Reserve())
	return nil
}
