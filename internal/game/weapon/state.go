package weapon

// State is the weapon state machine's current state.
type State int

const (
	// StateIdle is ready to fire when equipped; unequipped weapons are also Idle.
	StateIdle State = iota
	// StateFiring means a burst is in progress.
	StateFiring
	// StateReloading means a reload is pending completion.
	StateReloading
	// StateEquipping means the equip sequence has started but not finished.
	StateEquipping
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFiring:
		return "firing"
	case StateReloading:
		return "reloading"
	case StateEquipping:
		return "equipping"
	default:
		return "unknown"
	}
}
