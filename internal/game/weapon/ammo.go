package weapon

// Ammo tracks the loaded clip and the reserve for one weapon instance.
//
// Invariant: 0 <= Clip() <= AmmoPerClip; 0 <= Reserve() <= MaxAmmo unless
// InfiniteAmmo.
type Ammo struct {
	cfg     Config
	clip    int
	reserve int
}

// NewAmmo returns an empty Ammo for cfg. Call Initialize to load the
// starting clips.
//
// Postcondition: Clip() == Reserve() == 0.
func NewAmmo(cfg Config) Ammo {
	return Ammo{cfg: cfg}
}

// Initialize loads the starting clips from cfg.
//
// Postcondition: if InitialClips > 0 the clip is full (or holds the whole
// starting total when smaller) and the rest goes to the reserve, capped at
// MaxAmmo unless InfiniteAmmo; otherwise both counters are 0.
func (a *Ammo) Initialize(cfg Config) {
	a.cfg = cfg
	a.clip = 0
	a.reserve = 0
	if cfg.InitialClips <= 0 {
		return
	}
	total := cfg.InitialClips * cfg.AmmoPerClip
	if cfg.InfiniteClip {
		a.clip = cfg.AmmoPerClip
	} else {
		a.clip = min(cfg.AmmoPerClip, total)
	}
	a.reserve = max(0, total-a.clip)
	if !cfg.InfiniteAmmo {
		a.reserve = min(a.reserve, cfg.MaxAmmo)
	}
}

// Clip returns the rounds in the loaded clip.
func (a *Ammo) Clip() int { return a.clip }

// Reserve returns the rounds held outside the clip.
func (a *Ammo) Reserve() int { return a.reserve }

// Config returns the configuration the counters are bound to.
func (a *Ammo) Config() Config { return a.cfg }

// ConsumeRound removes one round from the clip. It is a no-op with
// InfiniteClip and never drives the clip below zero.
//
// Precondition: the caller has checked HasAmmoInClip.
func (a *Ammo) ConsumeRound() {
	if a.cfg.InfiniteClip || a.clip <= 0 {
		return
	}
	a.clip--
}

// Reload moves rounds from the reserve into the clip and returns how many
// were loaded.
//
// Postcondition: Clip() <= AmmoPerClip and Reserve() >= 0. With InfiniteAmmo
// the clip is filled to AmmoPerClip and the reserve is untouched.
func (a *Ammo) Reload() int {
	missing := a.cfg.AmmoPerClip - a.clip
	if missing <= 0 {
		return 0
	}
	if a.cfg.InfiniteAmmo {
		a.clip = a.cfg.AmmoPerClip
		return missing
	}
	delta := min(missing, a.reserve)
	a.clip += delta
	a.reserve -= delta
	return delta
}

// HasAmmoInClip reports whether a shot can be taken without reloading.
func (a *Ammo) HasAmmoInClip() bool {
	return a.cfg.InfiniteClip || a.clip > 0
}

// HasAnyAmmo reports whether a shot is possible now or after a reload.
func (a *Ammo) HasAnyAmmo() bool {
	return a.HasAmmoInClip() || a.reserve > 0 || a.cfg.InfiniteAmmo
}

// CanReload reports whether a reload would load at least one round.
func (a *Ammo) CanReload() bool {
	if a.cfg.InfiniteClip || a.clip >= a.cfg.AmmoPerClip {
		return false
	}
	return a.reserve > 0 || a.cfg.InfiniteAmmo
}

// GiveAmmo adds up to n rounds to the reserve and returns the rounds that
// did not fit under MaxAmmo.
//
// Precondition: n >= 0.
// Postcondition: Reserve() <= MaxAmmo unless InfiniteAmmo.
func (a *Ammo) GiveAmmo(n int) int {
	if n <= 0 {
		return 0
	}
	if a.cfg.InfiniteAmmo {
		a.reserve += n
		return 0
	}
	room := max(0, a.cfg.MaxAmmo-a.reserve)
	added := min(n, room)
	a.reserve += added
	return n - added
}

// Restore sets both counters, clamped to the invariants.
func (a *Ammo) Restore(clip, reserve int) {
	a.clip = max(0, min(clip, a.cfg.AmmoPerClip))
	a.reserve = max(0, reserve)
	if !a.cfg.InfiniteAmmo {
		a.reserve = min(a.reserve, a.cfg.MaxAmmo)
	}
}
