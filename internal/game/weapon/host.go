package weapon

import (
	"math"
	"time"
)

// ID identifies one weapon instance.
type ID string

// PawnID identifies the pawn a weapon is attached to. The weapon stores it
// as a lookup key, never as an owning reference. The empty PawnID means no owner.
type PawnID string

// MeshHandle is an opaque engine handle to the pawn's mesh.
type MeshHandle uint64

// Vec3 is a point or direction in world space.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Scale returns v multiplied by f.
func (v Vec3) Scale(f float64) Vec3 {
	return Vec3{X: v.X * f, Y: v.Y * f, Z: v.Z * f}
}

// Dot returns the dot product of v and o.
func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Length returns the magnitude of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize returns v scaled to unit length. The zero vector is returned unchanged.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Owner is the pawn-side view a weapon queries through its back-reference.
type Owner interface {
	// WeaponAttachPoint names the socket the weapon mesh attaches to.
	WeaponAttachPoint() string
	// PawnMesh returns the mesh the weapon attaches onto.
	PawnMesh() MeshHandle
	// MuzzleOffset is the muzzle position relative to the aim origin.
	MuzzleOffset() Vec3
	// Aim returns the shot origin and unit direction.
	Aim() (origin, direction Vec3)
}

// Host is the narrow engine surface a weapon drives. Implementations must
// treat every call as idempotent: detaching an already detached weapon is a
// no-op.
type Host interface {
	// Owner resolves a pawn back-reference. ok is false when the pawn is gone.
	Owner(id PawnID) (owner Owner, ok bool)
	// AttachVisual attaches the weapon's mesh to target at point and shows it.
	AttachVisual(weapon ID, target MeshHandle, point string)
	// DetachVisual detaches and hides the weapon's mesh.
	DetachVisual(weapon ID)
	// OwnerChanged reports a new back-reference; pawn is empty when cleared.
	OwnerChanged(weapon ID, pawn PawnID)
}

// Animation names a weapon animation the host may play.
type Animation int

const (
	AnimEquip Animation = iota
	AnimReload
	AnimFire
)

// String returns the animation name.
func (a Animation) String() string {
	switch a {
	case AnimEquip:
		return "equip"
	case AnimReload:
		return "reload"
	case AnimFire:
		return "fire"
	default:
		return "unknown"
	}
}

// Animator is optionally implemented by a Host that plays weapon animations.
// A positive returned duration replaces the configured fallback timing.
type Animator interface {
	PlayWeaponAnimation(weapon ID, anim Animation) time.Duration
	StopWeaponAnimation(weapon ID, anim Animation)
}

// Shot describes one fired round before resolution.
type Shot struct {
	Weapon       ID
	Pawn         PawnID
	Kind         Kind
	Burst        int
	Time         time.Duration
	MuzzleOffset Vec3
	Origin       Vec3
	Direction    Vec3
}

// FireEvent is emitted for every shot.
type FireEvent struct {
	Shot
	Result Resolution
}

// Listener receives the weapon's outbound notifications. All calls happen on
// the tick thread.
type Listener interface {
	OnFired(w *Weapon, ev FireEvent)
	OnAmmoChanged(w *Weapon, clip, reserve int)
	OnStateChanged(w *Weapon, state State)
	OnEquipped(w *Weapon)
	OnOutOfAmmo(w *Weapon)
}

// NopListener implements Listener with no-ops; embed it to handle a subset.
type NopListener struct{}

func (NopListener) OnFired(*Weapon, FireEvent) {}
func (NopListener) OnAmmoChanged(*Weapon, int, int) {}
func (NopListener) OnStateChanged(*Weapon, State) {}
func (NopListener) OnEquipped(*Weapon) {}
func (NopListener) OnOutOfAmmo(*Weapon) {}

// Listeners fans every notification out in registration order.
type Listeners []Listener

func (ls Listeners) OnFired(w *Weapon, ev FireEvent) {
	for _, l := range ls {
		l.OnFired(w, ev)
	}
}

func (ls Listeners) OnAmmoChanged(w *Weapon, clip, reserve int) {
	for _, l := range ls {
		l.OnAmmoChanged(w, clip, reserve)
	}
}

func (ls Listeners) OnStateChanged(w *Weapon, state State) {
	for _, l := range ls {
		l.OnStateChanged(w, state)
	}
}

func (ls Listeners) OnEquipped(w *Weapon) {
	for _, l := range ls {
		l.OnEquipped(w)
	}
}

func (ls Listeners) OnOutOfAmmo(w *Weapon) {
	for _, l := range ls {
		l.OnOutOfAmmo(w)
	}
}
