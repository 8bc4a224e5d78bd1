// Package pawn defines the character that owns a weapon inventory and the
// registry weapons use to resolve their owner back-reference.
package pawn

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// DefaultAttachPoint is the mesh socket weapons attach to when none is configured.
const DefaultAttachPoint = "WeaponPoint"

// Params holds the construction parameters for a Character.
type Params struct {
	// ID is generated when empty.
	ID           weapon.PawnID
	Name         string
	AttachPoint  string
	Mesh         weapon.MeshHandle
	MuzzleOffset weapon.Vec3
}

// WeaponChangedFunc is notified when the current weapon changes. Either
// argument may be nil.
type WeaponChangedFunc func(c *Character, current, previous *weapon.Weapon)

// Factory builds one weapon instance of def.
type Factory func(def *weapon.Def) *weapon.Weapon

// Character is a pawn that exclusively owns its weapons and holds at most one
// current weapon.
//
// Character is not safe for concurrent use; it lives on the tick thread.
type Character struct {
	id           weapon.PawnID
	name         string
	attachPoint  string
	mesh         weapon.MeshHandle
	muzzleOffset weapon.Vec3
	origin       weapon.Vec3
	direction    weapon.Vec3

	inventory []*weapon.Weapon
	current   *weapon.Weapon
	watchers  []WeaponChangedFunc
	logger    *zap.Logger
}

// New constructs a Character with an empty inventory, aiming along +X.
//
// Postcondition: ID() is non-empty.
func New(p Params, logger *zap.Logger) *Character {
	if p.ID == "" {
		p.ID = weapon.PawnID(uuid.New().String())
	}
	if p.AttachPoint == "" {
		p.AttachPoint = DefaultAttachPoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Character{
		id:           p.ID,
		name:         p.Name,
		attachPoint:  p.AttachPoint,
		mesh:         p.Mesh,
		muzzleOffset: p.MuzzleOffset,
		direction:    weapon.Vec3{X: 1},
		logger:       logger.With(zap.String("pawn", string(p.ID))),
	}
}

func (c *Character) ID() weapon.PawnID { return c.id }
func (c *Character) Name() string { return c.name }
func (c *Character) WeaponAttachPoint() string { return c.attachPoint }
func (c *Character) PawnMesh() weapon.MeshHandle { return c.mesh }
func (c *Character) MuzzleOffset() weapon.Vec3 { return c.muzzleOffset }
func (c *Character) CurrentWeapon() *weapon.Weapon { return c.current }

// Aim returns the view origin and unit aim direction.
func (c *Character) Aim() (weapon.Vec3, weapon.Vec3) {
	return c.origin, c.direction
}

// SetAim moves the view. A zero direction keeps the previous one.
func (c *Character) SetAim(origin, direction weapon.Vec3) {
	c.origin = origin
	if direction.Length() > 0 {
		c.direction = direction.Normalize()
	}
}

// OnCurrentWeaponChanged subscribes fn to current-weapon changes.
func (c *Character) OnCurrentWeaponChanged(fn WeaponChangedFunc) {
	c.watchers = append(c.watchers, fn)
}

// Inventory returns the weapons in inventory order.
func (c *Character) Inventory() []*weapon.Weapon {
	out := make([]*weapon.Weapon, len(c.inventory))
	copy(out, c.inventory)
	return out
}

// FindWeapon returns the first inventory weapon of definition defID.
func (c *Character) FindWeapon(defID string) (*weapon.Weapon, bool) {
	for _, w := range c.inventory {
		if w.Def().ID == defID {
			return w, true
		}
	}
	return nil, false
}

// AddWeapon takes ownership of w.
//
// Postcondition: w.Owner() == c.ID(); returns false if w was already held.
func (c *Character) AddWeapon(w *weapon.Weapon) bool {
	if c.indexOf(w) >= 0 {
		return false
	}
	c.inventory = append(c.inventory, w)
	w.OnEnterInventory(c.id)
	c.logger.Debug("weapon added", zap.String("weapon", string(w.ID())), zap.String("def", w.Def().ID))
	return true
}

// RemoveWeapon gives up ownership of w, clearing it as current weapon first.
func (c *Character) RemoveWeapon(w *weapon.Weapon) bool {
	i := c.indexOf(w)
	if i < 0 {
		return false
	}
	if c.current == w {
		c.setCurrentWeapon(nil)
	}
	w.OnLeaveInventory()
	c.inventory = append(c.inventory[:i], c.inventory[i+1:]...)
	c.logger.Debug("weapon removed", zap.String("weapon", string(w.ID())))
	return true
}

// SpawnDefaultInventory builds, initializes and adds one weapon per def, then
// equips the first.
//
// Precondition: build must not be nil.
// Postcondition: len(Inventory()) grows by len(defs).
func (c *Character) SpawnDefaultInventory(defs []*weapon.Def, build Factory) {
	for _, def := range defs {
		w := build(def)
		w.Initialize()
		c.AddWeapon(w)
	}
	if c.current == nil && len(c.inventory) > 0 {
		c.setCurrentWeapon(c.inventory[0])
	}
}

// EquipWeapon makes w the current weapon: the previous one is unequipped and
// w starts its equip sequence.
func (c *Character) EquipWeapon(w *weapon.Weapon) error {
	if w == nil {
		return errors.New("pawn: EquipWeapon requires a weapon")
	}
	if c.indexOf(w) < 0 {
		return fmt.Errorf("pawn: weapon %s is not in the inventory of %s", w.ID(), c.id)
	}
	if w == c.current {
		return nil
	}
	c.setCurrentWeapon(w)
	return nil
}

// NextWeapon equips the following inventory weapon, wrapping around. It is a
// no-op with fewer than two weapons or while the current weapon is equipping.
func (c *Character) NextWeapon() {
	c.cycle(1)
}

// PrevWeapon equips the preceding inventory weapon, wrapping around.
func (c *Character) PrevWeapon() {
	c.cycle(-1)
}

func (c *Character) cycle(step int) {
	if len(c.inventory) < 2 {
		return
	}
	if c.current != nil && c.current.State() == weapon.StateEquipping {
		return
	}
	i := max(c.indexOf(c.current), 0)
	n := len(c.inventory)
	c.setCurrentWeapon(c.inventory[((i+step)%n+n)%n])
}

// StartFire presses the trigger on the current weapon.
func (c *Character) StartFire() bool {
	if c.current == nil {
		return false
	}
	return c.current.StartFire()
}

// StopFire releases the trigger on the current weapon.
func (c *Character) StopFire() {
	if c.current != nil {
		c.current.StopFire()
	}
}

// Reload asks the current weapon to reload.
func (c *Character) Reload() bool {
	if c.current == nil {
		return false
	}
	return c.current.StartReload()
}

// Snapshots captures the ammo state of every inventory weapon.
func (c *Character) Snapshots() []weapon.Snapshot {
	out := make([]weapon.Snapshot, 0, len(c.inventory))
	for _, w := range c.inventory {
		out = append(out, w.Snapshot())
	}
	return out
}

// RestoreSnapshots applies snaps to inventory weapons in order, matching by
// definition. Snapshots without a matching weapon are reported in the error;
// the rest are still applied.
func (c *Character) RestoreSnapshots(snaps []weapon.Snapshot) error {
	used := make(map[*weapon.Weapon]bool, len(snaps))
	var errs []error
	for _, s := range snaps {
		var target *weapon.Weapon
		for _, w := range c.inventory {
			if !used[w] && w.Def().ID == s.DefID {
				target = w
				break
			}
		}
		if target == nil {
			errs = append(errs, fmt.Errorf("no weapon of type %q in inventory", s.DefID))
			continue
		}
		used[target] = true
		if err := target.Restore(s); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("pawn %s: restoring ammo: %w", c.id, errors.Join(errs...))
	}
	return nil
}

// DestroyInventory destroys every weapon the character owns.
//
// Postcondition: Inventory() is empty and CurrentWeapon() is nil.
func (c *Character) DestroyInventory() {
	if c.current != nil {
		c.setCurrentWeapon(nil)
	}
	for i := len(c.inventory) - 1; i >= 0; i-- {
		c.inventory[i].Destroy()
	}
	c.inventory = nil
	c.logger.Debug("inventory destroyed")
}

func (c *Character) setCurrentWeapon(next *weapon.Weapon) {
	prev := c.current
	if prev != nil {
		prev.OnUnequip()
	}
	c.current = next
	if next != nil {
		next.SetOwningPawn(c.id)
		next.OnEquip(prev)
	}
	for _, fn := range c.watchers {
		fn(c, next, prev)
	}
}

func (c *Character) indexOf(w *weapon.Weapon) int {
	for i, held := range c.inventory {
		if held == w {
			return i
		}
	}
	return -1
}
