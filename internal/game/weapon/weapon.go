package weapon

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/shooter/internal/game/schedule"
)

// minRefireDelay keeps catch-up from scheduling a zero-delay refire.
const minRefireDelay = time.Millisecond

// Option configures a Weapon at construction.
type Option func(*Weapon)

// WithLogger sets the logger used for state transitions. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(w *Weapon) { w.logger = l }
}

// WithListener appends an outbound notification listener.
func WithListener(l Listener) Option {
	return func(w *Weapon) { w.listeners = append(w.listeners, l) }
}

// WithResolver overrides the kind-selected shot resolver.
func WithResolver(r Resolver) Option {
	return func(w *Weapon) { w.resolver = r }
}

// WithDamageFunc adjusts instant-hit damage when the default resolver is used.
func WithDamageFunc(fn DamageFunc) Option {
	return func(w *Weapon) { w.damage = fn }
}

// WithCatchUp enables automatic-weapon catch-up: one deferred shot for a
// trigger press inside the cooldown, and refire delays shortened by slack.
func WithCatchUp(enabled bool) Option {
	return func(w *Weapon) { w.catchUp = enabled }
}

// WithEquipFallback replaces DefaultEquipDuration for definitions that do
// not set their own equip duration.
func WithEquipFallback(d time.Duration) Option {
	return func(w *Weapon) { w.equipFallback = d }
}

// WithID sets the instance ID instead of generating one.
func WithID(id ID) Option {
	return func(w *Weapon) { w.id = id }
}

// Weapon is one weapon instance: ammo model, state machine and equip sequencer.
//
// Weapon is not safe for concurrent use; every call and every scheduled
// callback runs on the tick thread that owns the clock.
//
// Invariant: pendingEquip and isEquipped are never both true.
// Invariant: each concern (equip, reload, fire) has at most one pending callback.
type Weapon struct {
	id        ID
	def       *Def
	clock     schedule.Clock
	host      Host
	logger    *zap.Logger
	listeners Listeners
	resolver  Resolver
	damage    DamageFunc

	catchUp       bool
	equipFallback time.Duration

	ammo  Ammo
	state State
	owner PawnID

	isEquipped    bool
	pendingEquip  bool
	pendingReload bool
	wantsToFire   bool
	destroyed     bool

	hasFired         bool
	lastFireTime     time.Duration
	burstCounter     int
	intervalAdjust   time.Duration
	equipStartedTime time.Duration
	equipDuration    time.Duration

	equipTimer  *schedule.Timer
	reloadTimer *schedule.Timer
	fireTimer   *schedule.Timer
}

// New constructs an unequipped, empty weapon of type def.
//
// Precondition: def must be non-nil and pass Validate; clock and host must be non-nil.
// Postcondition: State() == StateIdle, no ammo, no owner. Call Initialize to
// load the starting clips.
func New(def *Def, clock schedule.Clock, host Host, opts ...Option) *Weapon {
	if def == nil || def.Config.AmmoPerClip <= 0 {
		panic("weapon: New requires a validated definition with ammo_per_clip > 0")
	}
	w := &Weapon{
		def:           def,
		clock:         clock,
		host:          host,
		logger:        zap.NewNop(),
		catchUp:       true,
		equipFallback: DefaultEquipDuration,
		ammo:          NewAmmo(def.Config),
		state:         StateIdle,
		equipTimer:    schedule.NewTimer(clock),
		reloadTimer:   schedule.NewTimer(clock),
		fireTimer:     schedule.NewTimer(clock),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.id == "" {
		w.id = ID(uuid.New().String())
	}
	if w.resolver == nil {
		w.resolver = NewResolver(def, host, w.damage)
	}
	return w
}

// Initialize loads the starting clips and makes sure the mesh starts detached.
//
// Postcondition: ammo follows Ammo.Initialize; the visual is detached.
func (w *Weapon) Initialize() {
	w.ammo.Initialize(w.def.Config)
	w.host.DetachVisual(w.id)
	w.logger.Debug("weapon initialized",
		zap.String("weapon", string(w.id)),
		zap.String("def", w.def.ID),
		zap.Int("clip", w.ammo.Clip()),
		zap.Int("reserve", w.ammo.Reserve()),
	)
}

// ---------------------------------------------------------------------------
// Inventory

// SetOwningPawn stores the non-owning back-reference to pawn.
func (w *Weapon) SetOwningPawn(pawn PawnID) {
	if w.owner == pawn {
		return
	}
	w.owner = pawn
	w.host.OwnerChanged(w.id, pawn)
}

// OnEnterInventory is called when pawn takes ownership of the weapon.
func (w *Weapon) OnEnterInventory(pawn PawnID) {
	w.SetOwningPawn(pawn)
}

// OnLeaveInventory unequips the weapon if attached and clears its owner.
func (w *Weapon) OnLeaveInventory() {
	if w.IsAttachedToPawn() {
		w.OnUnequip()
	}
	w.SetOwningPawn("")
}

// OnEquip starts the equip sequence. previous is the weapon being replaced
// and may be nil. Requests while already equipping or equipped are ignored.
//
// Postcondition: IsPendingEquip() is true and one equip-finish callback is
// pending, unless the request was ignored.
func (w *Weapon) OnEquip(previous *Weapon) {
	if w.destroyed {
		return
	}
	if w.pendingEquip || w.isEquipped {
		w.logger.Debug("duplicate equip ignored",
			zap.String("weapon", string(w.id)),
			zap.Bool("pending", w.pendingEquip),
		)
		return
	}
	w.attachMeshToPawn()
	w.pendingEquip = true
	w.setState(StateEquipping)

	duration := w.playAnimation(AnimEquip)
	if duration <= 0 {
		duration = w.equipFallbackFor()
	}
	w.equipStartedTime = w.clock.Now()
	w.equipDuration = duration
	w.equipTimer.Reset(duration, w.OnEquipFinished)

	fields := []zap.Field{
		zap.String("weapon", string(w.id)),
		zap.Duration("duration", duration),
	}
	if previous != nil {
		fields = append(fields, zap.String("previous", string(previous.id)))
	}
	w.logger.Debug("equip started", fields...)
}

// OnEquipFinished completes the equip sequence. It is a no-op unless an
// equip is pending.
//
// Postcondition: IsEquipped() is true and IsPendingEquip() is false.
func (w *Weapon) OnEquipFinished() {
	if w.destroyed || !w.pendingEquip {
		return
	}
	w.equipTimer.Stop()
	w.attachMeshToPawn()
	w.isEquipped = true
	w.pendingEquip = false
	w.setState(StateIdle)
	w.listeners.OnEquipped(w)
	w.logger.Debug("equip finished", zap.String("weapon", string(w.id)))

	if !w.ammo.HasAmmoInClip() && w.ammo.CanReload() {
		w.beginReload()
	}
}

// OnUnequip detaches the weapon and cancels everything in flight.
//
// Postcondition: not equipped, nothing pending, State() == StateIdle.
func (w *Weapon) OnUnequip() {
	w.detachMeshFromPawn()
	w.isEquipped = false
	w.wantsToFire = false

	if w.pendingReload {
		w.stopAnimation(AnimReload)
		w.pendingReload = false
	}
	if w.pendingEquip {
		w.stopAnimation(AnimEquip)
		w.pendingEquip = false
	}
	w.equipTimer.Stop()
	w.reloadTimer.Stop()
	w.fireTimer.Stop()
	w.setState(StateIdle)
	w.logger.Debug("unequipped", zap.String("weapon", string(w.id)))
}

// Destroy tears the weapon down. Any callback that still arrives afterwards
// is ignored. Calling Destroy twice is a no-op.
func (w *Weapon) Destroy() {
	if w.destroyed {
		return
	}
	w.OnLeaveInventory()
	w.equipTimer.Stop()
	w.reloadTimer.Stop()
	w.fireTimer.Stop()
	w.destroyed = true
	w.logger.Debug("weapon destroyed", zap.String("weapon", string(w.id)))
}

// ---------------------------------------------------------------------------
// Input

// StartFire handles a trigger press. It returns false when the weapon is not
// ready to accept input (not equipped, still equipping, or destroyed).
func (w *Weapon) StartFire() bool {
	if w.destroyed || !w.isEquipped || w.pendingEquip {
		return false
	}
	w.wantsToFire = true
	if w.state == StateIdle {
		w.tryFire()
	}
	return true
}

// StopFire handles a trigger release. The round already fired stays
// consumed; the pending refire is cancelled. A deferred catch-up shot is kept.
func (w *Weapon) StopFire() {
	w.wantsToFire = false
	if w.state == StateFiring {
		w.setState(StateIdle)
	}
}

// StartReload handles a reload request. It returns true if a reload started.
func (w *Weapon) StartReload() bool {
	if w.destroyed || !w.isEquipped || w.pendingReload {
		return false
	}
	if w.state != StateIdle && w.state != StateFiring {
		return false
	}
	if !w.ammo.CanReload() {
		return false
	}
	w.beginReload()
	return true
}

// GiveAmmo adds rounds to the reserve and returns what did not fit. An
// equipped weapon with an empty clip starts reloading.
func (w *Weapon) GiveAmmo(n int) int {
	leftover := w.ammo.GiveAmmo(n)
	w.listeners.OnAmmoChanged(w, w.ammo.Clip(), w.ammo.Reserve())
	if w.isEquipped && !w.ammo.HasAmmoInClip() {
		w.StartReload()
	}
	return leftover
}

// ---------------------------------------------------------------------------
// Firing

// tryFire handles a fresh trigger press from Idle.
func (w *Weapon) tryFire() {
	if !w.ammo.HasAmmoInClip() {
		if w.ammo.CanReload() {
			w.beginReload()
			return
		}
		w.outOfAmmo()
		return
	}
	if wait := w.cooldownRemaining(); wait > 0 {
		if w.catchUp && !w.fireTimer.Pending() {
			w.fireTimer.Reset(wait, w.deferredFire)
			w.logger.Debug("shot deferred",
				zap.String("weapon", string(w.id)),
				zap.Duration("wait", wait),
			)
			return
		}
		w.logger.Debug("shot dropped inside cooldown",
			zap.String("weapon", string(w.id)),
			zap.Duration("wait", wait),
		)
		return
	}
	w.fire()
}

// deferredFire is the catch-up shot scheduled by tryFire.
func (w *Weapon) deferredFire() {
	if w.destroyed || !w.isEquipped || w.state != StateIdle {
		return
	}
	if !w.ammo.HasAmmoInClip() {
		return
	}
	w.fire()
}

// refire is the next-shot check scheduled after each automatic shot.
func (w *Weapon) refire() {
	if w.destroyed || w.state != StateFiring {
		return
	}
	if !w.wantsToFire || !w.ammo.HasAmmoInClip() {
		w.setState(StateIdle)
		return
	}
	if w.catchUp {
		slack := w.clock.Now() - w.lastFireTime - w.def.Config.ShotInterval()
		if slack > 0 {
			w.intervalAdjust -= slack
		}
	}
	w.fire()
}

// fire takes one shot.
//
// Precondition: the clip has ammo and the cooldown has elapsed.
func (w *Weapon) fire() {
	w.setState(StateFiring)
	w.ammo.ConsumeRound()
	w.lastFireTime = w.clock.Now()
	w.hasFired = true
	w.burstCounter++
	w.playAnimation(AnimFire)

	shot := w.buildShot()
	ev := FireEvent{Shot: shot, Result: w.resolver.Resolve(shot)}
	w.listeners.OnFired(w, ev)
	w.listeners.OnAmmoChanged(w, w.ammo.Clip(), w.ammo.Reserve())
	w.logger.Debug("weapon fired",
		zap.String("weapon", string(w.id)),
		zap.Int("burst", w.burstCounter),
		zap.Int("clip", w.ammo.Clip()),
		zap.Int("reserve", w.ammo.Reserve()),
		zap.Bool("hit", ev.Result.Hit),
	)

	if !w.ammo.HasAmmoInClip() && w.ammo.CanReload() {
		w.beginReload()
		return
	}
	interval := w.def.Config.ShotInterval()
	if interval <= 0 {
		w.setState(StateIdle)
		return
	}
	delay := max(interval+w.intervalAdjust, minRefireDelay)
	w.intervalAdjust = 0
	w.fireTimer.Reset(delay, w.refire)
}

func (w *Weapon) outOfAmmo() {
	w.listeners.OnOutOfAmmo(w)
	w.logger.Debug("out of ammo", zap.String("weapon", string(w.id)))
}

func (w *Weapon) cooldownRemaining() time.Duration {
	if !w.hasFired {
		return 0
	}
	ready := w.lastFireTime + w.def.Config.ShotInterval()
	return max(0, ready-w.clock.Now())
}

func (w *Weapon) buildShot() Shot {
	shot := Shot{
		Weapon: w.id,
		Pawn:   w.owner,
		Kind:   w.def.Kind,
		Burst:  w.burstCounter,
		Time:   w.lastFireTime,
	}
	if owner, ok := w.host.Owner(w.owner); ok {
		shot.MuzzleOffset = owner.MuzzleOffset()
		shot.Origin, shot.Direction = owner.Aim()
	}
	return shot
}

// ---------------------------------------------------------------------------
// Reloading

func (w *Weapon) beginReload() {
	w.fireTimer.Stop()
	w.pendingReload = true
	w.setState(StateReloading)
	duration := w.playAnimation(AnimReload)
	if duration <= 0 {
		duration = w.def.Config.ReloadDuration()
	}
	w.reloadTimer.Reset(duration, w.finishReload)
	w.logger.Debug("reload started",
		zap.String("weapon", string(w.id)),
		zap.Duration("duration", duration),
	)
}

func (w *Weapon) finishReload() {
	if w.destroyed || !w.pendingReload {
		return
	}
	loaded := w.ammo.Reload()
	w.pendingReload = false
	w.setState(StateIdle)
	w.listeners.OnAmmoChanged(w, w.ammo.Clip(), w.ammo.Reserve())
	w.logger.Debug("reload finished",
		zap.String("weapon", string(w.id)),
		zap.Int("loaded", loaded),
		zap.Int("clip", w.ammo.Clip()),
		zap.Int("reserve", w.ammo.Reserve()),
	)
	if w.wantsToFire {
		w.tryFire()
	}
}

// ---------------------------------------------------------------------------
// State & host plumbing

func (w *Weapon) setState(next State) {
	prev := w.state
	if prev == next {
		return
	}
	if prev == StateFiring {
		w.burstCounter = 0
		w.intervalAdjust = 0
		w.fireTimer.Stop()
	}
	w.state = next
	w.logger.Debug("weapon state changed",
		zap.String("weapon", string(w.id)),
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
	)
	w.listeners.OnStateChanged(w, next)
}

func (w *Weapon) attachMeshToPawn() {
	owner, ok := w.host.Owner(w.owner)
	if !ok {
		return
	}
	w.host.DetachVisual(w.id)
	w.host.AttachVisual(w.id, owner.PawnMesh(), owner.WeaponAttachPoint())
}

func (w *Weapon) detachMeshFromPawn() {
	w.host.DetachVisual(w.id)
}

func (w *Weapon) equipFallbackFor() time.Duration {
	if w.def.EquipDuration > 0 {
		return w.def.EquipFallback()
	}
	return w.equipFallback
}

func (w *Weapon) playAnimation(anim Animation) time.Duration {
	if a, ok := w.host.(Animator); ok {
		return a.PlayWeaponAnimation(w.id, anim)
	}
	return 0
}

func (w *Weapon) stopAnimation(anim Animation) {
	if a, ok := w.host.(Animator); ok {
		a.StopWeaponAnimation(w.id, anim)
	}
}

// ---------------------------------------------------------------------------
// Accessors

// ID returns the instance ID.
func (w *Weapon) ID() ID { return w.id }

// Def returns the weapon's definition.
func (w *Weapon) Def() *Def { return w.def }

// State returns the current state.
func (w *Weapon) State() State { return w.state }

// Owner returns the owning pawn, or empty when unowned.
func (w *Weapon) Owner() PawnID { return w.owner }

// IsEquipped reports whether the equip sequence has finished.
func (w *Weapon) IsEquipped() bool { return w.isEquipped }

// IsPendingEquip reports whether an equip is in progress.
func (w *Weapon) IsPendingEquip() bool { return w.pendingEquip }

// IsPendingReload reports whether a reload is in progress.
func (w *Weapon) IsPendingReload() bool { return w.pendingReload }

// WantsToFire reports whether the trigger is held.
func (w *Weapon) WantsToFire() bool { return w.wantsToFire }

// IsDestroyed reports whether Destroy has been called.
func (w *Weapon) IsDestroyed() bool { return w.destroyed }

// CurrentAmmo returns the reserve outside the clip.
func (w *Weapon) CurrentAmmo() int { return w.ammo.Reserve() }

// CurrentAmmoInClip returns the rounds loaded in the clip.
func (w *Weapon) CurrentAmmoInClip() int { return w.ammo.Clip() }

// MaxAmmo returns the reserve capacity.
func (w *Weapon) MaxAmmo() int { return w.def.Config.MaxAmmo }

// AmmoPerClip returns the clip capacity.
func (w *Weapon) AmmoPerClip() int { return w.def.Config.AmmoPerClip }

// BurstCounter returns the shots fired in the current burst.
func (w *Weapon) BurstCounter() int { return w.burstCounter }

// LastFireTime returns the clock time of the most recent shot.
func (w *Weapon) LastFireTime() time.Duration { return w.lastFireTime }

// EquipStartedTime returns when the current equip began.
func (w *Weapon) EquipStartedTime() time.Duration { return w.equipStartedTime }

// EquipDuration returns the length of the current equip.
func (w *Weapon) EquipDuration() time.Duration { return w.equipDuration }

// IsAttachedToPawn reports whether the mesh is attached, fully or mid-equip.
func (w *Weapon) IsAttachedToPawn() bool {
	return w.isEquipped || w.pendingEquip
}

// HasAnyAmmo reports whether the weapon can shoot now or after a reload.
func (w *Weapon) HasAnyAmmo() bool {
	return w.ammo.HasAnyAmmo()
}

// String returns a short description for logs.
func (w *Weapon) String() string {
	return fmt.Sprintf("%s(%s) %s %d/%d", w.def.ID, w.id, w.state, w.ammo.Clip(), w.ammo.Reserve())
}
