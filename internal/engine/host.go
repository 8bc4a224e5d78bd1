// Package engine provides a headless implementation of the weapon host: the
// pawn lookup, visual attachment bookkeeping, line traces and projectiles
// that a rendering engine would otherwise supply.
package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// Pawns resolves owner back-references. *pawn.Registry satisfies it.
type Pawns interface {
	Owner(id weapon.PawnID) (weapon.Owner, bool)
}

// Attachment records where a weapon visual is attached.
type Attachment struct {
	Mesh  weapon.MeshHandle
	Point string
}

// OwnerChangedFunc is notified when a weapon's owner back-reference changes.
type OwnerChangedFunc func(w weapon.ID, pawn weapon.PawnID)

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithTracer routes instant-hit traces to t.
func WithTracer(t weapon.Tracer) Option {
	return func(h *Host) { h.tracer = t }
}

// WithSpawner routes projectile spawns to s.
func WithSpawner(s weapon.ProjectileSpawner) Option {
	return func(h *Host) { h.spawner = s }
}

// WithAnimations sets fixed animation lengths. Animations without an entry
// report zero, so the weapon falls back to its configured timing.
func WithAnimations(lengths map[weapon.Animation]time.Duration) Option {
	return func(h *Host) {
		for k, v := range lengths {
			h.animations[k] = v
		}
	}
}

// Host is the headless weapon host. It implements weapon.Host,
// weapon.Animator, weapon.Tracer and weapon.ProjectileSpawner.
//
// Host is not safe for concurrent use; it lives on the tick thread.
type Host struct {
	pawns      Pawns
	logger     *zap.Logger
	tracer     weapon.Tracer
	spawner    weapon.ProjectileSpawner
	animations map[weapon.Animation]time.Duration

	attached map[weapon.ID]Attachment
	owners   map[weapon.ID]weapon.PawnID
	watchers []OwnerChangedFunc
}

// NewHost returns a Host resolving owners through pawns.
//
// Precondition: pawns must not be nil.
func NewHost(pawns Pawns, opts ...Option) *Host {
	h := &Host{
		pawns:      pawns,
		logger:     zap.NewNop(),
		animations: make(map[weapon.Animation]time.Duration),
		attached:   make(map[weapon.ID]Attachment),
		owners:     make(map[weapon.ID]weapon.PawnID),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Owner resolves a pawn back-reference. The empty PawnID never resolves.
func (h *Host) Owner(id weapon.PawnID) (weapon.Owner, bool) {
	if id == "" {
		return nil, false
	}
	return h.pawns.Owner(id)
}

// AttachVisual attaches the weapon visual to mesh at point, replacing any
// previous attachment.
func (h *Host) AttachVisual(id weapon.ID, mesh weapon.MeshHandle, point string) {
	h.attached[id] = Attachment{Mesh: mesh, Point: point}
	h.logger.Debug("weapon visual attached",
		zap.String("weapon", string(id)),
		zap.Uint64("mesh", uint64(mesh)),
		zap.String("point", point),
	)
}

// DetachVisual hides the weapon visual. Detaching a detached weapon is a no-op.
func (h *Host) DetachVisual(id weapon.ID) {
	if _, ok := h.attached[id]; !ok {
		return
	}
	delete(h.attached, id)
	h.logger.Debug("weapon visual detached", zap.String("weapon", string(id)))
}

// OwnerChanged records the back-reference and notifies subscribers.
func (h *Host) OwnerChanged(id weapon.ID, pawn weapon.PawnID) {
	if pawn == "" {
		delete(h.owners, id)
	} else {
		h.owners[id] = pawn
	}
	for _, fn := range h.watchers {
		fn(id, pawn)
	}
}

// OnOwnerChanged subscribes fn to owner changes.
func (h *Host) OnOwnerChanged(fn OwnerChangedFunc) {
	h.watchers = append(h.watchers, fn)
}

// Attachment returns the current attachment of weapon id.
func (h *Host) Attachment(id weapon.ID) (Attachment, bool) {
	a, ok := h.attached[id]
	return a, ok
}

// OwnerOf returns the recorded owner of weapon id.
func (h *Host) OwnerOf(id weapon.ID) (weapon.PawnID, bool) {
	p, ok := h.owners[id]
	return p, ok
}

// PlayWeaponAnimation returns the configured animation length, or zero.
func (h *Host) PlayWeaponAnimation(id weapon.ID, anim weapon.Animation) time.Duration {
	d := h.animations[anim]
	if d > 0 {
		h.logger.Debug("weapon animation started",
			zap.String("weapon", string(id)),
			zap.Stringer("animation", anim),
			zap.Duration("length", d),
		)
	}
	return d
}

// StopWeaponAnimation is a no-op beyond logging; the headless host has no
// animation state to unwind.
func (h *Host) StopWeaponAnimation(id weapon.ID, anim weapon.Animation) {
	h.logger.Debug("weapon animation stopped",
		zap.String("weapon", string(id)),
		zap.Stringer("animation", anim),
	)
}

// Trace forwards to the configured tracer. Without one every trace misses.
func (h *Host) Trace(origin, direction weapon.Vec3, maxRange float64) (weapon.Impact, bool) {
	if h.tracer == nil {
		return weapon.Impact{}, false
	}
	return h.tracer.Trace(origin, direction, maxRange)
}

// SpawnProjectile forwards to the configured spawner. Without one the
// projectile is dropped.
func (h *Host) SpawnProjectile(p weapon.Projectile) {
	if h.spawner == nil {
		h.logger.Warn("projectile dropped: no spawner", zap.String("weapon", string(p.Weapon)))
		return
	}
	h.spawner.SpawnProjectile(p)
}
