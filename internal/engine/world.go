package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// DefaultProjectileLifetime bounds how long a projectile flies before it is
// discarded.
const DefaultProjectileLifetime = 10 * time.Second

// Target is a spherical damageable object in the world.
type Target struct {
	Name   string
	Center weapon.Vec3
	Radius float64
	Health float64
}

// Alive reports whether the target can still be hit.
func (t Target) Alive() bool {
	return t.Health > 0
}

// Hit describes damage applied to a target.
type Hit struct {
	Target     string
	Weapon     weapon.ID
	Pawn       weapon.PawnID
	Damage     float64
	Point      weapon.Vec3
	Projectile bool
	Killed     bool
}

// HitFunc is notified for every applied hit.
type HitFunc func(Hit)

type flight struct {
	proj weapon.Projectile
	pos  weapon.Vec3
	dir  weapon.Vec3
	age  time.Duration
}

// World is a minimal headless scene: sphere targets that can be traced and
// projectiles that move each tick. It implements weapon.Tracer,
// weapon.ProjectileSpawner and weapon.Listener (applying instant-hit damage).
//
// World is not safe for concurrent use; it lives on the tick thread.
type World struct {
	weapon.NopListener

	targets  map[string]*Target
	flights  []*flight
	lifetime time.Duration
	watchers []HitFunc
	logger   *zap.Logger
}

// NewWorld returns an empty world.
func NewWorld(logger *zap.Logger) *World {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &World{
		targets:  make(map[string]*Target),
		lifetime: DefaultProjectileLifetime,
		logger:   logger,
	}
}

// SetProjectileLifetime overrides DefaultProjectileLifetime.
func (w *World) SetProjectileLifetime(d time.Duration) {
	w.lifetime = d
}

// AddTarget places t in the world.
//
// Precondition: t.Name is unique, t.Radius > 0 and t.Health > 0.
func (w *World) AddTarget(t Target) error {
	if t.Name == "" {
		return fmt.Errorf("engine: target name must not be empty")
	}
	if _, exists := w.targets[t.Name]; exists {
		return fmt.Errorf("engine: target %q already exists", t.Name)
	}
	if t.Radius <= 0 || t.Health <= 0 {
		return fmt.Errorf("engine: target %q needs radius > 0 and health > 0", t.Name)
	}
	w.targets[t.Name] = &t
	return nil
}

// Target returns a copy of the named target.
func (w *World) Target(name string) (Target, bool) {
	t, ok := w.targets[name]
	if !ok {
		return Target{}, false
	}
	return *t, true
}

// Targets returns copies of every target ordered by name.
func (w *World) Targets() []Target {
	out := make([]Target, 0, len(w.targets))
	for _, t := range w.targets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// OnHit subscribes fn to applied hits.
func (w *World) OnHit(fn HitFunc) {
	w.watchers = append(w.watchers, fn)
}

// InFlight returns the number of live projectiles.
func (w *World) InFlight() int {
	return len(w.flights)
}

// Trace returns the nearest living target the ray from origin along direction
// meets within maxRange.
func (w *World) Trace(origin, direction weapon.Vec3, maxRange float64) (weapon.Impact, bool) {
	dir := direction.Normalize()
	if dir.Length() == 0 {
		return weapon.Impact{}, false
	}
	best := weapon.Impact{Distance: math.Inf(1)}
	found := false
	for _, t := range w.targets {
		if !t.Alive() {
			continue
		}
		d, ok := raySphere(origin, dir, t.Center, t.Radius)
		if !ok || d > maxRange || d >= best.Distance {
			continue
		}
		best = weapon.Impact{Target: t.Name, Point: origin.Add(dir.Scale(d)), Distance: d}
		found = true
	}
	if !found {
		return weapon.Impact{}, false
	}
	return best, true
}

// raySphere returns the distance along the unit ray to the first surface
// crossing of the sphere, or the exit point when the origin is inside.
func raySphere(origin, dir, center weapon.Vec3, radius float64) (float64, bool) {
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	d := -b - sq
	if d < 0 {
		d = -b + sq
	}
	if d < 0 {
		return 0, false
	}
	return d, true
}

// OnFired applies instant-hit damage reported by a weapon.
func (w *World) OnFired(_ *weapon.Weapon, ev weapon.FireEvent) {
	if !ev.Result.Hit {
		return
	}
	w.applyHit(Hit{
		Target: ev.Result.Impact.Target,
		Weapon: ev.Weapon,
		Pawn:   ev.Pawn,
		Damage: ev.Result.Damage,
		Point:  ev.Result.Impact.Point,
	})
}

// SpawnProjectile launches p from its origin.
func (w *World) SpawnProjectile(p weapon.Projectile) {
	w.flights = append(w.flights, &flight{proj: p, pos: p.Origin, dir: p.Direction.Normalize()})
	w.logger.Debug("projectile spawned",
		zap.String("weapon", string(p.Weapon)),
		zap.Float64("speed", p.Speed),
	)
}

// Tick moves every projectile by dt, resolving impacts along the way.
func (w *World) Tick(dt time.Duration) {
	if len(w.flights) == 0 {
		return
	}
	live := w.flights[:0]
	for _, f := range w.flights {
		step := f.proj.Speed * dt.Seconds()
		if impact, ok := w.Trace(f.pos, f.dir, step); ok {
			w.applyHit(Hit{
				Target:     impact.Target,
				Weapon:     f.proj.Weapon,
				Pawn:       f.proj.Pawn,
				Damage:     f.proj.Damage,
				Point:      impact.Point,
				Projectile: true,
			})
			continue
		}
		f.pos = f.pos.Add(f.dir.Scale(step))
		f.age += dt
		if f.age >= w.lifetime {
			w.logger.Debug("projectile expired", zap.String("weapon", string(f.proj.Weapon)))
			continue
		}
		live = append(live, f)
	}
	for i := len(live); i < len(w.flights); i++ {
		w.flights[i] = nil
	}
	w.flights = live
}

func (w *World) applyHit(h Hit) {
	t, ok := w.targets[h.Target]
	if !ok || !t.Alive() {
		return
	}
	t.Health = max(0, t.Health-h.Damage)
	h.Killed = !t.Alive()
	w.logger.Debug("target hit",
		zap.String("target", h.Target),
		zap.String("weapon", string(h.Weapon)),
		zap.Float64("damage", h.Damage),
		zap.Float64("health", t.Health),
		zap.Bool("projectile", h.Projectile),
	)
	for _, fn := range w.watchers {
		fn(h)
	}
}
