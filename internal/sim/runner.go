package sim

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/shooter/internal/engine"
	"github.com/cory-johannsen/shooter/internal/game/pawn"
	"github.com/cory-johannsen/shooter/internal/game/schedule"
	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// DefaultStep is the virtual tick length when none is configured.
const DefaultStep = 16 * time.Millisecond

// AmmoStore loads and saves per-pawn ammo. *postgres.AmmoRepository
// satisfies it.
type AmmoStore interface {
	Load(ctx context.Context, pawnID weapon.PawnID) ([]weapon.Snapshot, error)
	Save(ctx context.Context, pawnID weapon.PawnID, snaps []weapon.Snapshot) error
}

// DamageSource supplies per-definition damage adjustments.
// *scripting.Manager satisfies it.
type DamageSource interface {
	DamageFunc(defID string) weapon.DamageFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger passed to every component. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithStep sets the virtual tick length.
func WithStep(d time.Duration) Option {
	return func(r *Runner) { r.step = d }
}

// WithCatchUp is forwarded to every weapon.
func WithCatchUp(enabled bool) Option {
	return func(r *Runner) { r.catchUp = enabled }
}

// WithEquipFallback is forwarded to every weapon.
func WithEquipFallback(d time.Duration) Option {
	return func(r *Runner) { r.equipFallback = d }
}

// WithDamageSource routes instant hits through src.
func WithDamageSource(src DamageSource) Option {
	return func(r *Runner) { r.damage = src }
}

// WithAmmoStore restores ammo before a run and saves it afterwards.
func WithAmmoStore(s AmmoStore) Option {
	return func(r *Runner) { r.store = s }
}

// WithListener adds a listener to every weapon, e.g. a HUD feed.
func WithListener(l weapon.Listener) Option {
	return func(r *Runner) { r.listeners = append(r.listeners, l) }
}

// Runner plays scenarios against a fixed set of weapon definitions.
type Runner struct {
	defs          map[string]*weapon.Def
	logger        *zap.Logger
	step          time.Duration
	catchUp       bool
	equipFallback time.Duration
	damage        DamageSource
	store         AmmoStore
	listeners     weapon.Listeners
}

// NewRunner returns a Runner over defs.
func NewRunner(defs []*weapon.Def, opts ...Option) *Runner {
	r := &Runner{
		defs:          weapon.Index(defs),
		logger:        zap.NewNop(),
		step:          DefaultStep,
		catchUp:       true,
		equipFallback: weapon.DefaultEquipDuration,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.step <= 0 {
		r.step = DefaultStep
	}
	return r
}

// session is the per-run object graph.
type session struct {
	sched *schedule.Scheduler
	world *engine.World
	host  *engine.Host
	pawn  *pawn.Character
	rec   *recorder
}

// Run plays sc to completion on a fresh virtual clock.
//
// Precondition: sc passes Validate and every inventory entry names a known
// definition.
// Postcondition: Result.Ammo holds the final ammo of every weapon; with an
// AmmoStore configured it has also been saved.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	s, err := r.start(ctx, sc, schedule.New())
	if err != nil {
		return nil, err
	}
	defer s.teardown()

	start := time.Now()
	for elapsed := time.Duration(0); elapsed < sc.Duration; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dt := min(r.step, sc.Duration-elapsed)
		s.sched.Advance(dt)
		s.world.Tick(dt)
		elapsed += dt
	}

	res := s.rec.result
	res.Targets = s.world.Targets()
	res.Ammo = s.pawn.Snapshots()
	if r.store != nil {
		if err := r.store.Save(ctx, s.pawn.ID(), res.Ammo); err != nil {
			return nil, fmt.Errorf("saving ammo: %w", err)
		}
	}
	r.logger.Info("scenario complete",
		zap.String("scenario", sc.Name),
		zap.Duration("virtual", sc.Duration),
		zap.Duration("wall", time.Since(start)),
		zap.Int("shots", res.Shots),
		zap.Int("hits", len(res.Hits)),
	)
	return res, nil
}

// start builds the session on sched, spawns and restores the inventory and
// schedules the scenario's events.
func (r *Runner) start(ctx context.Context, sc *Scenario, sched *schedule.Scheduler) (*session, error) {
	inventory := make([]*weapon.Def, 0, len(sc.Inventory))
	for _, id := range sc.Inventory {
		def, ok := r.defs[id]
		if !ok {
			return nil, fmt.Errorf("scenario %q: unknown weapon %q", sc.Name, id)
		}
		inventory = append(inventory, def)
	}

	s, err := r.build(sc, sched)
	if err != nil {
		return nil, err
	}
	s.pawn.SpawnDefaultInventory(inventory, func(def *weapon.Def) *weapon.Weapon {
		return r.newWeapon(def, s)
	})
	if err := r.restore(ctx, s.pawn); err != nil {
		s.teardown()
		return nil, err
	}

	for _, ev := range sc.Events {
		s.sched.Schedule(ev.At, func() { r.apply(s, ev) })
	}
	return s, nil
}

// teardown destroys the inventory without recording the resulting switches
// and state changes.
func (s *session) teardown() {
	s.rec.closed = true
	s.pawn.DestroyInventory()
}

func (r *Runner) build(sc *Scenario, sched *schedule.Scheduler) (*session, error) {
	world := engine.NewWorld(r.logger)
	for _, t := range sc.Targets {
		if err := world.AddTarget(engine.Target{
			Name:   t.Name,
			Center: t.Center.Vec3(),
			Radius: t.Radius,
			Health: t.Health,
		}); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
	}

	c := pawn.New(pawn.Params{
		ID:           weapon.PawnID(sc.Pawn.ID),
		Name:         sc.Pawn.Name,
		AttachPoint:  sc.Pawn.AttachPoint,
		Mesh:         weapon.MeshHandle(sc.Pawn.Mesh),
		MuzzleOffset: sc.Pawn.MuzzleOffset.Vec3(),
	}, r.logger)
	c.SetAim(sc.Pawn.Origin.Vec3(), sc.Pawn.Direction.Vec3())
	reg := pawn.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, err
	}
	host := engine.NewHost(reg,
		engine.WithLogger(r.logger),
		engine.WithTracer(world),
		engine.WithSpawner(world),
	)

	rec := &recorder{clock: sched, result: &Result{}}
	world.OnHit(rec.hit)
	c.OnCurrentWeaponChanged(func(_ *pawn.Character, cur, prev *weapon.Weapon) {
		rec.weaponChanged(cur, prev)
	})
	return &session{sched: sched, world: world, host: host, pawn: c, rec: rec}, nil
}

func (r *Runner) newWeapon(def *weapon.Def, s *session) *weapon.Weapon {
	opts := []weapon.Option{
		weapon.WithLogger(r.logger),
		weapon.WithListener(s.world),
		weapon.WithListener(s.rec),
		weapon.WithCatchUp(r.catchUp),
		weapon.WithEquipFallback(r.equipFallback),
	}
	for _, l := range r.listeners {
		opts = append(opts, weapon.WithListener(l))
	}
	if r.damage != nil {
		opts = append(opts, weapon.WithDamageFunc(r.damage.DamageFunc(def.ID)))
	}
	return weapon.New(def, s.sched, s.host, opts...)
}

func (r *Runner) restore(ctx context.Context, c *pawn.Character) error {
	if r.store == nil {
		return nil
	}
	snaps, err := r.store.Load(ctx, c.ID())
	if err != nil {
		return fmt.Errorf("loading ammo: %w", err)
	}
	if len(snaps) == 0 {
		return nil
	}
	if err := c.RestoreSnapshots(snaps); err != nil {
		r.logger.Warn("ammo restore incomplete", zap.String("pawn", string(c.ID())), zap.Error(err))
	}
	return nil
}

func (r *Runner) apply(s *session, ev Event) {
	c := s.pawn
	switch ev.Action {
	case ActionStartFire:
		s.rec.add(KindInput, defID(c.CurrentWeapon()), "start_fire accepted=%v", c.StartFire())
	case ActionStopFire:
		c.StopFire()
		s.rec.add(KindInput, defID(c.CurrentWeapon()), "stop_fire")
	case ActionReload:
		s.rec.add(KindInput, defID(c.CurrentWeapon()), "reload accepted=%v", c.Reload())
	case ActionEquip:
		w, ok := c.FindWeapon(ev.Weapon)
		if !ok {
			s.rec.add(KindInput, ev.Weapon, "equip rejected: not in inventory")
			return
		}
		if err := c.EquipWeapon(w); err != nil {
			s.rec.add(KindInput, ev.Weapon, "equip rejected: %v", err)
			return
		}
		s.rec.add(KindInput, ev.Weapon, "equip")
	case ActionNextWeapon:
		c.NextWeapon()
		s.rec.add(KindInput, defID(c.CurrentWeapon()), "next_weapon")
	case ActionPrevWeapon:
		c.PrevWeapon()
		s.rec.add(KindInput, defID(c.CurrentWeapon()), "prev_weapon")
	case ActionGiveAmmo:
		w := c.CurrentWeapon()
		if ev.Weapon != "" {
			w, _ = c.FindWeapon(ev.Weapon)
		}
		if w == nil {
			s.rec.add(KindInput, ev.Weapon, "give_ammo rejected: no weapon")
			return
		}
		left := w.GiveAmmo(ev.Amount)
		s.rec.add(KindInput, defID(w), "give_ammo amount=%d leftover=%d", ev.Amount, left)
	case ActionAim:
		origin, _ := c.Aim()
		if ev.Origin != nil {
			origin = ev.Origin.Vec3()
		}
		c.SetAim(origin, ev.Direction.Vec3())
		s.rec.add(KindInput, defID(c.CurrentWeapon()), "aim")
	}
}
