package weapon

// Impact is the result of a successful trace.
type Impact struct {
	Target   string
	Point    Vec3
	Distance float64
}

// Resolution is the outcome of resolving one shot.
type Resolution struct {
	Hit     bool
	Impact  Impact
	Damage  float64
	Spawned bool
}

// Resolver turns a fired shot into a Resolution according to weapon kind.
type Resolver interface {
	Resolve(shot Shot) Resolution
}

// Tracer is optionally implemented by a Host that can line-trace the world.
type Tracer interface {
	Trace(origin, direction Vec3, maxRange float64) (Impact, bool)
}

// Projectile is a spawn request for a projectile weapon.
type Projectile struct {
	Weapon    ID
	Pawn      PawnID
	Origin    Vec3
	Direction Vec3
	Speed     float64
	Damage    float64
}

// ProjectileSpawner is optionally implemented by a Host that can spawn projectiles.
type ProjectileSpawner interface {
	SpawnProjectile(p Projectile)
}

// DamageFunc adjusts the base damage of a hit.
type DamageFunc func(shot Shot, impact Impact, base float64) float64

// InstantResolver traces along the aim and applies damage on hit.
type InstantResolver struct {
	Tracer Tracer
	Range  float64
	Damage float64
	Adjust DamageFunc
}

// Resolve traces the shot. Without a Tracer every shot misses.
func (r InstantResolver) Resolve(shot Shot) Resolution {
	if r.Tracer == nil {
		return Resolution{}
	}
	impact, ok := r.Tracer.Trace(shot.Origin, shot.Direction, r.Range)
	if !ok {
		return Resolution{}
	}
	dmg := r.Damage
	if r.Adjust != nil {
		dmg = r.Adjust(shot, impact, dmg)
	}
	return Resolution{Hit: true, Impact: impact, Damage: dmg}
}

// ProjectileResolver hands the shot to a spawner; damage is applied by the
// projectile when it lands.
type ProjectileResolver struct {
	Spawner ProjectileSpawner
	Speed   float64
	Damage  float64
}

// Resolve spawns the projectile. Without a Spawner nothing is spawned.
func (r ProjectileResolver) Resolve(shot Shot) Resolution {
	if r.Spawner == nil {
		return Resolution{}
	}
	r.Spawner.SpawnProjectile(Projectile{
		Weapon:    shot.Weapon,
		Pawn:      shot.Pawn,
		Origin:    shot.Origin.Add(shot.MuzzleOffset),
		Direction: shot.Direction,
		Speed:     r.Speed,
		Damage:    r.Damage,
	})
	return Resolution{Spawned: true, Damage: r.Damage}
}

// NewResolver selects the resolver for def.Kind, using host as Tracer or
// ProjectileSpawner when it implements them.
func NewResolver(def *Def, host Host, adjust DamageFunc) Resolver {
	switch def.Kind {
	case KindProjectile:
		spawner, _ := host.(ProjectileSpawner)
		return ProjectileResolver{Spawner: spawner, Speed: def.ProjectileSpeed, Damage: def.Damage}
	default:
		tracer, _ := host.(Tracer)
		return InstantResolver{Tracer: tracer, Range: def.Range, Damage: def.Damage, Adjust: adjust}
	}
}
