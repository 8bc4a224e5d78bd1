package weapon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// plainHost can trace but cannot spawn projectiles.
type plainHost struct{ *fakeHost }

func TestInstantResolver_NoTracerMisses(t *testing.T) {
	r := weapon.InstantResolver{Range: 100, Damage: 10}
	res := r.Resolve(weapon.Shot{})
	assert.False(t, res.Hit)
	assert.Zero(t, res.Damage)
}

func TestInstantResolver_AdjustSeesImpact(t *testing.T) {
	var seen weapon.Impact
	r := weapon.InstantResolver{
		Tracer: newFakeHost(),
		Range:  500,
		Damage: 12,
		Adjust: func(_ weapon.Shot, impact weapon.Impact, base float64) float64 {
			seen = impact
			return base - 2
		},
	}
	res := r.Resolve(weapon.Shot{Origin: weapon.Vec3{X: 5}})
	require.True(t, res.Hit)
	assert.Equal(t, 10.0, res.Damage)
	assert.Equal(t, "dummy", seen.Target)
	assert.Equal(t, weapon.Vec3{X: 105}, res.Impact.Point)
}

func TestProjectileResolver_NoSpawner(t *testing.T) {
	r := weapon.ProjectileResolver{Speed: 100, Damage: 50}
	assert.Equal(t, weapon.Resolution{}, r.Resolve(weapon.Shot{}))
}

func TestNewResolver_SelectsByKind(t *testing.T) {
	instant := weapon.NewResolver(weapon.NewDef("rifle", "Rifle"), newFakeHost(), nil)
	ir, ok := instant.(weapon.InstantResolver)
	require.True(t, ok)
	assert.NotNil(t, ir.Tracer)
	assert.Equal(t, 10000.0, ir.Range)

	def := weapon.NewDef("launcher", "Launcher")
	def.Kind = weapon.KindProjectile
	def.ProjectileSpeed = 2000
	projectile := weapon.NewResolver(def, &spawnHost{fakeHost: newFakeHost()}, nil)
	pr, ok := projectile.(weapon.ProjectileResolver)
	require.True(t, ok)
	assert.NotNil(t, pr.Spawner)
	assert.Equal(t, 2000.0, pr.Speed)
}

func TestNewResolver_HostWithoutCapabilities(t *testing.T) {
	def := weapon.NewDef("launcher", "Launcher")
	def.Kind = weapon.KindProjectile
	def.ProjectileSpeed = 2000
	pr := weapon.NewResolver(def, plainHost{newFakeHost()}, nil).(weapon.ProjectileResolver)
	assert.Nil(t, pr.Spawner)
}
