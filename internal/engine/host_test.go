package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/shooter/internal/engine"
	"github.com/cory-johannsen/shooter/internal/game/pawn"
	"github.com/cory-johannsen/shooter/internal/game/schedule"
	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

func newRegistry(t *testing.T) (*pawn.Registry, *pawn.Character) {
	t.Helper()
	reg := pawn.NewRegistry()
	c := pawn.New(pawn.Params{ID: "p1", Name: "Player", Mesh: 42}, nil)
	require.NoError(t, reg.Register(c))
	return reg, c
}

func TestHost_OwnerLookup(t *testing.T) {
	reg, c := newRegistry(t)
	h := engine.NewHost(reg)

	owner, ok := h.Owner("p1")
	require.True(t, ok)
	assert.Equal(t, c.WeaponAttachPoint(), owner.WeaponAttachPoint())

	_, ok = h.Owner("")
	assert.False(t, ok)
	_, ok = h.Owner("missing")
	assert.False(t, ok)
}

func TestHost_DetachIsIdempotent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg, _ := newRegistry(t)
	h := engine.NewHost(reg, engine.WithLogger(zap.New(core)))

	h.DetachVisual("w1")
	h.AttachVisual("w1", 42, "WeaponPoint")
	a, ok := h.Attachment("w1")
	require.True(t, ok)
	assert.Equal(t, engine.Attachment{Mesh: 42, Point: "WeaponPoint"}, a)

	h.DetachVisual("w1")
	h.DetachVisual("w1")
	_, ok = h.Attachment("w1")
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("weapon visual detached").Len())
}

func TestHost_OwnerChangedFansOut(t *testing.T) {
	reg, _ := newRegistry(t)
	h := engine.NewHost(reg)
	var seen []weapon.PawnID
	h.OnOwnerChanged(func(_ weapon.ID, p weapon.PawnID) { seen = append(seen, p) })

	h.OwnerChanged("w1", "p1")
	owner, ok := h.OwnerOf("w1")
	require.True(t, ok)
	assert.Equal(t, weapon.PawnID("p1"), owner)

	h.OwnerChanged("w1", "")
	_, ok = h.OwnerOf("w1")
	assert.False(t, ok)
	assert.Equal(t, []weapon.PawnID{"p1", ""}, seen)
}

func TestHost_Animations(t *testing.T) {
	reg, _ := newRegistry(t)
	h := engine.NewHost(reg, engine.WithAnimations(map[weapon.Animation]time.Duration{
		weapon.AnimReload: 2 * time.Second,
	}))
	assert.Equal(t, 2*time.Second, h.PlayWeaponAnimation("w1", weapon.AnimReload))
	assert.Zero(t, h.PlayWeaponAnimation("w1", weapon.AnimEquip))
}

func TestHost_WithoutCapabilities(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	reg, _ := newRegistry(t)
	h := engine.NewHost(reg, engine.WithLogger(zap.New(core)))

	_, ok := h.Trace(weapon.Vec3{}, weapon.Vec3{X: 1}, 100)
	assert.False(t, ok)
	h.SpawnProjectile(weapon.Projectile{Weapon: "w1"})
	assert.Equal(t, 1, logs.FilterMessage("projectile dropped: no spawner").Len())
}

func TestHost_DrivesWeaponAgainstWorld(t *testing.T) {
	reg, c := newRegistry(t)
	world := engine.NewWorld(nil)
	require.NoError(t, world.AddTarget(engine.Target{Name: "dummy", Center: weapon.Vec3{X: 500}, Radius: 20, Health: 25}))
	h := engine.NewHost(reg, engine.WithTracer(world), engine.WithSpawner(world))
	sched := schedule.New()

	def := weapon.NewDef("pistol", "Pistol")
	def.Config.TimeBetweenShots = 0
	c.SpawnDefaultInventory([]*weapon.Def{def}, func(d *weapon.Def) *weapon.Weapon {
		return weapon.New(d, sched, h, weapon.WithListener(world))
	})
	w := c.CurrentWeapon()
	require.NotNil(t, w)
	a, ok := h.Attachment(w.ID())
	require.True(t, ok, "equip attaches the visual immediately")
	assert.Equal(t, weapon.MeshHandle(42), a.Mesh)

	sched.Advance(weapon.DefaultEquipDuration)
	require.True(t, w.IsEquipped())

	var kills int
	world.OnHit(func(hit engine.Hit) {
		if hit.Killed {
			kills++
		}
	})
	for i := 0; i < 3; i++ {
		require.True(t, c.StartFire())
		c.StopFire()
	}
	target, _ := world.Target("dummy")
	assert.Zero(t, target.Health)
	assert.Equal(t, 1, kills)

	c.DestroyInventory()
	_, ok = h.Attachment(w.ID())
	assert.False(t, ok)
	_, ok = h.OwnerOf(w.ID())
	assert.False(t, ok)
}
