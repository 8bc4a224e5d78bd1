package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// RegisterModules registers the shooter.* Lua table into L.
//
// Precondition: L must belong to a Sandbox.
// Postcondition: the shooter global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "log", L.NewFunction(m.luaLog))
	L.SetField(mod, "falloff", L.NewFunction(luaFalloff))
	L.SetGlobal("shooter", mod)
}

// luaLog implements shooter.log(msg).
func (m *Manager) luaLog(L *lua.LState) int {
	m.logger.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

// luaFalloff implements shooter.falloff(distance, near, far, floor): a damage
// multiplier of 1 up to near, easing linearly to floor at far and beyond.
func luaFalloff(L *lua.LState) int {
	distance := float64(L.CheckNumber(1))
	near := float64(L.CheckNumber(2))
	far := float64(L.CheckNumber(3))
	floor := float64(L.OptNumber(4, 0))
	L.Push(lua.LNumber(Falloff(distance, near, far, floor)))
	return 1
}

// Falloff returns the damage multiplier at distance: 1 up to near, floor at
// far and beyond, linear in between.
func Falloff(distance, near, far, floor float64) float64 {
	switch {
	case distance <= near:
		return 1
	case distance >= far || far <= near:
		return floor
	default:
		t := (distance - near) / (far - near)
		return 1 + (floor-1)*t
	}
}

// ShotTable converts a shot into the table passed to hooks.
func ShotTable(L *lua.LState, s weapon.Shot) *lua.LTable {
	t := L.CreateTable(0, 7)
	t.RawSetString("weapon", lua.LString(s.Weapon))
	t.RawSetString("pawn", lua.LString(s.Pawn))
	t.RawSetString("kind", lua.LString(s.Kind))
	t.RawSetString("burst", lua.LNumber(s.Burst))
	t.RawSetString("time", lua.LNumber(s.Time.Seconds()))
	t.RawSetString("origin", vecTable(L, s.Origin))
	t.RawSetString("direction", vecTable(L, s.Direction))
	return t
}

// ImpactTable converts an impact into the table passed to hooks.
func ImpactTable(L *lua.LState, i weapon.Impact) *lua.LTable {
	t := L.CreateTable(0, 3)
	t.RawSetString("target", lua.LString(i.Target))
	t.RawSetString("distance", lua.LNumber(i.Distance))
	t.RawSetString("point", vecTable(L, i.Point))
	return t
}

func vecTable(L *lua.LState, v weapon.Vec3) *lua.LTable {
	t := L.CreateTable(0, 3)
	t.RawSetString("x", lua.LNumber(v.X))
	t.RawSetString("y", lua.LNumber(v.Y))
	t.RawSetString("z", lua.LNumber(v.Z))
	return t
}
