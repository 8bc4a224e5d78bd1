package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/shooter/internal/game/weapon"
	"github.com/cory-johannsen/shooter/internal/scripting"
)

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	mgr := scripting.NewManager(zap.New(core))
	t.Cleanup(mgr.Close)
	return mgr, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func TestManager_LoadWeapon_CallsHook(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		function test_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, mgr.LoadWeapon("rifle", dir, 0))
	ret, err := mgr.CallHook("rifle", "test_hook", lua.LNumber(3), lua.LNumber(4))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(7), ret)
}

func TestManager_LoadWeapon_EmptyID(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Error(t, mgr.LoadWeapon("", t.TempDir(), 0))
}

func TestManager_CallHook_MissingHook_NoOp(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "empty.lua", `-- no functions`)
	require.NoError(t, mgr.LoadWeapon("rifle", dir, 0))
	ret, err := mgr.CallHook("rifle", "nonexistent_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestManager_CallHook_UnknownWeapon_ReturnsNil(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret, err := mgr.CallHook("no_such_weapon", "some_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.False(t, mgr.Has("no_such_weapon"))
}

func TestManager_CallHook_RuntimeError_WarnLogNoPanic(t *testing.T) {
	mgr, logs := newTestManager(t)
	dir := writeTempLua(t, "bad.lua", `
		function bad_hook()
			error("intentional error")
		end
	`)
	require.NoError(t, mgr.LoadWeapon("rifle", dir, 0))
	ret, err := mgr.CallHook("rifle", "bad_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestManager_LoadGlobal_CallHookFallback(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "global.lua", `
		function global_hook()
			return 42
		end
	`)
	require.NoError(t, mgr.LoadGlobal(dir, 0))
	ret, err := mgr.CallHook("unknown", "global_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(42), ret)

	own := writeTempLua(t, "own.lua", `function other() return 1 end`)
	require.NoError(t, mgr.LoadWeapon("rifle", own, 0))
	ret, err = mgr.CallHook("rifle", "global_hook")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(42), ret, "hooks missing from the weapon VM fall back to global")
}

func TestManager_LoadWeapon_InvalidLua_ReturnsError(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "bad.lua", `this is not valid lua @@@@`)
	assert.Error(t, mgr.LoadWeapon("bad", dir, 0))
}

func TestManager_LoadWeapon_MissingDir(t *testing.T) {
	mgr, _ := newTestManager(t)
	assert.Error(t, mgr.LoadWeapon("rifle", "/nonexistent/scripts", 0))
}

func TestManager_LoadWeapon_MultipleFiles_OrderedByName(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.lua"), []byte(`base_val = 10`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.lua"), []byte(`
		function get_val() return base_val end
	`), 0644))
	require.NoError(t, mgr.LoadWeapon("ordered", dir, 0))
	ret, err := mgr.CallHook("ordered", "get_val")
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(10), ret)
}

// TestManager_BudgetIsPerCall verifies the instruction limit applies to each
// hook call rather than to the lifetime of the VM.
func TestManager_BudgetIsPerCall(t *testing.T) {
	mgr, logs := newTestManager(t)
	dir := writeTempLua(t, "loop.lua", `
		function work(n)
			local s = 0
			for i = 1, n do s = s + i end
			return s
		end
	`)
	require.NoError(t, mgr.LoadWeapon("rifle", dir, 2_000))
	for i := 0; i < 50; i++ {
		ret, err := mgr.CallHook("rifle", "work", lua.LNumber(100))
		require.NoError(t, err)
		require.Equal(t, lua.LNumber(5050), ret, "call %d", i)
	}

	ret, err := mgr.CallHook("rifle", "work", lua.LNumber(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())

	ret, err = mgr.CallHook("rifle", "work", lua.LNumber(10))
	require.NoError(t, err)
	assert.Equal(t, lua.LNumber(55), ret, "the VM stays usable after a budget overrun")
}

func TestManager_LoadDir_GlobalAndPerWeapon(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "global.lua", `function on_hit(shot, impact, base) return base + 1 end`)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sniper"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sniper", "hit.lua"),
		[]byte(`function on_hit(shot, impact, base) return base * 10 end`), 0644))
	require.NoError(t, mgr.LoadDir(dir, 0))

	assert.Equal(t, 11.0, mgr.DamageFunc("rifle")(weapon.Shot{}, weapon.Impact{}, 10))
	assert.Equal(t, 100.0, mgr.DamageFunc("sniper")(weapon.Shot{}, weapon.Impact{}, 10))
}

func TestManager_DamageFunc(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hit.lua", `
		function on_hit(shot, impact, base)
			if impact.target == "armor" then return "blocked" end
			if impact.target == "shield" then return -5 end
			if shot.pawn ~= "p1" then return 0 end
			return base + impact.distance / 100 + shot.burst
		end
	`)
	require.NoError(t, mgr.LoadWeapon("rifle", dir, 0))
	fn := mgr.DamageFunc("rifle")

	shot := weapon.Shot{Pawn: "p1", Burst: 2}
	assert.Equal(t, 15.0, fn(shot, weapon.Impact{Target: "dummy", Distance: 300}, 10))
	assert.Equal(t, 10.0, fn(shot, weapon.Impact{Target: "armor"}, 10), "non-numeric keeps base")
	assert.Equal(t, 0.0, fn(shot, weapon.Impact{Target: "shield"}, 10), "negative clamps to zero")
	assert.Equal(t, 7.0, mgr.DamageFunc("pistol")(shot, weapon.Impact{}, 7), "no VM keeps base")
}

func TestManager_Close_ReleasesVMs(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "init.lua", `function get_x() return 1 end`)
	require.NoError(t, mgr.LoadWeapon("closeweapon", dir, 0))
	mgr.Close()
	ret, err := mgr.CallHook("closeweapon", "get_x")
	assert.NoError(t, err)
	assert.Equal(t, lua.LNil, ret)
}

func TestNewManager_PanicsOnNilLogger(t *testing.T) {
	assert.Panics(t, func() {
		scripting.NewManager(nil)
	})
}

func TestProperty_CallHookMissingWeaponNeverPanics(t *testing.T) {
	mgr, _ := newTestManager(t)
	rapid.Check(t, func(rt *rapid.T) {
		defID := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "weapon")
		hook := rapid.StringMatching(`[a-z]{1,10}`).Draw(rt, "hook")
		count := rapid.IntRange(1, 20).Draw(rt, "count")
		for i := 0; i < count; i++ {
			mgr.CallHook(defID, hook) //nolint:errcheck
		}
	})
}

func TestProperty_CallHookConcurrentSameWeapon_NoRace(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := writeTempLua(t, "hooks.lua", `
		function concurrent_hook(a, b)
			return a + b
		end
	`)
	require.NoError(t, mgr.LoadWeapon("conc", dir, 0))

	const goroutines = 10
	const callsEach = 5
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsEach; j++ {
				ret, err := mgr.CallHook("conc", "concurrent_hook", lua.LNumber(1), lua.LNumber(2))
				assert.NoError(t, err)
				assert.Equal(t, lua.LNumber(3), ret)
			}
		}()
	}
	wg.Wait()
}
