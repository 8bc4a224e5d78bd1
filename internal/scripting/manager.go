package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/shooter/internal/game/weapon"
)

// globalKey is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when no per-weapon VM is found.
const globalKey = "__global__"

// HookOnHit is the Lua global called to adjust instant-hit damage:
//
//	function on_hit(shot, impact, base) return damage end
const HookOnHit = "on_hit"

// Manager owns one sandboxed LState per weapon definition plus an optional
// global fallback, and exposes hook dispatch.
//
// Manager is safe for concurrent CallHook. Each LState is single-threaded;
// calls are serialized by the manager lock.
type Manager struct {
	mu     sync.Mutex
	states map[string]*Sandbox
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no VMs.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		states: make(map[string]*Sandbox),
		logger: logger,
	}
}

// LoadWeapon creates a sandboxed VM for the weapon definition defID,
// registers the shooter.* module, then executes every *.lua file in scriptDir
// in lexicographic order.
//
// Precondition: defID must be non-empty; scriptDir must be a readable directory.
// Postcondition: the VM is registered; returns error on Lua load failure.
func (m *Manager) LoadWeapon(defID, scriptDir string, instLimit int) error {
	if defID == "" {
		return fmt.Errorf("scripting: LoadWeapon requires a weapon definition id")
	}
	return m.loadInto(defID, scriptDir, instLimit)
}

// LoadGlobal creates the "__global__" VM used as the CallHook fallback for
// weapons without their own scripts.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: the global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalKey, scriptDir, instLimit)
}

// LoadDir loads scriptDir as the global VM and every subdirectory named after
// a weapon definition as that weapon's VM.
//
// Precondition: scriptDir must be a readable directory.
func (m *Manager) LoadDir(scriptDir string, instLimit int) error {
	if err := m.LoadGlobal(scriptDir, instLimit); err != nil {
		return err
	}
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q: %w", scriptDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := m.LoadWeapon(e.Name(), filepath.Join(scriptDir, e.Name()), instLimit); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	sb := NewSandbox(instLimit)
	m.RegisterModules(sb.L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		sb.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := sb.DoFile(path); err != nil {
			sb.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	if old, ok := m.states[key]; ok {
		old.Close()
	}
	m.states[key] = sb
	m.mu.Unlock()

	m.logger.Debug("scripts loaded", zap.String("key", key), zap.Int("files", len(luaFiles)))
	return nil
}

// Has reports whether a VM exists for defID or the global fallback.
func (m *Manager) Has(defID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, own := m.states[defID]
	_, global := m.states[globalKey]
	return own || global
}

// CallHook calls the named Lua global function in defID's VM. If the weapon
// has no VM, or its VM does not define the hook, the __global__ VM is tried.
// Returns (LNil, nil) if the hook is not defined or no VM exists. Lua runtime
// errors, including an exhausted instruction budget, are logged at Warn level
// and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(defID, hook string, args ...lua.LValue) (lua.LValue, error) {
	return m.callHook(defID, hook, func(*lua.LState) []lua.LValue { return args })
}

// callHook is CallHook with arguments built against the LState that runs the
// hook.
func (m *Manager) callHook(defID, hook string, args func(L *lua.LState) []lua.LValue) (lua.LValue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, fn := m.lookup(defID, hook)
	if v == nil {
		return lua.LNil, nil
	}

	var ret lua.LValue = lua.LNil
	err := v.Run(func(L *lua.LState) error {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args(L)...); err != nil {
			return err
		}
		ret = L.Get(-1)
		L.Pop(1)
		return nil
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("weapon", defID),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}
	return ret, nil
}

func (m *Manager) lookup(defID, hook string) (*Sandbox, lua.LValue) {
	for _, key := range []string{defID, globalKey} {
		v, ok := m.states[key]
		if !ok {
			continue
		}
		if fn := v.L.GetGlobal(hook); fn != lua.LNil {
			return v, fn
		}
	}
	return nil, lua.LNil
}

// DamageFunc returns a weapon.DamageFunc that routes instant hits of weapon
// type defID through the on_hit hook. A missing hook, a Lua error or a
// non-numeric result leaves the base damage unchanged; negative results are
// clamped to zero.
func (m *Manager) DamageFunc(defID string) weapon.DamageFunc {
	return func(shot weapon.Shot, impact weapon.Impact, base float64) float64 {
		if !m.Has(defID) {
			return base
		}
		ret, err := m.callHook(defID, HookOnHit, func(L *lua.LState) []lua.LValue {
			return []lua.LValue{ShotTable(L, shot), ImpactTable(L, impact), lua.LNumber(base)}
		})
		if err != nil {
			return base
		}
		n, ok := ret.(lua.LNumber)
		if !ok {
			return base
		}
		return max(0, float64(n))
	}
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, v := range m.states {
		v.Close()
		delete(m.states, key)
	}
}
