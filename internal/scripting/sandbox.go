// Package scripting provides a sandboxed GopherLua environment for weapon
// hooks. It has no dependency on the state machine; hooks only see plain
// tables built from shots and impacts.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes a single
// script load or hook call may execute when no override is configured.
const DefaultInstructionLimit = 100_000

// strippedGlobals are removed from every sandbox after the safe libs load.
var strippedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"}

// opBudget is a context that cancels itself once Done has been polled
// limit times. GopherLua polls Done once per opcode while a context is set.
type opBudget struct {
	context.Context
	cancel    context.CancelFunc
	remaining atomic.Int64
}

func (b *opBudget) Done() <-chan struct{} {
	if b.remaining.Add(-1) <= 0 {
		b.cancel()
	}
	return b.Context.Done()
}

func newOpBudget(limit int) *opBudget {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &opBudget{Context: ctx, cancel: cancel}
	b.remaining.Store(int64(limit))
	return b
}

// Sandbox is one LState restricted to the base, table, string and math
// libraries. Every Run gets a fresh opcode budget, so a long-lived sandbox
// never exhausts its allowance across calls.
//
// A Sandbox is not safe for concurrent use.
type Sandbox struct {
	L     *lua.LState
	limit int
}

// NewSandbox creates a sandbox whose runs may each execute at most limit
// opcodes.
//
// Precondition: limit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: the caller must Close the sandbox.
func NewSandbox(limit int) *Sandbox {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range strippedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return &Sandbox{L: L, limit: limit}
}

// Run executes fn under a fresh opcode budget.
func (s *Sandbox) Run(fn func(L *lua.LState) error) error {
	b := newOpBudget(s.limit)
	s.L.SetContext(b)
	defer func() {
		b.cancel()
		s.L.RemoveContext()
	}()
	return fn(s.L)
}

// DoString runs src under a fresh budget.
func (s *Sandbox) DoString(src string) error {
	return s.Run(func(L *lua.LState) error { return L.DoString(src) })
}

// DoFile runs the file at path under a fresh budget.
func (s *Sandbox) DoFile(path string) error {
	return s.Run(func(L *lua.LState) error { return L.DoFile(path) })
}

// Close releases the LState.
func (s *Sandbox) Close() {
	s.L.Close()
}
