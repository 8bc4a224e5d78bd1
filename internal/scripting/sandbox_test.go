package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/shooter/internal/scripting"
)

func TestSandbox_Restrictions(t *testing.T) {
	sb := scripting.NewSandbox(0)
	defer sb.Close()

	for _, name := range []string{"os", "io", "debug"} {
		assert.Equal(t, lua.LNil, sb.L.GetGlobal(name), "library %s should not load", name)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require"} {
		assert.Equal(t, lua.LNil, sb.L.GetGlobal(name), "global %s should be stripped", name)
	}
}

func TestSandbox_SafeLibsAvailable(t *testing.T) {
	sb := scripting.NewSandbox(0)
	defer sb.Close()
	assert.NoError(t, sb.DoString(`
		assert(math.sqrt(16) == 4)
		assert(string.format("%d", 7) == "7")
		local t = {3, 1, 2}
		table.sort(t)
		assert(t[1] == 1)
	`))
}

func TestSandbox_RunawayScriptStops(t *testing.T) {
	sb := scripting.NewSandbox(10)
	defer sb.Close()
	assert.Error(t, sb.DoString(`while true do end`))
}

// A sandbox keeps working after a run exhausts its budget, and each run gets
// the full allowance again.
func TestSandbox_BudgetResetsBetweenRuns(t *testing.T) {
	sb := scripting.NewSandbox(500)
	defer sb.Close()

	require.Error(t, sb.DoString(`while true do end`))
	for i := 0; i < 20; i++ {
		require.NoError(t, sb.DoString(`local s = 0 for i = 1, 10 do s = s + i end`), "run %d", i)
	}
}

func TestSandbox_RunExposesState(t *testing.T) {
	sb := scripting.NewSandbox(0)
	defer sb.Close()
	require.NoError(t, sb.DoString(`answer = 6 * 7`))

	var got lua.LValue
	require.NoError(t, sb.Run(func(L *lua.LState) error {
		got = L.GetGlobal("answer")
		return nil
	}))
	assert.Equal(t, lua.LNumber(42), got)
}

func TestProperty_RunawayAlwaysStops(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 50).Draw(t, "limit")
		sb := scripting.NewSandbox(limit)
		defer sb.Close()
		if err := sb.DoString(`while true do end`); err == nil {
			t.Fatalf("expected error with limit=%d", limit)
		}
	})
}
