package config

import (
	"context"

	lua "github.com/yuin/gopher-lua"
)

// Resource limits for config evaluation
const (
	sandboxCallStackSize = 256
	sandboxRegistrySize  = 8 * 1024
)

// blockedGlobals are removed before user code runs. Without them a config
// cannot run commands, touch the filesystem, load other code or reach the
// debug hooks that would undo the rest of the sandbox.
var blockedGlobals = []string{
	"os",
	"io",
	"debug",
	"require",
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"collectgarbage",
}

// sandboxLuaVM strips dangerous globals from L. string, table, math and the
// basic functions (type, tostring, tonumber, pairs, ipairs) stay available.
func sandboxLuaVM(L *lua.LState) {
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

// newSandboxedVM creates a Lua VM with sandboxing applied. Evaluation stops
// when ctx is done.
func newSandboxedVM(ctx context.Context) *lua.LState {
	L := lua.NewState(lua.Options{
		CallStackSize: sandboxCallStackSize,
		RegistrySize:  sandboxRegistrySize,
	})
	sandboxLuaVM(L)
	if ctx != nil {
		L.SetContext(ctx)
	}
	return L
}
