package platform

import (
	"errors"

	lua "github.com/yuin/gopher-lua"
)

// luaGlobal is the name configuration code sees the host under.
const luaGlobal = "platform"

// InjectPlatformTable exposes info to configuration code as the read-only
// global "platform":
//
//	platform.os, platform.arch          runtime names ("linux", "amd64")
//	platform.is_linux / is_amd64 / is_arm64
//	platform.distro                     {id, family, version}, nil off Linux
//	platform.is_debian_family / is_alpine
//	platform.when(cond, value)          value when cond, else nil
//	platform.pick{alpine = ..., debian = ..., default = ...}
//
// pick looks its argument up by distro id, then family, then OS, then
// "default", so a single config can place the artifact per base image.
func InjectPlatformTable(L *lua.LState, info *Info) error {
	if info == nil {
		return errors.New("platform info is required")
	}

	fields := map[string]lua.LValue{
		"os":               lua.LString(info.OS),
		"arch":             lua.LString(info.Arch),
		"is_linux":         lua.LBool(info.IsLinux()),
		"is_amd64":         lua.LBool(info.IsAMD64()),
		"is_arm64":         lua.LBool(info.IsARM64()),
		"is_debian_family": lua.LBool(info.IsDebianFamily()),
		"is_alpine":        lua.LBool(info.IsAlpine()),
		"when":             L.NewFunction(luaWhen),
		"pick":             L.NewFunction(luaPick(info)),
	}

	t := L.NewTable()
	for k, v := range fields {
		t.RawSetString(k, v)
	}
	if d := info.GetDistro(); d != nil {
		distro := L.NewTable()
		distro.RawSetString("id", lua.LString(d.ID))
		distro.RawSetString("family", lua.LString(d.Family))
		distro.RawSetString("version", lua.LString(d.Version))
		t.RawSetString("distro", distro)
	}

	L.SetGlobal(luaGlobal, readOnly(L, t))
	return nil
}

func luaWhen(L *lua.LState) int {
	if L.CheckBool(1) {
		L.Push(L.Get(2))
	} else {
		L.Push(lua.LNil)
	}
	return 1
}

func luaPick(info *Info) lua.LGFunction {
	var keys []string
	if d := info.GetDistro(); d != nil {
		keys = append(keys, d.ID, d.Family)
	}
	keys = append(keys, info.OS, "default")

	return func(L *lua.LState) int {
		choices := L.CheckTable(1)
		for _, k := range keys {
			if k == "" {
				continue
			}
			if v := choices.RawGetString(k); v != lua.LNil {
				L.Push(v)
				return 1
			}
		}
		L.Push(lua.LNil)
		return 1
	}
}

// readOnly wraps t in an empty proxy: reads fall through to t and writes
// raise an error. The metatable itself is locked.
func readOnly(L *lua.LState, t *lua.LTable) *lua.LTable {
	mt := L.NewTable()
	mt.RawSetString("__index", t)
	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s is read-only (assigning %s)", luaGlobal, L.CheckAny(2).String())
		return 0
	}))
	mt.RawSetString("__metatable", lua.LString("locked"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)
	return proxy
}
