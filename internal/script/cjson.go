package script

import (
	"encoding/json"

	lua "github.com/yuin/gopher-lua"
)

// buildCjsonTable implements the cjson.encode/cjson.decode globals
// real Redis scripts rely on (SPEC_FULL.md component J), built over
// encoding/json rather than a hand-rolled parser since gopher-lua's
// table type converts cleanly to/from Go's generic JSON representation.
func buildCjsonTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("encode", L.NewFunction(func(L *lua.LState) int {
		v := L.CheckAny(1)
		b, err := json.Marshal(luaToGo(v))
		if err != nil {
			L.RaiseError("cjson encode error: %s", err.Error())
			return 0
		}
		L.Push(lua.LString(string(b)))
		return 1
	}))
	t.RawSetString("decode", L.NewFunction(func(L *lua.LState) int {
		s := L.CheckString(1)
		var decoded interface{}
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			L.RaiseError("cjson decode error: %s", err.Error())
			return 0
		}
		L.Push(goToLua(L, decoded))
		return 1
	}))
	return t
}

// luaToGo converts a Lua value into the generic map/slice/scalar shape
// encoding/json expects. A table is treated as an array when luaArrayToGo
// accepts it (non-zero Len() with indices 1..Len() present), in which case
// any other keys are dropped; otherwise it is treated as an object.
func luaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LNilType:
		return nil
	case *lua.LTable:
		if arr, ok := luaArrayToGo(val); ok {
			return arr
		}
		m := make(map[string]interface{})
		val.ForEach(func(k, fv lua.LValue) {
			m[k.String()] = luaToGo(fv)
		})
		return m
	default:
		return nil
	}
}

// luaArrayToGo reports ok=false for an empty table so the caller falls
// back to encoding it as an empty JSON object ({}), matching cjson's
// behavior for Lua's one empty-table representation of both.
func luaArrayToGo(t *lua.LTable) ([]interface{}, bool) {
	n := t.Len()
	if n == 0 {
		return nil, false
	}
	out := make([]interface{}, 0, n)
	for i := 1; i <= n; i++ {
		lv := t.RawGetInt(i)
		if lv == lua.LNil {
			return nil, false
		}
		out = append(out, luaToGo(lv))
	}
	return out, true
}

// goToLua is the inverse of luaToGo, used to bring cjson.decode results
// back into the Lua heap.
func goToLua(L *lua.LState, v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []interface{}:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, goToLua(L, item))
		}
		return t
	case map[string]interface{}:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, goToLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}
