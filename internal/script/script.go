// Package script implements the embedded Lua sandbox (spec.md component
// J) on top of github.com/yuin/gopher-lua: redis.call/pcall drive the
// *same* command executor used by the wire path (spec.md §4.10's "key
// design decision"), a SHA1-keyed cache backs SCRIPT LOAD/EVALSHA, and a
// value-conversion table bridges Lua <-> RESP in both directions.
package script

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/shanas-swi/goredis/internal/resp"
)

// Executor is the minimal surface the sandbox needs back from
// internal/command: one call per redis.call/pcall invocation. The real
// caller passes a closure around command.Execute with caller=Lua baked
// into the ctx.
type Executor func(args [][]byte) (resp.Value, error)

// forbidden lists commands spec.md §4.10 bars from scripts; checked by
// name before the executor ever sees them so the error is attributed to
// redis.call rather than to command validation.
var forbidden = map[string]bool{
	"EVAL": true, "EVALSHA": true, "SCRIPT": true,
	"SUBSCRIBE": true, "UNSUBSCRIBE": true, "PSUBSCRIBE": true, "PUNSUBSCRIBE": true,
	"BLPOP": true, "BRPOP": true, "BLMOVE": true, "BRPOPLPUSH": true,
	"MULTI": true, "EXEC": true, "DISCARD": true, "WATCH": true,
	"MONITOR": true,
}

// Cache is the SHA1-keyed script store behind SCRIPT LOAD/EVALSHA/EXISTS/FLUSH.
type Cache struct {
	mu      sync.Mutex
	scripts map[string]string
}

func NewCache() *Cache {
	return &Cache{scripts: make(map[string]string)}
}

func SHA1Hex(src string) string {
	sum := sha1.Sum([]byte(src))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) Load(src string) string {
	sha := SHA1Hex(src)
	c.mu.Lock()
	c.scripts[sha] = src
	c.mu.Unlock()
	return sha
}

func (c *Cache) Get(sha string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	src, ok := c.scripts[strings.ToLower(sha)]
	return src, ok
}

func (c *Cache) Exists(sha string) bool {
	_, ok := c.Get(sha)
	return ok
}

func (c *Cache) Flush() {
	c.mu.Lock()
	c.scripts = make(map[string]string)
	c.mu.Unlock()
}

// CompileError wraps a Lua compile/runtime failure in spec.md §4.10's
// wire format ("ERR Error compiling script: <details>").
type CompileError struct{ Detail string }

func (e *CompileError) Error() string { return "ERR Error compiling script: " + e.Detail }

// RunError is a plain error-message type; Run does not return it, since
// every failure, including one raised by redis.call, is wrapped in
// CompileError.
type RunError struct{ Message string }

func (e *RunError) Error() string { return e.Message }

// Run compiles and executes src as a single atomic script (the caller
// is expected to already hold the executor mutex, same as EXEC). keys
// and argv back the script's 1-indexed KEYS/ARGV globals.
func Run(src string, keys, argv [][]byte, exec Executor) (resp.Value, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	defer L.Close()

	L.SetGlobal("KEYS", sliceToTable(L, keys))
	L.SetGlobal("ARGV", sliceToTable(L, argv))
	L.SetGlobal("redis", buildRedisTable(L, exec))
	L.SetGlobal("cjson", buildCjsonTable(L))

	if err := L.DoString(src); err != nil {
		if le, ok := err.(*lua.ApiError); ok {
			return resp.Value{}, &CompileError{Detail: le.Object.String()}
		}
		return resp.Value{}, &CompileError{Detail: err.Error()}
	}

	top := L.GetTop()
	if top == 0 {
		return resp.NilBulk(), nil
	}
	return luaToResp(L.Get(-top)), nil
}

func sliceToTable(L *lua.LState, items [][]byte) *lua.LTable {
	t := L.NewTable()
	for i, b := range items {
		t.RawSetInt(i+1, lua.LString(string(b)))
	}
	return t
}

func buildRedisTable(L *lua.LState, exec Executor) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("call", L.NewFunction(func(L *lua.LState) int {
		return doCall(L, exec, true)
	}))
	t.RawSetString("pcall", L.NewFunction(func(L *lua.LState) int {
		return doCall(L, exec, false)
	}))
	t.RawSetString("status_reply", L.NewFunction(func(L *lua.LState) int {
		s := L.CheckString(1)
		res := L.NewTable()
		res.RawSetString("ok", lua.LString(s))
		L.Push(res)
		return 1
	}))
	t.RawSetString("error_reply", L.NewFunction(func(L *lua.LState) int {
		s := L.CheckString(1)
		res := L.NewTable()
		res.RawSetString("err", lua.LString(s))
		L.Push(res)
		return 1
	}))
	t.RawSetString("sha1hex", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(SHA1Hex(L.CheckString(1))))
		return 1
	}))
	t.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		return 0
	}))
	t.RawSetString("setresp", L.NewFunction(func(L *lua.LState) int {
		return 0
	}))
	t.RawSetString("LOG_DEBUG", lua.LNumber(0))
	t.RawSetString("LOG_VERBOSE", lua.LNumber(1))
	t.RawSetString("LOG_NOTICE", lua.LNumber(2))
	t.RawSetString("LOG_WARNING", lua.LNumber(3))
	return t
}

func doCall(L *lua.LState, exec Executor, raise bool) int {
	n := L.GetTop()
	if n == 0 {
		L.RaiseError("wrong number of arguments to redis.call")
		return 0
	}
	args := make([][]byte, n)
	for i := 1; i <= n; i++ {
		v := L.Get(i)
		switch v.Type() {
		case lua.LTString:
			args[i-1] = []byte(v.String())
		case lua.LTNumber:
			args[i-1] = []byte(v.String())
		default:
			L.RaiseError("Lua redis lib command arguments must be strings or integers")
			return 0
		}
	}
	name := strings.ToUpper(string(args[0]))
	if forbidden[name] {
		msg := fmt.Sprintf("This Redis command is not allowed from script: %s", name)
		if raise {
			L.RaiseError(msg)
			return 0
		}
		res := L.NewTable()
		res.RawSetString("err", lua.LString(msg))
		L.Push(res)
		return 1
	}

	reply, err := exec(args)
	if err != nil {
		if raise {
			L.RaiseError(err.Error())
			return 0
		}
		res := L.NewTable()
		res.RawSetString("err", lua.LString(err.Error()))
		L.Push(res)
		return 1
	}
	L.Push(respToLua(L, reply))
	return 1
}

// respToLua implements the RESP -> script column of spec.md §4.10's
// conversion table.
func respToLua(L *lua.LState, v resp.Value) lua.LValue {
	switch v.Type {
	case resp.Integer:
		return lua.LNumber(v.Int)
	case resp.BulkString:
		if v.IsNull {
			return lua.LFalse
		}
		return lua.LString(string(v.Bulk))
	case resp.SimpleString:
		t := L.NewTable()
		t.RawSetString("ok", lua.LString(v.Str))
		return t
	case resp.Error:
		t := L.NewTable()
		t.RawSetString("err", lua.LString(v.Str))
		return t
	case resp.Array:
		if v.IsNull {
			return lua.LFalse
		}
		t := L.NewTable()
		for i, item := range v.Items {
			t.RawSetInt(i+1, respToLua(L, item))
		}
		return t
	default:
		return lua.LNil
	}
}

// luaToResp implements the script -> RESP column of spec.md §4.10's
// conversion table, including the "other tables (string keys) get
// flattened" rule.
func luaToResp(v lua.LValue) resp.Value {
	switch lv := v.(type) {
	case lua.LBool:
		if bool(lv) {
			return resp.Int(1)
		}
		return resp.NilBulk()
	case lua.LNumber:
		f := float64(lv)
		if math.IsNaN(f) {
			return resp.NilBulk()
		}
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return resp.Int(int64(f))
		}
		return resp.BulkStr(formatLuaFloat(f))
	case lua.LString:
		return resp.BulkStr(string(lv))
	case *lua.LTable:
		return tableToResp(lv)
	case *lua.LNilType:
		return resp.NilBulk()
	default:
		return resp.NilBulk()
	}
}

func formatLuaFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'g', 17, 64)
}

func tableToResp(t *lua.LTable) resp.Value {
	if ok, ok2 := t.RawGetString("ok").(lua.LString); ok2 && ok != "" {
		return resp.Str(string(ok))
	}
	if errv, ok := t.RawGetString("err").(lua.LString); ok && errv != "" {
		return resp.Err(string(errv))
	}

	// Sequence table: 1..N integer keys, stop at the first nil.
	var items []resp.Value
	for i := 1; ; i++ {
		lv := t.RawGetInt(i)
		if lv == lua.LNil {
			break
		}
		items = append(items, luaToResp(lv))
	}
	if items != nil || t.Len() > 0 {
		return resp.ArrSlice(items)
	}

	// Non-sequence table: flatten string-keyed fields to [k1, v1, ...].
	var flat []resp.Value
	t.ForEach(func(k, val lua.LValue) {
		flat = append(flat, resp.BulkStr(k.String()), luaToResp(val))
	})
	return resp.ArrSlice(flat)
}
