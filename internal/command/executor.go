// Package command implements the single unified executor (spec.md §4.5,
// component E): one execute(cmd, args, ctx) function used identically by
// the wire path and the Lua sandbox, built around a name->Spec registry
// in the style of the teacher's plugins/inputs Creator/Add registry.
package command

import (
	"fmt"
	"strings"

	"github.com/shanas-swi/goredis/internal/blocking"
	"github.com/shanas-swi/goredis/internal/pubsub"
	"github.com/shanas-swi/goredis/internal/resp"
	"github.com/shanas-swi/goredis/internal/store"
	"github.com/shanas-swi/goredis/internal/stream"
)

// CallerType distinguishes who invoked the executor, per spec.md §4.5's
// ctx.caller_type (Wire | Lua | Replay).
type CallerType int

const (
	CallerWire CallerType = iota
	CallerLua
	CallerReplay
)

// Error is the typed command-validation/runtime error described in
// spec.md §7; Kind is the uppercase RESP error code.
type Error struct {
	Kind    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewError(kind, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	if kind != "" && kind != "ERR" {
		msg = kind + " " + msg
	} else {
		msg = "ERR " + msg
	}
	return &Error{Kind: kind, Message: msg}
}

// Notifiee is implemented by whatever owns AOF propagation; OnWrite is
// called after a successful write command (spec.md §4.11).
type Notifiee interface {
	OnWrite(db int, args [][]byte)
}

// Conn is the minimal surface the executor needs from a connection
// (spec.md §4.2); internal/server's real connection type satisfies it.
type Conn interface {
	DB() int
	SetDB(int)
	PushQueue() chan resp.Value
	ClientID() uint64
	ClientName() string
	SetClientName(string)
	Tx() *Transaction
	RemoteAddr() string
	Authenticated() bool
	SetAuthenticated(bool)
}

// Context carries everything a command handler needs (spec.md §4.5).
type Context struct {
	DB       int
	Caller   CallerType
	Conn     Conn
	Abort    bool // not set or read anywhere; redis.call aborts a script by raising a Lua error (internal/script)
	InExec   bool // true while running a queued EXEC/script command: blocking commands must not suspend
	Store    *store.Engine
	Streams  *stream.Engine
	PubSub   *pubsub.Bus
	Blocking *blocking.Coordinator
	AOF      Notifiee
	Admin    *AdminState
}

// Spec is a command's static contract (spec.md §4.5 "Per-command
// contract").
type Spec struct {
	Name       string
	MinArgs    int // total argv length including the command name
	MaxArgs    int // -1 for variadic
	FirstKey   int
	LastKey    int // negative counts from the end (-1 = last arg)
	KeyStep    int
	ReadOnly   bool
	Blocking   bool
	NoScript   bool // forbidden inside EVAL
	NoMulti    bool // forbidden inside MULTI queueing
	Handler    func(ctx *Context, args [][]byte) (resp.Value, error)
}

var registry = map[string]*Spec{}

// Register adds a command to the global table, mirroring the teacher's
// plugins/inputs Add(name, creator) pattern.
func Register(spec *Spec) {
	registry[strings.ToUpper(spec.Name)] = spec
}

func Lookup(name string) (*Spec, bool) {
	s, ok := registry[strings.ToUpper(name)]
	return s, ok
}

func CommandNames() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	return out
}

func CommandCount() int { return len(registry) }

// Execute is the single unified function of spec.md §4.5: it is the only
// place that turns (command name, args) into a Value or Error, whether
// reached via the wire or via redis.call from Lua.
func Execute(ctx *Context, args [][]byte) (resp.Value, error) {
	if len(args) == 0 {
		return resp.Value{}, NewError("ERR", "empty command")
	}
	name := strings.ToUpper(string(args[0]))
	spec, ok := registry[name]
	if !ok {
		return resp.Value{}, NewError("ERR", "unknown command '%s'", string(args[0]))
	}
	if len(args) < spec.MinArgs || (spec.MaxArgs >= 0 && len(args) > spec.MaxArgs) {
		return resp.Value{}, NewError("ERR", "wrong number of arguments for '%s' command", strings.ToLower(spec.Name))
	}
	if ctx.Caller == CallerLua && spec.NoScript {
		return resp.Value{}, NewError("ERR", "This Redis command is not allowed from script")
	}
	return spec.Handler(ctx, args)
}

// KeyIndices resolves the positional key arguments of spec, per spec.md
// §4.5 "first/last/step key indices" — used by WATCH-queueing and, in a
// cluster build, slot routing (not implemented; single-node only).
func (s *Spec) KeyIndices(args [][]byte) []string {
	if s.FirstKey <= 0 {
		return nil
	}
	last := s.LastKey
	if last < 0 {
		last = len(args) + last
	}
	if last >= len(args) {
		last = len(args) - 1
	}
	var keys []string
	step := s.KeyStep
	if step <= 0 {
		step = 1
	}
	for i := s.FirstKey; i <= last; i += step {
		keys = append(keys, string(args[i]))
	}
	return keys
}
