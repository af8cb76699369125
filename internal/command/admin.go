package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/shanas-swi/goredis/internal/clientreg"
	"github.com/shanas-swi/goredis/internal/introspection"
	"github.com/shanas-swi/goredis/internal/resp"
	"github.com/shanas-swi/goredis/internal/script"
	"github.com/shanas-swi/goredis/internal/slowlog"
)

// Persister is the minimal surface admin.go needs from the persistence
// package (component K) for SAVE/BGSAVE/LASTSAVE; internal/persistence's
// Manager satisfies it.
type Persister interface {
	Save() error
	BGSave() error
	LastSaveUnix() int64
}

// ConfigStore is the minimal surface CONFIG GET/SET needs; the real
// config.Config (component, TOML-backed per SPEC_FULL.md) satisfies it.
type ConfigStore interface {
	Get(name string) (string, bool)
	Set(name, value string) error
	Names(pattern string) []string
}

// SaveReconfigurer is the optional surface a Persister offers so CONFIG
// SET save can reconfigure the background-save trigger windows at
// runtime (SPEC_FULL.md component K). Checked via type assertion rather
// than folded into Persister so a Persister that never schedules
// background saves (e.g. a test fake) doesn't need a no-op method.
type SaveReconfigurer interface {
	SetSaveWindows(spec string) error
}

// ChangeCounter is the optional surface a Persister offers to track
// writes toward its save-trigger windows; checked via type assertion
// for the same reason as SaveReconfigurer.
type ChangeCounter interface {
	IncrChanges()
}

// AOFRewriter is the optional surface a Persister offers for
// BGREWRITEAOF; a Persister with no append-only file configured can
// simply not implement it.
type AOFRewriter interface {
	BGRewriteAOF() error
}

// AdminState bundles the server-wide introspection/ops services a
// connection's admin commands reach through (spec.md component L, plus
// K's SAVE family and CONFIG).
type AdminState struct {
	Stats     *introspection.Stats
	Monitor   *introspection.MonitorFeed
	Clients   *clientreg.Registry
	Slowlog   *slowlog.Log
	Scripts   *script.Cache
	Config    ConfigStore
	Persist   Persister
	Version   string
	StartedAt time.Time
	Password  string // empty = no auth required
	NumDBs    func() int
}

func init() {
	Register(&Spec{Name: "PING", MinArgs: 1, MaxArgs: 2, ReadOnly: true, Handler: cmdPing})
	Register(&Spec{Name: "ECHO", MinArgs: 2, MaxArgs: 2, ReadOnly: true, Handler: cmdEcho})
	Register(&Spec{Name: "AUTH", MinArgs: 2, MaxArgs: 3, NoScript: true, Handler: cmdAuth})
	Register(&Spec{Name: "HELLO", MinArgs: 1, MaxArgs: -1, NoScript: true, Handler: cmdHello})
	Register(&Spec{Name: "RESET", MinArgs: 1, MaxArgs: 1, NoScript: true, NoMulti: true, Handler: cmdReset})
	Register(&Spec{Name: "QUIT", MinArgs: 1, MaxArgs: 1, NoScript: true, Handler: cmdQuit})
	Register(&Spec{Name: "CONFIG", MinArgs: 2, MaxArgs: -1, Handler: cmdConfig})
	Register(&Spec{Name: "INFO", MinArgs: 1, MaxArgs: -1, ReadOnly: true, Handler: cmdInfo})
	Register(&Spec{Name: "CLIENT", MinArgs: 2, MaxArgs: -1, NoScript: true, Handler: cmdClient})
	Register(&Spec{Name: "COMMAND", MinArgs: 1, MaxArgs: -1, ReadOnly: true, Handler: cmdCommand})
	Register(&Spec{Name: "MEMORY", MinArgs: 2, MaxArgs: -1, ReadOnly: true, Handler: cmdMemory})
	Register(&Spec{Name: "SLOWLOG", MinArgs: 2, MaxArgs: 3, Handler: cmdSlowlog})
	Register(&Spec{Name: "DEBUG", MinArgs: 2, MaxArgs: -1, NoScript: true, Handler: cmdDebug})
	Register(&Spec{Name: "SAVE", MinArgs: 1, MaxArgs: 1, NoScript: true, Handler: cmdSave})
	Register(&Spec{Name: "BGSAVE", MinArgs: 1, MaxArgs: 2, NoScript: true, Handler: cmdBGSave})
	Register(&Spec{Name: "LASTSAVE", MinArgs: 1, MaxArgs: 1, ReadOnly: true, Handler: cmdLastSave})
	Register(&Spec{Name: "BGREWRITEAOF", MinArgs: 1, MaxArgs: 1, NoScript: true, Handler: cmdBGRewriteAOF})
	Register(&Spec{Name: "MONITOR", MinArgs: 1, MaxArgs: 1, NoScript: true, NoMulti: true, Handler: cmdMonitor})
}

func cmdPing(ctx *Context, args [][]byte) (resp.Value, error) {
	if len(args) == 2 {
		return resp.Bulk(args[1]), nil
	}
	return resp.Str("PONG"), nil
}

func cmdEcho(ctx *Context, args [][]byte) (resp.Value, error) {
	return resp.Bulk(args[1]), nil
}

func cmdAuth(ctx *Context, args [][]byte) (resp.Value, error) {
	pass := args[len(args)-1]
	if ctx.Admin == nil || ctx.Admin.Password == "" {
		return resp.Value{}, NewError("ERR", "Client sent AUTH, but no password is set")
	}
	if string(pass) != ctx.Admin.Password {
		return resp.Value{}, NewError("WRONGPASS", "invalid username-password pair or user is disabled")
	}
	ctx.Conn.SetAuthenticated(true)
	return ok(), nil
}

func cmdHello(ctx *Context, args [][]byte) (resp.Value, error) {
	if len(args) > 1 && string(args[1]) != "2" {
		return resp.Value{}, NewError("NOPROTO", "unsupported protocol version")
	}
	vals := []resp.Value{
		resp.BulkStr("server"), resp.BulkStr("redis"),
		resp.BulkStr("version"), resp.BulkStr(adminVersion(ctx)),
		resp.BulkStr("proto"), resp.Int(2),
		resp.BulkStr("id"), resp.Int(int64(ctx.Conn.ClientID())),
		resp.BulkStr("mode"), resp.BulkStr("standalone"),
		resp.BulkStr("role"), resp.BulkStr("master"),
		resp.BulkStr("modules"), resp.ArrSlice(nil),
	}
	return resp.ArrSlice(vals), nil
}

func adminVersion(ctx *Context) string {
	if ctx.Admin != nil && ctx.Admin.Version != "" {
		return ctx.Admin.Version
	}
	return "0.0.0"
}

func cmdReset(ctx *Context, args [][]byte) (resp.Value, error) {
	*ctx.Conn.Tx() = Transaction{}
	if ctx.PubSub != nil {
		ctx.PubSub.UnsubscribeAll(subscriberFor(ctx))
	}
	ctx.DB = 0
	ctx.Conn.SetDB(0)
	if ctx.Admin != nil && ctx.Admin.Password != "" {
		ctx.Conn.SetAuthenticated(false)
	}
	return resp.Str("RESET"), nil
}

func cmdQuit(ctx *Context, args [][]byte) (resp.Value, error) {
	return ok(), nil
}

func cmdConfig(ctx *Context, args [][]byte) (resp.Value, error) {
	if ctx.Admin == nil || ctx.Admin.Config == nil {
		return resp.Value{}, NewError("ERR", "CONFIG is not available")
	}
	switch strings.ToUpper(string(args[1])) {
	case "GET":
		if len(args) != 3 {
			return resp.Value{}, NewError("ERR", "wrong number of arguments for 'config|get' command")
		}
		names := ctx.Admin.Config.Names(string(args[2]))
		vals := make([]resp.Value, 0, len(names)*2)
		for _, n := range names {
			v, _ := ctx.Admin.Config.Get(n)
			vals = append(vals, resp.BulkStr(n), resp.BulkStr(v))
		}
		return resp.ArrSlice(vals), nil
	case "SET":
		if len(args) != 4 {
			return resp.Value{}, NewError("ERR", "wrong number of arguments for 'config|set' command")
		}
		if err := ctx.Admin.Config.Set(string(args[2]), string(args[3])); err != nil {
			return resp.Value{}, NewError("ERR", "%s", err.Error())
		}
		if strings.EqualFold(string(args[2]), "save") {
			if sr, ok := ctx.Admin.Persist.(SaveReconfigurer); ok {
				if err := sr.SetSaveWindows(string(args[3])); err != nil {
					return resp.Value{}, NewError("ERR", "%s", err.Error())
				}
			}
		}
		return ok(), nil
	default:
		return resp.Value{}, NewError("ERR", "unknown CONFIG subcommand '%s'", string(args[1]))
	}
}

func cmdInfo(ctx *Context, args [][]byte) (resp.Value, error) {
	if ctx.Admin == nil {
		return resp.BulkStr(""), nil
	}
	numDBs := 16
	if ctx.Admin.NumDBs != nil {
		numDBs = ctx.Admin.NumDBs()
	}
	sections := make([]introspection.KeyspaceSection, 0, numDBs)
	for i := 0; i < numDBs; i++ {
		n := ctx.Store.DBSize(i)
		if n > 0 {
			sections = append(sections, introspection.KeyspaceSection{DB: i, Keys: n})
		}
	}
	uptime := int64(time.Since(ctx.Admin.StartedAt) / time.Second)
	connected := 0
	if ctx.Admin.Clients != nil {
		connected = ctx.Admin.Clients.Count()
	}
	text := introspection.RenderInfo(adminVersion(ctx), uptime, ctx.Admin.Stats, connected, sections)
	return resp.Bulk([]byte(text)), nil
}

func cmdClient(ctx *Context, args [][]byte) (resp.Value, error) {
	sub := strings.ToUpper(string(args[1]))
	switch sub {
	case "GETNAME":
		return resp.BulkStr(ctx.Conn.ClientName()), nil
	case "SETNAME":
		if len(args) != 3 {
			return resp.Value{}, NewError("ERR", "wrong number of arguments for 'client|setname' command")
		}
		name := string(args[2])
		if strings.ContainsAny(name, " \n") {
			return resp.Value{}, NewError("ERR", "Client names cannot contain spaces, newlines or special characters")
		}
		ctx.Conn.SetClientName(name)
		if ctx.Admin != nil && ctx.Admin.Clients != nil {
			ctx.Admin.Clients.SetName(ctx.Conn.ClientID(), name)
		}
		return ok(), nil
	case "ID":
		return resp.Int(int64(ctx.Conn.ClientID())), nil
	case "LIST":
		if ctx.Admin == nil || ctx.Admin.Clients == nil {
			return resp.BulkStr(""), nil
		}
		var b strings.Builder
		for _, c := range ctx.Admin.Clients.List() {
			b.WriteString(formatClientLine(c))
			b.WriteByte('\n')
		}
		return resp.Bulk([]byte(b.String())), nil
	case "KILL":
		if ctx.Admin == nil || ctx.Admin.Clients == nil || len(args) < 3 {
			return resp.Int(0), nil
		}
		n := ctx.Admin.Clients.KillByAddr(string(args[2]))
		return resp.Int(int64(n)), nil
	default:
		return resp.Value{}, NewError("ERR", "unknown CLIENT subcommand '%s'", string(args[1]))
	}
}

func formatClientLine(c clientreg.Info) string {
	return "id=" + strconv.FormatUint(c.ID, 10) +
		" addr=" + c.Addr +
		" name=" + c.Name +
		" db=" + strconv.Itoa(c.DB) +
		" cmd=" + c.LastCommand
}

func cmdCommand(ctx *Context, args [][]byte) (resp.Value, error) {
	if len(args) >= 2 && strings.EqualFold(string(args[1]), "COUNT") {
		return resp.Int(int64(CommandCount())), nil
	}
	if len(args) >= 2 && strings.EqualFold(string(args[1]), "DOCS") {
		return cmdCommandDocs(args[2:]), nil
	}
	names := CommandNames()
	vals := make([]resp.Value, len(names))
	for i, n := range names {
		spec, _ := Lookup(n)
		vals[i] = resp.Arr(
			resp.BulkStr(strings.ToLower(n)),
			resp.Int(int64(spec.MinArgs)),
		)
	}
	return resp.ArrSlice(vals), nil
}

// cmdCommandDocs implements a minimal COMMAND DOCS [name ...] (spec.md
// component L "COMMAND COUNT/DOCS (minimal)"): each named command (or
// every registered command when none is given) maps to a short doc with
// a "summary" field and an "arity" field, enough for a client's introspection UI
// without modeling Redis's full argument-spec grammar.
func cmdCommandDocs(names [][]byte) resp.Value {
	var targets []string
	if len(names) == 0 {
		targets = CommandNames()
	} else {
		for _, n := range names {
			targets = append(targets, strings.ToUpper(string(n)))
		}
	}
	vals := make([]resp.Value, 0, len(targets)*2)
	for _, n := range targets {
		spec, ok := Lookup(n)
		if !ok {
			continue
		}
		vals = append(vals, resp.BulkStr(strings.ToLower(n)), resp.ArrSlice([]resp.Value{
			resp.BulkStr("summary"), resp.BulkStr(strings.ToLower(n)+" command"),
			resp.BulkStr("arity"), resp.Int(int64(spec.MinArgs)),
		}))
	}
	return resp.ArrSlice(vals)
}

func cmdMemory(ctx *Context, args [][]byte) (resp.Value, error) {
	switch strings.ToUpper(string(args[1])) {
	case "USAGE":
		if len(args) < 3 {
			return resp.Value{}, NewError("ERR", "wrong number of arguments for 'memory|usage' command")
		}
		v, ok := ctx.Store.Get(ctx.DB, string(args[2]))
		if !ok {
			return resp.NilBulk(), nil
		}
		return resp.Int(v.EstimateMemory()), nil
	case "DOCTOR":
		return resp.BulkStr("Sam, I detected a few issues in this Redis instance memory implants:\n\n * none, all good"), nil
	case "STATS":
		return resp.ArrSlice(nil), nil
	default:
		return resp.Value{}, NewError("ERR", "unknown MEMORY subcommand '%s'", string(args[1]))
	}
}

func cmdSlowlog(ctx *Context, args [][]byte) (resp.Value, error) {
	if ctx.Admin == nil || ctx.Admin.Slowlog == nil {
		return resp.Value{}, NewError("ERR", "SLOWLOG is not available")
	}
	switch strings.ToUpper(string(args[1])) {
	case "GET":
		count := -1
		if len(args) == 3 {
			n, err := strconv.Atoi(string(args[2]))
			if err != nil {
				return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
			}
			count = n
		}
		entries := ctx.Admin.Slowlog.Get(count)
		vals := make([]resp.Value, len(entries))
		for i, e := range entries {
			argVals := make([]resp.Value, len(e.Args))
			for j, a := range e.Args {
				argVals[j] = resp.BulkStr(a)
			}
			vals[i] = resp.Arr(
				resp.Int(e.ID), resp.Int(e.Timestamp), resp.Int(e.DurationUS),
				resp.ArrSlice(argVals), resp.BulkStr(e.ClientAddr), resp.BulkStr(e.ClientName),
			)
		}
		return resp.ArrSlice(vals), nil
	case "LEN":
		return resp.Int(int64(ctx.Admin.Slowlog.Len())), nil
	case "RESET":
		ctx.Admin.Slowlog.Reset()
		return ok(), nil
	default:
		return resp.Value{}, NewError("ERR", "unknown SLOWLOG subcommand '%s'", string(args[1]))
	}
}

func cmdDebug(ctx *Context, args [][]byte) (resp.Value, error) {
	switch strings.ToUpper(string(args[1])) {
	case "SLEEP":
		if len(args) < 3 {
			return resp.Value{}, NewError("ERR", "wrong number of arguments for 'debug|sleep' command")
		}
		secs, err := strconv.ParseFloat(string(args[2]), 64)
		if err != nil {
			return resp.Value{}, NewError("ERR", "value is not a float or out of range")
		}
		time.Sleep(time.Duration(secs * float64(time.Second)))
		return ok(), nil
	case "JSONSET", "SET-ACTIVE-EXPIRE", "QUICKLIST-PACKED-THRESHOLD":
		return ok(), nil
	case "OBJECT":
		if len(args) < 3 {
			return resp.Value{}, NewError("ERR", "wrong number of arguments for 'debug|object' command")
		}
		v, found := ctx.Store.Get(ctx.DB, string(args[2]))
		if !found {
			return resp.Value{}, NewError("ERR", "no such key")
		}
		return resp.BulkStr("Value at:0x0 refcount:1 encoding:" + v.Kind.String() + " serializedlength:" + strconv.FormatInt(v.EstimateMemory(), 10)), nil
	default:
		return ok(), nil
	}
}

func cmdSave(ctx *Context, args [][]byte) (resp.Value, error) {
	if ctx.Admin == nil || ctx.Admin.Persist == nil {
		return resp.Value{}, NewError("ERR", "persistence is not configured")
	}
	if !ctx.InExec {
		execMu.Lock()
		defer execMu.Unlock()
	}
	if err := ctx.Admin.Persist.Save(); err != nil {
		return resp.Value{}, NewError("ERR", "%s", err.Error())
	}
	return ok(), nil
}

func cmdBGSave(ctx *Context, args [][]byte) (resp.Value, error) {
	if ctx.Admin == nil || ctx.Admin.Persist == nil {
		return resp.Value{}, NewError("ERR", "persistence is not configured")
	}
	if err := ctx.Admin.Persist.BGSave(); err != nil {
		return resp.Value{}, NewError("ERR", "%s", err.Error())
	}
	return resp.Str("Background saving started"), nil
}

func cmdLastSave(ctx *Context, args [][]byte) (resp.Value, error) {
	if ctx.Admin == nil || ctx.Admin.Persist == nil {
		return resp.Int(0), nil
	}
	return resp.Int(ctx.Admin.Persist.LastSaveUnix()), nil
}

func cmdBGRewriteAOF(ctx *Context, args [][]byte) (resp.Value, error) {
	if ctx.Admin == nil || ctx.Admin.Persist == nil {
		return resp.Value{}, NewError("ERR", "persistence is not configured")
	}
	rw, ok := ctx.Admin.Persist.(AOFRewriter)
	if !ok {
		return resp.Value{}, NewError("ERR", "append only file is not enabled")
	}
	if err := rw.BGRewriteAOF(); err != nil {
		return resp.Value{}, NewError("ERR", "%s", err.Error())
	}
	return resp.Str("Background append only file rewriting started"), nil
}

// cmdMonitor attaches the current connection to the MONITOR feed; the
// server's write loop is responsible for draining ctx.Conn.PushQueue()
// for the remaining lifetime of the connection (spec.md §4.11 "MONITOR").
func cmdMonitor(ctx *Context, args [][]byte) (resp.Value, error) {
	if ctx.Admin == nil || ctx.Admin.Monitor == nil {
		return resp.Value{}, NewError("ERR", "MONITOR is not available")
	}
	ctx.Admin.Monitor.Attach(ctx.Conn.ClientID(), ctx.Conn.PushQueue())
	return ok(), nil
}
