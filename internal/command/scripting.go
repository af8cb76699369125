package command

import (
	"strconv"
	"strings"

	"github.com/shanas-swi/goredis/internal/resp"
	"github.com/shanas-swi/goredis/internal/script"
)

func init() {
	Register(&Spec{Name: "EVAL", MinArgs: 3, MaxArgs: -1, NoScript: true, NoMulti: false, Handler: cmdEval})
	Register(&Spec{Name: "EVALSHA", MinArgs: 3, MaxArgs: -1, NoScript: true, Handler: cmdEvalSha})
	Register(&Spec{Name: "SCRIPT", MinArgs: 2, MaxArgs: -1, NoScript: true, Handler: cmdScript})
}

// scriptExecutor adapts the unified Execute entrypoint into the closure
// script.Run calls for every redis.call/pcall (spec.md §4.10's "key
// design decision": Lua drives the same executor, with caller=Lua and
// InExec set so blocking commands degrade instead of suspending).
func scriptExecutor(ctx *Context) script.Executor {
	return func(args [][]byte) (resp.Value, error) {
		sub := *ctx
		sub.Caller = CallerLua
		sub.InExec = true
		return Execute(&sub, args)
	}
}

func cmdEval(ctx *Context, args [][]byte) (resp.Value, error) {
	return runScript(ctx, string(args[1]), args[2:])
}

func cmdEvalSha(ctx *Context, args [][]byte) (resp.Value, error) {
	if ctx.Admin == nil || ctx.Admin.Scripts == nil {
		return resp.Value{}, NewError("NOSCRIPT", "No matching script. Please use EVAL.")
	}
	src, ok := ctx.Admin.Scripts.Get(string(args[1]))
	if !ok {
		return resp.Value{}, NewError("NOSCRIPT", "No matching script. Please use EVAL.")
	}
	return runScript(ctx, src, args[2:])
}

// runScript parses the shared EVAL/EVALSHA tail (numkeys key... arg...),
// acquires the executor mutex for the script's whole duration (spec.md
// §4.10: "the server acquires the global executor mutex... for the
// script's entire duration"), and runs it.
func runScript(ctx *Context, src string, tail [][]byte) (resp.Value, error) {
	if len(tail) == 0 {
		return resp.Value{}, NewError("ERR", "wrong number of arguments for 'eval' command")
	}
	numKeys, err := strconv.Atoi(string(tail[0]))
	if err != nil || numKeys < 0 {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	rest := tail[1:]
	if numKeys > len(rest) {
		return resp.Value{}, NewError("ERR", "Number of keys can't be greater than number of args")
	}
	keys := rest[:numKeys]
	argv := rest[numKeys:]

	// execMu is not reentrant: a queued EVAL inside MULTI/EXEC runs with
	// ctx.InExec already true and execMu already held by cmdExec, so only
	// the outermost caller (the wire path) takes the lock itself.
	if !ctx.InExec {
		execMu.Lock()
		defer execMu.Unlock()
	}

	if ctx.Admin != nil && ctx.Admin.Scripts != nil {
		ctx.Admin.Scripts.Load(src)
	}

	return script.Run(src, keys, argv, scriptExecutor(ctx))
}

func cmdScript(ctx *Context, args [][]byte) (resp.Value, error) {
	if ctx.Admin == nil || ctx.Admin.Scripts == nil {
		return resp.Value{}, NewError("ERR", "scripting is not available")
	}
	switch strings.ToUpper(string(args[1])) {
	case "LOAD":
		if len(args) != 3 {
			return resp.Value{}, NewError("ERR", "wrong number of arguments for 'script|load' command")
		}
		sha := ctx.Admin.Scripts.Load(string(args[2]))
		return resp.BulkStr(sha), nil
	case "EXISTS":
		vals := make([]resp.Value, len(args)-2)
		for i, sha := range args[2:] {
			if ctx.Admin.Scripts.Exists(string(sha)) {
				vals[i] = resp.Int(1)
			} else {
				vals[i] = resp.Int(0)
			}
		}
		return resp.ArrSlice(vals), nil
	case "FLUSH":
		ctx.Admin.Scripts.Flush()
		return ok(), nil
	default:
		return resp.Value{}, NewError("ERR", "unknown SCRIPT subcommand '%s'", string(args[1]))
	}
}
