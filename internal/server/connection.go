// Package server implements the TCP accept loop and per-connection state
// machine (spec.md §4.2): a goroutine-per-connection reader, a single
// writer goroutine draining a push queue (so pub/sub messages, MONITOR
// lines, and ordinary replies all serialize through one path), and the
// concrete type satisfying command.Conn.
package server

import (
	"context"
	"net"
	"sync"

	"github.com/shanas-swi/goredis/internal/command"
	"github.com/shanas-swi/goredis/internal/resp"
)

// conn is the concrete connection handle threaded through command.Conn.
// Exactly one goroutine (the reader) mutates db/name/authenticated, so
// those fields only need a mutex to be visible to CLIENT LIST / KILL
// running on another connection's goroutine.
type conn struct {
	id   uint64
	nc   net.Conn
	push chan resp.Value

	mu            sync.Mutex
	db            int
	name          string
	authenticated bool

	tx command.Transaction

	ctx    context.Context
	cancel context.CancelFunc
}

// newConn builds a handle with no id assigned yet; the caller registers
// it with clientreg.Registry immediately after to obtain one (the
// registry, not this package, owns id allocation).
func newConn(nc net.Conn, pushCapacity int) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{
		nc:     nc,
		push:   make(chan resp.Value, pushCapacity),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *conn) DB() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}

func (c *conn) SetDB(db int) {
	c.mu.Lock()
	c.db = db
	c.mu.Unlock()
}

func (c *conn) PushQueue() chan resp.Value { return c.push }

func (c *conn) ClientID() uint64 { return c.id }

func (c *conn) ClientName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *conn) SetClientName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

func (c *conn) Tx() *command.Transaction { return &c.tx }

func (c *conn) RemoteAddr() string { return c.nc.RemoteAddr().String() }

func (c *conn) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

func (c *conn) SetAuthenticated(v bool) {
	c.mu.Lock()
	c.authenticated = v
	c.mu.Unlock()
}

// Context backs internal/command's blockingContext lookup: a blocking
// command (BLPOP/BRPOP) wakes early when this context is cancelled, which
// only Kill (CLIENT KILL) does. While a command waits nothing reads the
// socket, so a peer that disconnects mid-wait is not noticed until the
// wait ends.
func (c *conn) Context() context.Context { return c.ctx }

// Kill implements clientreg.Killer for CLIENT KILL: closing the
// underlying socket unblocks the reader goroutine, which then tears the
// rest of the connection down.
func (c *conn) Kill() {
	c.cancel()
	c.nc.Close()
}
