package command

import "github.com/shanas-swi/goredis/internal/resp"

// fakeConn is a minimal in-memory Conn used by command package tests; the
// real connection state machine lives in internal/server.
type fakeConn struct {
	db            int
	name          string
	authenticated bool
	push          chan resp.Value
	tx            Transaction
	addr          string
}

func newFakeConn() *fakeConn {
	return &fakeConn{push: make(chan resp.Value, 16), addr: "127.0.0.1:1"}
}

func (c *fakeConn) DB() int                    { return c.db }
func (c *fakeConn) SetDB(db int)               { c.db = db }
func (c *fakeConn) PushQueue() chan resp.Value { return c.push }
func (c *fakeConn) ClientID() uint64           { return 1 }
func (c *fakeConn) ClientName() string         { return c.name }
func (c *fakeConn) SetClientName(n string)     { c.name = n }
func (c *fakeConn) Tx() *Transaction           { return &c.tx }
func (c *fakeConn) RemoteAddr() string         { return c.addr }
func (c *fakeConn) Authenticated() bool        { return c.authenticated }
func (c *fakeConn) SetAuthenticated(v bool)    { c.authenticated = v }
