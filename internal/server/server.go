package server

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shanas-swi/goredis/internal/blocking"
	"github.com/shanas-swi/goredis/internal/command"
	"github.com/shanas-swi/goredis/internal/pubsub"
	"github.com/shanas-swi/goredis/internal/resp"
	"github.com/shanas-swi/goredis/internal/store"
	"github.com/shanas-swi/goredis/internal/stream"
)

// pushQueueCapacity bounds how far a slow subscriber can lag before the
// server drops its pub/sub deliveries (spec.md §4.8 "overflow... handled
// by closing the slow connection" is approximated here by best-effort
// drop; ordinary command replies always use a blocking send instead).
const pushQueueCapacity = 4096

// Server owns every shared subsystem and the TCP accept loop (spec.md §3
// "Global state" / §5 "Scheduling model": one lightweight goroutine per
// connection, no thread pinning).
type Server struct {
	Store    *store.Engine
	Streams  *stream.Engine
	PubSub   *pubsub.Bus
	Blocking *blocking.Coordinator
	Admin    *command.AdminState
	AOF      command.Notifiee // nil when appendonly is disabled

	log *logrus.Entry

	listener net.Listener
}

func New(st *store.Engine, streams *stream.Engine, bus *pubsub.Bus, bc *blocking.Coordinator, admin *command.AdminState, aof command.Notifiee, log *logrus.Entry) *Server {
	return &Server{Store: st, Streams: streams, PubSub: bus, Blocking: bc, Admin: admin, AOF: aof, log: log}
}

// ListenAndServe binds addr and accepts connections until the listener
// is closed (spec.md §4.2). It blocks the calling goroutine.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.WithField("addr", addr).Info("accepting connections")
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && !ne.Temporary() {
				return nil
			}
			s.log.WithError(err).Warn("accept failed")
			continue
		}
		go s.serve(nc)
	}
}

func (s *Server) Close() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// ReplayCommand implements persistence.Replayer: it runs a command with
// caller type Replay, bypassing client-only checks, while loading the
// AOF at startup (spec.md §4.11).
func (s *Server) ReplayCommand(db int, args [][]byte) error {
	ctx := &command.Context{
		DB: db, Caller: command.CallerReplay, Conn: replayConn{db: db},
		Store: s.Store, Streams: s.Streams, PubSub: s.PubSub, Blocking: s.Blocking,
	}
	_, err := command.Execute(ctx, args)
	return err
}

func (s *Server) serve(nc net.Conn) {
	c := newConn(nc, pushQueueCapacity)
	addr := nc.RemoteAddr().String()
	id := s.Admin.Clients.Register(addr, c)
	c.id = id
	if s.Admin.Stats != nil {
		s.Admin.Stats.IncrConnections()
	}

	done := make(chan struct{})
	go s.writeLoop(c, done)

	log := s.log.WithFields(logrus.Fields{"client": id, "addr": addr})
	log.Debug("client connected")

	s.readLoop(c, log)

	if s.PubSub != nil {
		s.PubSub.UnsubscribeAll(&pubsub.Subscriber{ID: id})
	}
	close(c.push)
	<-done
	if s.Admin.Monitor != nil {
		s.Admin.Monitor.Detach(id)
	}
	s.Admin.Clients.Unregister(id)
	nc.Close()
	log.Debug("client disconnected")
}

func (s *Server) writeLoop(c *conn, done chan struct{}) {
	defer close(done)
	for v := range c.push {
		if _, err := c.nc.Write(resp.Encode(v)); err != nil {
			return
		}
	}
}

func (s *Server) readLoop(c *conn, log *logrus.Entry) {
	parser := resp.NewParser()
	reader := resp.NewReader(c.nc, parser)
	for {
		v, err := reader.ReadValue()
		if err != nil {
			if pe, ok := err.(*resp.ProtocolError); ok && pe.Reason == "length exceeds limit" {
				select {
				case c.push <- resp.Err(pe.Error()):
				default:
				}
			}
			return
		}
		if v.Type != resp.Array || len(v.Items) == 0 {
			continue
		}
		args := make([][]byte, len(v.Items))
		for i, item := range v.Items {
			args[i] = item.Bulk
		}
		reply := s.handle(c, args)
		select {
		case c.push <- reply:
		case <-c.ctx.Done():
			return
		}
	}
}

// handle executes one request end to end: auth gating, MULTI queueing,
// MONITOR/slowlog/stats instrumentation, and AOF propagation (spec.md
// §4.2, §4.6, §4.11, component L).
func (s *Server) handle(c *conn, args [][]byte) resp.Value {
	name := string(args[0])

	if s.Admin.Password != "" && !c.Authenticated() && name != "AUTH" && name != "HELLO" && name != "QUIT" && name != "RESET" {
		return resp.Err(command.NewError("NOAUTH", "Authentication required.").Message)
	}

	if s.Admin.Monitor != nil && s.Admin.Monitor.Active() {
		s.Admin.Monitor.Feed(time.Now().UnixNano()/1e3, c.DB(), c.RemoteAddr(), args)
	}

	ctx := &command.Context{
		DB: c.DB(), Caller: command.CallerWire, Conn: c,
		Store: s.Store, Streams: s.Streams, PubSub: s.PubSub, Blocking: s.Blocking,
		AOF: s.AOF, Admin: s.Admin,
	}

	if queued, reply := command.MaybeQueue(ctx, args); queued {
		return reply
	}

	start := time.Now()
	v, err := command.Execute(ctx, args)
	elapsedUS := time.Since(start).Microseconds()

	if s.Admin.Stats != nil {
		s.Admin.Stats.IncrCommands()
	}
	if s.Admin.Slowlog != nil {
		s.Admin.Slowlog.Record(start.Unix(), elapsedUS, argStrings(args), c.RemoteAddr(), c.ClientName())
	}
	if s.Admin.Clients != nil {
		s.Admin.Clients.Touch(c.id, c.DB(), name)
	}

	if err != nil {
		return errValueFor(err)
	}
	if spec, ok := command.Lookup(name); ok && !spec.ReadOnly {
		if s.AOF != nil {
			s.AOF.OnWrite(ctx.DB, args)
		}
		if s.Admin.Persist != nil {
			if cc, ok := s.Admin.Persist.(command.ChangeCounter); ok {
				cc.IncrChanges()
			}
		}
	}
	return v
}

func argStrings(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	return out
}

func errValueFor(err error) resp.Value {
	if ce, ok := err.(*command.Error); ok {
		return resp.Err(ce.Message)
	}
	return resp.Err("ERR " + err.Error())
}

// replayConn satisfies command.Conn minimally for AOF replay, which
// never subscribes, transacts, or authenticates (spec.md §4.11 caller
// type Replay "bypassing client-only checks").
type replayConn struct {
	db int
	tx command.Transaction
}

func (r replayConn) DB() int                    { return r.db }
func (r replayConn) SetDB(int)                  {}
func (r replayConn) PushQueue() chan resp.Value { return nil }
func (r replayConn) ClientID() uint64           { return 0 }
func (r replayConn) ClientName() string         { return "" }
func (r replayConn) SetClientName(string)       {}
func (r replayConn) Tx() *command.Transaction    { return &r.tx }
func (r replayConn) RemoteAddr() string         { return "replay" }
func (r replayConn) Authenticated() bool        { return true }
func (r replayConn) SetAuthenticated(bool)      {}
