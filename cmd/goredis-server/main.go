// Command goredis-server is the entry point: it loads configuration,
// wires every subsystem together the way internal/server.Server expects,
// replays persisted state, and serves RESP2 connections until signaled
// to stop (spec.md §3 "Global state", §4.11 "Startup/shutdown").
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/shanas-swi/goredis/config"
	"github.com/shanas-swi/goredis/internal/blocking"
	"github.com/shanas-swi/goredis/internal/clientreg"
	"github.com/shanas-swi/goredis/internal/command"
	"github.com/shanas-swi/goredis/internal/introspection"
	"github.com/shanas-swi/goredis/internal/persistence"
	"github.com/shanas-swi/goredis/internal/pubsub"
	"github.com/shanas-swi/goredis/internal/script"
	"github.com/shanas-swi/goredis/internal/server"
	"github.com/shanas-swi/goredis/internal/slowlog"
	"github.com/shanas-swi/goredis/internal/store"
	"github.com/shanas-swi/goredis/internal/stream"
)

const version = "0.1.0"

// aofNotifier adapts persistence.AOF's erroring Append to the
// command.Notifiee shape the executor calls after every successful write
// (errors are logged, not propagated, since OnWrite has no return path).
type aofNotifier struct {
	aof *persistence.AOF
	log *logrus.Entry
}

func (n *aofNotifier) OnWrite(db int, args [][]byte) {
	if err := n.aof.Append(db, args); err != nil {
		n.log.WithError(err).Error("aof append failed")
	}
}

func main() {
	cfgPath := flag.String("config", "", "path to goredis.toml")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "goredis-server:", err)
		os.Exit(1)
	}

	log := newLogger(cfg)

	clk := clock.New()
	st := store.New(cfg.Databases, cfg.Shards, 0, clk)
	bc := blocking.New(clk)
	st.SetNotifier(bc)
	st.SetEvictionPolicy(cfg.MaxMemoryPolicy, parseMemoryBytes(cfg.MaxMemory))
	streams := stream.New(st, clk, log.WithField("component", "stream"))
	bus := pubsub.New()

	aofPath := filepath.Join(cfg.Dir, cfg.AppendFilename)

	var aof *persistence.AOF
	var notifiee command.Notifiee
	if cfg.AppendOnly {
		aof, err = persistence.OpenAOF(aofPath, persistence.ParseFsyncPolicy(cfg.AppendFsync))
		if err != nil {
			log.WithError(err).Fatal("failed to open append-only file")
		}
		notifiee = &aofNotifier{aof: aof, log: log.WithField("component", "aof")}
	}

	rdbPath := filepath.Join(cfg.Dir, cfg.DBFilename)
	mgr := persistence.NewManager(rdbPath, aofPath, st, aof)
	if err := mgr.SetSaveWindows(cfg.Save); err != nil {
		log.WithError(err).Fatal("invalid save directive")
	}
	go mgr.RunSaveScheduler(clk, time.Second)

	admin := &command.AdminState{
		Stats:     &introspection.Stats{StartedAtUnix: time.Now().Unix()},
		Monitor:   introspection.NewMonitorFeed(),
		Clients:   clientreg.New(),
		Slowlog:   slowlog.New(cfg.SlowlogMaxLen, cfg.SlowlogLogSlowerThan),
		Scripts:   script.NewCache(),
		Config:    cfg,
		Persist:   mgr,
		Version:   version,
		StartedAt: time.Now(),
		Password:  cfg.RequirePass,
		NumDBs:    st.NumDBs,
	}

	srv := server.New(st, streams, bus, bc, admin, notifiee, log.WithField("component", "server"))

	if cfg.AppendOnly {
		if err := mgr.Load(aofPath, srv); err != nil {
			log.WithError(err).Fatal("failed to load persisted state")
		}
	} else if err := mgr.Load("", nil); err != nil {
		log.WithError(err).Fatal("failed to load RDB snapshot")
	}

	if cfg.AppendFsync == "everysec" && aof != nil {
		go everysecFlusher(aof, log.WithField("component", "aof"))
	}

	go waitForShutdown(srv, mgr, aof, log)

	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)
	if err := srv.ListenAndServe(addr); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

// parseMemoryBytes accepts the same human-readable suffixes as real
// Redis's maxmemory directive (kb/mb/gb, case-insensitive); an empty or
// unparseable value means no limit.
func parseMemoryBytes(s string) int64 {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "gb"):
		mult = 1 << 30
		s = strings.TrimSuffix(s, "gb")
	case strings.HasSuffix(s, "mb"):
		mult = 1 << 20
		s = strings.TrimSuffix(s, "mb")
	case strings.HasSuffix(s, "kb"):
		mult = 1 << 10
		s = strings.TrimSuffix(s, "kb")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n * mult
}

func newLogger(cfg *config.Config) *logrus.Entry {
	l := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			l.SetOutput(f)
		}
	}
	return logrus.NewEntry(l)
}

func everysecFlusher(aof *persistence.AOF, log *logrus.Entry) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if err := aof.FlushIfDue(); err != nil {
			log.WithError(err).Warn("aof fsync failed")
		}
	}
}

func waitForShutdown(srv *server.Server, mgr *persistence.Manager, aof *persistence.AOF, log *logrus.Entry) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	if err := mgr.Save(); err != nil {
		log.WithError(err).Warn("final save failed")
	}
	if aof != nil {
		if err := aof.Close(); err != nil {
			log.WithError(err).Warn("aof close failed")
		}
	}
	srv.Close()
	os.Exit(0)
}
