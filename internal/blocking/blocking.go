// Package blocking implements the FIFO waiter registry behind BLPOP/
// BRPOP and friends (spec.md §4.7, component G): waiters register per
// (db, key), are woken in registration order when a push mutates that
// key, and honor per-waiter deadlines via one timer goroutine per waiter
// that has a timeout; there is no shared timer or timeout wheel.
package blocking

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type dbKey struct {
	db  int
	key string
}

// Waiter is one blocked caller. Attempt is re-invoked under the relevant
// shard lock (by the caller owning the storage engine) each time any of
// Keys is pushed to; it must be side-effect free except for its own
// consumption of the value, and return ok=true once it has consumed
// whatever it was waiting for.
type Waiter struct {
	ID      uint64
	Keys    []string
	DB      int
	Attempt func(db int, key string) (result interface{}, ok bool)
	done    chan struct{}
	result  interface{}
	timedOut bool
	mu      sync.Mutex
	fired   bool
}

func (w *Waiter) complete(result interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fired {
		return
	}
	w.fired = true
	w.result = result
	close(w.done)
}

// Result blocks until the waiter completes or ctx is cancelled (the
// server's connection context, which only CLIENT KILL cancels; a peer
// closing its socket does not), returning (result, ok, timedOut).
func (w *Waiter) Result(ctx context.Context) (interface{}, bool, bool) {
	select {
	case <-w.done:
		return w.result, w.result != nil, w.timedOut
	case <-ctx.Done():
		return nil, false, false
	}
}

// Coordinator owns the per-key FIFO queues; timeouts are armed per waiter
// by Register.
type Coordinator struct {
	mu      sync.Mutex
	queues  map[dbKey][]*Waiter
	nextID  uint64
	clock   clock.Clock
}

func New(clk clock.Clock) *Coordinator {
	if clk == nil {
		clk = clock.New()
	}
	return &Coordinator{queues: make(map[dbKey][]*Waiter), clock: clk}
}

// Register enqueues a waiter on every key it watches, in FIFO order, and
// arms its timeout (timeout<=0 means wait indefinitely).
func (c *Coordinator) Register(db int, keys []string, attempt func(db int, key string) (interface{}, bool), timeout time.Duration) *Waiter {
	c.mu.Lock()
	c.nextID++
	w := &Waiter{ID: c.nextID, Keys: keys, DB: db, Attempt: attempt, done: make(chan struct{})}
	for _, k := range keys {
		dk := dbKey{db, k}
		c.queues[dk] = append(c.queues[dk], w)
	}
	c.mu.Unlock()

	if timeout > 0 {
		t := c.clock.Timer(timeout)
		go func() {
			select {
			case <-t.C:
				c.cancel(w, true)
			case <-w.done:
				t.Stop()
			}
		}()
	}
	return w
}

func (c *Coordinator) cancel(w *Waiter, timedOut bool) {
	c.mu.Lock()
	for _, k := range w.Keys {
		dk := dbKey{w.DB, k}
		q := c.queues[dk]
		for i, qw := range q {
			if qw == w {
				c.queues[dk] = append(q[:i], q[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()
	w.mu.Lock()
	already := w.fired
	w.mu.Unlock()
	if !already {
		w.timedOut = timedOut
		w.complete(nil)
	}
}

// Cancel removes a waiter from every queue it's registered in, used on
// client disconnect (spec.md §5 "Cancellation & timeouts").
func (c *Coordinator) Cancel(w *Waiter) { c.cancel(w, false) }

// Notify is called by the storage engine (as its store.Notifier) after
// releasing a shard lock on a key mutation that could satisfy a waiter
// (spec.md §4.3, §4.7). It pops waiters at the head of key's queue in
// FIFO order, re-attempting their operation; a waiter that fails to
// consume anything (another waiter beat it) is re-enqueued at the head.
func (c *Coordinator) Notify(db int, key string) {
	dk := dbKey{db, key}
	for {
		c.mu.Lock()
		q := c.queues[dk]
		if len(q) == 0 {
			c.mu.Unlock()
			return
		}
		w := q[0]
		c.queues[dk] = q[1:]
		c.mu.Unlock()

		w.mu.Lock()
		fired := w.fired
		w.mu.Unlock()
		if fired {
			continue
		}

		result, ok := w.Attempt(db, key)
		if ok {
			w.complete(result)
			c.deregisterAll(w)
			continue
		}
		c.mu.Lock()
		c.queues[dk] = append([]*Waiter{w}, c.queues[dk]...)
		c.mu.Unlock()
		return
	}
}

func (c *Coordinator) deregisterAll(w *Waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range w.Keys {
		dk := dbKey{w.DB, k}
		q := c.queues[dk]
		for i, qw := range q {
			if qw == w {
				c.queues[dk] = append(q[:i], q[i+1:]...)
				break
			}
		}
	}
}
