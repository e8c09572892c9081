package app

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"pmctl/internal/remote"
)

// Scheduler defers a function to a later point. Idle checks always go
// through it so that an operation issued right after another finishes can
// still claim the connection before it is closed.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func())

// Schedule implements Scheduler.
func (f SchedulerFunc) Schedule(fn func()) { f(fn) }

type goScheduler struct{}

func (goScheduler) Schedule(fn func()) { go fn() }

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

func (s connState) String() string {
	switch s {
	case stateDisconnected:
		return "disconnected"
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// coordinator reference-counts operations over one shared connection.
//
// pending is incremented before any operation suspends and decremented
// after its callback has run. The connection is closed only by a scheduled
// idle check that observes pending == 0 while connected.
type coordinator struct {
	exec   remote.Executor
	manual bool
	sched  Scheduler
	events *emitter
	logger *log.Logger

	flight singleflight.Group

	mu      sync.Mutex
	state   connState
	pending int
	// closing is non-nil while Disconnect is in flight; a new connect
	// waits on it so the executor never tears down a fresh channel.
	closing chan struct{}
}

func newCoordinator(exec remote.Executor, manual bool, sched Scheduler, events *emitter, logger *log.Logger) *coordinator {
	if sched == nil {
		sched = goScheduler{}
	}
	return &coordinator{
		exec:   exec,
		manual: manual,
		sched:  sched,
		events: events,
		logger: logger,
	}
}

// enter registers an operation. It never blocks.
func (c *coordinator) enter() {
	c.mu.Lock()
	c.pending++
	c.mu.Unlock()
}

// await blocks until the shared connection is usable. Concurrent callers
// share a single connect attempt. With auto-connect disabled it returns
// immediately.
func (c *coordinator) await(ctx context.Context) error {
	if c.manual {
		return nil
	}
	c.mu.Lock()
	if c.state == stateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = stateConnecting
	c.mu.Unlock()
	return c.dial(ctx)
}

// release unregisters an operation and schedules an idle check.
func (c *coordinator) release() {
	c.mu.Lock()
	c.pending--
	if c.pending < 0 {
		c.pending = 0
	}
	c.mu.Unlock()
	c.sched.Schedule(c.idleCheck)
}

// open connects regardless of the auto-connect setting.
func (c *coordinator) open(ctx context.Context) error {
	c.mu.Lock()
	if c.state == stateConnected {
		c.mu.Unlock()
		return nil
	}
	c.state = stateConnecting
	c.mu.Unlock()
	return c.dial(ctx)
}

// shutdown disconnects regardless of pending operations. A connect in
// flight is joined first so it cannot open the channel after shutdown
// returns; if that connect fails there is nothing to close.
func (c *coordinator) shutdown(ctx context.Context) error {
	c.mu.Lock()
	connecting := c.state == stateConnecting
	c.mu.Unlock()
	if connecting {
		select {
		case res := <-c.flight.DoChan("connect", c.connect):
			if res.Err != nil {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	if c.state != stateConnected {
		c.mu.Unlock()
		return nil
	}
	closing := c.beginCloseLocked()
	c.mu.Unlock()
	return c.finishClose(closing)
}

func (c *coordinator) idleCheck() {
	if c.manual {
		return
	}
	c.mu.Lock()
	if c.pending > 0 || c.state != stateConnected {
		c.mu.Unlock()
		return
	}
	closing := c.beginCloseLocked()
	c.mu.Unlock()

	if err := c.finishClose(closing); err != nil {
		c.reportError(err)
	}
}

func (c *coordinator) dial(ctx context.Context) error {
	ch := c.flight.DoChan("connect", c.connect)
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// connect runs at most once at a time through the singleflight group.
func (c *coordinator) connect() (any, error) {
	c.mu.Lock()
	if c.state == stateConnected {
		c.mu.Unlock()
		return nil, nil
	}
	c.state = stateConnecting
	closing := c.closing
	c.mu.Unlock()

	if closing != nil {
		<-closing
	}

	c.logger.Debug("connecting to daemon")
	if err := c.exec.Connect(context.Background()); err != nil {
		c.mu.Lock()
		c.state = stateDisconnected
		c.mu.Unlock()
		return nil, &ConnectionError{Op: "connect", Err: err}
	}

	c.mu.Lock()
	c.state = stateConnected
	c.mu.Unlock()
	c.events.emit(Event{Kind: EventConnect})
	// Every waiter may have given up while the dial was in flight.
	c.sched.Schedule(c.idleCheck)
	return nil, nil
}

func (c *coordinator) beginCloseLocked() chan struct{} {
	c.state = stateDisconnected
	closing := make(chan struct{})
	c.closing = closing
	return closing
}

func (c *coordinator) finishClose(closing chan struct{}) error {
	c.logger.Debug("disconnecting from daemon")
	err := c.exec.Disconnect(context.Background())
	if err == nil {
		c.events.emit(Event{Kind: EventDisconnect})
	}

	c.mu.Lock()
	if c.closing == closing {
		c.closing = nil
	}
	c.mu.Unlock()
	close(closing)

	if err != nil {
		return &ConnectionError{Op: "disconnect", Err: err}
	}
	return nil
}

func (c *coordinator) reportError(err error) {
	if c.events.emit(Event{Kind: EventError, Err: err}) {
		return
	}
	c.logger.Error("unhandled error", "err", err)
}

func (c *coordinator) snapshot() (connState, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.pending
}
