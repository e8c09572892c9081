package app

import (
	"context"

	"github.com/charmbracelet/log"

	"pmctl/internal/appconfig"
	"pmctl/internal/remote"
)

// Options configures the top-level wrapper.
type Options struct {
	// NoAutoConnect leaves connection management to the caller: operations
	// never trigger Connect or Disconnect on the executor.
	NoAutoConnect bool
	// Logger receives diagnostics and unhandled errors. Defaults to
	// log.Default().
	Logger *log.Logger
	// Scheduler runs idle checks. Defaults to a new goroutine per check.
	Scheduler Scheduler
	// Normalizer prepares options for Create.
	Normalizer appconfig.Normalizer
}

// App is the client-side wrapper around the daemon: every operation
// connects on demand, shares the connection with concurrent operations and
// releases it once nothing is in flight.
//
// Each operation comes in two forms. X returns a Future and reports an
// unobserved failure as an EventError; XWithCallback additionally hands
// the outcome to a callback, which then owns the error.
type App struct {
	iface  *Interface
	conn   *coordinator
	events *emitter
	logger *log.Logger
}

// New constructs the wrapper over exec.
func New(exec remote.Executor, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	events := newEmitter()
	a := &App{
		events: events,
		logger: logger,
		conn:   newCoordinator(exec, opts.NoAutoConnect, opts.Scheduler, events, logger),
	}
	a.iface = newInterface(exec, opts.Normalizer, events, logger)
	a.iface.hold = func() func() {
		a.conn.enter()
		return a.conn.release
	}
	return a
}

// On registers a listener and returns a function that removes it.
func (a *App) On(kind EventKind, fn Listener) func() {
	return a.events.on(kind, fn)
}

// Interface exposes the underlying command façade.
func (a *App) Interface() *Interface {
	return a.iface
}

// Connect opens the shared connection. With auto-connect enabled the next
// idle check closes it again, so this is mostly useful with NoAutoConnect.
func (a *App) Connect(ctx context.Context) *Future[struct{}] {
	return a.ConnectWithCallback(ctx, nil)
}

// ConnectWithCallback is Connect with a completion callback.
func (a *App) ConnectWithCallback(ctx context.Context, cb Callback[struct{}]) *Future[struct{}] {
	return untracked(a, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.conn.open(ctx)
	}, cb)
}

// Disconnect closes the shared connection even if operations are pending.
// A connect still in flight is awaited first and then closed.
func (a *App) Disconnect(ctx context.Context) *Future[struct{}] {
	return a.DisconnectWithCallback(ctx, nil)
}

// DisconnectWithCallback is Disconnect with a completion callback.
func (a *App) DisconnectWithCallback(ctx context.Context, cb Callback[struct{}]) *Future[struct{}] {
	return untracked(a, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.conn.shutdown(ctx)
	}, cb)
}

// run executes fn with the shared connection held. The operation is
// registered before run returns; the connection is released only after the
// callback has returned.
func run[T any](a *App, ctx context.Context, fn func(context.Context) (T, error), cb Callback[T]) *Future[T] {
	f := newFuture[T](a)
	a.conn.enter()
	go func() {
		var val T
		err := a.conn.await(ctx)
		if err == nil {
			val, err = fn(ctx)
		}
		deliver(a, f, val, err, cb)
		a.conn.release()
	}()
	return f
}

func untracked[T any](a *App, ctx context.Context, fn func(context.Context) (T, error), cb Callback[T]) *Future[T] {
	f := newFuture[T](a)
	go func() {
		val, err := fn(ctx)
		deliver(a, f, val, err, cb)
	}()
	return f
}

// failed completes immediately with err without touching the connection.
func failed[T any](a *App, err error, cb Callback[T]) *Future[T] {
	f := newFuture[T](a)
	var zero T
	go deliver(a, f, zero, err, cb)
	return f
}

// deliver completes f and hands the outcome to cb, if any. A failure with
// neither a callback nor anything observing f is reported as an EventError
// from a scheduled check.
func deliver[T any](a *App, f *Future[T], val T, err error, cb Callback[T]) {
	f.complete(val, err)
	switch {
	case cb != nil:
		cb(val, err)
	case err != nil:
		a.conn.sched.Schedule(func() {
			if !f.observed.Load() {
				a.conn.reportError(err)
			}
		})
	}
}
