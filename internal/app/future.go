package app

import (
	"context"
	"sync/atomic"
)

// Callback receives an operation's outcome after its Future completes.
type Callback[T any] func(T, error)

// Future is the eventual outcome of an App operation. It remembers the App
// that produced it so continuations can issue further calls through the
// same connection coordinator.
//
// Bulk operations may complete with both a value (the processes that
// succeeded) and a *BulkError.
//
// A failure counts as handled once Wait, Result, Catch, Then or Chain has
// been called on the future. Handlers must be attached before the idle
// check that follows completion, which in practice means right after the
// operation is issued.
type Future[T any] struct {
	app      *App
	done     chan struct{}
	val      T
	err      error
	observed atomic.Bool
}

func newFuture[T any](a *App) *Future[T] {
	return &Future[T]{app: a, done: make(chan struct{})}
}

func (f *Future[T]) complete(val T, err error) {
	f.val, f.err = val, err
	close(f.done)
}

// Done is closed once the outcome is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the outcome is available or ctx ends. Abandoning the
// wait does not cancel the operation.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	f.observed.Store(true)
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the outcome is available.
func (f *Future[T]) Result() (T, error) {
	f.observed.Store(true)
	<-f.done
	return f.val, f.err
}

// App returns the wrapper that produced the future.
func (f *Future[T]) App() *App {
	return f.app
}

// Catch returns a future that replaces a failure with fn's outcome.
// Successful outcomes pass through unchanged.
func (f *Future[T]) Catch(fn func(a *App, err error) (T, error)) *Future[T] {
	return continueWith(f, func(val T, err error) (T, error) {
		if err == nil {
			return val, nil
		}
		return fn(f.app, err)
	})
}

// Then returns a future for fn applied to f's value. A failure of f skips
// fn and is propagated.
func Then[T, U any](f *Future[T], fn func(a *App, val T) (U, error)) *Future[U] {
	return continueWith(f, func(val T, err error) (U, error) {
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(f.app, val)
	})
}

// Chain is Then for continuations that start another App operation.
func Chain[T, U any](f *Future[T], fn func(a *App, val T) *Future[U]) *Future[U] {
	return continueWith(f, func(val T, err error) (U, error) {
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(f.app, val).Result()
	})
}

// continueWith holds a reference on the coordinator until fn returns, so a
// chain of operations reuses one connection instead of reconnecting
// between links.
func continueWith[T, U any](f *Future[T], fn func(T, error) (U, error)) *Future[U] {
	next := newFuture[U](f.app)
	f.observed.Store(true)
	f.app.conn.enter()
	go func() {
		defer f.app.conn.release()
		val, err := fn(f.Result())
		next.complete(val, err)
	}()
	return next
}

// resolved returns an already completed future.
func resolved[T any](a *App, val T, err error) *Future[T] {
	f := newFuture[T](a)
	f.complete(val, err)
	return f
}
