// Package eventloop provides the single cooperative loop the screen runs on.
// BLE callbacks, async command results, timers and user intents are all
// posted as closures and executed one at a time on the goroutine calling Run,
// so the state they touch needs no locking.
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Run when the loop was already stopped.
var ErrStopped = errors.New("eventloop: stopped")

// Loop serializes closures onto one goroutine.
type Loop struct {
	tasks chan func()

	ctx    context.Context // cancelled by Stop; passed to async work
	cancel context.CancelFunc

	running sync.Mutex // held for the duration of Run
	work    sync.WaitGroup
}

// New creates a Loop whose task queue holds queueSize pending closures
// (default 64). Post blocks while the queue is full.
func New(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		tasks:  make(chan func(), queueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run executes posted closures until ctx is done or Stop is called.
// Only one Run may be active; it returns ctx.Err() or nil after Stop.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.TryLock() {
		return errors.New("eventloop: already running")
	}
	defer l.running.Unlock()
	defer l.Stop()

	if l.ctx.Err() != nil {
		return ErrStopped
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.ctx.Done():
			return nil
		case fn := <-l.tasks:
			l.exec(fn)
		}
	}
}

// exec runs one task; a panicking task is logged and the loop keeps going.
func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[LOOP] task panicked", "panic", r)
		}
	}()
	fn()
}

// Stop ends Run and cancels the context handed to async work. Idempotent.
func (l *Loop) Stop() {
	l.cancel()
}

// Done is closed once the loop is stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.ctx.Done()
}

// Post queues fn for execution on the loop. It reports false, without
// running fn, once the loop is stopped. Safe for concurrent use.
func (l *Loop) Post(fn func()) bool {
	if l.ctx.Err() != nil {
		return false
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.ctx.Done():
		return false
	}
}

// Async runs work on its own goroutine and posts done(err) back to the loop.
// If the loop stops first, done is never called.
func (l *Loop) Async(work func(ctx context.Context) error, done func(err error)) {
	l.work.Add(1)
	go func() {
		defer l.work.Done()
		err := work(l.ctx)
		if done == nil {
			return
		}
		if !l.Post(func() { done(err) }) {
			slog.Debug("[LOOP] dropped async result after stop", "error", err)
		}
	}()
}

// After posts fn to the loop once d has elapsed. The returned cancel func
// stops the timer; a timer that already fired may still have fn queued, so
// callers re-check their own state inside fn.
func (l *Loop) After(d time.Duration, fn func()) (cancel func()) {
	t := time.AfterFunc(d, func() {
		l.Post(fn)
	})
	return func() { t.Stop() }
}

// Wait blocks until all async work started with Async has returned or ctx
// is done.
func (l *Loop) Wait(ctx context.Context) error {
	ch := make(chan struct{})
	go func() {
		l.work.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
