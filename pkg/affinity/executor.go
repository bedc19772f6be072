// Package affinity provides a single-threaded executor for objects with
// strict thread-affinity requirements. Browser controllers, composition
// visuals, and capture sessions are all apartment-bound native objects:
// every call against them must originate from the one thread that created
// them. The executor owns that thread and exposes blocking, awaited-async,
// and fire-and-forget submission.
package affinity

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrStartFailed indicates the dedicated thread could not complete its
	// apartment/dispatcher setup.
	ErrStartFailed = errors.New("affinity: executor start failed")
	// ErrDisposed indicates the executor has been shut down.
	ErrDisposed = errors.New("affinity: executor disposed")
	// ErrNotStarted indicates a submission before Start.
	ErrNotStarted = errors.New("affinity: executor not started")
)

// joinTimeout bounds how long Dispose waits for the thread to exit.
const joinTimeout = 5 * time.Second

type job struct {
	fn    func() error
	async func() <-chan error
	res   chan error // nil for fire-and-forget posts
}

// Options configures an Executor.
type Options struct {
	// ThreadInit runs on the dedicated thread after it is locked to its OS
	// thread and before the executor reports ready. Platform backends use it
	// to initialize the execution apartment (e.g. GTK/GDK init). A non-nil
	// error fails Start.
	ThreadInit func() error

	// Pump, when set, is invoked between jobs and while the thread is
	// otherwise idle so platform callbacks keep firing. Platform backends
	// use it to iterate their native message loop.
	Pump func()

	// PumpInterval is the idle interval between Pump invocations.
	// Defaults to 4ms when Pump is set.
	PumpInterval time.Duration

	Logger zerolog.Logger
}

// Executor owns one dedicated OS thread and runs submitted work on it,
// preserving FIFO order among posts.
type Executor struct {
	jobs chan job
	quit chan struct{}
	done chan struct{}

	started  atomic.Bool
	disposed atomic.Bool
	tid      atomic.Uint64

	threadInit   func() error
	pump         func()
	pumpInterval time.Duration
	log          zerolog.Logger
}

// New creates an executor. Start must be called before any submission.
func New(opts Options) *Executor {
	interval := opts.PumpInterval
	if interval <= 0 {
		interval = 4 * time.Millisecond
	}
	return &Executor{
		jobs:         make(chan job, 256),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		threadInit:   opts.ThreadInit,
		pump:         opts.Pump,
		pumpInterval: interval,
		log:          opts.Logger.With().Str("component", "affinity").Logger(),
	}
}

// Start spawns the dedicated thread and blocks until it signals readiness.
func (e *Executor) Start() error {
	if e.disposed.Load() {
		return ErrDisposed
	}
	if !e.started.CompareAndSwap(false, true) {
		return nil
	}

	ready := make(chan error, 1)
	go e.run(ready)

	if err := <-ready; err != nil {
		e.disposed.Store(true)
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}
	return nil
}

func (e *Executor) run(ready chan<- error) {
	runtime.LockOSThread()
	defer close(e.done)

	if e.threadInit != nil {
		if err := e.threadInit(); err != nil {
			ready <- err
			return
		}
	}
	e.tid.Store(currentThreadID())
	ready <- nil

	if e.pump == nil {
		for {
			select {
			case j := <-e.jobs:
				e.dispatch(j)
			case <-e.quit:
				return
			}
		}
	}

	ticker := time.NewTicker(e.pumpInterval)
	defer ticker.Stop()
	for {
		select {
		case j := <-e.jobs:
			e.dispatch(j)
		case <-ticker.C:
			e.pump()
		case <-e.quit:
			return
		}
	}
}

// dispatch runs one job on the executor thread. Panics from blocking and
// async submissions are converted to errors for the submitter; panics from
// posts are logged and swallowed so one bad post cannot kill the pump.
func (e *Executor) dispatch(j job) {
	if j.async != nil {
		e.dispatchAsync(j)
		return
	}

	err := e.invoke(j.fn)
	if j.res != nil {
		j.res <- err
	} else if err != nil {
		e.log.Error().Err(err).Msg("posted work failed")
	}
}

// dispatchAsync starts the async work inline, then keeps pumping queued
// jobs until the foreign operation completes. A plain blocking wait here
// would deadlock any continuation that itself must run on this thread.
func (e *Executor) dispatchAsync(j job) {
	var op <-chan error
	err := e.invoke(func() error {
		op = j.async()
		return nil
	})
	if err != nil {
		j.res <- err
		return
	}
	if op == nil {
		j.res <- nil
		return
	}

	for {
		select {
		case err := <-op:
			j.res <- err
			return
		case nested := <-e.jobs:
			e.dispatch(nested)
		case <-e.quit:
			j.res <- ErrDisposed
			return
		}
	}
}

func (e *Executor) invoke(fn func() (err error)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("affinity: work panicked: %v", r)
		}
	}()
	return fn()
}

// OnThread reports whether the caller is running on the executor thread.
func (e *Executor) OnThread() bool {
	tid := currentThreadID()
	return tid != 0 && tid == e.tid.Load()
}

// RunBlocking executes work on the executor thread and returns its result
// synchronously. Re-entrant: when called from the executor thread itself
// the work runs inline.
func (e *Executor) RunBlocking(work func() error) error {
	if !e.started.Load() {
		return ErrNotStarted
	}
	if e.OnThread() {
		return e.invoke(work)
	}
	if e.disposed.Load() {
		return ErrDisposed
	}

	res := make(chan error, 1)
	select {
	case e.jobs <- job{fn: work, res: res}:
	case <-e.done:
		return ErrDisposed
	}
	select {
	case err := <-res:
		return err
	case <-e.done:
		return ErrDisposed
	}
}

// RunAsync submits work that itself awaits a foreign asynchronous operation.
// The work function runs on the executor thread and returns a completion
// channel; while that channel is pending the executor keeps pumping its
// queue so continuations bound to the same thread can fire. RunAsync blocks
// the caller until the operation completes.
func (e *Executor) RunAsync(work func() <-chan error) error {
	if !e.started.Load() {
		return ErrNotStarted
	}
	if e.disposed.Load() {
		return ErrDisposed
	}

	res := make(chan error, 1)
	select {
	case e.jobs <- job{async: work, res: res}:
	case <-e.done:
		return ErrDisposed
	}
	select {
	case err := <-res:
		return err
	case <-e.done:
		return ErrDisposed
	}
}

// Post enqueues fire-and-forget work. FIFO order is preserved among posts.
// Posts after Dispose are silently dropped.
func (e *Executor) Post(work func()) {
	if !e.started.Load() || e.disposed.Load() {
		return
	}
	select {
	case e.jobs <- job{fn: func() error { work(); return nil }}:
	case <-e.done:
	}
}

// Disposed reports whether Dispose has been called.
func (e *Executor) Disposed() bool {
	return e.disposed.Load()
}

// Dispose signals the pump to exit and joins the thread with a bounded
// timeout. In-flight blocking calls still complete; subsequent posts are
// dropped. Idempotent.
func (e *Executor) Dispose() {
	if !e.disposed.CompareAndSwap(false, true) {
		return
	}
	if !e.started.Load() {
		return
	}
	close(e.quit)
	select {
	case <-e.done:
	case <-time.After(joinTimeout):
		e.log.Warn().Dur("timeout", joinTimeout).Msg("executor thread did not exit before join timeout")
	}
}
