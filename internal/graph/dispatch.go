package graph

import (
	"context"
	"sync"
)

// Dispatcher runs units of work on the serialized context where tree
// mutation and event delivery happen. Dispatch returns once task has run.
type Dispatcher interface {
	Dispatch(ctx context.Context, task func(ctx context.Context)) error
}

// Inline runs every task on the calling goroutine. It is the dispatcher used
// when none is configured (headless tools, tests).
type Inline struct{}

// Dispatch runs task on the calling goroutine.
func (Inline) Dispatch(ctx context.Context, task func(ctx context.Context)) error {
	task(ctx)
	return nil
}

type foregroundKey struct{}

type foregroundTask struct {
	ctx      context.Context
	run      func(ctx context.Context)
	finished chan struct{}
	panicked any
	rejected bool
}

// Foreground owns a single goroutine that executes dispatched tasks one at a
// time. A task that dispatches again through the same Foreground (using the
// context it was given) runs inline, so nested population cannot deadlock.
type Foreground struct {
	tasks chan *foregroundTask
	done  chan struct{}
	once  sync.Once
}

// NewForeground starts the foreground goroutine. Call Close to stop it.
func NewForeground() *Foreground {
	f := &Foreground{
		tasks: make(chan *foregroundTask),
		done:  make(chan struct{}),
	}
	go f.loop()
	return f
}

func (f *Foreground) loop() {
	for {
		select {
		case t := <-f.tasks:
			select {
			case <-f.done:
				t.rejected = true
				close(t.finished)
			default:
				f.execute(t)
			}
		case <-f.done:
			return
		}
	}
}

func (f *Foreground) execute(t *foregroundTask) {
	defer close(t.finished)
	defer func() {
		if r := recover(); r != nil {
			t.panicked = r
		}
	}()
	t.run(context.WithValue(t.ctx, foregroundKey{}, f))
}

// Dispatch queues task and waits for it to finish. A panic inside task is
// re-raised on the caller's goroutine.
func (f *Foreground) Dispatch(ctx context.Context, task func(ctx context.Context)) error {
	if owner, _ := ctx.Value(foregroundKey{}).(*Foreground); owner == f {
		task(ctx)
		return nil
	}

	t := &foregroundTask{ctx: ctx, run: task, finished: make(chan struct{})}
	select {
	case f.tasks <- t:
	case <-f.done:
		return ErrDispatcherClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	<-t.finished
	if t.rejected {
		return ErrDispatcherClosed
	}
	if t.panicked != nil {
		panic(t.panicked)
	}
	return nil
}

// Close stops the foreground goroutine. Tasks already running complete;
// later Dispatch calls fail with ErrDispatcherClosed.
func (f *Foreground) Close() {
	f.once.Do(func() { close(f.done) })
}
