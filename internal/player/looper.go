package player

import (
	"context"
	"log/slog"
	"sync"
)

// Dispatcher schedules callbacks on the UI goroutine. Post returns false
// when the callback was not scheduled.
type Dispatcher interface {
	Post(fn func()) bool
}

// Looper is a Dispatcher backed by one goroutine that runs posted
// callbacks in order.
type Looper struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

func NewLooper(queue int) *Looper {
	if queue <= 0 {
		queue = 64
	}
	return &Looper{
		tasks: make(chan func(), queue),
		done:  make(chan struct{}),
	}
}

// Post may be called from any goroutine. It blocks while the queue is
// full, so callbacks running on the looper must not flood it.
func (l *Looper) Post(fn func()) bool {
	if fn == nil {
		return false
	}
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Run executes callbacks until ctx is done or Close is called.
func (l *Looper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return
		case <-l.done:
			return
		case fn := <-l.tasks:
			l.run(fn)
		}
	}
}

func (l *Looper) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ui callback panic recovered", "panic", r)
		}
	}()
	fn()
}

// Close stops the looper. Pending callbacks are dropped.
func (l *Looper) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// Call runs fn on the looper and waits for it to finish.
func (l *Looper) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrDispatcherClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrDispatcherClosed
	}
}
