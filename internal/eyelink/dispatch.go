package eyelink

import (
	"sync"
	"sync/atomic"
)

// Invoker runs functions on the application's event loop, in submission
// order.
type Invoker interface {
	Invoke(fn func())
}

// InvokerFunc adapts a function to the Invoker interface
type InvokerFunc func(fn func())

// Invoke calls f(fn)
func (f InvokerFunc) Invoke(fn func()) {
	f(fn)
}

// Loop is a minimal event loop: a single goroutine running submitted
// functions one at a time. Trackers use one when the application does not
// provide its own Invoker.
type Loop struct {
	q    *queue[func()]
	quit chan struct{}
	done chan struct{}
	once sync.Once
	gid  atomic.Int64 // goroutine running submitted functions
}

// NewLoop starts a loop
func NewLoop() *Loop {
	l := &Loop{
		q:    newQueue[func()](),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	l.gid.Store(goroutineID())
	defer close(l.done)
	for {
		if fn, ok := l.q.TryPop(); ok {
			fn()
			continue
		}
		select {
		case <-l.q.ready:
		case <-l.quit:
			for {
				fn, ok := l.q.TryPop()
				if !ok {
					return
				}
				fn()
			}
		}
	}
}

// Invoke queues fn. It never blocks.
func (l *Loop) Invoke(fn func()) {
	l.q.Push(fn)
}

// Flush waits until every function queued before the call has run. It
// returns immediately once the loop is closed, or when called from a
// function running on the loop.
func (l *Loop) Flush() {
	if onGoroutine(l.gid.Load()) {
		return
	}
	ch := make(chan struct{})
	l.Invoke(func() { close(ch) })
	select {
	case <-ch:
	case <-l.done:
	}
}

// Close runs what is still queued and stops the loop. Called from a
// function running on the loop, it only marks the loop for stopping: the
// rest of the queue runs once that function returns.
func (l *Loop) Close() {
	l.once.Do(func() {
		close(l.quit)
	})
	if onGoroutine(l.gid.Load()) {
		return
	}
	<-l.done
}
