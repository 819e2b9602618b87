// Package task provides the single-goroutine run loop that serializes
// all pipeline work: generation batches, reveal ticks, style updates,
// and frame advances. Posting to the loop is the only way these
// mutate shared state, which makes "one writer at a time" structural
// rather than a locking discipline.
package task

import (
	"sync"
	"time"
)

// Loop executes posted functions one at a time on a dedicated
// goroutine, in post order. Delayed posts fire through timers but
// still execute on the same goroutine. The queue is unbounded, so
// tasks running on the loop may post follow-up work without ever
// blocking against the loop itself.
//
// Loop is safe for concurrent use by posters.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	wg sync.WaitGroup

	// timers is the set of outstanding delay timers so Close can stop
	// them.
	timers map[*time.Timer]struct{}
}

// NewLoop creates and starts a run loop.
func NewLoop() *Loop {
	l := &Loop{
		timers: make(map[*time.Timer]struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			// Closed and drained.
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}

// Post queues fn for execution on the loop goroutine.
// Returns false if the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// PostDelayed queues fn to run on the loop goroutine after the delay.
// The returned cancel function stops the timer if it has not fired;
// it is safe to call more than once.
func (l *Loop) PostDelayed(fn func(), d time.Duration) (cancel func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return func() {}
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		l.forgetTimer(t)
		l.Post(fn)
	})
	l.timers[t] = struct{}{}
	l.mu.Unlock()

	return func() {
		t.Stop()
		l.forgetTimer(t)
	}
}

func (l *Loop) forgetTimer(t *time.Timer) {
	l.mu.Lock()
	delete(l.timers, t)
	l.mu.Unlock()
}

// Sync posts fn and waits for it to finish. Used by tests and by
// callers that need a consistent snapshot of loop-owned state.
// Returns false without running fn if the loop is closed.
// Must not be called from the loop goroutine.
func (l *Loop) Sync(fn func()) bool {
	ch := make(chan struct{})
	if !l.Post(func() {
		fn()
		close(ch)
	}) {
		return false
	}
	<-ch
	return true
}

// Close stops the loop. Pending tasks are drained; outstanding delay
// timers are cancelled. Close blocks until the loop goroutine exits
// and is idempotent.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	for t := range l.timers {
		t.Stop()
	}
	l.timers = map[*time.Timer]struct{}{}
	l.cond.Signal()
	l.mu.Unlock()
	l.wg.Wait()
}
