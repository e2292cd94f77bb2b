// Package workerpool runs callbacks on a small set of long-lived worker
// goroutines fed by a shared FIFO queue.
//
// The queue is unbounded (only the scheduler's arena is capacity-limited);
// Enqueue never blocks beyond the time needed to take the queue lock. On
// Terminate, callbacks that were enqueued but not yet started are dropped,
// not drained. Callers that need queued work to finish must arrange for it to
// complete before terminating.
package workerpool

import (
	"runtime/debug"
	"sync"

	"ticksched/internal/eventbus"
	logx "ticksched/pkg/logx"
)

// Pool owns its worker goroutines and the shared queue. It must not be
// reused after Terminate.
type Pool struct {
	log logx.Logger
	bus eventbus.Bus

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func() // FIFO, head at index 0
	running bool

	wg sync.WaitGroup
}

// New starts workers goroutines and returns the pool. workers must be >= 1;
// callers that want a poolless setup simply don't construct one.
func New(workers int, log logx.Logger, bus eventbus.Bus) *Pool {
	if workers < 1 {
		workers = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Pool{log: log, bus: bus, running: true}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

// Enqueue appends fn to the queue and wakes exactly one idle worker.
//
// After Terminate it silently drops fn (the scheduler guards its own
// lifecycle, so this is a race window, not an expected path).
func (p *Pool) Enqueue(fn func()) {
	if fn == nil {
		return
	}
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, fn)
	p.mu.Unlock()
	p.cond.Signal()
}

// Terminate clears the run flag, wakes every blocked worker and joins them.
//
// Callbacks already executing run to completion. Callbacks still queued are
// dropped; the drop count is logged and published so the loss is never
// silent. A second call is a guarded no-op returning ErrTerminated.
func (p *Pool) Terminate() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrTerminated
	}
	p.running = false
	dropped := len(p.queue)
	p.queue = nil
	p.mu.Unlock()

	p.cond.Broadcast()
	p.wg.Wait()

	if dropped > 0 {
		p.log.Warn("queued callbacks dropped at shutdown", logx.Int("dropped", dropped))
		if p.bus != nil {
			p.bus.Publish(eventbus.Event{Type: "task.dropped", Data: map[string]any{"count": dropped}})
		}
	}
	return nil
}

// QueueLen reports the number of queued, not-yet-started callbacks.
func (p *Pool) QueueLen() int {
	p.mu.Lock()
	n := len(p.queue)
	p.mu.Unlock()
	return n
}

func (p *Pool) worker(idx int) {
	defer p.wg.Done()

	p.log.Debug("worker started", logx.Int("worker", idx))
	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Type: "worker.started", Data: idx})
	}

	for {
		p.mu.Lock()
		for p.running && len(p.queue) == 0 {
			// Spurious wakeups just loop and re-check.
			p.cond.Wait()
		}
		if !p.running {
			p.mu.Unlock()
			break
		}
		fn := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		// Run outside the lock; a callback's runtime must never block Enqueue
		// or the other workers.
		p.run(fn, idx)
	}

	p.log.Debug("worker stopped", logx.Int("worker", idx))
	if p.bus != nil {
		p.bus.Publish(eventbus.Event{Type: "worker.stopped", Data: idx})
	}
}

// run isolates a panicking callback from the rest of the pool. The queue's
// own state can't be corrupted here (the lock is not held), so recovering is
// safe; swallowing silently is not, hence the error log with stack.
func (p *Pool) run(fn func(), idx int) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic in worker callback",
				logx.Int("worker", idx),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())))
		}
	}()
	fn()
}
