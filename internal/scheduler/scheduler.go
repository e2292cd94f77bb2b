package scheduler

import (
	"time"

	"golang.org/x/time/rate"

	"ticksched/internal/arena"
	"ticksched/internal/eventbus"
	"ticksched/internal/workerpool"
	logx "ticksched/pkg/logx"
)

// exhaustion warnings are throttled so a caller hammering a full arena
// doesn't flood the log; the returned error carries the signal either way.
const exhaustedWarnEvery = 5 * time.Second

// Scheduler owns one pending-task arena and, when Workers > 0, one worker
// pool. It is driven by a single goroutine; see the package doc for the
// threading contract.
type Scheduler struct {
	log logx.Logger
	bus eventbus.Bus
	cfg Config

	arena *arena.Arena[pending]
	pool  *workerpool.Pool

	lastTick time.Time
	elapsed  time.Duration

	terminated bool

	exhaustedWarn *rate.Limiter

	firedSync  uint64
	firedAsync uint64
	rejected   uint64
}

// New builds the scheduler. Capacity and worker count are fixed for its
// lifetime.
func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Scheduler {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}

	s := &Scheduler{
		log:           log,
		bus:           bus,
		cfg:           cfg,
		arena:         arena.New[pending](cfg.Capacity),
		lastTick:      time.Now(),
		exhaustedWarn: rate.NewLimiter(rate.Every(exhaustedWarnEvery), 1),
	}
	if cfg.Workers > 0 {
		s.pool = workerpool.New(cfg.Workers, log, bus)
	}
	s.log.Info("scheduler ready",
		logx.Int("capacity", cfg.Capacity),
		logx.Int("workers", cfg.Workers))
	return s
}

// Submit queues task to fire once delay has elapsed (counted across Ticks).
//
// It returns ErrInvalidTask for a nil callback, ErrExhausted when every slot
// is taken (the task is dropped; the caller decides whether to retry), and
// ErrTerminated after Terminate. A negative delay fires on the next Tick.
func (s *Scheduler) Submit(delay time.Duration, task Task) error {
	if s.terminated {
		return ErrTerminated
	}
	if task.Run == nil {
		s.log.Warn("task rejected: no callback", logx.String("task", task.Label))
		s.publish("submit.rejected", TaskEvent{Label: task.Label, Reason: "invalid"})
		return ErrInvalidTask
	}
	if delay < 0 {
		delay = 0
	}

	if !s.arena.Insert(pending{task: task, remaining: delay}) {
		s.rejected++
		if s.exhaustedWarn.Allow() {
			s.log.Warn("task rejected: arena exhausted",
				logx.String("task", task.Label),
				logx.Int("capacity", s.arena.Cap()),
				logx.Uint64("rejected_total", s.rejected))
		}
		s.publish("submit.rejected", TaskEvent{Label: task.Label, Reason: "exhausted"})
		return ErrExhausted
	}

	s.log.Trace("task submitted",
		logx.String("task", task.Label),
		logx.Duration("delay", delay),
		logx.Bool("sync", task.Synchronous))
	return nil
}

// Tick advances the logical clock by the monotonic time elapsed since the
// previous Tick, fires every task whose delay has run out, and reclaims
// their slots. Not reentrant; driving goroutine only.
func (s *Scheduler) Tick() error {
	if s.terminated {
		return ErrTerminated
	}

	now := time.Now()
	s.elapsed = now.Sub(s.lastTick)

	s.arena.ForEach(func(p *pending) bool {
		if s.elapsed >= p.remaining {
			s.dispatch(p.task)
			return true
		}
		p.remaining -= s.elapsed
		return false
	})
	s.arena.Sweep()

	s.lastTick = now
	return nil
}

// Terminate shuts the scheduler down. With finishPending it first dispatches
// every still-pending task once, ignoring remaining delays. The pool (if
// any) is then stopped; its queued-but-unstarted callbacks are dropped. All
// later Submit/Tick/Terminate calls return ErrTerminated.
func (s *Scheduler) Terminate(finishPending bool) error {
	if s.terminated {
		return ErrTerminated
	}
	s.terminated = true

	if finishPending {
		n := s.arena.Len()
		if n > 0 {
			s.log.Info("dispatching pending tasks at shutdown", logx.Int("pending", n))
		}
		s.arena.ForEach(func(p *pending) bool {
			s.dispatch(p.task)
			return true
		})
		s.arena.Sweep()
	}

	if s.pool != nil {
		_ = s.pool.Terminate()
	}

	s.log.Info("scheduler terminated",
		logx.Bool("finish_pending", finishPending),
		logx.Int("abandoned", s.arena.Len()))
	s.publish("sched.terminated", nil)
	return nil
}

// dispatch runs a triggered task. Synchronous tasks (and all tasks when no
// pool is configured) run inline, blocking the caller; panics from inline
// callbacks propagate to the driving goroutine rather than being swallowed.
// Everything else is copied into the pool's queue and runs later.
func (s *Scheduler) dispatch(t Task) {
	if t.Synchronous || s.pool == nil {
		s.firedSync++
		s.publish("task.fired", TaskEvent{Label: t.Label, Mode: "sync"})
		t.Run()
		return
	}
	s.firedAsync++
	s.publish("task.fired", TaskEvent{Label: t.Label, Mode: "async"})
	s.pool.Enqueue(t.Run)
}

func (s *Scheduler) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: data})
}

// Snapshot returns a diagnostics view. Driving goroutine only (it reads the
// same state Tick mutates).
func (s *Scheduler) Snapshot() Snapshot {
	snap := Snapshot{
		Capacity:   s.arena.Cap(),
		Pending:    s.arena.Len(),
		Free:       s.arena.FreeCount(),
		Workers:    s.cfg.Workers,
		FiredSync:  s.firedSync,
		FiredAsync: s.firedAsync,
		Rejected:   s.rejected,
	}
	if s.pool != nil {
		snap.QueueLen = s.pool.QueueLen()
	}
	return snap
}
