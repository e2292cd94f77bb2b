package scheduler

import "time"

// Config fixes the scheduler's shape at construction time.
//
// Capacity is the maximum number of simultaneously pending tasks; the arena
// does not grow. Workers is the size of the parallel pool; 0 disables the
// pool entirely, making every task run synchronously regardless of its flag.
type Config struct {
	Capacity int
	Workers  int
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 64
	}
	if c.Workers < 0 {
		c.Workers = 0
	}
	return c
}

// Task is a unit of work: a callback plus an execution-affinity flag.
//
// Synchronous tasks always run on the goroutine driving Tick/Terminate.
// Asynchronous tasks are copied into pool-owned storage when they fire; the
// callback must therefore be safe to invoke from another goroutine and must
// not touch driving-goroutine-only state.
type Task struct {
	// Label identifies the task in logs and events. Optional.
	Label string

	Run func()

	Synchronous bool
}

// pending pairs a task with its remaining time-to-trigger. It is owned
// exclusively by the arena slot holding it.
type pending struct {
	task      Task
	remaining time.Duration
}

// TaskEvent is the bus payload for task.fired and submit.rejected events.
type TaskEvent struct {
	Label string `json:"label"`
	// Mode is "sync" or "async" for task.fired; empty otherwise.
	Mode string `json:"mode,omitempty"`
	// Reason is set on submit.rejected ("invalid", "exhausted").
	Reason string `json:"reason,omitempty"`
}

// Snapshot is a lightweight diagnostics view.
type Snapshot struct {
	Capacity int
	Pending  int
	Free     int
	Workers  int
	QueueLen int

	FiredSync  uint64
	FiredAsync uint64
	Rejected   uint64
}
