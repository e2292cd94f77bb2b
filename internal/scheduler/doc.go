// Package scheduler implements ticksched's timed-task core: callers submit
// zero-argument callbacks with a delay and an execution-affinity flag, and an
// external driving loop calls Tick to advance time and dispatch whatever has
// come due.
//
// # Time model
//
// Delays count down by the elapsed time between consecutive Tick calls
// (monotonic clock), not against absolute deadlines computed at submission.
// A long gap between Ticks is therefore charged in full to every pending
// task on the next Tick. This countdown-by-delta model trades exact wall
// clock fidelity for a dead-simple per-tick pass; callers that need
// deadline-accurate firing should tick at a steady cadence.
//
// # Threading
//
// Submit, Tick and Terminate belong to a single driving goroutine; none of
// them are safe to call concurrently with each other. Tasks not flagged
// Synchronous are handed to a worker pool and run on some worker goroutine
// at an unspecified later time, possibly concurrently with further Ticks.
//
// # Shutdown
//
// Terminate(true) dispatches every still-pending task once, ignoring
// remaining delays, before stopping the pool. Work already handed to the
// pool but not started when the pool stops is dropped, not drained; the
// scheduler reports the loss but does not wait for it.
package scheduler
