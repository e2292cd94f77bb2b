package scheduler

import "errors"

var (
	// ErrInvalidTask rejects a submission whose Run callback is nil.
	ErrInvalidTask = errors.New("task has no callback")

	// ErrExhausted rejects a submission when no free slot remains. The task
	// is dropped; retrying, shedding or escalating is the caller's call.
	ErrExhausted = errors.New("pending-task arena exhausted")

	// ErrTerminated is returned by every operation after Terminate.
	ErrTerminated = errors.New("scheduler terminated")
)
