package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "ticksched/pkg/logx"
)

func TestSubmitInvalidTask(t *testing.T) {
	t.Parallel()
	s := New(Config{Capacity: 4}, logx.Nop(), nil)
	defer s.Terminate(false)

	err := s.Submit(time.Second, Task{Label: "no-callback"})
	if !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("Submit = %v, want ErrInvalidTask", err)
	}
	if snap := s.Snapshot(); snap.Pending != 0 {
		t.Fatalf("Pending = %d after rejected submit, want 0", snap.Pending)
	}
}

func TestArenaExhaustion(t *testing.T) {
	t.Parallel()
	s := New(Config{Capacity: 1}, logx.Nop(), nil)
	defer s.Terminate(false)

	var ranX, ranY atomic.Bool
	if err := s.Submit(30*time.Millisecond, Task{Label: "x", Synchronous: true, Run: func() { ranX.Store(true) }}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	err := s.Submit(time.Millisecond, Task{Label: "y", Synchronous: true, Run: func() { ranY.Store(true) }})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("second Submit = %v, want ErrExhausted", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !ranX.Load() {
		t.Fatal("x did not fire")
	}
	if ranY.Load() {
		t.Fatal("y ran despite being rejected")
	}
	if snap := s.Snapshot(); snap.Rejected != 1 {
		t.Fatalf("Rejected = %d, want 1", snap.Rejected)
	}

	// The swept slot is reusable.
	if err := s.Submit(time.Second, Task{Label: "z", Synchronous: true, Run: func() {}}); err != nil {
		t.Fatalf("Submit after sweep: %v", err)
	}
}

func TestFiresOnceAfterDelayElapses(t *testing.T) {
	t.Parallel()
	s := New(Config{Capacity: 4}, logx.Nop(), nil)
	defer s.Terminate(false)

	var fires atomic.Int32
	if err := s.Submit(100*time.Millisecond, Task{Label: "once", Synchronous: true, Run: func() { fires.Add(1) }}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Cumulative elapsed well under the delay: must not fire.
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if fires.Load() != 0 {
		t.Fatal("task fired before its delay elapsed")
	}

	time.Sleep(150 * time.Millisecond)
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := fires.Load(); got != 1 {
		t.Fatalf("fires = %d after delay elapsed, want 1", got)
	}

	// Slot was reclaimed; further ticks don't re-fire.
	time.Sleep(20 * time.Millisecond)
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := fires.Load(); got != 1 {
		t.Fatalf("fires = %d after extra tick, want 1", got)
	}
}

// Synchronous tasks must complete inside the Tick call itself; that is the
// observable form of the same-goroutine guarantee.
func TestSynchronousRunsInsideTick(t *testing.T) {
	t.Parallel()
	s := New(Config{Capacity: 4, Workers: 2}, logx.Nop(), nil)
	defer s.Terminate(false)

	var ran atomic.Bool
	if err := s.Submit(10*time.Millisecond, Task{Label: "sync", Synchronous: true, Run: func() { ran.Store(true) }}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !ran.Load() {
		t.Fatal("synchronous task had not completed when Tick returned")
	}
}

func TestAsyncRunsOnWorker(t *testing.T) {
	t.Parallel()
	s := New(Config{Capacity: 4, Workers: 1}, logx.Nop(), nil)
	defer s.Terminate(false)

	done := make(chan struct{})
	if err := s.Submit(10*time.Millisecond, Task{Label: "async", Run: func() { close(done) }}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("async task never ran")
	}
	if snap := s.Snapshot(); snap.FiredAsync != 1 {
		t.Fatalf("FiredAsync = %d, want 1", snap.FiredAsync)
	}
}

func TestNoPoolFallsBackToSynchronous(t *testing.T) {
	t.Parallel()
	s := New(Config{Capacity: 4, Workers: 0}, logx.Nop(), nil)
	defer s.Terminate(false)

	var ran atomic.Bool
	// Parallel-eligible, but no pool: runs inline, no error.
	if err := s.Submit(10*time.Millisecond, Task{Label: "fallback", Run: func() { ran.Store(true) }}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !ran.Load() {
		t.Fatal("task had not completed when Tick returned (expected inline fallback)")
	}
	if snap := s.Snapshot(); snap.FiredSync != 1 {
		t.Fatalf("FiredSync = %d, want 1", snap.FiredSync)
	}
}

func TestTickScenario(t *testing.T) {
	t.Parallel()
	s := New(Config{Capacity: 4, Workers: 1}, logx.Nop(), nil)
	defer s.Terminate(false)

	var ranA atomic.Bool
	bDone := make(chan struct{})
	var ranC atomic.Bool

	if err := s.Submit(200*time.Millisecond, Task{Label: "a", Synchronous: true, Run: func() { ranA.Store(true) }}); err != nil {
		t.Fatalf("Submit a: %v", err)
	}
	if err := s.Submit(50*time.Millisecond, Task{Label: "b", Run: func() { close(bDone) }}); err != nil {
		t.Fatalf("Submit b: %v", err)
	}
	if err := s.Submit(600*time.Millisecond, Task{Label: "c", Synchronous: true, Run: func() { ranC.Store(true) }}); err != nil {
		t.Fatalf("Submit c: %v", err)
	}

	// First tick: elapsed ~100ms. Only b has come due.
	time.Sleep(100 * time.Millisecond)
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	select {
	case <-bDone:
	case <-time.After(5 * time.Second):
		t.Fatal("b never ran on the pool")
	}
	if ranA.Load() || ranC.Load() {
		t.Fatal("a or c fired early")
	}
	snap := s.Snapshot()
	if snap.Pending != 2 || snap.Free != 2 {
		t.Fatalf("after first tick: Pending=%d Free=%d, want 2/2", snap.Pending, snap.Free)
	}

	// Second tick: cumulative elapsed past a's delay but not c's.
	time.Sleep(150 * time.Millisecond)
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !ranA.Load() {
		t.Fatal("a did not fire on the second tick")
	}
	if ranC.Load() {
		t.Fatal("c fired early")
	}
	snap = s.Snapshot()
	if snap.Pending != 1 || snap.Free != 3 {
		t.Fatalf("after second tick: Pending=%d Free=%d, want 1/3", snap.Pending, snap.Free)
	}
}

func TestTerminateFinishPending(t *testing.T) {
	t.Parallel()
	s := New(Config{Capacity: 4}, logx.Nop(), nil)

	var ran atomic.Bool
	if err := s.Submit(30*time.Second, Task{Label: "straggler", Synchronous: true, Run: func() { ran.Store(true) }}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := s.Terminate(true); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if !ran.Load() {
		t.Fatal("pending task was not dispatched by Terminate(true)")
	}

	if err := s.Submit(time.Second, Task{Run: func() {}}); !errors.Is(err, ErrTerminated) {
		t.Fatalf("Submit after Terminate = %v, want ErrTerminated", err)
	}
	if err := s.Tick(); !errors.Is(err, ErrTerminated) {
		t.Fatalf("Tick after Terminate = %v, want ErrTerminated", err)
	}
	if err := s.Terminate(false); !errors.Is(err, ErrTerminated) {
		t.Fatalf("second Terminate = %v, want ErrTerminated", err)
	}
}

// The final dispatch pass hands async tasks to the pool, but the pool is
// shut down immediately after: a queued task that no worker can start before
// then is dropped, not drained, and Terminate must not hang on it.
func TestTerminateFinishPendingDropsUnstartedAsync(t *testing.T) {
	t.Parallel()
	s := New(Config{Capacity: 4, Workers: 1}, logx.Nop(), nil)

	started := make(chan struct{})
	release := make(chan struct{})
	if err := s.Submit(10*time.Millisecond, Task{Label: "blocker", Run: func() {
		close(started)
		<-release
	}}); err != nil {
		t.Fatalf("Submit blocker: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if err := s.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("blocker never started on the worker")
	}

	// Still pending; Terminate(true) will enqueue it behind the busy worker.
	var ran atomic.Bool
	if err := s.Submit(30*time.Second, Task{Label: "straggler", Run: func() { ran.Store(true) }}); err != nil {
		t.Fatalf("Submit straggler: %v", err)
	}

	termDone := make(chan error, 1)
	go func() { termDone <- s.Terminate(true) }()

	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case err := <-termDone:
		if err != nil {
			t.Fatalf("Terminate: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Terminate hung waiting for a queued callback")
	}
	if ran.Load() {
		t.Fatal("queued async task ran despite shutdown drop policy")
	}
}

func TestTerminateAbandonsPending(t *testing.T) {
	t.Parallel()
	s := New(Config{Capacity: 4}, logx.Nop(), nil)

	var ran atomic.Bool
	if err := s.Submit(30*time.Second, Task{Label: "abandoned", Synchronous: true, Run: func() { ran.Store(true) }}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.Terminate(false); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if ran.Load() {
		t.Fatal("pending task ran despite Terminate(false)")
	}
}
