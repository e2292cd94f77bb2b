package arena

// Arena is a fixed-capacity slot container.
//
// Every slot is in exactly one of three states:
//   - free: its index is on the free-list stack, content undefined
//   - active: holds a live element, index is in the active set
//   - marked: still holds its element, queued for reclamation at Sweep
//
// The sum of the three sets is always Cap(). Slot indices are stable for the
// lifetime of an element; elements are overwritten in place on reuse and are
// never moved between slots.
type Arena[T any] struct {
	slots []T

	// Active indices. Iteration order is whatever Go's map gives us; callers
	// must not rely on any particular order.
	active map[int]struct{}

	// Free-list implemented as a stack: most recently freed slot is reused
	// first (better cache behavior for hot insert/remove cycles).
	free []int

	// Indices marked for removal during the current ForEach pass.
	marked []int
}

// New returns an arena with room for capacity elements. Capacity is fixed for
// the arena's lifetime; a non-positive capacity yields an arena that rejects
// every Insert.
func New[T any](capacity int) *Arena[T] {
	if capacity < 0 {
		capacity = 0
	}
	a := &Arena[T]{
		slots:  make([]T, capacity),
		active: make(map[int]struct{}, capacity),
		free:   make([]int, 0, capacity),
		marked: make([]int, 0, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		a.free = append(a.free, i)
	}
	return a
}

// Insert stores v in a free slot and activates it. It returns false when the
// arena is full; v is discarded in that case. O(1), never blocks.
func (a *Arena[T]) Insert(v T) bool {
	n := len(a.free)
	if n == 0 {
		return false
	}
	idx := a.free[n-1]
	a.free = a.free[:n-1]
	a.slots[idx] = v // overwrite, never merge
	a.active[idx] = struct{}{}
	return true
}

// ForEach invokes fn once for every active slot. Returning true marks the
// slot for removal; its element stays untouched until the next Sweep.
//
// fn may mutate the element through the pointer, but must not Insert, Sweep
// or Reset from inside the callback: the active set must not change while it
// is being iterated. That restriction is the whole reason removal is
// deferred.
func (a *Arena[T]) ForEach(fn func(*T) (remove bool)) {
	for idx := range a.active {
		if fn(&a.slots[idx]) {
			a.marked = append(a.marked, idx)
		}
	}
}

// Sweep reclaims every slot marked during the preceding ForEach pass,
// returning the indices to the free list, and clears the removal buffer.
// Call it exactly once after each ForEach pass; calling it with nothing
// marked is a no-op.
func (a *Arena[T]) Sweep() {
	for _, idx := range a.marked {
		delete(a.active, idx)
		a.free = append(a.free, idx)
	}
	a.marked = a.marked[:0]
}

// Reset discards all content and returns every slot to the free list.
// In-flight ForEach passes must be complete before calling it.
func (a *Arena[T]) Reset() {
	var zero T
	for idx := range a.active {
		a.slots[idx] = zero
	}
	clear(a.active)
	a.free = a.free[:0]
	for i := len(a.slots) - 1; i >= 0; i-- {
		a.free = append(a.free, i)
	}
	a.marked = a.marked[:0]
}

// Cap returns the fixed capacity.
func (a *Arena[T]) Cap() int { return len(a.slots) }

// Len returns the number of active slots (marked slots still count as active
// until swept).
func (a *Arena[T]) Len() int { return len(a.active) }

// FreeCount returns the number of slots available for Insert.
func (a *Arena[T]) FreeCount() int { return len(a.free) }

// MarkedCount returns the number of slots awaiting Sweep.
func (a *Arena[T]) MarkedCount() int { return len(a.marked) }
