// Package arena provides a fixed-capacity slot container with O(1) insertion,
// free-list slot reuse, and a mark-then-sweep protocol for removing elements
// while iterating.
//
// Elements live only in the backing slice; the free list, active set and
// removal buffer hold indices into it. Inserting or sweeping never copies or
// relocates elements in slots it does not touch, which keeps per-tick
// iteration cheap when the container is visited every frame.
//
// The container is single-goroutine by design: the scheduler owns it and only
// ever touches it from the driving goroutine, so there is no internal locking.
package arena
