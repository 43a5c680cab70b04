// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

// Handle is an opaque stable reference into an ObjectAllocator. A freed slot
// bumps its generation when it is reused, so stale handles stop resolving
// instead of aliasing the next occupant.
type Handle struct {
	index      uint32
	generation uint32
}

// InvalidHandle is the explicit invalid state.
var InvalidHandle = Handle{index: ^uint32(0)}

// Valid reports whether the handle ever referred to a live object.
func (h Handle) Valid() bool {
	return h.index != ^uint32(0) && h.generation != 0
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// ObjectAllocator is a bounded slab of instance records yielding stable
// handles. Create fails once the configured limit is reached.
type ObjectAllocator[T any] struct {
	slots   []slot[T]
	free    []uint32
	current int
	limit   int
}

// NewObjectAllocator returns an allocator holding at most limit objects.
func NewObjectAllocator[T any](limit int) *ObjectAllocator[T] {
	return &ObjectAllocator[T]{limit: limit}
}

// Len returns the number of live objects.
func (a *ObjectAllocator[T]) Len() int {
	return a.current
}

// Limit returns the capacity bound.
func (a *ObjectAllocator[T]) Limit() int {
	return a.limit
}

// Create allocates a zeroed object and returns its handle.
func (a *ObjectAllocator[T]) Create() (Handle, error) {
	if a.current >= a.limit {
		return InvalidHandle, ErrNoSpaceLeft
	}
	a.current++

	if n := len(a.free); n > 0 {
		index := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[index]
		var zero T
		s.value = zero
		s.generation++
		s.occupied = true
		return Handle{index: index, generation: s.generation}, nil
	}

	a.slots = append(a.slots, slot[T]{generation: 1, occupied: true})
	return Handle{index: uint32(len(a.slots) - 1), generation: 1}, nil
}

// Remove frees the object behind the handle; stale or invalid handles are
// ignored.
func (a *ObjectAllocator[T]) Remove(h Handle) {
	if !a.owns(h) {
		return
	}
	a.slots[h.index].occupied = false
	a.free = append(a.free, h.index)
	a.current--
}

// Get returns the object behind the handle, or nil when the handle is stale
// or invalid.
func (a *ObjectAllocator[T]) Get(h Handle) *T {
	if !a.owns(h) {
		return nil
	}
	return &a.slots[h.index].value
}

func (a *ObjectAllocator[T]) owns(h Handle) bool {
	return h.Valid() && int(h.index) < len(a.slots) &&
		a.slots[h.index].occupied &&
		a.slots[h.index].generation == h.generation
}
