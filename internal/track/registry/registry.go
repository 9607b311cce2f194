// Package registry implements the per-container slot registry.
//
// The registry is the bookkeeping half of tracked references. The container
// reports its mutations through the On* hooks; references hold a Slot and ask
// Resolve whether it is still live. Invalidation is lazy: a storage move only
// advances the generation, a size reduction only bumps the stamps of the
// removed positions, and every outstanding Slot discovers its fate the next
// time it is resolved. Mutation cost never depends on how many references
// exist.
//
// # Validity Rule
//
// A Slot resolves to an address iff all of the following hold:
//
//  1. the registry has not been torn down
//  2. slot.Gen equals the current generation (storage has not moved)
//  3. slot.Index is less than the current size
//  4. the position stamp of slot.Index equals slot.Stamp (the position has
//     not been removed by a size reduction since bind)
//
// The address is recomputed from the current base on every call, so a
// reference bound to a position observes whatever element currently occupies
// that position.
//
// # Ownership
//
// The container owns the registry for mutation. Every root reference keeps a
// pointer to it as well, so the registry outlives the container for as long
// as any reference does; after OnTeardown it answers CauseTeardown without
// touching the released buffer.
//
// # Thread Safety
//
// None. All mutation and all resolution must happen on one goroutine.
package registry

import (
	"unsafe"

	"github.com/google/uuid"

	"github.com/kolkov/trackvec/internal/track/generation"
)

// Cause classifies the outcome of Resolve.
type Cause uint8

const (
	// CauseNone means the slot is live.
	CauseNone Cause = iota
	// CauseTeardown means the container was destroyed.
	CauseTeardown
	// CauseReallocated means the backing storage moved after bind.
	CauseReallocated
	// CauseOutOfRange means the bound index is not below the current size.
	CauseOutOfRange
	// CauseShrunk means the bound position was removed by a size reduction
	// after bind, even if the container has grown back over it since.
	CauseShrunk
)

// String returns the string representation of a Cause.
func (c Cause) String() string {
	switch c {
	case CauseNone:
		return "live"
	case CauseTeardown:
		return "teardown"
	case CauseReallocated:
		return "reallocated"
	case CauseOutOfRange:
		return "out-of-range"
	case CauseShrunk:
		return "shrunk"
	default:
		return "unknown"
	}
}

// Registry tracks storage identity and effective size for one container.
type Registry struct {
	// base is the address of element 0 of the current buffer (nil when the
	// buffer has zero capacity or the registry is dead).
	base unsafe.Pointer

	// stride is the element size in bytes.
	stride uintptr

	gen  generation.Gen
	size int
	cap  int

	// stamps holds one stamp per capacity position. A stamp advances when
	// its position is removed by a size reduction.
	stamps []uint64

	dead bool

	// id is generated on first use; most registries never need one.
	id uuid.UUID
}

// New creates a registry for a buffer at base holding size elements of
// stride bytes each, with room for capacity elements.
func New(base unsafe.Pointer, stride uintptr, size, capacity int) *Registry {
	return &Registry{
		base:   base,
		stride: stride,
		gen:    generation.First,
		size:   size,
		cap:    capacity,
		stamps: make([]uint64, capacity),
	}
}

// Bind captures a slot for index. It always succeeds: an index at or beyond
// the current size (an end cursor, for example) resolves as out of range
// until the container grows over it without moving.
//
//go:nosplit
func (r *Registry) Bind(index int) generation.Slot {
	slot := generation.Slot{Index: index, Gen: r.gen}
	if index >= 0 && index < len(r.stamps) {
		slot.Stamp = r.stamps[index]
	}
	return slot
}

// Resolve reports whether slot is live and, if so, the current address of
// its element.
func (r *Registry) Resolve(slot generation.Slot) (unsafe.Pointer, Cause) {
	if cause := r.Check(slot); cause != CauseNone {
		return nil, cause
	}
	return unsafe.Add(r.base, uintptr(slot.Index)*r.stride), CauseNone
}

// Check is Resolve without the address computation.
//
//go:nosplit
func (r *Registry) Check(slot generation.Slot) Cause {
	switch {
	case r.dead:
		return CauseTeardown
	case !slot.Gen.Same(r.gen):
		return CauseReallocated
	case slot.Index < 0 || slot.Index >= r.size:
		return CauseOutOfRange
	case r.stamps[slot.Index] != slot.Stamp:
		return CauseShrunk
	}
	return CauseNone
}

// OnReallocate records that storage moved to base with room for capacity
// elements. The container must call it before releasing the old buffer.
// Every slot bound before the call becomes permanently invalid.
func (r *Registry) OnReallocate(base unsafe.Pointer, capacity int) {
	if r.dead {
		return
	}
	r.gen = r.gen.Next()
	r.base = base
	r.cap = capacity
	r.stamps = make([]uint64, capacity)
	if r.size > capacity {
		r.size = capacity
	}
}

// OnGrow records a size increase that kept storage in place.
func (r *Registry) OnGrow(size int) {
	if r.dead || size <= r.size {
		return
	}
	r.size = min(size, r.cap)
}

// OnShrink records a size reduction. Positions in [size, previous size) are
// retired: slots bound to them stay invalid even if the container later grows
// back over them.
func (r *Registry) OnShrink(size int) {
	if r.dead || size >= r.size {
		return
	}
	size = max(size, 0)
	for i := size; i < r.size; i++ {
		r.stamps[i]++
	}
	r.size = size
}

// OnTeardown marks the registry dead. The buffer reference and the stamp
// table are dropped so the container's storage can be collected while
// references still hold the registry.
func (r *Registry) OnTeardown() {
	if r.dead {
		return
	}
	r.gen = r.gen.Next()
	r.dead = true
	r.base = nil
	r.stamps = nil
	r.size = 0
	r.cap = 0
}

// ID returns the registry identity used in reports and logs.
func (r *Registry) ID() uuid.UUID {
	if r.id == uuid.Nil {
		r.id = uuid.New()
	}
	return r.id
}

// Generation returns the current storage generation.
func (r *Registry) Generation() generation.Gen {
	return r.gen
}

// Len returns the effective size.
func (r *Registry) Len() int {
	return r.size
}

// Cap returns the capacity of the current buffer.
func (r *Registry) Cap() int {
	return r.cap
}

// Stride returns the element size in bytes.
func (r *Registry) Stride() uintptr {
	return r.stride
}

// Dead reports whether OnTeardown has been called.
func (r *Registry) Dead() bool {
	return r.dead
}
