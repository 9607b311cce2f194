package track

import (
	"fmt"
	"slices"
	"unsafe"

	"go.uber.org/zap"

	"github.com/kolkov/trackvec/internal/track/registry"
	"github.com/kolkov/trackvec/internal/track/stackdepot"
)

// Vector is a growable, contiguous array that issues tracked handles to its
// elements.
//
// Vector behaves like an ordinary packed array: Insert and Erase shift the
// elements after the position, Append grows the storage by doubling. Every
// mutation is reported to the vector's slot registry:
//
//   - a storage move (growth past capacity, Reserve, ShrinkToFit) is
//     reported before the old buffer is released and invalidates every
//     handle issued so far
//   - a size reduction (Erase, Clear, Resize down) invalidates the handles
//     bound to the removed positions
//   - Destroy invalidates every handle
//
// Handles bound to positions that survive a mutation stay valid and observe
// whatever element now occupies the position.
//
// Vector is not safe for concurrent use.
type Vector[T any] struct {
	data []T
	b    *binding
	log  *zap.Logger

	destroyed bool
}

// New creates an empty vector with DefaultOptions.
func New[T any]() *Vector[T] {
	return NewWithOptions[T](DefaultOptions())
}

// NewWithOptions creates an empty vector. Nil fields of opts fall back to
// DefaultOptions.
func NewWithOptions[T any](opts Options) *Vector[T] {
	opts = opts.normalize()

	var zero T
	b := &binding{
		reg:    registry.New(nil, unsafe.Sizeof(zero), 0, 0),
		null:   opts.Null,
		dangle: opts.Dangle,
	}
	if opts.CaptureStacks {
		b.stacks = stackdepot.New()
	}

	return &Vector[T]{b: b, log: opts.Logger}
}

// From creates a vector holding a copy of values, with DefaultOptions.
func From[T any](values ...T) *Vector[T] {
	v := New[T]()
	v.AssignSlice(values)
	return v
}

// Len returns the number of elements.
func (v *Vector[T]) Len() int {
	return len(v.data)
}

// Cap returns the number of elements the current storage can hold.
func (v *Vector[T]) Cap() int {
	return cap(v.data)
}

// At returns the element at i. It panics if i is out of range.
func (v *Vector[T]) At(i int) T {
	v.check()
	return v.data[i]
}

// Set replaces the element at i. It panics if i is out of range.
func (v *Vector[T]) Set(i int, val T) {
	v.check()
	v.data[i] = val
}

// Ptr returns an untracked pointer to the element at i. It is only good until
// the next mutation; use HandleAt for a reference that detects invalidation.
func (v *Vector[T]) Ptr(i int) *T {
	v.check()
	return &v.data[i]
}

// Slice returns an untracked view of the elements. Appending to the view
// never writes into the vector's spare capacity.
func (v *Vector[T]) Slice() []T {
	v.check()
	return slices.Clip(v.data)
}

// HandleAt returns a tracked handle bound to position i.
//
// Binding never fails: an index at or beyond Len (an end position, for
// example) yields a handle that is invalid unless the vector grows over it in
// place before the handle is first checked. On a destroyed vector the handle
// is invalid.
func (v *Vector[T]) HandleAt(i int) Handle[T] {
	return Handle[T]{n: v.b.bind(i, 1)}
}

// HandleFor returns a tracked handle bound to the position of c.
func (v *Vector[T]) HandleFor(c Cursor[T]) Handle[T] {
	v.own(c)
	return Handle[T]{n: v.b.bind(c.pos, 1)}
}

// Append adds values at the end.
func (v *Vector[T]) Append(values ...T) {
	v.check()
	if len(values) == 0 {
		return
	}
	n := len(v.data)
	v.ensure(n + len(values))
	v.data = append(v.data, values...)
	v.b.reg.OnGrow(len(v.data))
}

// Insert inserts values before position i, shifting later elements up.
// It panics if i is out of range [0, Len].
func (v *Vector[T]) Insert(i int, values ...T) {
	v.check()
	if i < 0 || i > len(v.data) {
		panic(fmt.Sprintf("track: insert index %d out of range [0:%d]", i, len(v.data)))
	}
	if len(values) == 0 {
		return
	}
	v.ensure(len(v.data) + len(values))
	// Capacity is sufficient, so slices.Insert works in place.
	v.data = slices.Insert(v.data, i, values...)
	v.b.reg.OnGrow(len(v.data))
}

// Erase removes the element at i, shifting later elements down.
// It panics if i is out of range.
func (v *Vector[T]) Erase(i int) {
	v.EraseRange(i, i+1)
}

// EraseRange removes the elements in [from, to).
// It panics if the range is invalid.
func (v *Vector[T]) EraseRange(from, to int) {
	v.check()
	if from < 0 || to > len(v.data) || from > to {
		panic(fmt.Sprintf("track: erase range [%d:%d] out of range [0:%d]", from, to, len(v.data)))
	}
	if from == to {
		return
	}
	// slices.Delete zeroes the vacated tail.
	v.data = slices.Delete(v.data, from, to)
	v.b.reg.OnShrink(len(v.data))
}

// Clear removes every element. The storage is kept.
func (v *Vector[T]) Clear() {
	v.check()
	clear(v.data)
	v.data = v.data[:0]
	v.b.reg.OnShrink(0)
}

// Resize sets the length to n. New elements are zero values.
func (v *Vector[T]) Resize(n int) {
	v.check()
	if n < 0 {
		panic(fmt.Sprintf("track: negative resize %d", n))
	}
	switch {
	case n < len(v.data):
		clear(v.data[n:])
		v.data = v.data[:n]
		v.b.reg.OnShrink(n)
	case n > len(v.data):
		v.ensure(n)
		// Storage beyond the length is always zeroed.
		v.data = v.data[:n]
		v.b.reg.OnGrow(n)
	}
}

// Reserve makes room for at least n elements. Growing moves the storage and
// invalidates every handle.
func (v *Vector[T]) Reserve(n int) {
	v.check()
	if n > cap(v.data) {
		v.reallocate(n)
	}
}

// ShrinkToFit releases spare capacity. If there is any, the storage moves
// and every handle is invalidated.
func (v *Vector[T]) ShrinkToFit() {
	v.check()
	if cap(v.data) > len(v.data) {
		v.reallocate(len(v.data))
	}
}

// Assign replaces the contents with n copies of val.
func (v *Vector[T]) Assign(n int, val T) {
	v.check()
	if n < 0 {
		panic(fmt.Sprintf("track: negative assign %d", n))
	}
	v.resizeExact(n)
	for i := range v.data {
		v.data[i] = val
	}
}

// AssignSlice replaces the contents with a copy of values.
func (v *Vector[T]) AssignSlice(values []T) {
	v.check()
	v.resizeExact(len(values))
	copy(v.data, values)
}

// Destroy releases the storage and invalidates every handle. Further
// container operations panic with ErrDestroyed; handles keep answering
// invalid. Destroy is idempotent.
func (v *Vector[T]) Destroy() {
	if v.destroyed {
		return
	}
	v.b.reg.OnTeardown()
	if ce := v.log.Check(zap.DebugLevel, "vector destroyed"); ce != nil {
		ce.Write(
			zap.Stringer("registry", v.b.reg.ID()),
			zap.Stringer("generation", v.b.reg.Generation()),
			zap.Int("len", len(v.data)),
		)
	}
	v.data = nil
	v.destroyed = true
}

// Destroyed reports whether Destroy has been called.
func (v *Vector[T]) Destroyed() bool {
	return v.destroyed
}

// resizeExact sets the length to n, allocating exactly n when the current
// storage is too small.
func (v *Vector[T]) resizeExact(n int) {
	if n > cap(v.data) {
		v.reallocate(n)
	}
	v.Resize(n)
}

// ensure grows the storage to hold n elements, at least doubling it.
func (v *Vector[T]) ensure(n int) {
	if n <= cap(v.data) {
		return
	}
	v.reallocate(max(2*cap(v.data), n))
}

// reallocate moves the elements to a new buffer with room for capacity
// elements. The registry learns about the move before the old buffer is
// dropped.
func (v *Vector[T]) reallocate(capacity int) {
	buf := make([]T, len(v.data), capacity)
	copy(buf, v.data)

	v.b.reg.OnReallocate(unsafe.Pointer(unsafe.SliceData(buf)), capacity)
	if ce := v.log.Check(zap.DebugLevel, "vector storage moved"); ce != nil {
		ce.Write(
			zap.Stringer("registry", v.b.reg.ID()),
			zap.Stringer("generation", v.b.reg.Generation()),
			zap.Int("len", len(buf)),
			zap.Int("from_cap", cap(v.data)),
			zap.Int("to_cap", capacity),
		)
	}

	v.data = buf
}

func (v *Vector[T]) check() {
	if v.destroyed {
		panic(ErrDestroyed)
	}
}

func (v *Vector[T]) own(c Cursor[T]) {
	if c.v != v {
		panic("track: cursor belongs to another vector")
	}
}
