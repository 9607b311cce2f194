package track

import (
	"fmt"
	"unsafe"

	"github.com/kolkov/trackvec/internal/track/registry"
	"github.com/kolkov/trackvec/internal/track/stackdepot"
)

// binding is shared by every handle issued from one Vector: the registry
// plus the policies selected when the Vector was created.
type binding struct {
	reg    *registry.Registry
	null   NullPolicy
	dangle DanglePolicy
	stacks *stackdepot.Depot // nil unless Options.CaptureStacks
}

// bind creates a root node for index. skip is the number of frames between
// bind and the user call site, for stack capture.
func (b *binding) bind(index, skip int) *node {
	n := &node{
		b:       b,
		slot:    b.reg.Bind(index),
		outside: index < 0 || index >= b.reg.Len(),
	}
	if b.stacks != nil {
		n.stack = b.stacks.Capture(skip + 1)
	}
	return n
}

// node is the state shared by all copies of one Handle.
//
// A root node resolves its slot through the registry. A derived node never
// consults the registry: it resolves its parent and adds its byte offset, so
// its validity is its root's validity by construction.
type node struct {
	b      *binding
	parent *node // nil for a root node

	slot    Slot   // root only
	stack   uint64 // bind-site stack hash, root only
	outside bool   // bound at or beyond the size, root only

	offset int // from the parent's address, derived only
	depth  int

	seen     bool // resolved successfully at least once
	dangling bool
	cause    Cause

	// last is the most recently resolved address.
	last unsafe.Pointer
}

// resolve returns the current address of the node, latching the node into
// the dangling state the first time resolution fails.
func (n *node) resolve() (unsafe.Pointer, Cause) {
	if n.dangling {
		return nil, n.cause
	}

	var (
		p     unsafe.Pointer
		cause Cause
	)
	if n.parent == nil {
		p, cause = n.b.reg.Resolve(n.slot)
	} else {
		p, cause = n.parent.resolve()
		if cause == CauseNone {
			p = unsafe.Add(p, n.offset)
		}
	}

	if cause != CauseNone {
		n.dangle(cause)
		return nil, cause
	}

	n.seen = true
	n.last = p
	return p, CauseNone
}

// dangle performs the one Bound to Dangling transition.
func (n *node) dangle(cause Cause) {
	n.dangling = true
	n.cause = cause
	n.b.dangle.OnDangle(&DangleEvent{
		Slot:  n.root().slot,
		Cause: cause,
		Depth: n.depth,
		n:     n,
	})
}

func (n *node) root() *node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// derive creates a child node offset bytes past n.
func (n *node) derive(offset int) *node {
	return &node{b: n.b, parent: n, offset: offset, depth: n.depth + 1}
}

// derived creates a child of a parent that is already dangling. The child
// was never bound, so no dangle policy runs for it.
func (n *node) derived(cause Cause) *node {
	c := n.derive(0)
	c.dangling = true
	c.cause = cause
	return c
}

func (n *node) staleError(op string, cause Cause) *StaleAccessError {
	root := n.root()

	kind := KindStaleAccess
	switch {
	case cause == CauseTeardown:
		kind = KindInvalidContainer
	case cause == CauseOutOfRange && root.outside && !root.seen:
		kind = KindOutOfRangeBind
	}

	return &StaleAccessError{
		Op:    op,
		Kind:  kind,
		Slot:  root.slot,
		Cause: cause,
		Depth: n.depth,
	}
}

// Handle is a tracked reference to a T stored in a Vector, or to a field of
// such an element.
//
// A Handle is bound to a position, not to a value: while the storage stays
// in place and the position stays below the size, Get returns whatever
// element currently occupies that position. Once the storage moves, the
// position is removed or the container is destroyed, the handle is
// Dangling and stays Dangling.
//
// Handles are small values. Copies share one state, so every copy observes
// a transition together and the DanglePolicy fires once for all of them.
// The zero Handle is unbound: it is never valid and runs no policy.
type Handle[T any] struct {
	n *node
}

// Valid reports whether the handle currently resolves to live storage.
// Once Valid returns false it returns false forever.
func (h Handle[T]) Valid() bool {
	if h.n == nil {
		return false
	}
	_, cause := h.n.resolve()
	return cause == CauseNone
}

// OK is Valid, for use in conditions: `if h.OK() { ... }`.
func (h Handle[T]) OK() bool {
	return h.Valid()
}

// Get returns a pointer to the referenced value.
//
// For an invalid handle Get runs the NullPolicy and returns nil. The pointer
// is only good until the next mutation of the container; keep the Handle,
// not the pointer.
func (h Handle[T]) Get() *T {
	if h.n == nil {
		return nil
	}
	p, cause := h.n.resolve()
	if cause != CauseNone {
		h.n.b.null.OnStaleAccess(h.n.staleError("Get", cause))
		return nil
	}
	return (*T)(p)
}

// TryGet is Get with an explicit error instead of the NullPolicy.
func (h Handle[T]) TryGet() (*T, error) {
	if h.n == nil {
		return nil, ErrUnbound
	}
	p, cause := h.n.resolve()
	if cause != CauseNone {
		return nil, h.n.staleError("TryGet", cause)
	}
	return (*T)(p), nil
}

// Load returns a copy of the referenced value and whether the handle was
// valid.
func (h Handle[T]) Load() (T, bool) {
	p, err := h.TryGet()
	if err != nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Store writes v through the handle and reports whether it was valid.
func (h Handle[T]) Store(v T) bool {
	p, err := h.TryGet()
	if err != nil {
		return false
	}
	*p = v
	return true
}

// LastKnown returns the last address the handle resolved to, without
// checking validity. After the handle dangles it is nil under NullOnDangle;
// other policies keep it for post-mortem inspection, which also keeps the
// old buffer reachable.
func (h Handle[T]) LastKnown() *T {
	if h.n == nil {
		return nil
	}
	return (*T)(h.n.last)
}

// Slot returns the bind point of the root of the handle's chain.
func (h Handle[T]) Slot() Slot {
	if h.n == nil {
		return Slot{}
	}
	return h.n.root().slot
}

// Root reports whether the handle is bound directly to a container slot.
func (h Handle[T]) Root() bool {
	return h.n != nil && h.n.parent == nil
}

// Depth returns 0 for a root handle and the number of derivation steps
// otherwise.
func (h Handle[T]) Depth() int {
	if h.n == nil {
		return 0
	}
	return h.n.depth
}

// String describes the handle without resolving it.
func (h Handle[T]) String() string {
	if h.n == nil {
		return "Handle(unbound)"
	}

	state := "bound"
	if h.n.dangling {
		state = "dangling: " + h.n.cause.String()
	}

	slot := h.n.root().slot
	if h.n.depth > 0 {
		return fmt.Sprintf("Handle(%v%+d, depth %d, %s)", slot, h.n.offset, h.n.depth, state)
	}
	return fmt.Sprintf("Handle(%v, %s)", slot, state)
}

// Derive creates a handle to a field of the value referenced by parent.
//
// field is called once, with the parent's current address, to locate the
// sub-value; the result must lie inside the root element (a field, an array
// entry, a field of a field). Pointers that leave the element, such as the
// target of a pointer field, are rejected with ErrOutsideElement.
//
// The derived handle is valid exactly when parent is. Deriving from a
// parent that is already invalid yields an invalid handle and no error.
//
// Example:
//
//	type Pair struct{ Key int; Name string }
//	h := v.HandleAt(1)
//	name, err := track.Derive(h, func(p *Pair) *string { return &p.Name })
func Derive[P, C any](parent Handle[P], field func(*P) *C) (Handle[C], error) {
	if parent.n == nil {
		return Handle[C]{}, ErrUnbound
	}

	pp, cause := parent.n.resolve()
	if cause != CauseNone {
		return Handle[C]{n: parent.n.derived(cause)}, nil
	}

	cp := field((*P)(pp))
	if cp == nil {
		return Handle[C]{}, ErrOutsideElement
	}

	// The root is live: parent just resolved through it.
	start, _ := parent.n.root().resolve()
	stride := parent.n.b.reg.Stride()

	var zero C
	addr := uintptr(unsafe.Pointer(cp))
	base := uintptr(start)
	if addr < base || addr-base+unsafe.Sizeof(zero) > stride {
		return Handle[C]{}, ErrOutsideElement
	}

	offset := int(addr-base) - int(uintptr(pp)-base)
	return Handle[C]{n: parent.n.derive(offset)}, nil
}

// DeriveOffset creates a handle to the C stored offset bytes into the value
// referenced by parent. The C must fit inside P and be aligned.
//
// Prefer Derive; DeriveOffset is for layouts described by offsets, for
// example from unsafe.Offsetof.
func DeriveOffset[P, C any](parent Handle[P], offset uintptr) (Handle[C], error) {
	if parent.n == nil {
		return Handle[C]{}, ErrUnbound
	}

	var (
		p P
		c C
	)
	if offset > unsafe.Sizeof(p) || offset+unsafe.Sizeof(c) > unsafe.Sizeof(p) {
		return Handle[C]{}, ErrOutsideElement
	}

	pp, cause := parent.n.resolve()
	if cause != CauseNone {
		return Handle[C]{n: parent.n.derived(cause)}, nil
	}

	if (uintptr(pp)+offset)%unsafe.Alignof(c) != 0 {
		return Handle[C]{}, ErrMisaligned
	}

	return Handle[C]{n: parent.n.derive(int(offset))}, nil
}
