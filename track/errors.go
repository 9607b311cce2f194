package track

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleAccess is wrapped by every StaleAccessError.
	ErrStaleAccess = errors.New("track: stale access")

	// ErrUnbound is returned when deriving from the zero Handle.
	ErrUnbound = errors.New("track: unbound handle")

	// ErrOutsideElement is returned by Derive and DeriveOffset when the
	// requested sub-address does not lie inside the root element.
	ErrOutsideElement = errors.New("track: sub-address outside element")

	// ErrMisaligned is returned by DeriveOffset for an offset that is not
	// aligned for the target type.
	ErrMisaligned = errors.New("track: misaligned offset")

	// ErrDestroyed is the panic value of container operations on a
	// destroyed Vector.
	ErrDestroyed = errors.New("track: vector destroyed")
)

// Kind identifies the category of a failed access.
type Kind int

const (
	// KindStaleAccess is an access through a handle whose storage was
	// invalidated after it had been bound.
	KindStaleAccess Kind = iota
	// KindOutOfRangeBind is an access through a handle bound at or beyond
	// the size of the container that never became reachable.
	KindOutOfRangeBind
	// KindInvalidContainer is an access through a handle whose container
	// has been destroyed.
	KindInvalidContainer
)

func (k Kind) String() string {
	switch k {
	case KindStaleAccess:
		return "stale access"
	case KindOutOfRangeBind:
		return "out-of-range bind"
	case KindInvalidContainer:
		return "invalid container"
	default:
		return "unknown"
	}
}

// StaleAccessError describes a dereference of an invalid handle.
type StaleAccessError struct {
	// Op is the handle operation that failed (e.g. "Get").
	Op string
	// Kind categorizes the failure.
	Kind Kind
	// Slot is the bind point of the root handle of the chain.
	Slot Slot
	// Cause is why the root slot no longer resolves.
	Cause Cause
	// Depth is 0 for a root handle and the chain length for derived ones.
	Depth int
}

func (e *StaleAccessError) Error() string {
	if e.Depth > 0 {
		return fmt.Sprintf("track: %s on %v (derived, depth %d): %s (%s)", e.Op, e.Slot, e.Depth, e.Kind, e.Cause)
	}
	return fmt.Sprintf("track: %s on %v: %s (%s)", e.Op, e.Slot, e.Kind, e.Cause)
}

func (e *StaleAccessError) Unwrap() error {
	return ErrStaleAccess
}
