package track

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kolkov/trackvec/internal/track/generation"
	"github.com/kolkov/trackvec/internal/track/registry"
)

// Slot is the (index, generation, stamp) bind point of a root handle.
type Slot = generation.Slot

// Cause classifies why a handle is no longer valid.
type Cause = registry.Cause

// Dangle causes.
const (
	CauseNone        = registry.CauseNone
	CauseTeardown    = registry.CauseTeardown
	CauseReallocated = registry.CauseReallocated
	CauseOutOfRange  = registry.CauseOutOfRange
	CauseShrunk      = registry.CauseShrunk
)

// DangleEvent describes the Bound to Dangling transition of one handle.
//
// Events are passed to the DanglePolicy of the handle. They are only valid
// for the duration of the OnDangle call; copy the fields you need.
type DangleEvent struct {
	// Slot is the bind point of the root handle of the chain.
	Slot Slot

	// Cause is why the root slot stopped resolving.
	Cause Cause

	// Depth is 0 for a root handle and the chain length for derived ones.
	Depth int

	n *node
}

// DropCache clears the last resolved address of the dangling handle.
func (ev *DangleEvent) DropCache() {
	ev.n.last = nil
}

// RegistryID identifies the container the handle was bound to.
func (ev *DangleEvent) RegistryID() uuid.UUID {
	return ev.n.b.reg.ID()
}

// BindStack returns the formatted bind-site stack of the root handle, or ""
// when stack capture was disabled.
func (ev *DangleEvent) BindStack() string {
	root := ev.n.root()
	if root.b.stacks == nil || root.stack == 0 {
		return ""
	}
	st := root.b.stacks.Get(root.stack)
	if st == nil {
		return ""
	}
	return st.Format()
}

// Key identifies the dangling location for deduplication.
//
// Format: "{cause}:{registry}:{index}@{gen}:{depth}". Handles bound to the
// same slot at the same depth that dangle for the same cause share a key.
func (ev *DangleEvent) Key() string {
	return fmt.Sprintf("%s:%s:%v:%d", ev.Cause, ev.RegistryID(), ev.Slot, ev.Depth)
}

// Report renders the event as a multi-line report:
//
//	==================
//	WARNING: TRACKED REFERENCE DANGLED
//	Slot 2@g1 (root) of registry 5d1c...: reallocated
//
//	Bound at:
//	  main.build()
//	      /path/to/main.go:12
//	==================
func (ev *DangleEvent) Report() string {
	var buf strings.Builder

	buf.WriteString("==================\n")
	buf.WriteString("WARNING: TRACKED REFERENCE DANGLED\n")

	kind := "root"
	if ev.Depth > 0 {
		kind = fmt.Sprintf("derived, depth %d", ev.Depth)
	}
	fmt.Fprintf(&buf, "Slot %v (%s) of registry %s: %s\n", ev.Slot, kind, ev.RegistryID(), ev.Cause)

	if stack := ev.BindStack(); stack != "" {
		buf.WriteString("\nBound at:\n")
		buf.WriteString(stack)
	}

	buf.WriteString("==================\n")
	return buf.String()
}
