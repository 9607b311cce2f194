// Package stackdepot stores deduplicated bind-site stack traces.
//
// When stack capture is enabled, every root reference records the stack that
// created it. Identical stacks are stored once and referenced by a 64-bit
// FNV-1a hash, so a loop binding thousands of references from the same call
// site costs one StackTrace.
//
// Usage:
//
//	d := stackdepot.New()
//	hash := d.Capture(1)
//
//	// Later, when the reference dangles:
//	if st := d.Get(hash); st != nil {
//	    fmt.Print(st.Format())
//	}
package stackdepot

import (
	"fmt"
	"hash/fnv"
	"runtime"
	"strings"
	"sync"
	"unsafe"
)

// MaxFrames is the maximum number of stack frames kept per trace.
const MaxFrames = 8

// StackTrace is a captured stack of fixed size (64 bytes of program counters).
type StackTrace struct {
	PC [MaxFrames]uintptr
}

// Depot is a deduplicating store of stack traces.
//
// The zero value is not usable; create one with New.
type Depot struct {
	stacks sync.Map // uint64 (hash) -> *StackTrace
}

// New creates an empty depot.
func New() *Depot {
	return &Depot{}
}

// Capture records the stack of its caller and returns the stack hash.
//
// skip is the number of additional frames to drop above Capture's caller,
// so library code can hide its own frames. Returns 0 if no stack was
// available.
func (d *Depot) Capture(skip int) uint64 {
	var pcs [MaxFrames]uintptr
	// 2 = runtime.Callers + Capture.
	n := runtime.Callers(2+skip, pcs[:])
	if n == 0 {
		return 0
	}

	hash := hashStack(pcs[:n])
	if _, exists := d.stacks.Load(hash); exists {
		return hash
	}

	d.stacks.Store(hash, &StackTrace{PC: pcs})
	return hash
}

// Get returns the stack stored under hash, or nil.
func (d *Depot) Get(hash uint64) *StackTrace {
	if hash == 0 {
		return nil
	}

	val, ok := d.stacks.Load(hash)
	if !ok {
		return nil
	}

	return val.(*StackTrace)
}

// Stats returns the number of unique stacks and their approximate memory use.
//
// O(N) over stored stacks. Not for hot paths.
func (d *Depot) Stats() (uniqueStacks int, totalMemory int64) {
	d.stacks.Range(func(_, _ any) bool {
		uniqueStacks++
		return true
	})

	totalMemory = int64(uniqueStacks) * int64(unsafe.Sizeof(StackTrace{}))
	return uniqueStacks, totalMemory
}

// Reset drops every stored stack.
func (d *Depot) Reset() {
	d.stacks.Clear()
}

func hashStack(pcs []uintptr) uint64 {
	h := fnv.New64a()

	var buf [8]byte
	for _, pc := range pcs {
		v := uint64(pc)
		for i := range buf {
			buf[i] = byte(v >> (8 * i))
		}
		_, _ = h.Write(buf[:]) // hash.Hash.Write never fails.
	}

	return h.Sum64()
}

// Format renders the stack one frame per two lines:
//
//	main.loadUsers()
//	      /src/app/users.go:45
//
// Runtime frames are skipped.
func (st *StackTrace) Format() string {
	if st == nil {
		return "  <unknown>\n"
	}

	frames := runtime.CallersFrames(st.PC[:])

	var buf strings.Builder
	for {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}

		if strings.HasPrefix(frame.Function, "runtime.") {
			if !more {
				break
			}
			continue
		}

		fmt.Fprintf(&buf, "  %s()\n", frame.Function)
		fmt.Fprintf(&buf, "      %s:%d\n", frame.File, frame.Line)

		if !more {
			break
		}
	}

	result := buf.String()
	if result == "" {
		return "  <runtime internal>\n"
	}

	return result
}
