package registry

import (
	"testing"
	"unsafe"

	"github.com/google/uuid"

	"github.com/kolkov/trackvec/internal/track/generation"
)

// newIntRegistry creates a registry over buf[:size].
func newIntRegistry(buf []int, size int) *Registry {
	return New(unsafe.Pointer(unsafe.SliceData(buf)), unsafe.Sizeof(buf[0]), size, cap(buf))
}

// TestResolveAddress tests that a live slot resolves to base + index*stride.
func TestResolveAddress(t *testing.T) {
	buf := make([]int, 3, 4)
	r := newIntRegistry(buf, 3)

	for i := range buf {
		ptr, cause := r.Resolve(r.Bind(i))
		if cause != CauseNone {
			t.Fatalf("Resolve(Bind(%d)) cause = %v, want live", i, cause)
		}
		if ptr != unsafe.Pointer(&buf[i]) {
			t.Errorf("Resolve(Bind(%d)) = %p, want %p", i, ptr, &buf[i])
		}
	}
}

// TestBindBeyondSize tests that binding past the size is not an error.
func TestBindBeyondSize(t *testing.T) {
	buf := make([]int, 2, 8)
	r := newIntRegistry(buf, 2)

	end := r.Bind(2)
	far := r.Bind(100)

	if cause := r.Check(end); cause != CauseOutOfRange {
		t.Errorf("Check(end) = %v, want %v", cause, CauseOutOfRange)
	}
	if cause := r.Check(far); cause != CauseOutOfRange {
		t.Errorf("Check(far) = %v, want %v", cause, CauseOutOfRange)
	}

	// Growing in place over the end slot makes it resolvable.
	r.OnGrow(3)
	if cause := r.Check(end); cause != CauseNone {
		t.Errorf("Check(end) after OnGrow(3) = %v, want live", cause)
	}
}

// TestOnReallocate tests that a storage move invalidates every prior slot.
func TestOnReallocate(t *testing.T) {
	buf := make([]int, 3)
	r := newIntRegistry(buf, 3)
	slots := []generation.Slot{r.Bind(0), r.Bind(1), r.Bind(2)}
	before := r.Generation()

	bigger := make([]int, 3, 6)
	r.OnReallocate(unsafe.Pointer(&bigger[0]), cap(bigger))

	if got := r.Generation(); got != before.Next() {
		t.Errorf("Generation() = %v, want %v", got, before.Next())
	}
	for _, s := range slots {
		if cause := r.Check(s); cause != CauseReallocated {
			t.Errorf("Check(%v) = %v, want %v", s, cause, CauseReallocated)
		}
	}

	fresh := r.Bind(1)
	ptr, cause := r.Resolve(fresh)
	if cause != CauseNone || ptr != unsafe.Pointer(&bigger[1]) {
		t.Errorf("Resolve(fresh) = (%p, %v), want (%p, live)", ptr, cause, &bigger[1])
	}
}

// TestOnShrink tests that a size reduction retires exactly the removed positions.
func TestOnShrink(t *testing.T) {
	buf := make([]int, 5)
	r := newIntRegistry(buf, 5)
	slots := make([]generation.Slot, 5)
	for i := range slots {
		slots[i] = r.Bind(i)
	}

	r.OnShrink(3)

	tests := []struct {
		index int
		want  Cause
	}{
		{0, CauseNone},
		{1, CauseNone},
		{2, CauseNone},
		{3, CauseOutOfRange},
		{4, CauseOutOfRange},
	}
	for _, tt := range tests {
		if cause := r.Check(slots[tt.index]); cause != tt.want {
			t.Errorf("Check(slot %d) = %v, want %v", tt.index, cause, tt.want)
		}
	}

	// Growing back over retired positions does not revive them.
	r.OnGrow(5)
	for _, i := range []int{3, 4} {
		if cause := r.Check(slots[i]); cause != CauseShrunk {
			t.Errorf("Check(slot %d) after regrow = %v, want %v", i, cause, CauseShrunk)
		}
	}
	if cause := r.Check(r.Bind(4)); cause != CauseNone {
		t.Errorf("Check(Bind(4)) after regrow = %v, want live", cause)
	}
}

// TestOnTeardown tests the dead registry.
func TestOnTeardown(t *testing.T) {
	buf := make([]int, 2)
	r := newIntRegistry(buf, 2)
	s := r.Bind(0)

	r.OnTeardown()

	if !r.Dead() {
		t.Fatal("Dead() = false after OnTeardown")
	}
	if ptr, cause := r.Resolve(s); ptr != nil || cause != CauseTeardown {
		t.Errorf("Resolve() after teardown = (%p, %v), want (nil, %v)", ptr, cause, CauseTeardown)
	}
	if cause := r.Check(r.Bind(0)); cause != CauseTeardown {
		t.Errorf("Check(Bind(0)) after teardown = %v, want %v", cause, CauseTeardown)
	}

	// Hooks after teardown are ignored.
	r.OnGrow(2)
	r.OnReallocate(unsafe.Pointer(&buf[0]), 2)
	if r.Len() != 0 || r.Cap() != 0 {
		t.Errorf("Len/Cap after teardown = %d/%d, want 0/0", r.Len(), r.Cap())
	}
	gen := r.Generation()
	r.OnTeardown()
	if r.Generation() != gen {
		t.Error("second OnTeardown advanced the generation")
	}
}

// TestOnGrowClampsToCapacity tests that the size never exceeds the buffer.
func TestOnGrowClampsToCapacity(t *testing.T) {
	buf := make([]int, 1, 2)
	r := newIntRegistry(buf, 1)

	r.OnGrow(10)

	if got := r.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

// TestNegativeIndex tests that negative indices never resolve.
func TestNegativeIndex(t *testing.T) {
	buf := make([]int, 2)
	r := newIntRegistry(buf, 2)

	if cause := r.Check(r.Bind(-1)); cause != CauseOutOfRange {
		t.Errorf("Check(Bind(-1)) = %v, want %v", cause, CauseOutOfRange)
	}
}

// TestID tests lazy identity generation.
func TestID(t *testing.T) {
	r := newIntRegistry(make([]int, 1), 1)

	id := r.ID()
	if id == uuid.Nil {
		t.Fatal("ID() = Nil")
	}
	if again := r.ID(); again != id {
		t.Errorf("ID() = %v then %v, want stable", id, again)
	}
	if other := newIntRegistry(make([]int, 1), 1).ID(); other == id {
		t.Error("two registries share an ID")
	}
}

// TestCauseString tests Cause names.
func TestCauseString(t *testing.T) {
	tests := []struct {
		cause Cause
		want  string
	}{
		{CauseNone, "live"},
		{CauseTeardown, "teardown"},
		{CauseReallocated, "reallocated"},
		{CauseOutOfRange, "out-of-range"},
		{CauseShrunk, "shrunk"},
		{Cause(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.cause.String(); got != tt.want {
			t.Errorf("Cause(%d).String() = %q, want %q", tt.cause, got, tt.want)
		}
	}
}

// BenchmarkResolve measures the hot path.
func BenchmarkResolve(b *testing.B) {
	buf := make([]int, 64)
	r := newIntRegistry(buf, 64)
	s := r.Bind(32)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Resolve(s)
	}
}

// BenchmarkOnReallocate shows that invalidation cost does not depend on live slots.
func BenchmarkOnReallocate(b *testing.B) {
	buf := make([]int, 64)
	r := newIntRegistry(buf, 64)
	for i := 0; i < 10000; i++ {
		_ = r.Bind(i % 64)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.OnReallocate(unsafe.Pointer(&buf[0]), 64)
	}
}
