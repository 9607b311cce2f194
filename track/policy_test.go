package track

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestMayBeNull tests the default null policy.
func TestMayBeNull(t *testing.T) {
	v := From(1)
	h := v.HandleAt(0)
	v.Append(2)

	if p := h.Get(); p != nil {
		t.Errorf("Get() = %p, want nil", p)
	}
}

// TestMustNotBeNull tests that Get panics with the stale access error.
func TestMustNotBeNull(t *testing.T) {
	v := NewWithOptions[int](Options{Null: MustNotBeNull{}})
	v.Append(1)
	h := v.HandleAt(0)

	if p := h.Get(); p == nil || *p != 1 {
		t.Fatalf("Get() on valid handle = %v, want pointer to 1", p)
	}

	v.Clear()

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok {
			t.Fatalf("recover() = %v, want error", r)
		}
		var se *StaleAccessError
		if !errors.As(err, &se) {
			t.Fatalf("panic value %T, want *StaleAccessError", err)
		}
		if se.Op != "Get" || se.Cause != CauseOutOfRange {
			t.Errorf("panic = %+v, want Op Get and cause out-of-range", se)
		}
	}()
	_ = h.Get()
	t.Error("Get() on stale handle did not panic")
}

// TestMustNotBeNullCheckedPaths tests that Load, Store and TryGet never panic.
func TestMustNotBeNullCheckedPaths(t *testing.T) {
	v := NewWithOptions[int](Options{Null: MustNotBeNull{}})
	v.Append(1)
	h := v.HandleAt(0)
	v.Destroy()

	if _, ok := h.Load(); ok {
		t.Error("Load() ok = true on destroyed vector")
	}
	if h.Store(2) {
		t.Error("Store() = true on destroyed vector")
	}
	if _, err := h.TryGet(); err == nil {
		t.Error("TryGet() error = nil on destroyed vector")
	}
}

// TestNullOnDangleDropsCache tests the default dangle policy.
func TestNullOnDangleDropsCache(t *testing.T) {
	v := From(10, 20)
	h := v.HandleAt(1)

	if !h.Valid() {
		t.Fatal("handle invalid before mutation")
	}
	if got := h.LastKnown(); got == nil || *got != 20 {
		t.Fatalf("LastKnown() = %v, want pointer to 20", got)
	}

	v.Append(30)
	_ = h.Valid()

	if got := h.LastKnown(); got != nil {
		t.Errorf("LastKnown() after dangle = %v, want nil", got)
	}
}

// TestCountOnDangleKeepsCache tests that other policies keep the last
// address for post-mortem inspection.
func TestCountOnDangleKeepsCache(t *testing.T) {
	counter := &CountOnDangle{}
	v := NewWithOptions[int](Options{Dangle: counter})
	v.Append(10, 20)
	h := v.HandleAt(1)
	_ = h.Valid()

	v.Append(30)
	_ = h.Valid()

	if got := h.LastKnown(); got == nil || *got != 20 {
		t.Errorf("LastKnown() = %v, want pointer to old 20", got)
	}
	if counter.Total() != 1 {
		t.Errorf("Total() = %d, want 1", counter.Total())
	}

	counter.Reset()
	if counter.Total() != 0 {
		t.Errorf("Total() after Reset() = %d, want 0", counter.Total())
	}
	if counter.Count(Cause(200)) != 0 {
		t.Error("Count(unknown cause) != 0")
	}
}

// TestCountOnDangleByCause tests per-cause counters.
func TestCountOnDangleByCause(t *testing.T) {
	counter := &CountOnDangle{}
	v := NewWithOptions[int](Options{Dangle: counter})
	v.Reserve(8)
	v.Append(1, 2, 3)

	shrunk := v.HandleAt(2)
	outOfRange := v.HandleAt(1)
	reallocated := v.HandleAt(0)
	_ = shrunk.Valid()
	_ = outOfRange.Valid()

	v.Erase(2)
	v.Append(3) // regrow: index 2 is in range again but retired
	_ = shrunk.Valid()

	v.Resize(1)
	_ = outOfRange.Valid()

	v.Reserve(16)
	_ = reallocated.Valid()

	torn := v.HandleAt(0)
	v.Destroy()
	_ = torn.Valid()

	tests := []struct {
		cause Cause
		want  int
	}{
		{CauseShrunk, 1},
		{CauseOutOfRange, 1},
		{CauseReallocated, 1},
		{CauseTeardown, 1},
	}
	for _, tt := range tests {
		if got := counter.Count(tt.cause); got != tt.want {
			t.Errorf("Count(%v) = %d, want %d", tt.cause, got, tt.want)
		}
	}
	if got := counter.Total(); got != 4 {
		t.Errorf("Total() = %d, want 4", got)
	}
}

// TestDangleFuncAndChain tests the callback adapter and composition.
func TestDangleFuncAndChain(t *testing.T) {
	var events []DangleEvent
	record := DangleFunc(func(ev *DangleEvent) {
		events = append(events, *ev)
	})
	counter := &CountOnDangle{}

	v := NewWithOptions[pair](Options{Dangle: Chain(NullOnDangle{}, record, nil, counter)})
	v.Append(pair{}, pair{})
	h := v.HandleAt(1)
	d, err := Derive(h, func(p *pair) *string { return &p.Second })
	if err != nil {
		t.Fatal(err)
	}
	_ = d.Valid()

	v.Destroy()
	_ = d.Valid() // observes through h: both fire

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Depth != 0 || events[1].Depth != 1 {
		t.Errorf("event depths = %d, %d, want 0 (root first), 1", events[0].Depth, events[1].Depth)
	}
	for _, ev := range events {
		if ev.Cause != CauseTeardown || ev.Slot.Index != 1 {
			t.Errorf("event = %+v, want teardown of slot 1", ev)
		}
	}
	if counter.Total() != 2 {
		t.Errorf("counter Total() = %d, want 2", counter.Total())
	}
	if h.LastKnown() != nil || d.LastKnown() != nil {
		t.Error("NullOnDangle in chain did not drop caches")
	}

	var nilFunc DangleFunc
	nilFunc.OnDangle(&DangleEvent{}) // must not panic
}

// TestLogOnDangle tests structured logging and deduplication.
func TestLogOnDangle(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logPolicy := NewLogOnDangle(zap.New(core))

	v := NewWithOptions[int](Options{Dangle: logPolicy})
	v.Append(1, 2)

	a := v.HandleAt(0)
	b := v.HandleAt(0) // same slot: same key
	c := v.HandleAt(1)

	v.Append(3)
	for _, h := range []Handle[int]{a, b, c} {
		_ = h.Valid()
	}

	if got := logs.Len(); got != 2 {
		t.Fatalf("logged %d entries, want 2", got)
	}
	if got := logPolicy.Reported(); got != 2 {
		t.Errorf("Reported() = %d, want 2", got)
	}

	entry := logs.All()[0]
	if entry.Message != "tracked reference dangled" {
		t.Errorf("Message = %q", entry.Message)
	}
	fields := entry.ContextMap()
	if fields["cause"] != "reallocated" {
		t.Errorf("cause field = %v, want reallocated", fields["cause"])
	}
	if fields["slot"] != "0@g2" {
		t.Errorf("slot field = %v, want 0@g2", fields["slot"])
	}
	if _, ok := fields["bind_stack"]; ok {
		t.Error("bind_stack logged without CaptureStacks")
	}
}

func bindForReport(v *Vector[int]) Handle[int] {
	return v.HandleAt(0)
}

// TestCaptureStacks tests bind-site stacks in logs and reports.
func TestCaptureStacks(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	var report string
	v := NewWithOptions[int](Options{
		Dangle: Chain(NewLogOnDangle(zap.New(core)), DangleFunc(func(ev *DangleEvent) {
			report = ev.Report()
		})),
		CaptureStacks: true,
	})
	v.Append(1)
	h := bindForReport(v)
	v.Destroy()
	_ = h.Valid()

	if !strings.Contains(report, "WARNING: TRACKED REFERENCE DANGLED") {
		t.Errorf("Report() = %q, want header", report)
	}
	if !strings.Contains(report, "Bound at:") || !strings.Contains(report, "bindForReport") {
		t.Errorf("Report() = %q, want bind site bindForReport", report)
	}
	if strings.Contains(report, "(*Vector[...]).HandleAt") {
		t.Errorf("Report() = %q, want library frames hidden", report)
	}

	if logs.Len() != 1 {
		t.Fatalf("logged %d entries, want 1", logs.Len())
	}
	stack, _ := logs.All()[0].ContextMap()["bind_stack"].(string)
	if !strings.Contains(stack, "bindForReport") {
		t.Errorf("bind_stack = %q, want bindForReport", stack)
	}
}

// TestReportWithoutStacks tests the report of a derived handle.
func TestReportWithoutStacks(t *testing.T) {
	var report, key string
	v := NewWithOptions[pair](Options{Dangle: DangleFunc(func(ev *DangleEvent) {
		if ev.Depth == 1 {
			report, key = ev.Report(), ev.Key()
		}
	})})
	v.Append(pair{})
	d, _ := Derive(v.HandleAt(0), func(p *pair) *int { return &p.First })
	v.Clear()
	_ = d.Valid()

	if !strings.Contains(report, "(derived, depth 1)") || !strings.Contains(report, "out-of-range") {
		t.Errorf("Report() = %q", report)
	}
	if strings.Contains(report, "Bound at:") {
		t.Errorf("Report() = %q, want no stack section", report)
	}
	if !strings.HasPrefix(key, "out-of-range:") || !strings.HasSuffix(key, ":0@g2:1") {
		t.Errorf("Key() = %q", key)
	}
}
