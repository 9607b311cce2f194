package track

import (
	"sync"

	"go.uber.org/zap"
)

// NullPolicy decides the observable result of Get on an invalid handle.
//
// Get calls OnStaleAccess and then returns nil. A policy that wants a loud
// failure panics from OnStaleAccess; a policy that returns lets the nil
// result through. Load, Store and TryGet never consult the policy: they
// already make the validity check explicit at the call site.
type NullPolicy interface {
	OnStaleAccess(err *StaleAccessError)
}

// MayBeNull lets Get return nil for an invalid handle. This is the default.
type MayBeNull struct{}

// OnStaleAccess implements NullPolicy.
func (MayBeNull) OnStaleAccess(*StaleAccessError) {}

// MustNotBeNull makes Get panic with the *StaleAccessError when the handle
// is invalid. Use it where a stale access is a programming error that must
// not go unnoticed.
type MustNotBeNull struct{}

// OnStaleAccess implements NullPolicy.
func (MustNotBeNull) OnStaleAccess(err *StaleAccessError) {
	panic(err)
}

// DanglePolicy runs a side effect exactly once per handle, at the first
// observed transition from Bound to Dangling.
//
// Copies of a handle share one state, so the policy fires once for all of
// them. A derived handle and its parent are separate handles and each fire
// when they first observe the transition.
type DanglePolicy interface {
	OnDangle(ev *DangleEvent)
}

// NullOnDangle drops the handle's cached address, so LastKnown returns nil
// and the old buffer is not kept alive by the handle. This is the default.
type NullOnDangle struct{}

// OnDangle implements DanglePolicy.
func (NullOnDangle) OnDangle(ev *DangleEvent) {
	ev.DropCache()
}

// DangleFunc adapts a function to DanglePolicy.
type DangleFunc func(ev *DangleEvent)

// OnDangle implements DanglePolicy.
func (f DangleFunc) OnDangle(ev *DangleEvent) {
	if f != nil {
		f(ev)
	}
}

// Chain runs several dangle policies in order.
//
// Chain(NullOnDangle{}, counter) both drops the cache and counts.
func Chain(policies ...DanglePolicy) DanglePolicy {
	return chain(policies)
}

type chain []DanglePolicy

func (c chain) OnDangle(ev *DangleEvent) {
	for _, p := range c {
		if p != nil {
			p.OnDangle(ev)
		}
	}
}

// CountOnDangle counts dangle transitions by cause. The cached address is
// kept; chain with NullOnDangle to drop it.
//
// The zero value is ready to use. Use a pointer so every handle updates the
// same counters.
type CountOnDangle struct {
	counts [CauseShrunk + 1]int
}

// OnDangle implements DanglePolicy.
func (c *CountOnDangle) OnDangle(ev *DangleEvent) {
	if int(ev.Cause) < len(c.counts) {
		c.counts[ev.Cause]++
	}
}

// Count returns the number of transitions with the given cause.
func (c *CountOnDangle) Count(cause Cause) int {
	if int(cause) >= len(c.counts) {
		return 0
	}
	return c.counts[cause]
}

// Total returns the number of transitions observed.
func (c *CountOnDangle) Total() int {
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Reset zeroes the counters.
func (c *CountOnDangle) Reset() {
	clear(c.counts[:])
}

// LogOnDangle writes one warning per distinct dangle event key.
//
// Several handles bound to the same slot that dangle for the same cause
// produce a single line. The cached address is kept; chain with
// NullOnDangle to drop it.
type LogOnDangle struct {
	logger *zap.Logger

	// reported tracks event keys already logged.
	reported sync.Map
}

// NewLogOnDangle creates a LogOnDangle writing to logger. A nil logger
// discards everything.
func NewLogOnDangle(logger *zap.Logger) *LogOnDangle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogOnDangle{logger: logger}
}

// OnDangle implements DanglePolicy.
func (l *LogOnDangle) OnDangle(ev *DangleEvent) {
	if _, seen := l.reported.LoadOrStore(ev.Key(), struct{}{}); seen {
		return
	}

	fields := []zap.Field{
		zap.Stringer("cause", ev.Cause),
		zap.Stringer("slot", ev.Slot),
		zap.Int("depth", ev.Depth),
		zap.Stringer("registry", ev.RegistryID()),
	}
	if stack := ev.BindStack(); stack != "" {
		fields = append(fields, zap.String("bind_stack", stack))
	}
	l.logger.Warn("tracked reference dangled", fields...)
}

// Reported returns the number of distinct events logged.
func (l *LogOnDangle) Reported() int {
	n := 0
	l.reported.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
