package track

import "go.uber.org/zap"

// Options configures a Vector and every handle it issues.
//
// Policies are bound when a handle is created: changing the options of one
// vector never affects handles of another, and there is no package-level
// default to mutate.
//
// Usage:
//
//	// Defaults: MayBeNull + NullOnDangle, no logging, no stacks.
//	v := track.New[int]()
//
//	// Loud failures and a log line per dangling handle:
//	v := track.NewWithOptions[int](track.Options{
//	    Null:   track.MustNotBeNull{},
//	    Dangle: track.NewLogOnDangle(logger),
//	    Logger: logger,
//	})
type Options struct {
	// Null decides what Get does on an invalid handle.
	// Default: MayBeNull.
	Null NullPolicy

	// Dangle runs once per handle at its first observed transition to
	// invalid. Default: NullOnDangle.
	Dangle DanglePolicy

	// Logger receives debug events for storage moves and teardown.
	// Default: zap.NewNop().
	Logger *zap.Logger

	// CaptureStacks records the bind-site stack of every root handle so
	// dangle reports can show where the handle came from. Costs a
	// runtime.Callers per bind. Default: false.
	CaptureStacks bool
}

// DefaultOptions returns the options used by New.
func DefaultOptions() Options {
	return Options{
		Null:   MayBeNull{},
		Dangle: NullOnDangle{},
		Logger: zap.NewNop(),
	}
}

// normalize fills nil fields with defaults.
func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.Null == nil {
		o.Null = def.Null
	}
	if o.Dangle == nil {
		o.Dangle = def.Dangle
	}
	if o.Logger == nil {
		o.Logger = def.Logger
	}
	return o
}
