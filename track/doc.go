// Package track provides a growable array whose element references detect
// invalidation on their own.
//
// A Handle is issued by a Vector for a position (HandleAt, HandleFor) and
// can be narrowed to a field of the element (Derive, DeriveOffset). Holders
// never poll the container: each access checks, in O(1), whether the storage
// the handle refers to is still live.
//
// # Quick Start
//
//	v := track.From(3, 3, 3)
//	h := v.HandleAt(0)
//
//	v.Set(0, 5)
//	fmt.Println(*h.Get()) // 5: content follows the position
//
//	v.Append(4) // capacity exceeded, storage moves
//	fmt.Println(h.Valid(), h.Get() == nil) // false true
//
// # Invalidation Rules
//
// A handle becomes permanently invalid when:
//   - the vector's storage moves (growth past capacity, Reserve, ShrinkToFit)
//   - its position is removed by a size reduction (Erase, EraseRange, Clear,
//     Resize down), even if the vector later grows back over it
//   - the vector is destroyed
//
// Inserting or erasing before a handle's position does not invalidate it:
// handles are bound to positions, so the handle then observes the element
// that was shifted into its position. A derived handle is valid exactly
// when its root handle is.
//
// Invalidation is lazy. Mutations advance a generation counter or bump
// per-position stamps; handles find out on their next access. Mutation cost
// never depends on the number of outstanding handles.
//
// # Policies
//
// Two extension points are selected when the Vector is created (see
// Options) and apply to every handle it issues:
//
//   - NullPolicy: what Get does on an invalid handle. MayBeNull (default)
//     returns nil; MustNotBeNull panics with a *StaleAccessError.
//   - DanglePolicy: a side effect run once per handle at its first observed
//     transition to invalid. NullOnDangle (default) drops the cached
//     address; CountOnDangle, LogOnDangle and DangleFunc count, log or call
//     back. Chain combines them.
//
// # Errors
//
// Invalid accesses never panic under the default policies. TryGet returns a
// *StaleAccessError whose Kind tells a stale access, an out-of-range bind
// and a destroyed container apart; all of them match ErrStaleAccess with
// errors.Is.
//
// # Thread Safety
//
// None. A Vector and its handles belong to one goroutine; a concurrent user
// must order every mutation against every handle access externally.
package track
