// Package generation implements storage epochs for tracked references.
//
// A Gen identifies one epoch of backing-storage identity for a container:
// it advances exactly when the container's storage moves to a new address or
// when the container is torn down. A Slot captures (index, generation, stamp)
// at bind time, which turns "is this reference still live?" into a handful of
// integer comparisons instead of a walk over every issued reference.
package generation

import "strconv"

// Gen is a monotonically increasing storage epoch.
//
// Gen is 64 bits wide so it never wraps in practice; equality is the only
// comparison the registry performs, so a wrap would reintroduce the
// address-reuse hazard the counter exists to avoid.
type Gen uint64

// First is the generation a freshly created registry starts with.
const First Gen = 1

// Next returns the generation following g.
func (g Gen) Next() Gen {
	return g + 1
}

// Same reports whether two generations are identical.
func (g Gen) Same(other Gen) bool {
	return g == other
}

// String returns "g<N>", e.g. "g3".
func (g Gen) String() string {
	return "g" + strconv.FormatUint(uint64(g), 10)
}

// Slot is a bind point captured when a root reference is created.
//
// Index is the element position the reference is bound to. Gen is the
// storage epoch at bind time. Stamp is the position stamp of Index at bind
// time: the registry bumps the stamp of every position removed by a size
// reduction, so a reference bound before the removal stays dead even after
// the container grows back over that position.
type Slot struct {
	Index int
	Gen   Gen
	Stamp uint64
}

// String returns "index@gen", e.g. "2@g1".
func (s Slot) String() string {
	return strconv.Itoa(s.Index) + "@" + s.Gen.String()
}
