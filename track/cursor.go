package track

import "fmt"

// Cursor is a position inside a Vector, the counterpart of an iterator.
//
// A Cursor is a plain (vector, position) pair: it is not tracked and does
// not detect invalidation. Turn it into a tracked reference with
// Vector.HandleFor or Cursor.Handle.
type Cursor[T any] struct {
	v   *Vector[T]
	pos int
}

// Begin returns a cursor at position 0.
func (v *Vector[T]) Begin() Cursor[T] {
	return Cursor[T]{v: v}
}

// End returns a cursor one past the last element.
func (v *Vector[T]) End() Cursor[T] {
	return Cursor[T]{v: v, pos: len(v.data)}
}

// CursorAt returns a cursor at position i.
func (v *Vector[T]) CursorAt(i int) Cursor[T] {
	return Cursor[T]{v: v, pos: i}
}

// InsertAt inserts values before c and returns a cursor to the first
// inserted element.
func (v *Vector[T]) InsertAt(c Cursor[T], values ...T) Cursor[T] {
	v.own(c)
	v.Insert(c.pos, values...)
	return c
}

// EraseAt removes the element at c and returns a cursor to the element that
// followed it.
func (v *Vector[T]) EraseAt(c Cursor[T]) Cursor[T] {
	v.own(c)
	v.Erase(c.pos)
	return c
}

// Index returns the position of the cursor.
func (c Cursor[T]) Index() int {
	return c.pos
}

// Add returns a cursor n positions further (n may be negative).
func (c Cursor[T]) Add(n int) Cursor[T] {
	c.pos += n
	return c
}

// Next returns the cursor at the following position.
func (c Cursor[T]) Next() Cursor[T] {
	return c.Add(1)
}

// Prev returns the cursor at the preceding position.
func (c Cursor[T]) Prev() Cursor[T] {
	return c.Add(-1)
}

// Valid reports whether the cursor points at an element right now.
func (c Cursor[T]) Valid() bool {
	return c.v != nil && !c.v.destroyed && c.pos >= 0 && c.pos < len(c.v.data)
}

// Value returns the element at the cursor. It panics if the cursor is not
// Valid.
func (c Cursor[T]) Value() T {
	return c.v.At(c.pos)
}

// Handle returns a tracked handle bound to the cursor's position.
func (c Cursor[T]) Handle() Handle[T] {
	return Handle[T]{n: c.v.b.bind(c.pos, 1)}
}

// String returns "Cursor(pos/len)".
func (c Cursor[T]) String() string {
	if c.v == nil {
		return "Cursor(nil)"
	}
	return fmt.Sprintf("Cursor(%d/%d)", c.pos, len(c.v.data))
}
