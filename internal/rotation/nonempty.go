package rotation

import "fmt"

// NonEmpty is a sequence verified to hold at least one element.
// The zero value is not usable; build one with NewNonEmpty.
type NonEmpty[T any] struct {
	items []T
}

func NewNonEmpty[T any](items []T) (NonEmpty[T], error) {
	if len(items) == 0 {
		return NonEmpty[T]{}, fmt.Errorf("%w: empty sequence", ErrInvalidSchedule)
	}
	cp := make([]T, len(items))
	copy(cp, items)
	return NonEmpty[T]{items: cp}, nil
}

func (s NonEmpty[T]) Len() int { return len(s.items) }

// At returns the element at i, wrapping i into range with floored modulo.
func (s NonEmpty[T]) At(i int64) T {
	return s.items[FlooredMod(i, int64(len(s.items)))]
}

func (s NonEmpty[T]) First() T { return s.items[0] }

func (s NonEmpty[T]) Last() T { return s.items[len(s.items)-1] }

// Slice returns a copy of the elements.
func (s NonEmpty[T]) Slice() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}
