// Package ragged converts batches of variable-length arrays between three
// layouts: a list of arrays, a packed array with offset bookkeeping, and a
// padded rectangular array with a fill value.
package ragged

import (
	"fmt"
	"slices"
)

// Element is the set of element types the codec handles.
type Element interface {
	~int | ~int32 | ~int64 | ~uint8 | ~float32 | ~float64
}

// Array is a dense row-major N-dimensional array.
// A rank-0 array holds a single scalar.
type Array[T Element] struct {
	Shape []int
	Data  []T
}

// New allocates a zero-filled array of the given shape.
func New[T Element](shape ...int) *Array[T] {
	return &Array[T]{Shape: slices.Clone(shape), Data: make([]T, numel(shape))}
}

// Full allocates an array of the given shape filled with v.
func Full[T Element](v T, shape ...int) *Array[T] {
	a := New[T](shape...)
	if v != 0 {
		for i := range a.Data {
			a.Data[i] = v
		}
	}
	return a
}

// FromSlice wraps data as an array of the given shape without copying.
func FromSlice[T Element](data []T, shape ...int) (*Array[T], error) {
	if n := numel(shape); n != len(data) {
		return nil, fmt.Errorf("%w: %d elements for shape %v", ErrShape, len(data), shape)
	}
	return &Array[T]{Shape: slices.Clone(shape), Data: data}, nil
}

// Rank returns the number of axes.
func (a *Array[T]) Rank() int { return len(a.Shape) }

// Len returns the extent of axis 0, or 0 for a scalar.
func (a *Array[T]) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// Size returns the total number of elements.
func (a *Array[T]) Size() int { return numel(a.Shape) }

// rowSize is the number of elements in one axis-0 slice.
func (a *Array[T]) rowSize() int {
	if len(a.Shape) == 0 {
		return 1
	}
	return numel(a.Shape[1:])
}

// offset converts a full index into a flat offset.
func (a *Array[T]) offset(idx []int) int {
	if len(idx) != len(a.Shape) {
		panic(fmt.Sprintf("ragged: index %v for shape %v", idx, a.Shape))
	}
	off := 0
	for d, i := range idx {
		if i < 0 || i >= a.Shape[d] {
			panic(fmt.Sprintf("ragged: index %v out of range for shape %v", idx, a.Shape))
		}
		off = off*a.Shape[d] + i
	}
	return off
}

// At returns the element at idx.
func (a *Array[T]) At(idx ...int) T { return a.Data[a.offset(idx)] }

// Set stores v at idx.
func (a *Array[T]) Set(v T, idx ...int) { a.Data[a.offset(idx)] = v }

// Row returns a view of the i-th axis-0 slice. The view shares storage.
func (a *Array[T]) Row(i int) *Array[T] {
	rs := a.rowSize()
	return &Array[T]{Shape: slices.Clone(a.Shape[1:]), Data: a.Data[i*rs : (i+1)*rs : (i+1)*rs]}
}

// Head returns a view of the first n axis-0 slices.
func (a *Array[T]) Head(n int) *Array[T] {
	return a.Span(0, n)
}

// Span returns a view of axis-0 slices [from, to).
func (a *Array[T]) Span(from, to int) *Array[T] {
	rs := a.rowSize()
	shape := slices.Clone(a.Shape)
	shape[0] = to - from
	return &Array[T]{Shape: shape, Data: a.Data[from*rs : to*rs : to*rs]}
}

// Crop copies the leading extents given by sizes, one per axis starting at
// axis 0. Axes beyond len(sizes) are kept whole.
func (a *Array[T]) Crop(sizes []int) *Array[T] {
	shape := slices.Clone(a.Shape)
	copy(shape, sizes)
	out := New[T](shape...)
	copyBlock(out, a, shape)
	return out
}

// Reshape returns a view with a new shape of the same size.
func (a *Array[T]) Reshape(shape ...int) (*Array[T], error) {
	return FromSlice(a.Data, shape...)
}

// Clone returns a deep copy.
func (a *Array[T]) Clone() *Array[T] {
	return &Array[T]{Shape: slices.Clone(a.Shape), Data: slices.Clone(a.Data)}
}

// Equal reports whether both arrays have the same shape and elements.
func (a *Array[T]) Equal(b *Array[T]) bool {
	return slices.Equal(a.Shape, b.Shape) && slices.Equal(a.Data, b.Data)
}

// String implements fmt.Stringer.
func (a *Array[T]) String() string {
	return fmt.Sprintf("Array%v%v", a.Shape, a.Data)
}

func numel(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

// copyBlock copies the region [0, extent) of src into the same region of
// dst. Both arrays must have the same rank and extent must fit in both.
func copyBlock[T Element](dst, src *Array[T], extent []int) {
	if numel(extent) == 0 {
		return
	}
	rank := len(extent)
	if rank == 0 {
		dst.Data[0] = src.Data[0]
		return
	}
	inner := extent[rank-1]
	idx := make([]int, rank)
	for {
		so := src.offset(idx)
		do := dst.offset(idx)
		copy(dst.Data[do:do+inner], src.Data[so:so+inner])

		// Advance every axis except the innermost, odometer style.
		d := rank - 2
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < extent[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return
		}
	}
}
