package ragged

import (
	"fmt"
	"slices"
)

// SplitSize is the real extent of one item inside a padded array. A single
// value crops axis 0 only; more values crop one axis each.
type SplitSize []int

// Packed is a batch concatenated along axis 0 with its bookkeeping.
type Packed[T Element] struct {
	Data     *Array[T]
	Counts   []int // axis-0 length of each item
	FirstIdx []int // packed offset of each item's first row
	ItemIdx  []int // item owning each packed row
}

// List splits the packed data back into per-item views.
func (p *Packed[T]) List() []*Array[T] {
	items, _ := PackedToList(p.Data, p.Counts)
	return items
}

// ListToPacked concatenates items of shape (Mi, K, ...) into one array of
// shape (sum(Mi), K, ...). Empty 1-D items are accepted as zero rows.
func ListToPacked[T Element](items []*Array[T]) (*Packed[T], error) {
	if len(items) == 0 {
		return nil, ErrEmptyList
	}

	var trailing []int
	found := false
	for _, y := range items {
		if y.Rank() == 0 {
			return nil, fmt.Errorf("%w: scalar item", ErrUnsupportedRank)
		}
		if isEmptyVector(y) {
			continue
		}
		if !found {
			trailing, found = y.Shape[1:], true
			continue
		}
		if !slices.Equal(trailing, y.Shape[1:]) {
			return nil, fmt.Errorf("%w: trailing shape %v vs %v", ErrRankMismatch, y.Shape[1:], trailing)
		}
	}

	n := len(items)
	p := &Packed[T]{
		Counts:   make([]int, n),
		FirstIdx: make([]int, n),
	}
	total := 0
	for i, y := range items {
		p.Counts[i] = y.Len()
		p.FirstIdx[i] = total
		total += y.Len()
	}

	p.Data = New[T](append([]int{total}, trailing...)...)
	p.ItemIdx = make([]int, 0, total)
	pos := 0
	for i, y := range items {
		pos += copy(p.Data.Data[pos:], y.Data)
		for range y.Len() {
			p.ItemIdx = append(p.ItemIdx, i)
		}
	}
	return p, nil
}

// PackedToList splits a packed array into views of splitSizes[i] rows each.
// The views share storage with packed.
func PackedToList[T Element](packed *Array[T], splitSizes []int) ([]*Array[T], error) {
	if packed.Rank() == 0 {
		return nil, fmt.Errorf("%w: scalar packed array", ErrUnsupportedRank)
	}
	sum := 0
	for _, s := range splitSizes {
		if s < 0 {
			return nil, fmt.Errorf("%w: negative size %d", ErrSplitSizeSum, s)
		}
		sum += s
	}
	if sum != packed.Len() {
		return nil, fmt.Errorf("%w: %d != %d", ErrSplitSizeSum, sum, packed.Len())
	}

	out := make([]*Array[T], len(splitSizes))
	start := 0
	for i, s := range splitSizes {
		out[i] = packed.Span(start, start+s)
		start += s
	}
	return out, nil
}

// ListToPadded stacks items of shape (Si_0, ..., Si_D) into an array of
// shape (N, P_0, ..., P_D) filled with padValue beyond each item's extent.
//
// A nil padSize uses the per-axis maximum. A padSize with more axes than the
// items pads recursively: items are grouped into chunks of
// prod(leading pad sizes) and every chunk becomes one padded super-item.
// With equisized set and a padSize matching the item rank, items are stacked
// as-is; the caller guarantees they share one shape.
func ListToPadded[T Element](items []*Array[T], padSize []int, padValue T, equisized bool) (*Array[T], error) {
	if len(items) == 0 {
		return nil, ErrEmptyList
	}
	if equisized && padSize != nil && items[0].Rank() == len(padSize) {
		return stack(items), nil
	}

	elemRank := 0
	for _, y := range items {
		elemRank = max(elemRank, y.Rank())
	}
	xs := make([]*Array[T], len(items))
	for i, y := range items {
		if isEmptyVector(y) {
			xs[i] = New[T](make([]int, elemRank)...)
		} else {
			xs[i] = y
		}
	}

	rank := xs[0].Rank()
	for _, y := range xs {
		if y.Rank() != rank {
			return nil, fmt.Errorf("%w: %d vs %d", ErrRankMismatch, y.Rank(), rank)
		}
	}

	var dims []int
	if padSize == nil {
		dims = make([]int, rank)
		for _, y := range xs {
			if y.Len() == 0 {
				continue
			}
			for d, s := range y.Shape {
				dims[d] = max(dims[d], s)
			}
		}
	} else {
		if len(padSize) > rank {
			chunk := numel(padSize[:len(padSize)-rank])
			if chunk <= 0 || len(xs)%chunk != 0 {
				return nil, fmt.Errorf("%w: %d items, chunk %d", ErrChunkSize, len(xs), chunk)
			}
			groups := make([]*Array[T], 0, len(xs)/chunk)
			for i := 0; i < len(xs); i += chunk {
				g, err := ListToPadded(xs[i:i+chunk], padSize[1:], padValue, equisized)
				if err != nil {
					return nil, err
				}
				groups = append(groups, g)
			}
			xs = groups
		}
		for _, y := range xs {
			if y.Rank() != len(padSize) {
				return nil, fmt.Errorf("%w: pad size %v for rank %d", ErrPadSizeRank, padSize, y.Rank())
			}
		}
		dims = padSize
	}

	out := Full(padValue, append([]int{len(xs)}, dims...)...)
	for i, y := range xs {
		if y.Len() == 0 {
			continue
		}
		for d, s := range y.Shape {
			if s > dims[d] {
				return nil, fmt.Errorf("%w: item %d shape %v, pad %v", ErrPadTooSmall, i, y.Shape, dims)
			}
		}
		copyBlock(out.Row(i), y, y.Shape)
	}
	return out, nil
}

// PaddedToList unbinds a padded array of shape (N, S_1, ..., S_D) into N
// items. Without splitSizes every row is returned whole.
func PaddedToList[T Element](padded *Array[T], splitSizes []SplitSize) ([]*Array[T], error) {
	if padded.Rank() == 0 {
		return nil, fmt.Errorf("%w: scalar padded array", ErrUnsupportedRank)
	}
	n := padded.Len()
	out := make([]*Array[T], n)
	for i := range n {
		out[i] = padded.Row(i)
	}
	if splitSizes == nil {
		return out, nil
	}
	if len(splitSizes) != n {
		return nil, fmt.Errorf("%w: %d sizes for %d items", ErrSplitSizeLength, len(splitSizes), n)
	}

	for i, s := range splitSizes {
		row := out[i]
		if len(s) > row.Rank() {
			return nil, fmt.Errorf("%w: split %v for item shape %v", ErrSplitSizeRange, s, row.Shape)
		}
		for d, v := range s {
			if v < 0 || v > row.Shape[d] {
				return nil, fmt.Errorf("%w: split %v for item shape %v", ErrSplitSizeRange, s, row.Shape)
			}
		}
		if len(s) == 1 {
			out[i] = row.Head(s[0])
		} else {
			out[i] = row.Crop(s)
		}
	}
	return out, nil
}

// PackOptions selects which padded rows PaddedToPacked keeps. At most one
// field may be set.
type PackOptions[T Element] struct {
	SplitSizes []SplitSize
	PadValue   *T
}

// PaddedToPacked flattens a (N, M, D) array into (sum(Mi), D).
//
// With a pad value, a row is kept when any of its channels differs from it.
// With split sizes, rows m < splitSizes[i] of item i are kept. With neither,
// all N*M rows are returned.
func PaddedToPacked[T Element](padded *Array[T], opts PackOptions[T]) (*Array[T], error) {
	if padded.Rank() != 3 {
		return nil, fmt.Errorf("%w: expected 3 dimensions, got %d", ErrUnsupportedRank, padded.Rank())
	}
	if opts.SplitSizes != nil && opts.PadValue != nil {
		return nil, ErrConflictingOptions
	}

	n, m, d := padded.Shape[0], padded.Shape[1], padded.Shape[2]
	flat := &Array[T]{Shape: []int{n * m, d}, Data: padded.Data}

	switch {
	case opts.PadValue != nil:
		pad := *opts.PadValue
		out := make([]T, 0, len(flat.Data))
		rows := 0
		for r := range n * m {
			row := flat.Data[r*d : (r+1)*d]
			if slices.ContainsFunc(row, func(v T) bool { return v != pad }) {
				out = append(out, row...)
				rows++
			}
		}
		return &Array[T]{Shape: []int{rows, d}, Data: out}, nil

	case opts.SplitSizes != nil:
		if len(opts.SplitSizes) != n {
			return nil, fmt.Errorf("%w: %d sizes for %d items", ErrSplitSizeLength, len(opts.SplitSizes), n)
		}
		total := 0
		for _, s := range opts.SplitSizes {
			if len(s) != 1 {
				return nil, fmt.Errorf("%w: got %v", ErrNonScalarSplit, s)
			}
			if s[0] < 0 || s[0] > m {
				return nil, fmt.Errorf("%w: %d rows of %d", ErrSplitSizeRange, s[0], m)
			}
			total += s[0]
		}
		out := make([]T, 0, total*d)
		for i, s := range opts.SplitSizes {
			out = append(out, flat.Data[i*m*d:(i*m+s[0])*d]...)
		}
		return &Array[T]{Shape: []int{total, d}, Data: out}, nil

	default:
		return flat, nil
	}
}

// Counts returns the axis-0 length of every item as scalar split sizes.
func Counts[T Element](items []*Array[T]) []SplitSize {
	out := make([]SplitSize, len(items))
	for i, y := range items {
		out[i] = SplitSize{y.Len()}
	}
	return out
}

// Shapes returns the full shape of every item as split sizes.
func Shapes[T Element](items []*Array[T]) []SplitSize {
	out := make([]SplitSize, len(items))
	for i, y := range items {
		out[i] = slices.Clone(y.Shape)
	}
	return out
}

func isEmptyVector[T Element](y *Array[T]) bool {
	return y.Rank() == 1 && y.Size() == 0
}

func stack[T Element](items []*Array[T]) *Array[T] {
	out := New[T](append([]int{len(items)}, items[0].Shape...)...)
	rs := out.rowSize()
	for i, y := range items {
		copy(out.Data[i*rs:(i+1)*rs], y.Data)
	}
	return out
}
