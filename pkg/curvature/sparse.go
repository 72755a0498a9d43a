package curvature

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Triplet is one (row, col, value) entry of a matrix under construction.
type Triplet struct {
	Row, Col int
	Val      float64
}

// Sparse is an n×n matrix in compressed sparse row form.
type Sparse struct {
	n      int
	rowPtr []int
	cols   []int
	vals   []float64
}

// NewSparse builds an n×n matrix from triplets. Entries sharing a position
// are summed.
func NewSparse(n int, entries []Triplet) *Sparse {
	sorted := make([]Triplet, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Row != sorted[j].Row {
			return sorted[i].Row < sorted[j].Row
		}
		return sorted[i].Col < sorted[j].Col
	})

	m := &Sparse{n: n, rowPtr: make([]int, n+1)}
	for i, e := range sorted {
		if i > 0 && e.Row == sorted[i-1].Row && e.Col == sorted[i-1].Col {
			m.vals[len(m.vals)-1] += e.Val
			continue
		}
		m.cols = append(m.cols, e.Col)
		m.vals = append(m.vals, e.Val)
		m.rowPtr[e.Row+1]++
	}
	for r := range n {
		m.rowPtr[r+1] += m.rowPtr[r]
	}
	return m
}

// Dims returns the matrix size.
func (m *Sparse) Dims() (r, c int) { return m.n, m.n }

// NNZ returns the number of stored entries.
func (m *Sparse) NNZ() int { return len(m.vals) }

// At returns entry (i, j).
func (m *Sparse) At(i, j int) float64 {
	row := m.cols[m.rowPtr[i]:m.rowPtr[i+1]]
	k := sort.SearchInts(row, j)
	if k < len(row) && row[k] == j {
		return m.vals[m.rowPtr[i]+k]
	}
	return 0
}

// RowSum returns the sum of every row.
func (m *Sparse) RowSum() []float64 {
	out := make([]float64, m.n)
	for r := range m.n {
		for k := m.rowPtr[r]; k < m.rowPtr[r+1]; k++ {
			out[r] += m.vals[k]
		}
	}
	return out
}

// MulVec3 returns M·x where every entry of x is a 3-vector.
func (m *Sparse) MulVec3(x []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, m.n)
	for r := range m.n {
		var acc r3.Vec
		for k := m.rowPtr[r]; k < m.rowPtr[r+1]; k++ {
			acc = r3.Add(acc, r3.Scale(m.vals[k], x[m.cols[k]]))
		}
		out[r] = acc
	}
	return out
}
