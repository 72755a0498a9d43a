// Package curvature estimates discrete mean curvature on triangle meshes
// from the cotangent Laplace-Beltrami operator.
package curvature

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// minArea clamps Heron's formula so slivers do not divide by zero.
const minArea = 1e-12

// CotLaplacian builds the V×V cotangent Laplacian of a mesh. The
// off-diagonal entry of edge (i, j) is half the sum of the cotangents of the
// two angles opposite it; the diagonal holds the negated row sum, so every
// row sums to zero. invAreas[i] is the inverse of a third of the total area
// of the faces around vertex i, or 0 for a vertex no face touches.
func CotLaplacian(verts []r3.Vec, faces [][3]int) (*Sparse, []float64) {
	entries := make([]Triplet, 0, len(faces)*12)
	areas := make([]float64, len(verts))

	for _, f := range faces {
		v0, v1, v2 := verts[f[0]], verts[f[1]], verts[f[2]]
		// Side lengths opposite each corner.
		a := r3.Norm(r3.Sub(v1, v2))
		b := r3.Norm(r3.Sub(v0, v2))
		c := r3.Norm(r3.Sub(v0, v1))

		s := 0.5 * (a + b + c)
		area := math.Sqrt(math.Max(s*(s-a)*(s-b)*(s-c), minArea*minArea))
		area = math.Max(area, minArea)

		a2, b2, c2 := a*a, b*b, c*c
		cot0 := (b2 + c2 - a2) / (4 * area)
		cot1 := (a2 + c2 - b2) / (4 * area)
		cot2 := (a2 + b2 - c2) / (4 * area)

		for _, e := range [3]struct {
			i, j int
			w    float64
		}{
			{f[1], f[2], 0.5 * cot0},
			{f[0], f[2], 0.5 * cot1},
			{f[0], f[1], 0.5 * cot2},
		} {
			entries = append(entries,
				Triplet{e.i, e.j, e.w},
				Triplet{e.j, e.i, e.w},
				Triplet{e.i, e.i, -e.w},
				Triplet{e.j, e.j, -e.w},
			)
		}

		for _, v := range f {
			areas[v] += area / 3
		}
	}

	invAreas := make([]float64, len(verts))
	for i, a := range areas {
		if a > 0 {
			invAreas[i] = 1 / a
		}
	}
	return NewSparse(len(verts), entries), invAreas
}
