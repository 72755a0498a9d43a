package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// IcoSphere returns a unit sphere built by subdividing an icosahedron
// level times. Level 0 has 12 vertices and 20 faces; every level
// quadruples the face count. Faces wind counter-clockwise seen from outside.
func IcoSphere(level int) ([]r3.Vec, [][3]int) {
	t := (1 + math.Sqrt(5)) / 2
	verts := []r3.Vec{
		{X: -1, Y: t}, {X: 1, Y: t}, {X: -1, Y: -t}, {X: 1, Y: -t},
		{Y: -1, Z: t}, {Y: 1, Z: t}, {Y: -1, Z: -t}, {Y: 1, Z: -t},
		{X: t, Z: -1}, {X: t, Z: 1}, {X: -t, Z: -1}, {X: -t, Z: 1},
	}
	for i, v := range verts {
		verts[i] = r3.Unit(v)
	}
	faces := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}

	for range level {
		mid := make(map[[2]int]int)
		midpoint := func(a, b int) int {
			key := [2]int{min(a, b), max(a, b)}
			if i, ok := mid[key]; ok {
				return i
			}
			verts = append(verts, r3.Unit(r3.Scale(0.5, r3.Add(verts[a], verts[b]))))
			mid[key] = len(verts) - 1
			return len(verts) - 1
		}
		next := make([][3]int, 0, len(faces)*4)
		for _, f := range faces {
			a := midpoint(f[0], f[1])
			b := midpoint(f[1], f[2])
			c := midpoint(f[2], f[0])
			next = append(next,
				[3]int{f[0], a, c},
				[3]int{f[1], b, a},
				[3]int{f[2], c, b},
				[3]int{a, b, c},
			)
		}
		faces = next
	}
	return verts, faces
}

// Triangle returns a single-face mesh.
func Triangle(a, b, c r3.Vec) ([]r3.Vec, [][3]int) {
	return []r3.Vec{a, b, c}, [][3]int{{0, 1, 2}}
}

// Transform applies scale then translation to every vertex, in place.
func Transform(verts []r3.Vec, scale float64, offset r3.Vec) {
	for i, v := range verts {
		verts[i] = r3.Add(r3.Scale(scale, v), offset)
	}
}

// Weld merges vertices with identical coordinates and drops faces that
// collapse to fewer than three distinct vertices. Marching-cubes output is
// a triangle soup and needs this before topology-based operations.
func Weld(verts []r3.Vec, faces [][3]int) ([]r3.Vec, [][3]int) {
	index := make(map[r3.Vec]int, len(verts))
	remap := make([]int, len(verts))
	out := make([]r3.Vec, 0, len(verts))
	for i, v := range verts {
		j, ok := index[v]
		if !ok {
			j = len(out)
			index[v] = j
			out = append(out, v)
		}
		remap[i] = j
	}
	kept := make([][3]int, 0, len(faces))
	for _, f := range faces {
		g := [3]int{remap[f[0]], remap[f[1]], remap[f[2]]}
		if g[0] == g[1] || g[1] == g[2] || g[0] == g[2] {
			continue
		}
		kept = append(kept, g)
	}
	return out, kept
}
