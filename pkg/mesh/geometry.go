package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// normalEps floors the length used to normalise vertex normals.
const normalEps = 1e-6

// FaceAreasNormals returns the unsigned area and the unit normal of every
// face. Degenerate faces get area 0 and a zero normal.
func FaceAreasNormals(verts []r3.Vec, faces [][3]int) (areas []float64, normals []r3.Vec) {
	areas = make([]float64, len(faces))
	normals = make([]r3.Vec, len(faces))
	for f, tri := range faces {
		n := FaceNormal(verts[tri[0]], verts[tri[1]], verts[tri[2]])
		l := r3.Norm(n)
		areas[f] = 0.5 * l
		if l > 0 {
			normals[f] = r3.Scale(1/l, n)
		}
	}
	return areas, normals
}

// FaceNormal returns the unnormalised normal (v1-v0) x (v2-v1); its length
// is twice the triangle area.
func FaceNormal(v0, v1, v2 r3.Vec) r3.Vec {
	return r3.Cross(r3.Sub(v1, v0), r3.Sub(v2, v1))
}

// VertexNormals returns a unit normal per packed vertex: the sum of the
// corner cross products of every adjacent face, which weights each face by
// its area and corner angle.
func (b *Batch) VertexNormals() []r3.Vec {
	return VertexNormals(b.verts, b.faces)
}

// VertexNormals computes per-vertex normals for any vertex/face set.
func VertexNormals(verts []r3.Vec, faces [][3]int) []r3.Vec {
	acc := make([]r3.Vec, len(verts))
	for _, tri := range faces {
		v0, v1, v2 := verts[tri[0]], verts[tri[1]], verts[tri[2]]
		acc[tri[0]] = r3.Add(acc[tri[0]], r3.Cross(r3.Sub(v1, v0), r3.Sub(v2, v0)))
		acc[tri[1]] = r3.Add(acc[tri[1]], r3.Cross(r3.Sub(v2, v1), r3.Sub(v0, v1)))
		acc[tri[2]] = r3.Add(acc[tri[2]], r3.Cross(r3.Sub(v0, v2), r3.Sub(v1, v2)))
	}
	for i, n := range acc {
		acc[i] = r3.Scale(1/math.Max(r3.Norm(n), normalEps), n)
	}
	return acc
}

// AllFinite reports whether every coordinate is a finite number.
func AllFinite(verts []r3.Vec) bool {
	for _, v := range verts {
		if !finite(v.X) || !finite(v.Y) || !finite(v.Z) {
			return false
		}
	}
	return true
}

func finite(x float64) bool { return !math.IsNaN(x) && !math.IsInf(x, 0) }

// Bounds returns the axis-aligned bounding box of a vertex set.
func Bounds(verts []r3.Vec) r3.Box {
	if len(verts) == 0 {
		return r3.Box{}
	}
	box := r3.Box{Min: verts[0], Max: verts[0]}
	for _, v := range verts[1:] {
		box.Min = r3.Vec{X: math.Min(box.Min.X, v.X), Y: math.Min(box.Min.Y, v.Y), Z: math.Min(box.Min.Z, v.Z)}
		box.Max = r3.Vec{X: math.Max(box.Max.X, v.X), Y: math.Max(box.Max.Y, v.Y), Z: math.Max(box.Max.Z, v.Z)}
	}
	return box
}
