package curvature

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// ErrNormalCount is returned when the supplied normals do not match the
// vertex count.
var ErrNormalCount = errors.New("curvature: normal count does not match vertex count")

// MeanCurvatureNormals returns the discrete mean curvature normal of every
// vertex. On a convex surface with outward winding it points along the
// outward normal and its length approximates the mean curvature.
func MeanCurvatureNormals(verts []r3.Vec, faces [][3]int) []r3.Vec {
	L, invAreas := CotLaplacian(verts, faces)
	hn := L.MulVec3(verts)
	for i, v := range hn {
		hn[i] = r3.Scale(-0.5*invAreas[i], v)
	}
	return hn
}

// MeanCurvature returns a per-vertex curvature value. Unsigned values are
// the length of the mean curvature normal. Signed values project that
// normal onto the supplied vertex normals, scale by its length and are
// standardised to zero mean and unit deviation over the mesh; a mesh with
// no spread yields all zeros.
func MeanCurvature(verts []r3.Vec, faces [][3]int, normals []r3.Vec, signed bool) ([]float64, error) {
	hn := MeanCurvatureNormals(verts, faces)
	out := make([]float64, len(hn))
	for i, v := range hn {
		out[i] = r3.Norm(v)
	}
	if !signed {
		return out, nil
	}
	if len(normals) != len(verts) {
		return nil, fmt.Errorf("%w: %d normals for %d vertices", ErrNormalCount, len(normals), len(verts))
	}

	for i, v := range hn {
		out[i] *= r3.Dot(v, normals[i])
	}
	if len(out) < 2 {
		return make([]float64, len(out)), nil
	}
	mean, std := stat.MeanStdDev(out, nil)
	if std == 0 || math.IsNaN(std) {
		return make([]float64, len(out)), nil
	}
	for i := range out {
		out[i] = (out[i] - mean) / std
	}
	return out, nil
}
