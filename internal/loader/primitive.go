package loader

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/surfsample/pkg/mesh"
)

// checkerSize is the edge of the generated primitive texture in texels.
const checkerSize = 8

var primitiveColors = map[Kind][2]color.NRGBA{
	KindIco:      {{220, 60, 60, 255}, {250, 240, 230, 255}},
	KindSphere:   {{60, 120, 220, 255}, {240, 240, 250, 255}},
	KindBox:      {{70, 170, 90, 255}, {235, 245, 235, 255}},
	KindCylinder: {{200, 150, 40, 255}, {250, 245, 225, 255}},
}

// primitive builds a mesh for the geometric source kinds.
func primitive(src Source, resolution int) (*Mesh, error) {
	var (
		verts []r3.Vec
		faces [][3]int
	)
	switch src.Kind {
	case KindIco:
		verts, faces = mesh.IcoSphere(src.Level)
	case KindSphere, KindBox, KindCylinder:
		s, err := solid(src)
		if err != nil {
			return nil, err
		}
		verts, faces = polygonize(s, resolution)
	case KindEmpty:
		return &Mesh{Name: src.Raw}, nil
	default:
		return nil, fmt.Errorf("%w: %s is not a primitive", ErrBadSource, src.Kind)
	}

	m := &Mesh{
		Name:      src.Raw,
		Verts:     verts,
		Faces:     faces,
		Parts:     make([]int, len(verts)),
		Images:    []*image.NRGBA{checker(primitiveColors[src.Kind])},
		FaceUVs:   sphericalUVs(verts, faces),
		FaceImage: make([]int, len(faces)),
	}
	return m, nil
}

func solid(src Source) (sdf.SDF3, error) {
	p := src.Params
	switch src.Kind {
	case KindSphere:
		return sdf.Sphere3D(p[0])
	case KindBox:
		return sdf.Box3D(v3.Vec{X: p[0], Y: p[1], Z: p[2]}, 0)
	case KindCylinder:
		return sdf.Cylinder3D(p[0], p[1], 0)
	}
	return nil, fmt.Errorf("%w: no solid for %s", ErrBadSource, src.Kind)
}

// polygonize runs marching cubes and welds the resulting triangle soup.
// Coordinates are snapped first so that edge vertices computed by
// neighbouring cells compare equal.
func polygonize(s sdf.SDF3, cells int) ([]r3.Vec, [][3]int) {
	triangles := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))

	bb := s.BoundingBox()
	size := bb.Size()
	q := math.Max(size.X, math.Max(size.Y, size.Z)) * 1e-9

	verts := make([]r3.Vec, 0, len(triangles)*3)
	faces := make([][3]int, 0, len(triangles))
	for _, tri := range triangles {
		n := len(verts)
		for k := 0; k < 3; k++ {
			v := tri[k]
			verts = append(verts, r3.Vec{X: snap(v.X, q), Y: snap(v.Y, q), Z: snap(v.Z, q)})
		}
		faces = append(faces, [3]int{n, n + 1, n + 2})
	}
	return mesh.Weld(verts, faces)
}

func snap(x, q float64) float64 {
	if q == 0 {
		return x
	}
	return math.Round(x/q) * q
}

func checker(c [2]color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, checkerSize, checkerSize))
	for y := 0; y < checkerSize; y++ {
		for x := 0; x < checkerSize; x++ {
			img.SetNRGBA(x, y, c[(x+y)%2])
		}
	}
	return img
}

// sphericalUVs maps each face corner by longitude and latitude around the
// mesh centre. Faces that straddle the longitude seam are unwrapped so
// interpolation does not sweep the whole texture.
func sphericalUVs(verts []r3.Vec, faces [][3]int) [][3][2]float64 {
	var centre r3.Vec
	for _, v := range verts {
		centre = r3.Add(centre, v)
	}
	if len(verts) > 0 {
		centre = r3.Scale(1/float64(len(verts)), centre)
	}

	uvs := make([][3][2]float64, len(faces))
	for i, f := range faces {
		for k, vi := range f {
			d := r3.Sub(verts[vi], centre)
			r := r3.Norm(d)
			u := math.Atan2(d.Z, d.X)/(2*math.Pi) + 0.5
			v := 0.5
			if r > 0 {
				v = math.Acos(math.Max(-1, math.Min(1, d.Y/r))) / math.Pi
			}
			uvs[i][k] = [2]float64{u, v}
		}
		lo := math.Min(uvs[i][0][0], math.Min(uvs[i][1][0], uvs[i][2][0]))
		hi := math.Max(uvs[i][0][0], math.Max(uvs[i][1][0], uvs[i][2][0]))
		if hi-lo > 0.5 {
			for k := range uvs[i] {
				if uvs[i][k][0] < 0.5 {
					uvs[i][k][0]++
				}
			}
		}
	}
	return uvs
}
