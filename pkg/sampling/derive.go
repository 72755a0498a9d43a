package sampling

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/surfsample/pkg/curvature"
	"github.com/Faultbox/surfsample/pkg/mesh"
)

// machineEps floors the face normal length.
const machineEps = 2.220446049250313e-16

// deriveMesh fills the output rows of the k-th valid mesh from its face
// draws and weights. It only writes rows owned by that mesh.
func (s *Sampler) deriveMesh(b *mesh.Batch, res *Result, k int) error {
	m := res.Meshes[k]
	verts := b.VertsPacked()
	faces := b.FacesPacked()
	numSamples := s.opts.NumSamples

	draws := res.FaceIndices.Row(k).Data
	weights := res.Weights.Row(k).Data
	points := res.Points.Row(m).Data

	for j, fi := range draws {
		tri := faces[fi]
		w := weights[j*3 : j*3+3]
		p := r3.Add(r3.Add(
			r3.Scale(w[0], verts[tri[0]]),
			r3.Scale(w[1], verts[tri[1]])),
			r3.Scale(w[2], verts[tri[2]]))
		points[j*3], points[j*3+1], points[j*3+2] = p.X, p.Y, p.Z
	}

	if res.Normals != nil {
		normals := res.Normals.Row(m).Data
		for j, fi := range draws {
			tri := faces[fi]
			n := mesh.FaceNormal(verts[tri[0]], verts[tri[1]], verts[tri[2]])
			n = r3.Scale(1/math.Max(r3.Norm(n), machineEps), n)
			normals[j*3], normals[j*3+1], normals[j*3+2] = n.X, n.Y, n.Z
		}
	}

	if res.Features != nil {
		if err := s.interpolate(b, res, k); err != nil {
			return err
		}
	}

	if res.Curvature != nil {
		lv, lf := b.MeshVerts(m), b.MeshFaces(m)
		curv, err := curvature.MeanCurvature(lv, lf, mesh.VertexNormals(lv, lf), true)
		if err != nil {
			return fmt.Errorf("mesh %d curvature: %w", m, err)
		}
		off := b.MeshToVertsFirstIdx()[m]
		out := res.Curvature.Row(m).Data[:numSamples]
		for j, fi := range draws {
			tri := faces[fi]
			out[j] = (curv[tri[0]-off] + curv[tri[1]-off] + curv[tri[2]-off]) / 3
		}
	}
	return nil
}

// interpolate carries vertex features of the sampled faces to the samples
// of the k-th valid mesh.
func (s *Sampler) interpolate(b *mesh.Batch, res *Result, k int) error {
	m := res.Meshes[k]
	d := b.FeatureDim()
	feats := b.FeaturesPacked().Data
	faces := b.FacesPacked()
	draws := res.FaceIndices.Row(k).Data
	weights := res.Weights.Row(k).Data
	out := res.Features.Row(m).Data

	for j, fi := range draws {
		tri := faces[fi]
		f0 := feats[tri[0]*d : tri[0]*d+d]
		f1 := feats[tri[1]*d : tri[1]*d+d]
		f2 := feats[tri[2]*d : tri[2]*d+d]
		w := weights[j*3 : j*3+3]
		dst := out[j*d : j*d+d]

		switch s.opts.Interpolate {
		case InterpolateBarycentric:
			for c := range dst {
				dst[c] = w[0]*f0[c] + w[1]*f1[c] + w[2]*f2[c]
			}
		case InterpolateMajority:
			for c := range dst {
				dst[c] = mode3(f0[c], f1[c], f2[c])
			}
		case InterpolateNearest:
			src := f0
			if w[1] > w[0] && w[1] >= w[2] {
				src = f1
			} else if w[2] > w[0] && w[2] > w[1] {
				src = f2
			}
			copy(dst, src)
		default:
			return fmt.Errorf("%w: %v", ErrUnknownInterpolation, s.opts.Interpolate)
		}
	}
	return nil
}

// mode3 returns the most frequent of three values. Without a repeated
// value the smallest wins.
func mode3(a, b, c float64) float64 {
	switch {
	case a == b || a == c:
		return a
	case b == c:
		return b
	default:
		return min(a, b, c)
	}
}
