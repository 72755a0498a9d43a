// Package mesh holds a batch of triangle meshes in packed form.
package mesh

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/surfsample/pkg/ragged"
	"github.com/Faultbox/surfsample/pkg/texture"
)

// Batch errors.
var (
	ErrListLength     = errors.New("mesh: vertex and face lists differ in length")
	ErrFaceIndexRange = errors.New("mesh: face references a vertex outside its mesh")
	ErrFeatureCount   = errors.New("mesh: feature count does not match vertex count")
	ErrMeshIndex      = errors.New("mesh: mesh index out of range")
)

// Batch is an immutable batch of N triangle meshes. Vertices and faces of
// all meshes are concatenated ("packed") in batch order; face indices point
// into the packed vertex array.
type Batch struct {
	verts []r3.Vec
	faces [][3]int

	numVerts   []int
	vertsFirst []int
	numFaces   []int
	facesFirst []int
	faceToMesh []int
	valid      []bool

	features   *ragged.Array[float64] // (V, D) packed, nil when absent
	featureDim int
	textures   texture.Sampler
}

// Option configures optional per-vertex data of a Batch.
type Option func(*batchOptions)

type batchOptions struct {
	features [][][]float64
	textures texture.Sampler
}

// WithFeatures attaches a D-dimensional feature vector to every vertex,
// given per mesh in the same order as the vertices.
func WithFeatures(features [][][]float64) Option {
	return func(o *batchOptions) { o.features = features }
}

// WithTextures attaches a texture defined over the packed faces.
func WithTextures(t texture.Sampler) Option {
	return func(o *batchOptions) { o.textures = t }
}

// NewBatch packs per-mesh vertex and face lists. Faces use mesh-local
// vertex indices. A mesh with no faces is kept but marked invalid.
func NewBatch(verts [][]r3.Vec, faces [][][3]int, opts ...Option) (*Batch, error) {
	if len(verts) != len(faces) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrListLength, len(verts), len(faces))
	}
	var o batchOptions
	for _, opt := range opts {
		opt(&o)
	}

	b := &Batch{textures: o.textures}
	if len(verts) == 0 {
		return b, nil
	}

	vertItems := make([]*ragged.Array[float64], len(verts))
	faceItems := make([]*ragged.Array[int], len(faces))
	for i := range verts {
		vertItems[i] = vecsToArray(verts[i])
		fa := ragged.New[int](len(faces[i]), 3)
		for f, tri := range faces[i] {
			for k, v := range tri {
				if v < 0 || v >= len(verts[i]) {
					return nil, fmt.Errorf("%w: mesh %d face %d vertex %d of %d", ErrFaceIndexRange, i, f, v, len(verts[i]))
				}
				fa.Data[f*3+k] = v
			}
		}
		faceItems[i] = fa
	}

	pv, err := ragged.ListToPacked(vertItems)
	if err != nil {
		return nil, fmt.Errorf("packing vertices: %w", err)
	}
	pf, err := ragged.ListToPacked(faceItems)
	if err != nil {
		return nil, fmt.Errorf("packing faces: %w", err)
	}

	b.verts = arrayToVecs(pv.Data)
	b.numVerts, b.vertsFirst = pv.Counts, pv.FirstIdx
	b.numFaces, b.facesFirst = pf.Counts, pf.FirstIdx
	b.faceToMesh = pf.ItemIdx
	b.faces = make([][3]int, pf.Data.Len())
	for f := range b.faces {
		off := b.vertsFirst[b.faceToMesh[f]]
		d := pf.Data.Data[f*3 : f*3+3]
		b.faces[f] = [3]int{d[0] + off, d[1] + off, d[2] + off}
	}
	b.valid = make([]bool, len(verts))
	for i, n := range b.numFaces {
		b.valid[i] = n > 0
	}

	if o.features != nil {
		if err := b.packFeatures(o.features); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *Batch) packFeatures(features [][][]float64) error {
	if len(features) != len(b.numVerts) {
		return fmt.Errorf("%w: features for %d meshes, batch has %d", ErrFeatureCount, len(features), len(b.numVerts))
	}
	dim := -1
	for i, mf := range features {
		if len(mf) != b.numVerts[i] {
			return fmt.Errorf("%w: mesh %d has %d vertices, %d features", ErrFeatureCount, i, b.numVerts[i], len(mf))
		}
		for _, f := range mf {
			if dim < 0 {
				dim = len(f)
			}
			if len(f) != dim {
				return fmt.Errorf("%w: mixed feature widths %d and %d", ErrFeatureCount, dim, len(f))
			}
		}
	}
	dim = max(dim, 0)

	items := make([]*ragged.Array[float64], len(features))
	for i, mf := range features {
		a := ragged.New[float64](len(mf), dim)
		for v, f := range mf {
			copy(a.Data[v*dim:], f)
		}
		items[i] = a
	}
	p, err := ragged.ListToPacked(items)
	if err != nil {
		return fmt.Errorf("packing features: %w", err)
	}
	b.features = p.Data
	b.featureDim = dim
	return nil
}

// Len returns the number of meshes N.
func (b *Batch) Len() int { return len(b.numVerts) }

// IsEmpty reports whether the batch has no meshes or no valid mesh.
func (b *Batch) IsEmpty() bool { return b.NumValid() == 0 }

// NumValid returns the number of meshes with at least one face.
func (b *Batch) NumValid() int {
	n := 0
	for _, v := range b.valid {
		if v {
			n++
		}
	}
	return n
}

// VertsPacked returns all vertices in batch order. Do not modify.
func (b *Batch) VertsPacked() []r3.Vec { return b.verts }

// FacesPacked returns all faces with indices into VertsPacked. Do not modify.
func (b *Batch) FacesPacked() [][3]int { return b.faces }

// FaceToMesh returns the mesh index of every packed face.
func (b *Batch) FaceToMesh() []int { return b.faceToMesh }

// MeshToVertsFirstIdx returns the packed offset of each mesh's first vertex.
func (b *Batch) MeshToVertsFirstIdx() []int { return b.vertsFirst }

// MeshToFacesFirstIdx returns the packed offset of each mesh's first face.
func (b *Batch) MeshToFacesFirstIdx() []int { return b.facesFirst }

// NumVertsPerMesh returns the vertex count of every mesh.
func (b *Batch) NumVertsPerMesh() []int { return b.numVerts }

// NumFacesPerMesh returns the face count of every mesh.
func (b *Batch) NumFacesPerMesh() []int { return b.numFaces }

// Valid reports, per mesh, whether it has any faces.
func (b *Batch) Valid() []bool { return b.valid }

// FeaturesPacked returns the (V, D) per-vertex features, or nil.
func (b *Batch) FeaturesPacked() *ragged.Array[float64] { return b.features }

// FeatureDim returns D, or 0 without features.
func (b *Batch) FeatureDim() int { return b.featureDim }

// Textures returns the attached texture, or nil.
func (b *Batch) Textures() texture.Sampler { return b.textures }

// MeshVerts returns the vertices of mesh i. The slice aliases packed storage.
func (b *Batch) MeshVerts(i int) []r3.Vec {
	first := b.vertsFirst[i]
	return b.verts[first : first+b.numVerts[i]]
}

// MeshFaces returns the faces of mesh i with mesh-local vertex indices.
func (b *Batch) MeshFaces(i int) [][3]int {
	first, off := b.facesFirst[i], b.vertsFirst[i]
	out := make([][3]int, b.numFaces[i])
	for f := range out {
		g := b.faces[first+f]
		out[f] = [3]int{g[0] - off, g[1] - off, g[2] - off}
	}
	return out
}

// VertsPadded returns vertices as an (N, maxV, 3) array padded with 0.
func (b *Batch) VertsPadded() (*ragged.Array[float64], error) {
	if b.Len() == 0 {
		return nil, ragged.ErrEmptyList
	}
	items := make([]*ragged.Array[float64], b.Len())
	for i := range items {
		items[i] = vecsToArray(b.MeshVerts(i))
	}
	return ragged.ListToPadded(items, []int{maxOf(b.numVerts), 3}, 0, false)
}

// FacesPadded returns mesh-local faces as an (N, maxF, 3) array padded with -1.
func (b *Batch) FacesPadded() (*ragged.Array[int], error) {
	if b.Len() == 0 {
		return nil, ragged.ErrEmptyList
	}
	items := make([]*ragged.Array[int], b.Len())
	for i := range items {
		faces := b.MeshFaces(i)
		a := ragged.New[int](len(faces), 3)
		for f, tri := range faces {
			copy(a.Data[f*3:], tri[:])
		}
		items[i] = a
	}
	return ragged.ListToPadded(items, []int{maxOf(b.numFaces), 3}, -1, false)
}

func vecsToArray(vs []r3.Vec) *ragged.Array[float64] {
	a := ragged.New[float64](len(vs), 3)
	for i, v := range vs {
		a.Data[i*3], a.Data[i*3+1], a.Data[i*3+2] = v.X, v.Y, v.Z
	}
	return a
}

func arrayToVecs(a *ragged.Array[float64]) []r3.Vec {
	out := make([]r3.Vec, a.Len())
	for i := range out {
		out[i] = r3.Vec{X: a.Data[i*3], Y: a.Data[i*3+1], Z: a.Data[i*3+2]}
	}
	return out
}

func maxOf(xs []int) int {
	m := 0
	for _, x := range xs {
		m = max(m, x)
	}
	return m
}
