// Package texture provides colour lookups for points on mesh faces.
//
// A lookup is described by rasterisation-style fragments: for every pixel
// a face index and the barycentric weights of the point inside that face.
package texture

import (
	"errors"
	"fmt"

	"github.com/Faultbox/surfsample/pkg/ragged"
)

// Texture errors.
var (
	ErrFragmentShape = errors.New("texture: fragment arrays have inconsistent shapes")
	ErrFaceRange     = errors.New("texture: face index out of range")
	ErrColorCount    = errors.New("texture: colour count does not match")
	ErrNoImage       = errors.New("texture: image index out of range")
)

// Fragments mirrors the per-pixel output of a mesh rasteriser.
//
// PixToFace has shape (N, H, W, K) with packed face indices, -1 for empty.
// BaryCoords has shape (N, H, W, K, 3). ZBuf and Dists have shape
// (N, H, W, K) and are carried for completeness; lookups ignore them.
type Fragments struct {
	PixToFace  *ragged.Array[int]
	BaryCoords *ragged.Array[float64]
	ZBuf       *ragged.Array[float64]
	Dists      *ragged.Array[float64]
}

// Validate checks that the fragment arrays agree on shape.
func (f *Fragments) Validate() error {
	if f.PixToFace == nil || f.BaryCoords == nil {
		return fmt.Errorf("%w: missing face or barycentric data", ErrFragmentShape)
	}
	if f.PixToFace.Rank() != 4 || f.BaryCoords.Rank() != 5 || f.BaryCoords.Shape[4] != 3 {
		return fmt.Errorf("%w: pix_to_face %v, bary %v", ErrFragmentShape, f.PixToFace.Shape, f.BaryCoords.Shape)
	}
	for d := range 4 {
		if f.PixToFace.Shape[d] != f.BaryCoords.Shape[d] {
			return fmt.Errorf("%w: pix_to_face %v, bary %v", ErrFragmentShape, f.PixToFace.Shape, f.BaryCoords.Shape)
		}
	}
	return nil
}

// Topology exposes the packed face layout a texture is defined over.
type Topology interface {
	FacesPacked() [][3]int
	FaceToMesh() []int
}

// Sampler looks up colours for fragments.
type Sampler interface {
	// Channels returns the number of colour channels C.
	Channels() int
	// Sample returns an (N, H, W, K, C) array. Pixels without a face get 0.
	Sample(f *Fragments, topo Topology) (*ragged.Array[float64], error)
}

// sampleEach runs fn for every fragment pixel that covers a face and writes
// the C channels it returns into the output array.
func sampleEach(f *Fragments, topo Topology, channels int, fn func(face int, w [3]float64, dst []float64) error) (*ragged.Array[float64], error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	numFaces := len(topo.FacesPacked())
	shape := append(append([]int{}, f.PixToFace.Shape...), channels)
	out := ragged.New[float64](shape...)

	for p, face := range f.PixToFace.Data {
		if face < 0 {
			continue
		}
		if face >= numFaces {
			return nil, fmt.Errorf("%w: %d of %d", ErrFaceRange, face, numFaces)
		}
		b := f.BaryCoords.Data[p*3 : p*3+3]
		if err := fn(face, [3]float64{b[0], b[1], b[2]}, out.Data[p*channels:(p+1)*channels]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
