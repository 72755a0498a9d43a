// Package sampling draws area-weighted random points on the surface of a
// batch of triangle meshes, together with optional normals, interpolated
// vertex features, texture colours and curvature.
package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/Faultbox/surfsample/pkg/mesh"
	"github.com/Faultbox/surfsample/pkg/ragged"
	"github.com/Faultbox/surfsample/pkg/texture"
)

// Result holds the samples of one call. Rows of meshes without faces are
// zero, or -1 for Features. Optional fields are nil unless requested.
type Result struct {
	// Points has shape (N, S, 3).
	Points *ragged.Array[float64]
	// FaceIndices has shape (numValid, S) with packed face indices.
	FaceIndices *ragged.Array[int]
	// Weights has shape (numValid, S, 3): the barycentric weights used.
	Weights *ragged.Array[float64]
	// Meshes maps every row of FaceIndices and Weights to its mesh.
	Meshes []int

	Normals   *ragged.Array[float64] // (N, S, 3)
	Textures  *ragged.Array[float64] // (N, S, C)
	Features  *ragged.Array[float64] // (N, S, D)
	Curvature *ragged.Array[float64] // (N, S)
}

func (r *Result) HasNormals() bool   { return r.Normals != nil }
func (r *Result) HasTextures() bool  { return r.Textures != nil }
func (r *Result) HasFeatures() bool  { return r.Features != nil }
func (r *Result) HasCurvature() bool { return r.Curvature != nil }

// Sampler draws surface samples with fixed options.
type Sampler struct {
	opts Options
	log  *zap.Logger
}

// New validates opts and returns a Sampler. A nil logger discards output.
func New(opts Options, log *zap.Logger) (*Sampler, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sampler{opts: opts, log: log}, nil
}

// Options returns the sampler configuration.
func (s *Sampler) Options() Options { return s.opts }

// Sample draws s.Options().NumSamples points on every valid mesh of b.
//
// Random numbers are taken from rng in a fixed order: for every valid mesh
// in batch order its face draws, then one u per sample of every valid mesh,
// then one v per sample. A nil rng uses a randomly seeded source.
func (s *Sampler) Sample(b *mesh.Batch, rng *rand.Rand) (*Result, error) {
	if b == nil || b.IsEmpty() {
		return nil, ErrEmptyBatch
	}
	if !mesh.AllFinite(b.VertsPacked()) {
		return nil, ErrNonFinite
	}
	if s.opts.ReturnTextures && b.Textures() == nil {
		return nil, ErrNoTextures
	}
	if s.opts.Interpolate != InterpolateNone && b.FeaturesPacked() == nil {
		return nil, ErrNoFeatures
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	numSamples := s.opts.NumSamples
	rows := make([]int, 0, b.NumValid())
	for i, ok := range b.Valid() {
		if ok {
			rows = append(rows, i)
		}
	}

	faceIdx, err := s.drawFaces(b, rows, rng)
	if err != nil {
		return nil, err
	}
	weights := s.drawWeights(len(rows), rng)

	lo, hi := faceIdx.Data[0], faceIdx.Data[0]
	for _, f := range faceIdx.Data {
		lo, hi = min(lo, f), max(hi, f)
	}
	s.log.Debug("sampled faces",
		zap.Int("min", lo),
		zap.Int("max", hi),
		zap.Ints("shape", faceIdx.Shape),
		zap.Int("faces", len(b.FacesPacked())),
	)

	n := b.Len()
	res := &Result{
		Points:      ragged.New[float64](n, numSamples, 3),
		FaceIndices: faceIdx,
		Weights:     weights,
		Meshes:      rows,
	}
	if s.opts.ReturnNormals {
		res.Normals = ragged.New[float64](n, numSamples, 3)
	}
	if s.opts.Interpolate != InterpolateNone {
		res.Features = ragged.Full[float64](-1, n, numSamples, b.FeatureDim())
	}
	if s.opts.ReturnCurvature {
		res.Curvature = ragged.New[float64](n, numSamples)
	}

	err = forEach(s.opts.Workers, len(rows), func(k int) error {
		return s.deriveMesh(b, res, k)
	})
	if err != nil {
		return nil, err
	}

	if s.opts.ReturnTextures {
		if res.Textures, err = sampleTextures(b, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Sample is a convenience wrapper around New and (*Sampler).Sample.
func Sample(b *mesh.Batch, opts Options, rng *rand.Rand) (*Result, error) {
	s, err := New(opts, nil)
	if err != nil {
		return nil, err
	}
	return s.Sample(b, rng)
}

// drawFaces returns the (numValid, S) packed face indices, drawn with
// probability proportional to face area or taken from the replay array.
func (s *Sampler) drawFaces(b *mesh.Batch, rows []int, rng *rand.Rand) (*ragged.Array[int], error) {
	numSamples := s.opts.NumSamples
	facesFirst := b.MeshToFacesFirstIdx()
	numFaces := b.NumFacesPerMesh()

	if replay := s.opts.FaceIndices; replay != nil {
		if replay.Rank() != 2 || replay.Shape[0] != len(rows) || replay.Shape[1] != numSamples {
			return nil, fmt.Errorf("%w: shape %v, want [%d %d]", ErrFaceIndices, replay.Shape, len(rows), numSamples)
		}
		out := ragged.New[int](len(rows), numSamples)
		for k, m := range rows {
			src := replay.Row(k).Data
			dst := out.Row(k).Data
			for j, f := range src {
				if f < 0 || f >= numFaces[m] {
					return nil, fmt.Errorf("%w: mesh %d draw %d is face %d of %d", ErrFaceIndices, m, j, f, numFaces[m])
				}
				dst[j] = f + facesFirst[m]
			}
		}
		return out, nil
	}

	areas, _ := mesh.FaceAreasNormals(b.VertsPacked(), b.FacesPacked())
	items := make([]*ragged.Array[float64], len(rows))
	for k, m := range rows {
		first := facesFirst[m]
		items[k] = &ragged.Array[float64]{Shape: []int{numFaces[m]}, Data: areas[first : first+numFaces[m]]}
	}
	padded, err := ragged.ListToPadded(items, nil, 0, false)
	if err != nil {
		return nil, fmt.Errorf("padding face areas: %w", err)
	}

	out := ragged.New[int](len(rows), numSamples)
	cum := make([]float64, padded.Shape[1])
	for k, m := range rows {
		floats.CumSum(cum, padded.Row(k).Data)
		total := cum[len(cum)-1]
		if !(total > 0) {
			return nil, fmt.Errorf("%w: mesh %d", ErrZeroArea, m)
		}
		dst := out.Row(k).Data
		for j := range dst {
			x := rng.Float64() * total
			// First face whose cumulative area passes x; zero-area faces
			// and padding never satisfy this.
			f := sort.Search(len(cum), func(i int) bool { return cum[i] > x })
			if f == len(cum) {
				f = sort.SearchFloat64s(cum, total)
			}
			dst[j] = f + facesFirst[m]
		}
	}
	return out, nil
}

// drawWeights returns (numValid, S, 3) barycentric weights uniform over the
// triangle area, or the centroid when UseCentroids is set. All u are drawn
// before any v.
func (s *Sampler) drawWeights(numRows int, rng *rand.Rand) *ragged.Array[float64] {
	total := numRows * s.opts.NumSamples
	u := make([]float64, total)
	v := make([]float64, total)
	for i := range u {
		u[i] = rng.Float64()
	}
	for i := range v {
		v[i] = rng.Float64()
	}

	w := ragged.New[float64](numRows, s.opts.NumSamples, 3)
	for i := range total {
		if s.opts.UseCentroids {
			w.Data[i*3], w.Data[i*3+1], w.Data[i*3+2] = 1.0/3, 1.0/3, 1.0/3
			continue
		}
		su := math.Sqrt(u[i])
		w.Data[i*3] = 1 - su
		w.Data[i*3+1] = su * (1 - v[i])
		w.Data[i*3+2] = su * v[i]
	}
	return w
}

// sampleTextures looks up texture colours through 1×1 fragments built from
// the sampled faces and weights, then scatters them into (N, S, C).
func sampleTextures(b *mesh.Batch, res *Result) (*ragged.Array[float64], error) {
	tex := b.Textures()
	numRows, numSamples := res.FaceIndices.Shape[0], res.FaceIndices.Shape[1]

	frags := &texture.Fragments{
		PixToFace:  &ragged.Array[int]{Shape: []int{numRows, numSamples, 1, 1}, Data: res.FaceIndices.Data},
		BaryCoords: &ragged.Array[float64]{Shape: []int{numRows, numSamples, 1, 1, 3}, Data: res.Weights.Data},
		ZBuf:       ragged.New[float64](numRows, numSamples, 1, 1),
		Dists:      ragged.New[float64](numRows, numSamples, 1, 1),
	}
	colors, err := tex.Sample(frags, b)
	if err != nil {
		return nil, fmt.Errorf("sampling textures: %w", err)
	}

	c := tex.Channels()
	out := ragged.New[float64](b.Len(), numSamples, c)
	rowLen := numSamples * c
	for k, m := range res.Meshes {
		copy(out.Row(m).Data, colors.Data[k*rowLen:(k+1)*rowLen])
	}
	return out, nil
}
