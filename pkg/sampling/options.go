package sampling

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Faultbox/surfsample/pkg/ragged"
)

// Sampling errors. The first four are checked in this order before any
// work is done.
var (
	ErrEmptyBatch           = errors.New("sampling: meshes are empty")
	ErrNonFinite            = errors.New("sampling: meshes contain nan or inf")
	ErrNoTextures           = errors.New("sampling: meshes do not contain textures")
	ErrNoFeatures           = errors.New("sampling: meshes do not contain vertex features")
	ErrZeroArea             = errors.New("sampling: mesh has no face with positive area")
	ErrFaceIndices          = errors.New("sampling: face index draws do not fit the batch")
	ErrUnknownInterpolation = errors.New("sampling: unknown interpolation")
	ErrNumSamples           = errors.New("sampling: number of samples must be positive")
)

// DefaultNumSamples is the per-mesh sample count of DefaultOptions.
const DefaultNumSamples = 10000

// Interpolation selects how vertex features are carried to sampled points.
type Interpolation int

const (
	// InterpolateNone skips feature interpolation.
	InterpolateNone Interpolation = iota
	// InterpolateBarycentric blends the three vertex features by weight.
	InterpolateBarycentric
	// InterpolateMajority takes the per-channel mode of the three vertices.
	InterpolateMajority
	// InterpolateNearest copies the features of the heaviest vertex.
	InterpolateNearest
)

var interpolationNames = [...]string{
	InterpolateNone:        "none",
	InterpolateBarycentric: "barycentric",
	InterpolateMajority:    "majority",
	InterpolateNearest:     "nearest",
}

func (i Interpolation) String() string {
	if i < 0 || int(i) >= len(interpolationNames) {
		return fmt.Sprintf("Interpolation(%d)", int(i))
	}
	return interpolationNames[i]
}

// ParseInterpolation maps a mode name to its Interpolation. The empty
// string means InterpolateNone.
func ParseInterpolation(s string) (Interpolation, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return InterpolateNone, nil
	}
	for i, n := range interpolationNames {
		if n == name {
			return Interpolation(i), nil
		}
	}
	return InterpolateNone, fmt.Errorf("%w: %q", ErrUnknownInterpolation, s)
}

// MarshalText implements encoding.TextMarshaler.
func (i Interpolation) MarshalText() ([]byte, error) {
	if i < 0 || int(i) >= len(interpolationNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownInterpolation, int(i))
	}
	return []byte(interpolationNames[i]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Interpolation) UnmarshalText(text []byte) error {
	v, err := ParseInterpolation(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// Options configures a Sampler.
type Options struct {
	// NumSamples is the number of points drawn per mesh.
	NumSamples int

	ReturnNormals   bool
	ReturnTextures  bool
	ReturnCurvature bool
	Interpolate     Interpolation

	// UseCentroids places every sample at its face centroid. Random
	// weights are still drawn so the random stream advances identically.
	UseCentroids bool

	// FaceIndices replays a previous face draw: shape (numValid, NumSamples)
	// with mesh-local face indices. When set no categorical draws are made.
	FaceIndices *ragged.Array[int]

	// Workers bounds the goroutines deriving per-mesh outputs.
	// Zero uses GOMAXPROCS.
	Workers int
}

// DefaultOptions returns options drawing DefaultNumSamples points per mesh
// and nothing else.
func DefaultOptions() Options {
	return Options{NumSamples: DefaultNumSamples}
}

func (o Options) validate() error {
	if o.NumSamples <= 0 {
		return fmt.Errorf("%w: %d", ErrNumSamples, o.NumSamples)
	}
	if o.Interpolate < 0 || int(o.Interpolate) >= len(interpolationNames) {
		return fmt.Errorf("%w: %d", ErrUnknownInterpolation, int(o.Interpolate))
	}
	return nil
}
