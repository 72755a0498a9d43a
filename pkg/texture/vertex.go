package texture

import (
	"fmt"

	"github.com/Faultbox/surfsample/pkg/ragged"
)

// VertexColors stores one C-channel colour per packed vertex and blends the
// three corner colours of a face with the fragment's barycentric weights.
type VertexColors struct {
	colors   [][]float64
	channels int
}

// NewVertexColors creates a per-vertex texture. All colours must have the
// same channel count.
func NewVertexColors(colors [][]float64) (*VertexColors, error) {
	c := 0
	if len(colors) > 0 {
		c = len(colors[0])
	}
	for i, col := range colors {
		if len(col) != c {
			return nil, fmt.Errorf("%w: vertex %d has %d channels, want %d", ErrColorCount, i, len(col), c)
		}
	}
	return &VertexColors{colors: colors, channels: c}, nil
}

// Channels returns the number of colour channels.
func (t *VertexColors) Channels() int { return t.channels }

// Sample implements Sampler.
func (t *VertexColors) Sample(f *Fragments, topo Topology) (*ragged.Array[float64], error) {
	faces := topo.FacesPacked()
	return sampleEach(f, topo, t.channels, func(face int, w [3]float64, dst []float64) error {
		for k, v := range faces[face] {
			if v < 0 || v >= len(t.colors) {
				return fmt.Errorf("%w: vertex %d of %d colours", ErrColorCount, v, len(t.colors))
			}
			for c, x := range t.colors[v] {
				dst[c] += w[k] * x
			}
		}
		return nil
	})
}
