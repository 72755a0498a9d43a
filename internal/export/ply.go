// Package export writes sampled point clouds as PLY files, YAML summaries
// and WebP previews.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/Faultbox/surfsample/pkg/sampling"
)

// ErrMeshRange is returned for a mesh index outside the result.
var ErrMeshRange = errors.New("export: mesh index out of range")

// WritePLY writes the samples of mesh k as an ASCII PLY point cloud. Every
// optional output present in res becomes a vertex property: normals as
// nx/ny/nz, textures as red/green/blue[/alpha] bytes (other channel counts
// as tex_0..), features as feature_0.. and curvature as curvature.
func WritePLY(w io.Writer, res *sampling.Result, k int) error {
	if k < 0 || k >= res.Points.Len() {
		return fmt.Errorf("%w: %d of %d", ErrMeshRange, k, res.Points.Len())
	}
	numSamples := res.Points.Shape[1]

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ply\nformat ascii 1.0\ncomment generated by meshsample\nelement vertex %d\n", numSamples)
	for _, p := range []string{"x", "y", "z"} {
		fmt.Fprintf(bw, "property double %s\n", p)
	}
	if res.HasNormals() {
		for _, p := range []string{"nx", "ny", "nz"} {
			fmt.Fprintf(bw, "property double %s\n", p)
		}
	}
	texChannels := 0
	if res.HasTextures() {
		texChannels = res.Textures.Shape[2]
		for _, name := range textureProps(texChannels) {
			if texChannels == 3 || texChannels == 4 {
				fmt.Fprintf(bw, "property uchar %s\n", name)
			} else {
				fmt.Fprintf(bw, "property double %s\n", name)
			}
		}
	}
	featDim := 0
	if res.HasFeatures() {
		featDim = res.Features.Shape[2]
		for d := range featDim {
			fmt.Fprintf(bw, "property double feature_%d\n", d)
		}
	}
	if res.HasCurvature() {
		fmt.Fprint(bw, "property double curvature\n")
	}
	fmt.Fprint(bw, "end_header\n")

	line := make([]byte, 0, 256)
	for s := range numSamples {
		line = line[:0]
		for c := range 3 {
			line = appendFloat(line, res.Points.At(k, s, c))
		}
		if res.HasNormals() {
			for c := range 3 {
				line = appendFloat(line, res.Normals.At(k, s, c))
			}
		}
		for c := range texChannels {
			v := res.Textures.At(k, s, c)
			if texChannels == 3 || texChannels == 4 {
				line = strconv.AppendInt(line, int64(toByte(v)), 10)
				line = append(line, ' ')
			} else {
				line = appendFloat(line, v)
			}
		}
		for d := range featDim {
			line = appendFloat(line, res.Features.At(k, s, d))
		}
		if res.HasCurvature() {
			line = appendFloat(line, res.Curvature.At(k, s))
		}
		line[len(line)-1] = '\n'
		if _, err := bw.Write(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func textureProps(channels int) []string {
	switch channels {
	case 3:
		return []string{"red", "green", "blue"}
	case 4:
		return []string{"red", "green", "blue", "alpha"}
	}
	names := make([]string, channels)
	for i := range names {
		names[i] = "tex_" + strconv.Itoa(i)
	}
	return names
}

func appendFloat(b []byte, v float64) []byte {
	b = strconv.AppendFloat(b, v, 'g', -1, 64)
	return append(b, ' ')
}

// toByte maps [0, 1] to [0, 255], clamping out-of-range values.
func toByte(v float64) uint8 {
	if math.IsNaN(v) {
		return 0
	}
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
