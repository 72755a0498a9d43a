package texture

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/Faultbox/surfsample/pkg/ragged"
)

// Filter selects how texels are fetched.
type Filter int

const (
	Bilinear Filter = iota
	Nearest
)

// String returns the filter name.
func (f Filter) String() string {
	switch f {
	case Bilinear:
		return "bilinear"
	case Nearest:
		return "nearest"
	default:
		return fmt.Sprintf("Filter(%d)", int(f))
	}
}

// ParseFilter parses a filter name; the empty string means Bilinear.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "bilinear":
		return Bilinear, nil
	case "nearest":
		return Nearest, nil
	default:
		return 0, fmt.Errorf("texture: unknown filter %q", s)
	}
}

// UVImage maps every packed face corner to a UV coordinate in one of a set
// of images. Output channels are RGBA in [0, 1].
type UVImage struct {
	Images    []*image.NRGBA
	FaceUVs   [][3][2]float64 // per packed face, per corner
	FaceImage []int           // image index per packed face, -1 for none
	Filter    Filter
}

// NewUVImage validates and wraps the UV layout.
func NewUVImage(images []*image.NRGBA, faceUVs [][3][2]float64, faceImage []int, filter Filter) (*UVImage, error) {
	if len(faceUVs) != len(faceImage) {
		return nil, fmt.Errorf("%w: %d uv faces, %d image indices", ErrColorCount, len(faceUVs), len(faceImage))
	}
	for i, idx := range faceImage {
		if idx >= len(images) || (idx >= 0 && images[idx] == nil) {
			return nil, fmt.Errorf("%w: face %d uses image %d of %d", ErrNoImage, i, idx, len(images))
		}
	}
	return &UVImage{Images: images, FaceUVs: faceUVs, FaceImage: faceImage, Filter: filter}, nil
}

// Channels returns 4 (RGBA).
func (t *UVImage) Channels() int { return 4 }

// Sample implements Sampler.
func (t *UVImage) Sample(f *Fragments, topo Topology) (*ragged.Array[float64], error) {
	return sampleEach(f, topo, 4, func(face int, w [3]float64, dst []float64) error {
		if face >= len(t.FaceUVs) {
			return fmt.Errorf("%w: face %d has no uv layout", ErrFaceRange, face)
		}
		idx := t.FaceImage[face]
		if idx < 0 {
			return nil
		}
		uvs := t.FaceUVs[face]
		u := w[0]*uvs[0][0] + w[1]*uvs[1][0] + w[2]*uvs[2][0]
		v := w[0]*uvs[0][1] + w[1]*uvs[1][1] + w[2]*uvs[2][1]

		var rgba [4]float64
		if t.Filter == Nearest {
			rgba = sampleNearest(t.Images[idx], u, v)
		} else {
			rgba = sampleBilinear(t.Images[idx], u, v)
		}
		copy(dst, rgba[:])
		return nil
	})
}

func wrapUnit(x float64) float64 {
	x -= math.Floor(x)
	if x >= 1 {
		x = 0
	}
	return x
}

func texel(img *image.NRGBA, x, y int) [4]float64 {
	i := img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)
	p := img.Pix[i : i+4 : i+4]
	return [4]float64{float64(p[0]) / 255, float64(p[1]) / 255, float64(p[2]) / 255, float64(p[3]) / 255}
}

func sampleNearest(img *image.NRGBA, u, v float64) [4]float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return [4]float64{}
	}
	x := min(int(wrapUnit(u)*float64(w)), w-1)
	y := min(int(wrapUnit(v)*float64(h)), h-1)
	return texel(img, x, y)
}

// sampleBilinear blends the four texels around (u, v) with wrapped UVs.
func sampleBilinear(img *image.NRGBA, u, v float64) [4]float64 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w == 0 || h == 0 {
		return [4]float64{}
	}

	fx := wrapUnit(u) * float64(w-1)
	fy := wrapUnit(v) * float64(h-1)
	x0, y0 := int(fx), int(fy)
	x1, y1 := (x0+1)%w, (y0+1)%h
	dx, dy := fx-float64(x0), fy-float64(y0)

	c00 := texel(img, x0, y0)
	c10 := texel(img, x1, y0)
	c01 := texel(img, x0, y1)
	c11 := texel(img, x1, y1)

	var out [4]float64
	for c := range out {
		out[c] = c00[c]*(1-dx)*(1-dy) + c10[c]*dx*(1-dy) + c01[c]*(1-dx)*dy + c11[c]*dx*dy
	}
	return out
}
