package export

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/surfsample/pkg/sampling"
)

const (
	supersample = 2
	fillRatio   = 0.9
	viewYaw     = math.Pi / 6
	viewPitch   = math.Pi / 9
)

var (
	background = color.RGBA{250, 250, 250, 255}
	lightDir   = r3.Unit(r3.Vec{X: -0.4, Y: 0.7, Z: 0.6})
)

// RenderPreview splats the samples of mesh k into a size x size image seen
// from a fixed oblique angle. Points are coloured by texture when present,
// else by curvature, else by normal shading, else by depth.
func RenderPreview(res *sampling.Result, k, size int) (*image.RGBA, error) {
	if k < 0 || k >= res.Points.Len() {
		return nil, fmt.Errorf("%w: %d of %d", ErrMeshRange, k, res.Points.Len())
	}
	if size <= 0 {
		return nil, fmt.Errorf("export: preview size %d", size)
	}
	numSamples := res.Points.Shape[1]

	view := r3.NewRotation(viewPitch, r3.Vec{X: 1})
	yaw := r3.NewRotation(viewYaw, r3.Vec{Y: 1})
	project := func(p r3.Vec) r3.Vec { return view.Rotate(yaw.Rotate(p)) }

	pts := make([]r3.Vec, numSamples)
	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for s := range pts {
		p := project(r3.Vec{X: res.Points.At(k, s, 0), Y: res.Points.At(k, s, 1), Z: res.Points.At(k, s, 2)})
		pts[s] = p
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}

	big := size * supersample
	canvas := image.NewRGBA(image.Rect(0, 0, big, big))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	extent := math.Max(hi.X-lo.X, hi.Y-lo.Y)
	scale := 0.0
	if extent > 0 {
		scale = fillRatio * float64(big) / extent
	}
	mid := r3.Scale(0.5, r3.Add(lo, hi))
	depthSpan := hi.Z - lo.Z

	curvMax := 0.0
	if res.HasCurvature() {
		for _, c := range res.Curvature.Row(k).Data {
			curvMax = math.Max(curvMax, math.Abs(c))
		}
	}

	zbuf := make([]float64, big*big)
	for i := range zbuf {
		zbuf[i] = math.Inf(-1)
	}
	for s, p := range pts {
		x := int(float64(big)/2 + (p.X-mid.X)*scale)
		y := int(float64(big)/2 - (p.Y-mid.Y)*scale)
		c := pointColor(res, k, s, project, curvMax, depth(p.Z, lo.Z, depthSpan))
		for dy := 0; dy < supersample; dy++ {
			for dx := 0; dx < supersample; dx++ {
				px, py := x+dx, y+dy
				if px < 0 || py < 0 || px >= big || py >= big {
					continue
				}
				if i := py*big + px; p.Z > zbuf[i] {
					zbuf[i] = p.Z
					canvas.SetRGBA(px, py, c)
				}
			}
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(out, out.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
	return out, nil
}

func depth(z, lo, span float64) float64 {
	if span <= 0 {
		return 1
	}
	return (z - lo) / span
}

func pointColor(res *sampling.Result, k, s int, project func(r3.Vec) r3.Vec, curvMax, near float64) color.RGBA {
	switch {
	case res.HasTextures() && res.Textures.Shape[2] >= 3:
		a := 1.0
		if res.Textures.Shape[2] >= 4 {
			a = res.Textures.At(k, s, 3)
		}
		blend := func(c int, bg uint8) uint8 {
			return toByte(res.Textures.At(k, s, c)*a + float64(bg)/255*(1-a))
		}
		return color.RGBA{blend(0, background.R), blend(1, background.G), blend(2, background.B), 255}
	case res.HasCurvature():
		t := 0.0
		if curvMax > 0 {
			t = res.Curvature.At(k, s) / curvMax
		}
		return diverging(t)
	case res.HasNormals():
		n := project(r3.Vec{X: res.Normals.At(k, s, 0), Y: res.Normals.At(k, s, 1), Z: res.Normals.At(k, s, 2)})
		l := 0.25 + 0.75*math.Abs(r3.Dot(n, lightDir))
		return color.RGBA{toByte(0.55 * l), toByte(0.65 * l), toByte(0.8 * l), 255}
	default:
		g := toByte(0.2 + 0.6*near)
		return color.RGBA{g, g, g, 255}
	}
}

// diverging maps t in [-1, 1] to blue, white and red.
func diverging(t float64) color.RGBA {
	t = math.Max(-1, math.Min(1, t))
	if t < 0 {
		return color.RGBA{toByte(1 + t), toByte(1 + t), 255, 255}
	}
	return color.RGBA{255, toByte(1 - t), toByte(1 - t), 255}
}

// WritePreview encodes img as lossless WebP at path.
func WritePreview(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return fmt.Errorf("WebP encode: %w", err)
	}
	return f.Close()
}
