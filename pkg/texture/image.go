package texture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// LoadImage decodes an image. The extension (".tga", ".bmp", ".png", ...)
// picks the decoder because TGA has no magic number to sniff.
func LoadImage(r io.Reader, ext string) (*image.NRGBA, error) {
	var (
		img image.Image
		err error
	)
	switch strings.ToLower(ext) {
	case ".tga":
		img, err = tga.Decode(r)
	case ".bmp":
		img, err = bmp.Decode(r)
	case ".webp":
		img, err = webp.Decode(r)
	default:
		img, _, err = image.Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", ext, err)
	}
	return ToNRGBA(img), nil
}

// LoadImageBytes decodes an in-memory image named name.
func LoadImageBytes(data []byte, name string) (*image.NRGBA, error) {
	return LoadImage(bytes.NewReader(data), filepath.Ext(name))
}

// LoadImageFile reads and decodes an image file.
func LoadImageFile(path string) (*image.NRGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("texture: read %s: %w", path, err)
	}
	return LoadImageBytes(data, path)
}

// ToNRGBA converts any image to non-premultiplied RGBA with origin (0, 0).
func ToNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	return dst
}

// KeyMagenta makes pure magenta texels fully transparent, the colour key
// used by RO model textures.
func KeyMagenta(img *image.NRGBA) {
	for i := 0; i+3 < len(img.Pix); i += 4 {
		p := img.Pix[i : i+4 : i+4]
		if p[0] == 255 && p[1] == 0 && p[2] == 255 {
			p[0], p[1], p[2], p[3] = 0, 0, 0, 0
		}
	}
}
