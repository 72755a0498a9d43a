// Package loader turns mesh source strings into a mesh batch ready for
// sampling.
package loader

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"runtime"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/surfsample/internal/assets"
	"github.com/Faultbox/surfsample/pkg/formats"
	"github.com/Faultbox/surfsample/pkg/mesh"
	"github.com/Faultbox/surfsample/pkg/texture"
)

// FeatureDim is the number of per-vertex feature channels: normalized
// height and part index.
const FeatureDim = 2

// Options configures a Loader.
type Options struct {
	GRFPaths   []string
	TextureDir string
	Resolution int // marching cubes cells along the longest axis
	Workers    int // concurrent loads, 0 uses every CPU
}

// Loader resolves sources against archives and directories.
type Loader struct {
	opts   Options
	assets *assets.Manager
	log    *zap.Logger
}

// New opens the configured archives. Later archives take priority.
func New(opts Options, log *zap.Logger) (*Loader, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Resolution <= 0 {
		opts.Resolution = 48
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	l := &Loader{opts: opts, assets: assets.NewManager(), log: log}
	for _, p := range opts.GRFPaths {
		if err := l.assets.AddArchive(p); err != nil {
			return nil, multierr.Append(err, l.assets.Close())
		}
		log.Info("archive opened", zap.String("path", p))
	}
	l.assets.AddDir(opts.TextureDir)
	return l, nil
}

// Close releases the archives.
func (l *Loader) Close() error {
	return l.assets.Close()
}

// Load builds one mesh per source, in order. Every failing source is
// reported; the first failure stops sources that have not started yet.
func (l *Loader) Load(ctx context.Context, sources []string) ([]*Mesh, error) {
	meshes := make([]*Mesh, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)
	for i, raw := range sources {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			m, err := l.loadOne(raw)
			if err != nil {
				errs[i] = fmt.Errorf("source %q: %w", raw, err)
				return errs[i]
			}
			meshes[i] = m
			return nil
		})
	}
	_ = g.Wait()

	if err := multierr.Combine(errs...); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits, misses := l.assets.Stats()
	l.log.Debug("sources loaded", zap.Int("meshes", len(meshes)), zap.Int("texture_hits", hits), zap.Int("texture_misses", misses))
	return meshes, nil
}

func (l *Loader) loadOne(raw string) (*Mesh, error) {
	src, err := ParseSource(raw)
	if err != nil {
		return nil, err
	}

	var m *Mesh
	switch src.Kind {
	case KindModel:
		if isGLTF(src.Path) {
			doc, err := loadGLTFFile(src.Path)
			if err != nil {
				return nil, err
			}
			if m, err = l.fromGLTF(src.Raw, doc, filepath.Dir(src.Path)); err != nil {
				return nil, err
			}
			break
		}
		rsm, err := formats.ParseRSMFile(src.Path)
		if err != nil {
			return nil, err
		}
		m = l.fromRSM(src.Raw, rsm)
	case KindArchive:
		data, err := l.assets.Load(src.Path)
		if err != nil {
			return nil, err
		}
		if isGLTF(src.Path) {
			doc, err := decodeGLTF(data)
			if err != nil {
				return nil, err
			}
			if m, err = l.fromGLTF(src.Raw, doc, ""); err != nil {
				return nil, err
			}
			break
		}
		rsm, err := formats.ParseRSM(data)
		if err != nil {
			return nil, err
		}
		m = l.fromRSM(src.Raw, rsm)
	default:
		m, err = primitive(src, l.opts.Resolution)
		if err != nil {
			return nil, err
		}
	}

	l.log.Debug("mesh loaded", zap.String("source", raw), zap.Stringer("kind", src.Kind),
		zap.Int("verts", len(m.Verts)), zap.Int("faces", len(m.Faces)))
	return m, nil
}

// Batch packs meshes into a batch carrying per-vertex features and a UV
// texture over all faces.
func Batch(meshes []*Mesh, filter texture.Filter) (*mesh.Batch, error) {
	verts := make([][]r3.Vec, len(meshes))
	faces := make([][][3]int, len(meshes))
	features := make([][][]float64, len(meshes))

	var (
		images    []*image.NRGBA
		faceUVs   [][3][2]float64
		faceImage []int
	)
	for i, m := range meshes {
		verts[i], faces[i] = m.Verts, m.Faces
		features[i] = vertexFeatures(m)

		base := len(images)
		images = append(images, m.Images...)
		faceUVs = append(faceUVs, m.FaceUVs...)
		for _, idx := range m.FaceImage {
			if idx >= 0 {
				idx += base
			}
			faceImage = append(faceImage, idx)
		}
	}

	tex, err := texture.NewUVImage(images, faceUVs, faceImage, filter)
	if err != nil {
		return nil, fmt.Errorf("building texture: %w", err)
	}
	return mesh.NewBatch(verts, faces, mesh.WithFeatures(features), mesh.WithTextures(tex))
}

// vertexFeatures returns [height, part] per vertex, with height scaled to
// [0, 1] over the mesh's vertical extent.
func vertexFeatures(m *Mesh) [][]float64 {
	out := make([][]float64, len(m.Verts))
	if len(m.Verts) == 0 {
		return out
	}
	box := mesh.Bounds(m.Verts)
	span := box.Max.Y - box.Min.Y
	for i, v := range m.Verts {
		h := 0.0
		if span > 0 {
			h = (v.Y - box.Min.Y) / span
		}
		part := 0.0
		if i < len(m.Parts) {
			part = float64(m.Parts[i])
		}
		out[i] = []float64{h, part}
	}
	return out
}
