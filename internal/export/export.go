package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/surfsample/pkg/mesh"
	"github.com/Faultbox/surfsample/pkg/sampling"
)

// Options selects the files written by WriteAll.
type Options struct {
	Dir         string
	PLY         bool
	Summary     bool
	Preview     bool
	PreviewSize int
	Workers     int
}

// WriteAll writes the requested files for every valid mesh into opts.Dir,
// returning the summary with the written file names filled in. The
// summary itself goes to summary.yaml.
func WriteAll(sum Summary, b *mesh.Batch, res *sampling.Result, opts Options, log *zap.Logger) (Summary, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return sum, err
	}

	var g errgroup.Group
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for k := range sum.Meshes {
		if !b.Valid()[k] {
			continue
		}
		base := fmt.Sprintf("%03d_%s", k, fileStem(sum.Meshes[k].Name))
		if opts.PLY {
			name := base + ".ply"
			sum.Meshes[k].Files = append(sum.Meshes[k].Files, name)
			g.Go(func() error {
				return writeFile(filepath.Join(opts.Dir, name), func(f *os.File) error {
					return WritePLY(f, res, k)
				})
			})
		}
		if opts.Preview {
			name := base + ".webp"
			sum.Meshes[k].Files = append(sum.Meshes[k].Files, name)
			g.Go(func() error {
				img, err := RenderPreview(res, k, opts.PreviewSize)
				if err != nil {
					return err
				}
				return WritePreview(filepath.Join(opts.Dir, name), img)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return sum, err
	}

	if opts.Summary {
		err := writeFile(filepath.Join(opts.Dir, "summary.yaml"), func(f *os.File) error {
			return WriteSummary(f, sum)
		})
		if err != nil {
			return sum, err
		}
	}
	log.Info("export finished", zap.String("dir", opts.Dir), zap.Int("meshes", len(sum.Meshes)))
	return sum, nil
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// fileStem turns a source string into a safe file name part.
func fileStem(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	stem := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if stem == "" {
		return "mesh"
	}
	return stem
}
