package export

import (
	"io"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/surfsample/pkg/mesh"
	"github.com/Faultbox/surfsample/pkg/sampling"
)

// Summary describes one sampling run.
type Summary struct {
	RunID       string        `yaml:"run_id"`
	Seed        uint64        `yaml:"seed"`
	NumSamples  int           `yaml:"num_samples"`
	Interpolate string        `yaml:"interpolate"`
	Centroids   bool          `yaml:"use_centroids"`
	Meshes      []MeshSummary `yaml:"meshes"`
}

// MeshSummary describes the samples of one mesh.
type MeshSummary struct {
	Name      string     `yaml:"name"`
	Valid     bool       `yaml:"valid"`
	Verts     int        `yaml:"verts"`
	Faces     int        `yaml:"faces"`
	Area      float64    `yaml:"area"`
	Centroid  [3]float64 `yaml:"centroid,flow"`
	BoundsMin [3]float64 `yaml:"bounds_min,flow"`
	BoundsMax [3]float64 `yaml:"bounds_max,flow"`
	Curvature *Stats     `yaml:"curvature,omitempty"`
	Files     []string   `yaml:"files,omitempty"`
}

// Stats is a mean and standard deviation.
type Stats struct {
	Mean float64 `yaml:"mean"`
	Std  float64 `yaml:"std"`
}

// Summarize builds a summary of res under a fresh run ID. names labels the
// meshes of b in order.
func Summarize(names []string, b *mesh.Batch, res *sampling.Result, opts sampling.Options, seed uint64) Summary {
	sum := Summary{
		RunID:       uuid.NewString(),
		Seed:        seed,
		NumSamples:  opts.NumSamples,
		Interpolate: opts.Interpolate.String(),
		Centroids:   opts.UseCentroids,
		Meshes:      make([]MeshSummary, b.Len()),
	}
	numSamples := res.Points.Shape[1]
	for k := range b.Len() {
		ms := MeshSummary{
			Valid: b.Valid()[k],
			Verts: b.NumVertsPerMesh()[k],
			Faces: b.NumFacesPerMesh()[k],
		}
		if k < len(names) {
			ms.Name = names[k]
		}
		if ms.Valid {
			areas, _ := mesh.FaceAreasNormals(b.MeshVerts(k), b.MeshFaces(k))
			ms.Area = lo.Sum(areas)

			pts := make([]r3.Vec, numSamples)
			var c r3.Vec
			for s := range pts {
				pts[s] = r3.Vec{X: res.Points.At(k, s, 0), Y: res.Points.At(k, s, 1), Z: res.Points.At(k, s, 2)}
				c = r3.Add(c, pts[s])
			}
			c = r3.Scale(1/float64(numSamples), c)
			box := mesh.Bounds(pts)
			ms.Centroid = [3]float64{c.X, c.Y, c.Z}
			ms.BoundsMin = [3]float64{box.Min.X, box.Min.Y, box.Min.Z}
			ms.BoundsMax = [3]float64{box.Max.X, box.Max.Y, box.Max.Z}

			if res.HasCurvature() {
				row := res.Curvature.Row(k).Data
				mean, std := stat.MeanStdDev(row, nil)
				if numSamples < 2 {
					std = 0
				}
				ms.Curvature = &Stats{Mean: mean, Std: std}
			}
		}
		sum.Meshes[k] = ms
	}
	return sum
}

// WriteSummary writes s as YAML.
func WriteSummary(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}
