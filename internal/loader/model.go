package loader

import (
	"image"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/surfsample/pkg/formats"
)

// fromRSM flattens every node of a model into one mesh. Vertex parts hold
// the node index. Textures that cannot be resolved are logged and their
// faces left untextured.
func (l *Loader) fromRSM(name string, rsm *formats.RSM) *Mesh {
	m := &Mesh{Name: name}

	images := make([]int, len(rsm.Textures))
	for i, tex := range rsm.Textures {
		images[i] = -1
		img, err := l.assets.Texture(tex)
		if err != nil {
			l.log.Warn("texture unavailable", zap.String("model", name), zap.String("texture", tex), zap.Error(err))
			continue
		}
		images[i] = len(m.Images)
		m.Images = append(m.Images, img)
	}

	for part, node := range rsm.Meshes() {
		base := len(m.Verts)
		m.Verts = append(m.Verts, node.Vertices...)
		for range node.Vertices {
			m.Parts = append(m.Parts, part)
		}
		for f, tri := range node.Faces {
			m.Faces = append(m.Faces, [3]int{tri[0] + base, tri[1] + base, tri[2] + base})
			m.FaceUVs = append(m.FaceUVs, node.UVs[f])
			img := -1
			if t := node.Textures[f]; t >= 0 && t < len(images) {
				img = images[t]
			}
			m.FaceImage = append(m.FaceImage, img)
		}
	}

	l.log.Debug("model flattened",
		zap.String("model", name),
		zap.String("version", rsm.Version.String()),
		zap.Int("nodes", len(rsm.Nodes)),
		zap.Int("verts", len(m.Verts)),
		zap.Int("faces", len(m.Faces)),
		zap.Int("textures", len(m.Images)),
		zap.Bool("animated", rsm.HasAnimation()),
	)
	return m
}

// Mesh is one loaded mesh with its texture layout.
type Mesh struct {
	Name  string
	Verts []r3.Vec
	Faces [][3]int
	// Parts labels every vertex with the model node it came from.
	Parts []int

	Images    []*image.NRGBA
	FaceUVs   [][3][2]float64
	FaceImage []int // index into Images per face, -1 for none
}
