package loader

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/surfsample/pkg/grf"
)

// triangleDoc builds a document with one textured triangle mesh placed by a
// single root node.
func triangleDoc(t *testing.T, node *gltf.Node, png []byte) *gltf.Document {
	t.Helper()
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	uv := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {0, 1}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})

	prim := &gltf.Primitive{
		Indices:    gltf.Index(idx),
		Attributes: map[string]uint32{gltf.POSITION: pos, gltf.TEXCOORD_0: uv},
	}
	if png != nil {
		buf := doc.Buffers[0]
		off := len(buf.Data)
		buf.Data = append(buf.Data, png...)
		buf.ByteLength = uint32(len(buf.Data))
		doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
			Buffer:     0,
			ByteOffset: uint32(off),
			ByteLength: uint32(len(png)),
		})
		doc.Images = append(doc.Images, &gltf.Image{
			MimeType:   "image/png",
			BufferView: gltf.Index(uint32(len(doc.BufferViews) - 1)),
		})
		doc.Textures = append(doc.Textures, &gltf.Texture{Source: gltf.Index(0)})
		doc.Materials = append(doc.Materials, &gltf.Material{
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{BaseColorTexture: &gltf.TextureInfo{Index: 0}},
		})
		prim.Material = gltf.Index(0)
	}

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Primitives: []*gltf.Primitive{prim}})
	node.Mesh = gltf.Index(0)
	doc.Nodes = []*gltf.Node{node}
	doc.Scenes = []*gltf.Scene{{Nodes: []uint32{0}}}
	doc.Scene = gltf.Index(0)
	return doc
}

func near(a, b r3.Vec) bool {
	return r3.Norm(r3.Sub(a, b)) < 1e-9
}

func TestFromGLTF(t *testing.T) {
	l := newLoader(t, Options{})
	png := solidPNG(t, color.NRGBA{0, 255, 0, 255})
	doc := triangleDoc(t, &gltf.Node{Translation: [3]float64{0, 0, 5}, Scale: [3]float64{2, 2, 2}}, png)

	m, err := l.fromGLTF("tri.glb", doc, "")
	if err != nil {
		t.Fatalf("fromGLTF: %v", err)
	}
	want := []r3.Vec{{Z: 5}, {X: 2, Z: 5}, {Y: 2, Z: 5}}
	if len(m.Verts) != 3 || len(m.Faces) != 1 {
		t.Fatalf("got %d verts, %d faces", len(m.Verts), len(m.Faces))
	}
	for i, v := range want {
		if !near(m.Verts[i], v) {
			t.Errorf("vertex %d = %v, want %v", i, m.Verts[i], v)
		}
	}
	if m.Faces[0] != [3]int{0, 1, 2} {
		t.Errorf("face = %v", m.Faces[0])
	}
	if len(m.Images) != 1 || m.FaceImage[0] != 0 {
		t.Fatalf("images %d, face image %v", len(m.Images), m.FaceImage)
	}
	if px := m.Images[0].NRGBAAt(0, 0); px.G != 255 || px.R != 0 {
		t.Errorf("texel %v", px)
	}
	if m.FaceUVs[0][2] != [2]float64{0, 1} {
		t.Errorf("uv = %v", m.FaceUVs[0])
	}
}

func TestFromGLTFTransforms(t *testing.T) {
	l := newLoader(t, Options{})

	// Quarter turn about Z maps +X to +Y.
	s := math.Sqrt2 / 2
	doc := triangleDoc(t, &gltf.Node{Rotation: [4]float64{0, 0, s, s}}, nil)
	m, err := l.fromGLTF("rot", doc, "")
	if err != nil {
		t.Fatal(err)
	}
	if !near(m.Verts[1], r3.Vec{Y: 1}) || !near(m.Verts[2], r3.Vec{X: -1}) {
		t.Errorf("rotated verts %v", m.Verts)
	}
	if m.FaceImage[0] != -1 {
		t.Errorf("untextured face got image %d", m.FaceImage[0])
	}

	doc = triangleDoc(t, &gltf.Node{Scale: [3]float64{-1, 1, 1}}, nil)
	m, err = l.fromGLTF("mirror", doc, "")
	if err != nil {
		t.Fatal(err)
	}
	if m.Faces[0] != [3]int{0, 2, 1} {
		t.Errorf("mirrored face = %v, want reversed winding", m.Faces[0])
	}

	doc = triangleDoc(t, &gltf.Node{}, nil)
	doc.Nodes[0].Children = []uint32{7}
	if _, err := l.fromGLTF("dangling", doc, ""); !errors.Is(err, ErrBadModel) {
		t.Errorf("expected ErrBadModel, got %v", err)
	}
}

func TestNodeTransform(t *testing.T) {
	// Column-major: scale X by 2, then translate by (1, 2, 3).
	m := nodeTransform(&gltf.Node{Matrix: [16]float64{2, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 1, 2, 3, 1}})
	if got := m.apply(r3.Vec{X: 1, Y: 1}); !near(got, r3.Vec{X: 3, Y: 3, Z: 3}) {
		t.Errorf("matrix node maps (1,1,0) to %v", got)
	}

	if got := nodeTransform(&gltf.Node{}).apply(r3.Vec{X: 4, Y: 5, Z: 6}); !near(got, r3.Vec{X: 4, Y: 5, Z: 6}) {
		t.Errorf("zero node is not identity: %v", got)
	}

	parent := nodeTransform(&gltf.Node{Translation: [3]float64{10, 0, 0}})
	child := nodeTransform(&gltf.Node{Scale: [3]float64{3, 3, 3}})
	if got := parent.then(child).apply(r3.Vec{X: 1}); !near(got, r3.Vec{X: 13}) {
		t.Errorf("composed transform maps +X to %v", got)
	}
	if !nodeTransform(&gltf.Node{Scale: [3]float64{1, -1, 1}}).mirrors() || identity().mirrors() {
		t.Error("mirrors misreports handedness")
	}
}

func TestSceneRoots(t *testing.T) {
	doc := &gltf.Document{Nodes: []*gltf.Node{{Children: []uint32{2}}, {}, {}}}
	roots := sceneRoots(doc)
	if len(roots) != 2 || roots[0] != 0 || roots[1] != 1 {
		t.Errorf("roots = %v", roots)
	}
}

func TestLoadGLB(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tri.glb")
	if err := gltf.SaveBinary(triangleDoc(t, &gltf.Node{}, nil), path); err != nil {
		t.Fatalf("SaveBinary: %v", err)
	}

	l := newLoader(t, Options{})
	meshes, err := l.Load(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Load file: %v", err)
	}
	if len(meshes[0].Faces) != 1 || meshes[0].Verts[2] != (r3.Vec{Y: 1}) {
		t.Errorf("file mesh %+v", meshes[0])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	w := grf.NewWriter(&buf)
	if err := w.Add("data\\model\\tri.glb", data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	archive := filepath.Join(dir, "models.grf")
	writeFile(t, archive, buf.Bytes())

	l = newLoader(t, Options{GRFPaths: []string{archive}})
	meshes, err = l.Load(context.Background(), []string{"grf:data/model/tri.glb"})
	if err != nil {
		t.Fatalf("Load archive: %v", err)
	}
	if len(meshes[0].Faces) != 1 {
		t.Errorf("archive mesh has %d faces", len(meshes[0].Faces))
	}
}

func TestMimeName(t *testing.T) {
	for mime, want := range map[string]string{"image/png": "image.png", "image/jpeg": "image.jpeg", "": "image"} {
		if got := mimeName(mime); got != want {
			t.Errorf("mimeName(%q) = %q, want %q", mime, got, want)
		}
	}
}
