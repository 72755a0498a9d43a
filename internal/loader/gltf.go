package loader

import (
	"bytes"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/surfsample/pkg/texture"
)

// affine is a node transform: a linear part followed by a translation.
type affine struct {
	lin *r3.Mat
	t   r3.Vec
}

var identityMatrix = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

func identity() affine {
	return affine{lin: r3.Eye()}
}

// then returns the transform applying b first and a second.
func (a affine) then(b affine) affine {
	lin := r3.NewMat(nil)
	lin.Mul(a.lin, b.lin)
	return affine{lin: lin, t: r3.Add(a.lin.MulVec(b.t), a.t)}
}

func (a affine) apply(v r3.Vec) r3.Vec {
	return r3.Add(a.lin.MulVec(v), a.t)
}

// mirrors reports whether the transform flips handedness.
func (a affine) mirrors() bool {
	return a.lin.Det() < 0
}

// nodeTransform returns the local transform of n. Zero-valued fields mean
// the glTF defaults.
func nodeTransform(n *gltf.Node) affine {
	m := n.Matrix
	if m != ([16]float64{}) && m != identityMatrix {
		// glTF matrices are column-major.
		return affine{
			lin: r3.NewMat([]float64{m[0], m[4], m[8], m[1], m[5], m[9], m[2], m[6], m[10]}),
			t:   r3.Vec{X: m[12], Y: m[13], Z: m[14]},
		}
	}
	s := n.Scale
	if s == ([3]float64{}) {
		s = [3]float64{1, 1, 1}
	}
	q := quat.Number{Real: n.Rotation[3], Imag: n.Rotation[0], Jmag: n.Rotation[1], Kmag: n.Rotation[2]}
	if q == (quat.Number{}) {
		q.Real = 1
	}
	lin := r3.NewMat(nil)
	lin.Mul(r3.Rotation(q).Mat(), r3.NewMat([]float64{s[0], 0, 0, 0, s[1], 0, 0, 0, s[2]}))
	t := n.Translation
	return affine{lin: lin, t: r3.Vec{X: t[0], Y: t[1], Z: t[2]}}
}

func isGLTF(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".gltf" || ext == ".glb"
}

// decodeGLTF decodes an in-memory .gltf or .glb document. External buffer
// URIs are not resolved.
func decodeGLTF(data []byte) (*gltf.Document, error) {
	doc := gltf.NewDocument()
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding glTF: %w", err)
	}
	return doc, nil
}

// fromGLTF flattens the triangle primitives of every node in the default
// scene into one mesh, applying node transforms. Vertex parts hold the
// glTF mesh index. dir resolves external image URIs and may be empty.
func (l *Loader) fromGLTF(name string, doc *gltf.Document, dir string) (*Mesh, error) {
	m := &Mesh{Name: name}
	images := make(map[uint32]int)

	var walk func(idx uint32, parent affine, depth int) error
	walk = func(idx uint32, parent affine, depth int) error {
		if int(idx) >= len(doc.Nodes) || depth > len(doc.Nodes) {
			return fmt.Errorf("%w: node %d", ErrBadModel, idx)
		}
		node := doc.Nodes[idx]
		world := parent.then(nodeTransform(node))
		if node.Mesh != nil {
			if err := l.addGLTFMesh(m, doc, *node.Mesh, world, images, dir); err != nil {
				return err
			}
		}
		for _, child := range node.Children {
			if err := walk(child, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range sceneRoots(doc) {
		if err := walk(root, identity(), 0); err != nil {
			return nil, err
		}
	}

	l.log.Debug("glTF flattened",
		zap.String("model", name),
		zap.Int("nodes", len(doc.Nodes)),
		zap.Int("verts", len(m.Verts)),
		zap.Int("faces", len(m.Faces)),
		zap.Int("textures", len(m.Images)),
	)
	return m, nil
}

// sceneRoots returns the root nodes of the default scene, or every node
// that is nobody's child when the document has no scenes.
func sceneRoots(doc *gltf.Document) []uint32 {
	if len(doc.Scenes) > 0 {
		scene := uint32(0)
		if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) {
			scene = *doc.Scene
		}
		return doc.Scenes[scene].Nodes
	}
	child := make(map[uint32]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var roots []uint32
	for i := range doc.Nodes {
		if !child[uint32(i)] {
			roots = append(roots, uint32(i))
		}
	}
	return roots
}

func (l *Loader) addGLTFMesh(m *Mesh, doc *gltf.Document, meshIdx uint32, world affine, images map[uint32]int, dir string) error {
	if int(meshIdx) >= len(doc.Meshes) {
		return fmt.Errorf("%w: mesh %d", ErrBadModel, meshIdx)
	}
	flip := world.mirrors()
	for p, prim := range doc.Meshes[meshIdx].Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			l.log.Debug("skipping non-triangle primitive", zap.String("model", m.Name), zap.Int("primitive", p))
			continue
		}
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok || int(posIdx) >= len(doc.Accessors) {
			return fmt.Errorf("%w: primitive %d has no positions", ErrBadModel, p)
		}
		pos, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
		if err != nil {
			return fmt.Errorf("reading positions: %w", err)
		}

		var uvs [][2]float32
		if uvIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok && int(uvIdx) < len(doc.Accessors) {
			if uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[uvIdx], nil); err != nil {
				return fmt.Errorf("reading texture coordinates: %w", err)
			}
		}

		var indices []uint32
		if prim.Indices != nil && int(*prim.Indices) < len(doc.Accessors) {
			if indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil); err != nil {
				return fmt.Errorf("reading indices: %w", err)
			}
		} else {
			indices = make([]uint32, len(pos))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}

		img := -1
		if len(uvs) == len(pos) {
			img = l.gltfImage(m, doc, prim.Material, images, dir)
		}

		base := len(m.Verts)
		for _, v := range pos {
			m.Verts = append(m.Verts, world.apply(r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}))
			m.Parts = append(m.Parts, int(meshIdx))
		}
		for i := 0; i+2 < len(indices); i += 3 {
			tri := [3]uint32{indices[i], indices[i+1], indices[i+2]}
			if flip {
				tri[1], tri[2] = tri[2], tri[1]
			}
			if int(tri[0]) >= len(pos) || int(tri[1]) >= len(pos) || int(tri[2]) >= len(pos) {
				continue
			}
			var faceUV [3][2]float64
			if img >= 0 {
				for c, vi := range tri {
					faceUV[c] = [2]float64{float64(uvs[vi][0]), float64(uvs[vi][1])}
				}
			}
			m.Faces = append(m.Faces, [3]int{base + int(tri[0]), base + int(tri[1]), base + int(tri[2])})
			m.FaceUVs = append(m.FaceUVs, faceUV)
			m.FaceImage = append(m.FaceImage, img)
		}
	}
	return nil
}

// gltfImage resolves the base colour texture of a material to an index in
// m.Images, decoding each glTF image once. It returns -1 when the material
// has no usable texture.
func (l *Loader) gltfImage(m *Mesh, doc *gltf.Document, material *uint32, images map[uint32]int, dir string) int {
	if material == nil || int(*material) >= len(doc.Materials) {
		return -1
	}
	pbr := doc.Materials[*material].PBRMetallicRoughness
	if pbr == nil || pbr.BaseColorTexture == nil || int(pbr.BaseColorTexture.Index) >= len(doc.Textures) {
		return -1
	}
	src := doc.Textures[pbr.BaseColorTexture.Index].Source
	if src == nil || int(*src) >= len(doc.Images) {
		return -1
	}
	if idx, ok := images[*src]; ok {
		return idx
	}

	img, err := l.readGLTFImage(doc, doc.Images[*src], dir)
	if err != nil {
		l.log.Warn("texture unavailable", zap.String("model", m.Name), zap.Uint32("image", *src), zap.Error(err))
		images[*src] = -1
		return -1
	}
	images[*src] = len(m.Images)
	m.Images = append(m.Images, img)
	return images[*src]
}

func (l *Loader) readGLTFImage(doc *gltf.Document, img *gltf.Image, dir string) (*image.NRGBA, error) {
	switch {
	case img.BufferView != nil:
		if int(*img.BufferView) >= len(doc.BufferViews) {
			return nil, fmt.Errorf("%w: buffer view %d", ErrBadModel, *img.BufferView)
		}
		data, err := modeler.ReadBufferView(doc, doc.BufferViews[*img.BufferView])
		if err != nil {
			return nil, err
		}
		return texture.LoadImageBytes(data, mimeName(img.MimeType))
	case img.URI == "" || strings.HasPrefix(img.URI, "data:"):
		return nil, fmt.Errorf("unsupported image URI %.32q", img.URI)
	case dir != "":
		return texture.LoadImageFile(filepath.Join(dir, filepath.FromSlash(img.URI)))
	default:
		data, err := l.assets.Load(img.URI)
		if err != nil {
			return nil, err
		}
		return texture.LoadImageBytes(data, img.URI)
	}
}

// mimeName maps an image MIME type to a file name whose extension selects
// the decoder.
func mimeName(mime string) string {
	_, sub, _ := strings.Cut(mime, "/")
	if sub == "" {
		return "image"
	}
	return "image." + sub
}

func loadGLTFFile(path string) (*gltf.Document, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening glTF %s: %w", path, err)
	}
	return doc, nil
}
