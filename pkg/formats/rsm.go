// Package formats reads Ragnarok Online model files into triangle meshes.
package formats

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
)

// RSM format errors.
var (
	ErrInvalidRSMMagic       = errors.New("invalid RSM magic: expected 'GRSM'")
	ErrUnsupportedRSMVersion = errors.New("unsupported RSM version")
	ErrTruncatedRSMData      = errors.New("truncated RSM data")
	ErrInvalidCount          = errors.New("invalid RSM element count")
)

// Upper bounds on element counts; real models stay far below them.
const (
	maxRSMNodes    = 10000
	maxRSMTextures = 1000
	maxRSMElements = 1 << 20
	maxRSMKeys     = 100000
	rsmNameLen     = 40
)

// RSMVersion represents the RSM file version.
type RSMVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v RSMVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSMVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// RSMShadingType represents the shading mode for rendering.
type RSMShadingType int32

const (
	RSMShadingNone   RSMShadingType = 0
	RSMShadingFlat   RSMShadingType = 1
	RSMShadingSmooth RSMShadingType = 2
)

// String returns a human-readable shading type name.
func (s RSMShadingType) String() string {
	switch s {
	case RSMShadingNone:
		return "None"
	case RSMShadingFlat:
		return "Flat"
	case RSMShadingSmooth:
		return "Smooth"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// RSMTexCoord is a texture coordinate with its vertex colour.
type RSMTexCoord struct {
	Color [4]uint8 // RGBA, v1.2+; opaque white before
	U, V  float32
}

// RSMFace is a triangle of a node.
type RSMFace struct {
	VertexIDs   [3]uint16
	TexCoordIDs [3]uint16
	TextureID   uint16 // index into RSMNode.TextureIDs
	TwoSide     int32
	SmoothGroup int32 // v1.2+
}

// RSMNode is one node of the model hierarchy with its static transform.
// Animation keyframes are skipped while parsing.
type RSMNode struct {
	Name       string
	Parent     string
	TextureIDs []int32 // indices into RSM.Textures

	Matrix   [9]float32 // 3x3, column-major
	Offset   [3]float32
	Position [3]float32
	RotAngle float32
	RotAxis  [3]float32
	Scale    [3]float32

	Vertices  [][3]float32
	TexCoords []RSMTexCoord
	Faces     []RSMFace

	// KeyFrames counts the skipped animation keyframes.
	KeyFrames int
}

// RSM is a parsed RSM model.
type RSM struct {
	Version    RSMVersion
	AnimLength int32
	Shading    RSMShadingType
	Alpha      float32
	Textures   []string
	RootNode   string
	Nodes      []RSMNode
}

// rsmReader decodes little-endian fields and remembers the first short
// read; later reads become no-ops returning zero values.
type rsmReader struct {
	data []byte
	off  int
	err  error
}

func (r *rsmReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedRSMData, n, r.off, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *rsmReader) skip(n int) { r.take(n) }

func (r *rsmReader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *rsmReader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *rsmReader) i32() int32 {
	if b := r.take(4); b != nil {
		return int32(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func (r *rsmReader) f32() float32 {
	if b := r.take(4); b != nil {
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	}
	return 0
}

func (r *rsmReader) vec3() [3]float32 {
	return [3]float32{r.f32(), r.f32(), r.f32()}
}

// name reads a fixed-length NUL-terminated string.
func (r *rsmReader) name() string {
	b := r.take(rsmNameLen)
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// count reads an element count and rejects negative or oversized values.
func (r *rsmReader) count(what string, limit int) int {
	n := r.i32()
	if r.err == nil && (n < 0 || int(n) > limit) {
		r.err = fmt.Errorf("%w: %d %s", ErrInvalidCount, n, what)
		return 0
	}
	return int(n)
}

// ParseRSM parses RSM data from a byte slice.
func ParseRSM(data []byte) (*RSM, error) {
	r := &rsmReader{data: data}

	magic := r.take(4)
	if r.err != nil {
		return nil, r.err
	}
	if string(magic) != "GRSM" {
		return nil, ErrInvalidRSMMagic
	}

	rsm := &RSM{Version: RSMVersion{Major: r.u8(), Minor: r.u8()}}
	if r.err != nil {
		return nil, r.err
	}
	if rsm.Version.Major < 1 || rsm.Version.Major > 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	rsm.AnimLength = r.i32()
	rsm.Shading = RSMShadingType(r.i32())
	rsm.Alpha = 1
	if rsm.Version.AtLeast(1, 4) {
		rsm.Alpha = float32(r.u8()) / 255
	}
	r.skip(16) // reserved

	rsm.Textures = make([]string, r.count("textures", maxRSMTextures))
	for i := range rsm.Textures {
		rsm.Textures[i] = r.name()
	}
	rsm.RootNode = r.name()

	rsm.Nodes = make([]RSMNode, r.count("nodes", maxRSMNodes))
	for i := range rsm.Nodes {
		parseRSMNode(r, rsm.Version, &rsm.Nodes[i])
		if r.err != nil {
			return nil, fmt.Errorf("parsing node %d: %w", i, r.err)
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return rsm, nil
}

func parseRSMNode(r *rsmReader, version RSMVersion, node *RSMNode) {
	node.Name = r.name()
	node.Parent = r.name()

	node.TextureIDs = make([]int32, r.count("node textures", maxRSMTextures))
	for i := range node.TextureIDs {
		node.TextureIDs[i] = r.i32()
	}

	for i := range node.Matrix {
		node.Matrix[i] = r.f32()
	}
	node.Offset = r.vec3()
	node.Position = r.vec3()
	node.RotAngle = r.f32()
	node.RotAxis = r.vec3()
	node.Scale = r.vec3()

	node.Vertices = make([][3]float32, r.count("vertices", maxRSMElements))
	for i := range node.Vertices {
		node.Vertices[i] = r.vec3()
	}

	node.TexCoords = make([]RSMTexCoord, r.count("texcoords", maxRSMElements))
	for i := range node.TexCoords {
		tc := &node.TexCoords[i]
		tc.Color = [4]uint8{255, 255, 255, 255}
		if version.AtLeast(1, 2) {
			copy(tc.Color[:], r.take(4))
		}
		tc.U = r.f32()
		tc.V = r.f32()
	}

	node.Faces = make([]RSMFace, r.count("faces", maxRSMElements))
	for i := range node.Faces {
		f := &node.Faces[i]
		f.VertexIDs = [3]uint16{r.u16(), r.u16(), r.u16()}
		f.TexCoordIDs = [3]uint16{r.u16(), r.u16(), r.u16()}
		f.TextureID = r.u16()
		r.skip(2) // padding
		f.TwoSide = r.i32()
		if version.AtLeast(1, 2) {
			f.SmoothGroup = r.i32()
		}
	}

	// Keyframes: frame + position (v < 1.5), frame + quaternion, and
	// frame + scale (v >= 1.5).
	if !version.AtLeast(1, 5) {
		n := r.count("position keys", maxRSMKeys)
		r.skip(n * 16)
		node.KeyFrames += n
	}
	n := r.count("rotation keys", maxRSMKeys)
	r.skip(n * 20)
	node.KeyFrames += n
	if version.AtLeast(1, 5) {
		n := r.count("scale keys", maxRSMKeys)
		r.skip(n * 16)
		node.KeyFrames += n
	}
}

// ParseRSMFile parses an RSM file from disk.
func ParseRSMFile(path string) (*RSM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RSM file: %w", err)
	}
	return ParseRSM(data)
}

// GetTotalVertexCount returns the total number of vertices across all nodes.
func (rsm *RSM) GetTotalVertexCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Vertices)
	}
	return total
}

// GetTotalFaceCount returns the total number of faces across all nodes.
func (rsm *RSM) GetTotalFaceCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Faces)
	}
	return total
}

// GetNodeByName returns a node by its name, or nil if not found.
func (rsm *RSM) GetNodeByName(name string) *RSMNode {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Name == name {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// HasAnimation returns true if any node carried keyframes.
func (rsm *RSM) HasAnimation() bool {
	for _, node := range rsm.Nodes {
		if node.KeyFrames > 0 {
			return true
		}
	}
	return false
}
