package formats

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// NodeMesh is the triangle mesh of one RSM node in model space.
type NodeMesh struct {
	Name     string
	Vertices []r3.Vec
	Faces    [][3]int
	// UVs holds the texture coordinates of every face corner.
	UVs [][3][2]float64
	// Textures holds, per face, an index into RSM.Textures or -1.
	Textures []int
}

// Meshes returns one mesh per node with vertices placed by the static node
// transforms of the node and its ancestors. Faces referencing missing
// vertices or texture coordinates are dropped.
func (rsm *RSM) Meshes() []NodeMesh {
	byName := make(map[string]int, len(rsm.Nodes))
	for i, n := range rsm.Nodes {
		if _, dup := byName[n.Name]; !dup {
			byName[n.Name] = i
		}
	}
	only := len(rsm.Nodes) == 1

	out := make([]NodeMesh, len(rsm.Nodes))
	for i := range rsm.Nodes {
		node := &rsm.Nodes[i]
		m := NodeMesh{Name: node.Name, Vertices: make([]r3.Vec, len(node.Vertices))}

		for v, p := range node.Vertices {
			q := node.inner(vec(p), only)
			q = node.outer(q)
			// Walk up the hierarchy; the step bound stops parent cycles.
			parent := node.Parent
			for range len(rsm.Nodes) {
				j, ok := byName[parent]
				if !ok || j == i || parent == "" {
					break
				}
				q = rsm.Nodes[j].outer(q)
				parent = rsm.Nodes[j].Parent
			}
			m.Vertices[v] = q
		}

		for _, f := range node.Faces {
			if !node.faceInRange(f) {
				continue
			}
			m.Faces = append(m.Faces, [3]int{int(f.VertexIDs[0]), int(f.VertexIDs[1]), int(f.VertexIDs[2])})
			var uv [3][2]float64
			for k, t := range f.TexCoordIDs {
				tc := node.TexCoords[t]
				uv[k] = [2]float64{float64(tc.U), float64(tc.V)}
			}
			m.UVs = append(m.UVs, uv)
			m.Textures = append(m.Textures, rsm.faceTexture(node, f))
		}
		out[i] = m
	}
	return out
}

func (rsm *RSM) faceTexture(node *RSMNode, f RSMFace) int {
	if int(f.TextureID) >= len(node.TextureIDs) {
		return -1
	}
	id := node.TextureIDs[f.TextureID]
	if id < 0 || int(id) >= len(rsm.Textures) {
		return -1
	}
	return int(id)
}

func (n *RSMNode) faceInRange(f RSMFace) bool {
	for k := range 3 {
		if int(f.VertexIDs[k]) >= len(n.Vertices) || int(f.TexCoordIDs[k]) >= len(n.TexCoords) {
			return false
		}
	}
	return true
}

// inner applies the node matrix and, for multi-node models, the pivot
// offset. It is not inherited by children.
func (n *RSMNode) inner(p r3.Vec, only bool) r3.Vec {
	m := n.Matrix
	q := r3.Vec{
		X: float64(m[0])*p.X + float64(m[3])*p.Y + float64(m[6])*p.Z,
		Y: float64(m[1])*p.X + float64(m[4])*p.Y + float64(m[7])*p.Z,
		Z: float64(m[2])*p.X + float64(m[5])*p.Y + float64(m[8])*p.Z,
	}
	if !only {
		q = r3.Add(q, vec(n.Offset))
	}
	return q
}

// outer applies scale, rotation and, for child nodes, translation. It is
// inherited by every descendant.
func (n *RSMNode) outer(p r3.Vec) r3.Vec {
	q := r3.Vec{X: p.X * float64(n.Scale[0]), Y: p.Y * float64(n.Scale[1]), Z: p.Z * float64(n.Scale[2])}
	axis := vec(n.RotAxis)
	if n.RotAngle != 0 && r3.Norm(axis) > 0 {
		q = r3.NewRotation(float64(n.RotAngle), axis).Rotate(q)
	}
	if n.Parent != "" {
		q = r3.Add(q, vec(n.Position))
	}
	return q
}

func vec(v [3]float32) r3.Vec {
	return r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}
