package loader

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrBadSource is returned for source strings that cannot be parsed.
	ErrBadSource = errors.New("bad mesh source")
	// ErrBadModel is returned for model files with dangling references.
	ErrBadModel = errors.New("bad model")
)

// Kind identifies where a mesh comes from.
type Kind int

const (
	KindModel    Kind = iota // RSM or glTF file on disk
	KindArchive              // model inside a GRF archive
	KindEmpty                // mesh with no faces
	KindIco                  // subdivided icosahedron
	KindSphere               // marching-cubes sphere
	KindBox                  // marching-cubes box
	KindCylinder             // marching-cubes cylinder
)

var kindNames = map[Kind]string{
	KindModel:    "model",
	KindArchive:  "grf",
	KindEmpty:    "empty",
	KindIco:      "ico",
	KindSphere:   "sphere",
	KindBox:      "box",
	KindCylinder: "cylinder",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Source is a parsed mesh source.
//
//	house.rsm            RSM file
//	tree.glb             glTF file (.gltf or .glb)
//	grf:data/model/x.rsm model inside the configured archives
//	empty                mesh without faces
//	ico:3                icosphere subdivided 3 times
//	sphere:1.5           sphere of radius 1.5
//	box:2 | box:1x2x3    cube edge or box extents
//	cylinder:2x0.5       height x radius
type Source struct {
	Raw    string
	Kind   Kind
	Path   string
	Level  int
	Params []float64
}

// maxIcoLevel keeps icospheres under ~330k faces.
const maxIcoLevel = 7

// ParseSource parses one source string.
func ParseSource(s string) (Source, error) {
	s = strings.TrimSpace(s)
	src := Source{Raw: s}
	if s == "" {
		return src, fmt.Errorf("%w: empty string", ErrBadSource)
	}
	if strings.EqualFold(s, "empty") {
		src.Kind = KindEmpty
		return src, nil
	}

	prefix, arg, found := strings.Cut(s, ":")
	if found && len(prefix) > 1 {
		switch strings.ToLower(prefix) {
		case "grf":
			src.Kind, src.Path = KindArchive, arg
			if arg == "" {
				return src, fmt.Errorf("%w: %q has no archive path", ErrBadSource, s)
			}
			return src, nil
		case "ico":
			level, err := strconv.Atoi(arg)
			if err != nil || level < 0 || level > maxIcoLevel {
				return src, fmt.Errorf("%w: ico level must be 0..%d, got %q", ErrBadSource, maxIcoLevel, arg)
			}
			src.Kind, src.Level = KindIco, level
			return src, nil
		case "sphere":
			return parseDims(src, KindSphere, arg, 1)
		case "box":
			src, err := parseDims(src, KindBox, arg, 1, 3)
			if err == nil && len(src.Params) == 1 {
				src.Params = []float64{src.Params[0], src.Params[0], src.Params[0]}
			}
			return src, err
		case "cylinder":
			return parseDims(src, KindCylinder, arg, 2)
		}
	}

	if !strings.HasSuffix(strings.ToLower(s), ".rsm") && !isGLTF(s) {
		return src, fmt.Errorf("%w: %q is neither a primitive nor a model file", ErrBadSource, s)
	}
	src.Kind, src.Path = KindModel, s
	return src, nil
}

// parseDims parses "AxBxC" positive numbers; counts lists the accepted
// number of components.
func parseDims(src Source, kind Kind, arg string, counts ...int) (Source, error) {
	src.Kind = kind
	parts := strings.Split(strings.ToLower(arg), "x")
	ok := false
	for _, n := range counts {
		ok = ok || len(parts) == n
	}
	if !ok {
		return src, fmt.Errorf("%w: %s wants %v dimensions, got %q", ErrBadSource, kind, counts, arg)
	}
	src.Params = make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || !(v > 0) || math.IsInf(v, 1) {
			return src, fmt.Errorf("%w: %s dimension %q must be a positive number", ErrBadSource, kind, p)
		}
		src.Params[i] = v
	}
	return src, nil
}
