package sampling

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Faultbox/surfsample/pkg/mesh"
	"github.com/Faultbox/surfsample/pkg/ragged"
	"github.com/Faultbox/surfsample/pkg/texture"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func triangleBatch(t *testing.T, opts ...mesh.Option) *mesh.Batch {
	t.Helper()
	v, f := mesh.Triangle(r3.Vec{}, r3.Vec{X: 3}, r3.Vec{Y: 3})
	b, err := mesh.NewBatch([][]r3.Vec{v}, [][][3]int{f}, opts...)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	return b
}

// emptyThenTriangle returns a batch whose first mesh has no faces.
func emptyThenTriangle(t *testing.T, opts ...mesh.Option) *mesh.Batch {
	t.Helper()
	v, f := mesh.Triangle(r3.Vec{}, r3.Vec{X: 1}, r3.Vec{Y: 1})
	b, err := mesh.NewBatch([][]r3.Vec{{}, v}, [][][3]int{nil, f}, opts...)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	return b
}

func sample(t *testing.T, b *mesh.Batch, opts Options, seed uint64) *Result {
	t.Helper()
	s, err := New(opts, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := s.Sample(b, seeded(seed))
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	return res
}

func TestBarycentricWeights(t *testing.T) {
	res := sample(t, triangleBatch(t), Options{NumSamples: 5000}, 1)
	w := res.Weights.Data
	for i := 0; i < len(w); i += 3 {
		sum := w[i] + w[i+1] + w[i+2]
		if math.Abs(sum-1) > 1e-12 {
			t.Fatalf("sample %d weights sum to %v", i/3, sum)
		}
		for k := range 3 {
			if w[i+k] < 0 || w[i+k] > 1 {
				t.Fatalf("sample %d weight %d = %v outside [0,1]", i/3, k, w[i+k])
			}
		}
	}
}

func TestUniformOverTriangle(t *testing.T) {
	const n = 20000
	res := sample(t, triangleBatch(t), Options{NumSamples: n}, 2)

	var mean r3.Vec
	p := res.Points.Data
	for i := range n {
		mean = r3.Add(mean, r3.Vec{X: p[i*3], Y: p[i*3+1], Z: p[i*3+2]})
	}
	mean = r3.Scale(1.0/n, mean)
	if math.Abs(mean.X-1) > 0.05 || math.Abs(mean.Y-1) > 0.05 || mean.Z != 0 {
		t.Errorf("mean position %v, want ≈ centroid (1,1,0)", mean)
	}
}

func TestAreaWeightedSampling(t *testing.T) {
	// Face 0 has area 5, face 1 has area 0.5.
	verts := []r3.Vec{{}, {X: 10}, {Y: 1}, {X: 20}, {X: 21}, {X: 20, Y: 1}}
	faces := [][3]int{{0, 1, 2}, {3, 4, 5}}
	b, err := mesh.NewBatch([][]r3.Vec{verts}, [][][3]int{faces})
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}

	const n = 50000
	res := sample(t, b, Options{NumSamples: n}, 3)
	hits := 0
	for _, f := range res.FaceIndices.Data {
		if f == 0 {
			hits++
		}
	}
	frac := float64(hits) / n
	if math.Abs(frac-10.0/11) > 0.01 {
		t.Errorf("fraction from large face = %v, want ≈ %v", frac, 10.0/11)
	}
}

func TestDegenerateFaceNeverDrawn(t *testing.T) {
	verts := []r3.Vec{{}, {X: 1}, {X: 2}, {Y: 1}}
	faces := [][3]int{{0, 1, 2}, {0, 1, 3}, {1, 2, 0}}
	b, err := mesh.NewBatch(
		[][]r3.Vec{{}, verts},
		[][][3]int{nil, faces},
	)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	res := sample(t, b, Options{NumSamples: 2000}, 4)
	for i, f := range res.FaceIndices.Data {
		if f != 1 {
			t.Fatalf("draw %d picked face %d, want only face 1", i, f)
		}
	}
}

func TestZeroAreaMesh(t *testing.T) {
	verts := []r3.Vec{{}, {X: 1}, {X: 2}}
	b, err := mesh.NewBatch([][]r3.Vec{verts}, [][][3]int{{{0, 1, 2}}})
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	if _, err := Sample(b, Options{NumSamples: 10}, seeded(1)); !errors.Is(err, ErrZeroArea) {
		t.Errorf("expected ErrZeroArea, got %v", err)
	}
}

func TestEmptyMeshRows(t *testing.T) {
	colors, err := texture.NewVertexColors([][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}})
	if err != nil {
		t.Fatalf("NewVertexColors: %v", err)
	}
	feats := [][][]float64{{}, {{1, 2}, {3, 4}, {5, 6}}}
	b := emptyThenTriangle(t, mesh.WithFeatures(feats), mesh.WithTextures(colors))

	const n = 200
	res := sample(t, b, Options{
		NumSamples:      n,
		ReturnNormals:   true,
		ReturnTextures:  true,
		ReturnCurvature: true,
		Interpolate:     InterpolateBarycentric,
	}, 5)

	if got := res.Points.Shape; got[0] != 2 || got[1] != n || got[2] != 3 {
		t.Fatalf("Points shape %v", got)
	}
	if got := res.FaceIndices.Shape; got[0] != 1 || got[1] != n {
		t.Fatalf("FaceIndices shape %v, want [1 %d]", got, n)
	}
	if len(res.Meshes) != 1 || res.Meshes[0] != 1 {
		t.Errorf("Meshes = %v, want [1]", res.Meshes)
	}

	zero := func(name string, a *ragged.Array[float64]) {
		for i, x := range a.Row(0).Data {
			if x != 0 {
				t.Fatalf("%s empty row [%d] = %v, want 0", name, i, x)
			}
		}
	}
	zero("points", res.Points)
	zero("normals", res.Normals)
	zero("textures", res.Textures)
	zero("curvature", res.Curvature)
	for i, x := range res.Features.Row(0).Data {
		if x != -1 {
			t.Fatalf("features empty row [%d] = %v, want -1", i, x)
		}
	}

	nonZero := 0
	for _, x := range res.Points.Row(1).Data {
		if x != 0 {
			nonZero++
		}
	}
	if nonZero == 0 {
		t.Error("valid mesh row is all zero")
	}
	for j := range n {
		if res.Normals.At(1, j, 2) != 1 {
			t.Fatalf("normal %d = %v, want +Z", j, res.Normals.Row(1).Row(j).Data)
		}
		sum := res.Textures.At(1, j, 0) + res.Textures.At(1, j, 1) + res.Textures.At(1, j, 2)
		if math.Abs(sum-1) > 1e-9 {
			t.Fatalf("texture %d channels sum to %v, want 1", j, sum)
		}
		f := res.Features.At(1, j, 0)
		if f < 1 || f > 5 {
			t.Fatalf("feature %d = %v outside vertex range", j, f)
		}
	}
}

func TestCentroidsIgnoreSeed(t *testing.T) {
	single := triangleBatch(t)
	opts := Options{NumSamples: 100, UseCentroids: true}
	if !sample(t, single, opts, 1).Points.Equal(sample(t, single, opts, 2).Points) {
		t.Error("single-face centroid positions differ between seeds")
	}

	verts, faces := mesh.IcoSphere(1)
	b, err := mesh.NewBatch([][]r3.Vec{verts}, [][][3]int{faces})
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	opts = Options{NumSamples: 300, UseCentroids: true}
	a := sample(t, b, opts, 10)
	replay, err := a.FaceIndices.Reshape(a.FaceIndices.Shape...)
	if err != nil {
		t.Fatalf("Reshape: %v", err)
	}
	opts.FaceIndices = replay
	c := sample(t, b, opts, 99)
	if !a.Points.Equal(c.Points) {
		t.Error("centroid positions differ between seeds")
	}

	for j := range 10 {
		tri := b.FacesPacked()[a.FaceIndices.At(0, j)]
		want := r3.Scale(1.0/3, r3.Add(r3.Add(verts[tri[0]], verts[tri[1]]), verts[tri[2]]))
		got := r3.Vec{X: a.Points.At(0, j, 0), Y: a.Points.At(0, j, 1), Z: a.Points.At(0, j, 2)}
		if r3.Norm(r3.Sub(got, want)) > 1e-12 {
			t.Errorf("sample %d at %v, want centroid %v", j, got, want)
		}
	}
}

func TestCentroidsDoNotShiftStream(t *testing.T) {
	b := triangleBatch(t)
	r1, r2 := seeded(7), seeded(7)
	if _, err := Sample(b, Options{NumSamples: 50}, r1); err != nil {
		t.Fatal(err)
	}
	if _, err := Sample(b, Options{NumSamples: 50, UseCentroids: true}, r2); err != nil {
		t.Fatal(err)
	}
	if r1.Uint64() != r2.Uint64() {
		t.Error("UseCentroids changed the number of random draws")
	}
}

func TestSameSeedSameSamples(t *testing.T) {
	verts, faces := mesh.IcoSphere(2)
	b, err := mesh.NewBatch([][]r3.Vec{verts, verts}, [][][3]int{faces, faces})
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	opts := Options{NumSamples: 500, ReturnNormals: true, Workers: 4}
	a := sample(t, b, opts, 42)
	c := sample(t, b, opts, 42)
	if !a.Points.Equal(c.Points) || !a.FaceIndices.Equal(c.FaceIndices) || !a.Normals.Equal(c.Normals) {
		t.Error("same seed produced different samples")
	}
	if a.FaceIndices.Row(0).Equal(a.FaceIndices.Row(1)) {
		t.Error("two meshes drew identical faces")
	}
}

func TestReplayFaceIndices(t *testing.T) {
	b := emptyThenTriangle(t)
	local := ragged.New[int](1, 4)
	copy(local.Data, []int{0, 0, 0, 0})

	res := sample(t, b, Options{NumSamples: 4, FaceIndices: local}, 1)
	for i, f := range res.FaceIndices.Data {
		// Mesh 1 starts at packed face 0 since mesh 0 has none.
		if f != 0 {
			t.Errorf("replayed draw %d = %d, want 0", i, f)
		}
	}

	tests := []struct {
		name string
		draw *ragged.Array[int]
	}{
		{"wrong rows", ragged.New[int](2, 4)},
		{"wrong samples", ragged.New[int](1, 3)},
		{"wrong rank", ragged.New[int](4)},
		{"out of range", ragged.Full(1, 1, 4)},
		{"negative", ragged.Full(-1, 1, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sample(b, Options{NumSamples: 4, FaceIndices: tt.draw}, seeded(1))
			if !errors.Is(err, ErrFaceIndices) {
				t.Errorf("expected ErrFaceIndices, got %v", err)
			}
		})
	}
}

func TestPreconditions(t *testing.T) {
	good := triangleBatch(t)

	nan, err := mesh.NewBatch(
		[][]r3.Vec{{{X: math.NaN()}, {X: 1}, {Y: 1}}},
		[][][3]int{{{0, 1, 2}}},
	)
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	onlyEmpty, err := mesh.NewBatch([][]r3.Vec{{{X: 1}}}, [][][3]int{nil})
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}

	tests := []struct {
		name string
		b    *mesh.Batch
		opts Options
		want error
	}{
		{"nil batch", nil, Options{NumSamples: 1}, ErrEmptyBatch},
		{"no valid mesh", onlyEmpty, Options{NumSamples: 1, ReturnTextures: true}, ErrEmptyBatch},
		{"non-finite before textures", nan, Options{NumSamples: 1, ReturnTextures: true}, ErrNonFinite},
		{"textures before features", good, Options{NumSamples: 1, ReturnTextures: true, Interpolate: InterpolateNearest}, ErrNoTextures},
		{"features", good, Options{NumSamples: 1, Interpolate: InterpolateMajority}, ErrNoFeatures},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sample(tt.b, tt.opts, seeded(1))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{}, nil); !errors.Is(err, ErrNumSamples) {
		t.Errorf("expected ErrNumSamples, got %v", err)
	}
	if _, err := New(Options{NumSamples: 1, Interpolate: Interpolation(9)}, nil); !errors.Is(err, ErrUnknownInterpolation) {
		t.Errorf("expected ErrUnknownInterpolation, got %v", err)
	}
	if DefaultOptions().NumSamples != DefaultNumSamples {
		t.Errorf("DefaultOptions().NumSamples = %d", DefaultOptions().NumSamples)
	}
}

func TestInterpolationModes(t *testing.T) {
	feats := [][][]float64{{{1, 7}, {2, 8}, {2, 9}}}
	b := triangleBatch(t, mesh.WithFeatures(feats))

	tests := []struct {
		mode Interpolation
		want []float64
	}{
		{InterpolateBarycentric, []float64{5.0 / 3, 8}},
		{InterpolateMajority, []float64{2, 7}},
		{InterpolateNearest, []float64{1, 7}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			res := sample(t, b, Options{NumSamples: 3, UseCentroids: true, Interpolate: tt.mode}, 1)
			for j := range 3 {
				for c, want := range tt.want {
					if got := res.Features.At(0, j, c); math.Abs(got-want) > 1e-12 {
						t.Errorf("sample %d channel %d = %v, want %v", j, c, got, want)
					}
				}
			}
		})
	}
}

func TestNearestPicksHeaviestVertex(t *testing.T) {
	feats := [][][]float64{{{10}, {20}, {30}}}
	b := triangleBatch(t, mesh.WithFeatures(feats))
	res := sample(t, b, Options{NumSamples: 500, Interpolate: InterpolateNearest}, 3)
	for j := range 500 {
		w := res.Weights.Row(0).Row(j).Data
		best := 0
		for k := 1; k < 3; k++ {
			if w[k] > w[best] {
				best = k
			}
		}
		if got := res.Features.At(0, j, 0); got != feats[0][best][0] {
			t.Fatalf("sample %d weights %v got feature %v", j, w, got)
		}
	}
}

func TestMode3(t *testing.T) {
	tests := []struct {
		a, b, c, want float64
	}{
		{1, 1, 2, 1},
		{2, 1, 2, 2},
		{3, 1, 1, 1},
		{3, 2, 1, 1},
		{5, 5, 5, 5},
	}
	for _, tt := range tests {
		if got := mode3(tt.a, tt.b, tt.c); got != tt.want {
			t.Errorf("mode3(%v,%v,%v) = %v, want %v", tt.a, tt.b, tt.c, got, tt.want)
		}
	}
}

func TestParseInterpolation(t *testing.T) {
	tests := []struct {
		in      string
		want    Interpolation
		wantErr bool
	}{
		{"", InterpolateNone, false},
		{"none", InterpolateNone, false},
		{"Barycentric", InterpolateBarycentric, false},
		{" majority ", InterpolateMajority, false},
		{"nearest", InterpolateNearest, false},
		{"bilinear", InterpolateNone, true},
	}
	for _, tt := range tests {
		got, err := ParseInterpolation(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseInterpolation(%q) error = %v", tt.in, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownInterpolation) {
			t.Errorf("ParseInterpolation(%q) error = %v, want ErrUnknownInterpolation", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseInterpolation(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	var i Interpolation
	if err := i.UnmarshalText([]byte("nearest")); err != nil || i != InterpolateNearest {
		t.Errorf("UnmarshalText = %v, %v", i, err)
	}
	if text, err := InterpolateMajority.MarshalText(); err != nil || string(text) != "majority" {
		t.Errorf("MarshalText = %q, %v", text, err)
	}
}

func TestCurvatureSamples(t *testing.T) {
	verts, faces := mesh.IcoSphere(2)
	for i, v := range verts {
		verts[i] = r3.Vec{X: 1.5 * v.X, Y: v.Y, Z: v.Z}
	}
	b, err := mesh.NewBatch([][]r3.Vec{verts, {}}, [][][3]int{faces, nil})
	if err != nil {
		t.Fatalf("NewBatch: %v", err)
	}
	res := sample(t, b, Options{NumSamples: 400, ReturnCurvature: true}, 8)
	if got := res.Curvature.Shape; got[0] != 2 || got[1] != 400 {
		t.Fatalf("Curvature shape %v", got)
	}
	spread := false
	for j := range 400 {
		c := res.Curvature.At(0, j)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			t.Fatalf("curvature %d = %v", j, c)
		}
		if c != res.Curvature.At(0, 0) {
			spread = true
		}
		if res.Curvature.At(1, j) != 0 {
			t.Fatalf("empty mesh curvature %d = %v", j, res.Curvature.At(1, j))
		}
	}
	if !spread {
		t.Error("curvature is constant on an ellipsoid")
	}
}

func TestForEachCombinesErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	err := forEach(3, 10, func(k int) error {
		switch k {
		case 2:
			return errA
		case 7:
			return errB
		}
		return nil
	})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("combined error %v missing a member", err)
	}
	if err := forEach(0, 0, func(int) error { return errA }); err != nil {
		t.Errorf("no work returned %v", err)
	}
}

func TestForEachBoundsWorkers(t *testing.T) {
	var running, peak atomic.Int32
	seen := make([]bool, 20)
	err := forEach(2, len(seen), func(k int) error {
		cur := running.Add(1)
		defer running.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		seen[k] = true
		return nil
	})
	if err != nil {
		t.Fatalf("forEach: %v", err)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("%d calls in flight, limit 2", p)
	}
	for k, ok := range seen {
		if !ok {
			t.Errorf("index %d not visited", k)
		}
	}
}
