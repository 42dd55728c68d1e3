package preview

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/nanocarve/pkg/carve"
	"github.com/chazu/nanocarve/pkg/crystal"
	"github.com/chazu/nanocarve/pkg/kernel/sdfx"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// carveSimpleCubic cuts a sphere of radius r out of a 1 Å simple cubic
// lattice with one atom at the origin.
func carveSimpleCubic(t *testing.T, r float64) *carve.Result {
	t.Helper()
	lat, err := crystal.Cubic(1)
	if err != nil {
		t.Fatalf("Cubic: %v", err)
	}
	s := crystal.New(lat)
	s.Append(crystal.NewAtom("Ni", 0, 0, 0))
	res, err := carve.New().CarveAxes(s, carve.Sphere(r))
	if err != nil {
		t.Fatalf("CarveAxes: %v", err)
	}
	return res
}

func TestCellBoundsCubic(t *testing.T) {
	lat, err := crystal.Cubic(4)
	if err != nil {
		t.Fatalf("Cubic: %v", err)
	}
	min, max := CellBounds(lat)
	if min.Length() > 1e-12 {
		t.Errorf("min = %v, want origin", min)
	}
	want := v3.Vec{X: 4, Y: 4, Z: 4}
	if max.Sub(want).Length() > 1e-12 {
		t.Errorf("max = %v, want %v", max, want)
	}
}

func TestCellBoundsHexagonal(t *testing.T) {
	lat, err := crystal.NewLattice(2, 2, 3, 90, 90, 120)
	if err != nil {
		t.Fatalf("NewLattice: %v", err)
	}
	min, max := CellBounds(lat)
	// Every Cartesian corner must lie inside the bounds.
	for i := 0; i < 8; i++ {
		p := lat.Cartesian(v3.Vec{X: float64(i & 1), Y: float64(i >> 1 & 1), Z: float64(i >> 2 & 1)})
		if p.X < min.X-1e-9 || p.Y < min.Y-1e-9 || p.Z < min.Z-1e-9 ||
			p.X > max.X+1e-9 || p.Y > max.Y+1e-9 || p.Z > max.Z+1e-9 {
			t.Errorf("corner %d at %v outside bounds [%v, %v]", i, p, min, max)
		}
	}
	if math.Abs((max.Z-min.Z)-3) > 1e-9 {
		t.Errorf("z extent = %f, want 3", max.Z-min.Z)
	}
}

func TestEnvelopeTruncatedBySupercell(t *testing.T) {
	// r = 2.5 replicates 5x5x5 and centres on the atom at (2, 2, 2), so
	// the sphere reaches x = -0.5 while the supercell starts at x = 0.
	res := carveSimpleCubic(t, 2.5)
	if res.Counts != [3]int{5, 5, 5} {
		t.Fatalf("Counts = %v, want [5 5 5]", res.Counts)
	}

	env, err := Envelope(res, sdfx.New())
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}

	cases := []struct {
		p    [3]float64
		want bool
	}{
		{[3]float64{2, 2, 2}, true},
		{[3]float64{4.3, 2, 2}, true},
		{[3]float64{2, 0.1, 2}, true},
		{[3]float64{-0.3, 2, 2}, false}, // inside the sphere, outside the supercell
		{[3]float64{4.7, 2, 2}, false},  // inside the supercell, outside the sphere
		{[3]float64{4, 4, 4}, false},
	}
	for _, tc := range cases {
		if got := env.Contains(tc.p); got != tc.want {
			t.Errorf("Contains(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestEnvelopeContainsInteriorAtoms(t *testing.T) {
	res := carveSimpleCubic(t, 2)
	env, err := Envelope(res, sdfx.New())
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	lat := res.Structure.Lattice
	for i, a := range res.Structure.Atoms {
		p := lat.Cartesian(a.Frac)
		// Atoms on the ellipsoid surface sit at the solid's boundary.
		if carve.NormalizedDistance(res.Axes, res.CenterXYZ, p) > 0.99 {
			continue
		}
		if !env.Contains([3]float64{p.X, p.Y, p.Z}) {
			t.Errorf("atom %d at %v not inside envelope", i, p)
		}
	}
}

func TestEnvelopeNilResult(t *testing.T) {
	_, err := Envelope(nil, sdfx.New())
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("Envelope(nil) error = %v, want ErrNoResult", err)
	}
}

func TestEnvelopeInvalidAxes(t *testing.T) {
	res := carveSimpleCubic(t, 2)
	res.Axes.B = 0
	_, err := Envelope(res, sdfx.New())
	if !errors.Is(err, carve.ErrInvalidAxis) {
		t.Fatalf("Envelope error = %v, want ErrInvalidAxis", err)
	}
}

func TestMeshNamed(t *testing.T) {
	res := carveSimpleCubic(t, 2)
	m, err := Mesh(res, sdfx.WithMeshCells(30), "particle")
	if err != nil {
		t.Fatalf("Mesh: %v", err)
	}
	if m.IsEmpty() {
		t.Fatal("envelope mesh is empty")
	}
	if m.Name != "particle" {
		t.Errorf("Name = %q, want %q", m.Name, "particle")
	}
	min, max := m.Bounds()
	// Sphere of radius 2 at (2, 2, 2) clipped to [0, 4]^3.
	for i := 0; i < 3; i++ {
		if min[i] < -0.2 || max[i] > 4.2 {
			t.Errorf("axis %d mesh bounds [%f, %f] exceed envelope", i, min[i], max[i])
		}
	}
	t.Logf("envelope triangle count: %d", m.TriangleCount())
}

func TestWriteSTL(t *testing.T) {
	res := carveSimpleCubic(t, 2)
	path := filepath.Join(t.TempDir(), "particle.stl")
	if err := WriteSTL(res, sdfx.WithMeshCells(30), path); err != nil {
		t.Fatalf("WriteSTL: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
}
