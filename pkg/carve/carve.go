// Package carve cuts ellipsoidal particles out of periodic crystal
// structures.
//
// A carve replicates the template into a supercell large enough to hold the
// ellipsoid, picks the atom nearest the supercell centre as origin and keeps
// every atom whose normalized radial coordinate
//
//	d = sqrt(((x-cx)/a)² + ((y-cy)/b)² + ((z-cz)/c)²)
//
// is at most 1. Semi-axes a, b and c run along Cartesian x, y and z.
package carve

import (
	"fmt"
	"math"

	"github.com/chazu/nanocarve/pkg/crystal"
	"github.com/chazu/nanocarve/pkg/supercell"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"go.uber.org/zap"
)

// Replicator builds a supercell of s with the given replication counts.
type Replicator interface {
	Replicate(s *crystal.Structure, counts [3]int) (*crystal.Structure, error)
}

// Axes are the three semi-axis lengths of the ellipsoid, in the length
// units of the lattice.
type Axes struct {
	A, B, C float64
}

// Sphere returns equal axes of radius r.
func Sphere(r float64) Axes {
	return Axes{A: r, B: r, C: r}
}

// Vec returns the axes as a vector.
func (ax Axes) Vec() v3.Vec {
	return v3.Vec{X: ax.A, Y: ax.B, Z: ax.C}
}

// Validate checks that every semi-axis is positive and finite.
func (ax Axes) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"a", ax.A}, {"b", ax.B}, {"c", ax.C}} {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return &InvalidAxisError{Axis: f.name, Value: f.v}
		}
	}
	return nil
}

// AxesOf applies the b = a, c = a defaulting rule to a variadic axis list.
func AxesOf(a float64, bc ...float64) (Axes, error) {
	ax := Sphere(a)
	switch len(bc) {
	case 0:
	case 1:
		ax.B = bc[0]
	case 2:
		ax.B, ax.C = bc[0], bc[1]
	default:
		return Axes{}, fmt.Errorf("carve: expected at most 3 semi-axes, got %d", 1+len(bc))
	}
	return ax, nil
}

// NormalizedDistance returns the ellipsoidal radial coordinate of p
// relative to center. Points with a value of at most 1 are inside.
func NormalizedDistance(ax Axes, center, p v3.Vec) float64 {
	dx := (p.X - center.X) / ax.A
	dy := (p.Y - center.Y) / ax.B
	dz := (p.Z - center.Z) / ax.C
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Contains reports whether the Cartesian point p lies inside or on the
// ellipsoid centred at center.
func Contains(ax Axes, center, p v3.Vec) bool {
	return NormalizedDistance(ax, center, p) <= 1
}

// MaxSupercellAtoms bounds the size of the supercell a carve may request.
const MaxSupercellAtoms = 1 << 27

// ReplicationCounts returns the number of unit cells needed along each
// lattice axis for a supercell to hold the ellipsoid: the ceiling of twice
// the fractional extent of the (a, b, c) vector, and never less than 1.
// Semi-axes needing more than MaxSupercellAtoms cells are rejected with a
// *SupercellSizeError.
//
// This can under-replicate cells that are strongly skewed relative to the
// ellipsoid axes; the resulting particle is then clipped at the supercell
// faces.
func ReplicationCounts(lat crystal.Lattice, ax Axes) ([3]int, error) {
	frac := lat.Fractional(ax.Vec())
	var counts [3]int
	cells := 1.0
	for i, f := range [3]float64{frac.X, frac.Y, frac.Z} {
		n := math.Ceil(2 * f)
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return [3]int{}, &SupercellSizeError{Axes: ax, Atoms: math.Inf(1)}
		}
		if n < 1 {
			n = 1
		}
		cells *= n
		if cells > MaxSupercellAtoms {
			return [3]int{}, &SupercellSizeError{Axes: ax, Atoms: cells}
		}
		counts[i] = int(n)
	}
	return counts, nil
}

// Result describes a completed carve.
type Result struct {
	Structure *crystal.Structure // the carved particle
	Axes      Axes
	Counts    [3]int          // supercell replication counts
	Supercell crystal.Lattice // lattice of the replicated structure
	Center    int             // index of the centre atom in the supercell
	CenterXYZ v3.Vec          // Cartesian position of the centre atom
	Total     int             // atoms in the supercell
	Removed   int             // atoms discarded
}

// Kept returns the number of atoms in the carved particle.
func (r *Result) Kept() int {
	return r.Total - r.Removed
}

// Option configures a Carver.
type Option func(*Carver)

// WithReplicator overrides the supercell builder.
func WithReplicator(r Replicator) Option {
	return func(c *Carver) { c.replicator = r }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(c *Carver) { c.log = l }
}

// Carver cuts ellipsoids out of structures. It holds no per-carve state
// and is safe for concurrent use.
type Carver struct {
	replicator Replicator
	log        *zap.Logger
}

// New returns a Carver that uses supercell.Default unless overridden.
func New(opts ...Option) *Carver {
	c := &Carver{
		replicator: supercell.Default,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Carve cuts an ellipsoid with semi-axes a, b, c out of s. b and c default
// to a, so Carve(s, r) cuts a sphere of radius r. The input structure is
// not modified.
func (c *Carver) Carve(s *crystal.Structure, a float64, bc ...float64) (*crystal.Structure, error) {
	ax, err := AxesOf(a, bc...)
	if err != nil {
		return nil, err
	}
	res, err := c.CarveAxes(s, ax)
	if err != nil {
		return nil, err
	}
	return res.Structure, nil
}

// CarveAxes cuts the ellipsoid ax out of s and reports how the cut was made.
func (c *Carver) CarveAxes(s *crystal.Structure, ax Axes) (*Result, error) {
	if err := ax.Validate(); err != nil {
		return nil, err
	}
	if s == nil || s.IsEmpty() {
		return nil, ErrEmptyStructure
	}
	if err := s.Lattice.Validate(); err != nil {
		return nil, err
	}

	counts, err := ReplicationCounts(s.Lattice, ax)
	if err != nil {
		return nil, err
	}
	if atoms := float64(s.Len()) * float64(counts[0]*counts[1]*counts[2]); atoms > MaxSupercellAtoms {
		return nil, &SupercellSizeError{Axes: ax, Atoms: atoms}
	}
	big, err := c.replicator.Replicate(s, counts)
	if err != nil {
		return nil, fmt.Errorf("carve: replicate %v: %w", counts, err)
	}

	center, err := FindCenter(big)
	if err != nil {
		return nil, fmt.Errorf("carve: supercell: %w", err)
	}

	lat := big.Lattice
	cxyz := lat.Cartesian(big.Atoms[center].Frac)
	particle := big.Filter(func(_ int, a crystal.Atom) bool {
		return Contains(ax, cxyz, lat.Cartesian(a.Frac))
	})

	res := &Result{
		Structure: particle,
		Axes:      ax,
		Counts:    counts,
		Supercell: lat,
		Center:    center,
		CenterXYZ: cxyz,
		Total:     big.Len(),
		Removed:   big.Len() - particle.Len(),
	}

	c.log.Debug("carved ellipsoid",
		zap.Float64("a", ax.A), zap.Float64("b", ax.B), zap.Float64("c", ax.C),
		zap.Ints("counts", counts[:]),
		zap.Int("center", center),
		zap.Int("supercell_atoms", res.Total),
		zap.Int("kept", res.Kept()),
	)
	return res, nil
}
