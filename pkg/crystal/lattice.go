package crystal

import (
	"encoding/json"
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// minVolumeFactor is the smallest accepted value of V²/(abc)², below which
// the cell is treated as flat.
const minVolumeFactor = 1e-12

// LatticeError reports an invalid or degenerate unit cell.
type LatticeError struct {
	Op     string
	Reason string
}

func (e *LatticeError) Error() string {
	return fmt.Sprintf("lattice: %s: %s", e.Op, e.Reason)
}

// CellParams are the six conventional unit cell parameters. Lengths are in
// Ångström, angles in degrees.
type CellParams struct {
	A     float64 `json:"a" yaml:"a"`
	B     float64 `json:"b" yaml:"b"`
	C     float64 `json:"c" yaml:"c"`
	Alpha float64 `json:"alpha" yaml:"alpha"`
	Beta  float64 `json:"beta" yaml:"beta"`
	Gamma float64 `json:"gamma" yaml:"gamma"`
}

// Lattice converts between fractional and Cartesian coordinates for a unit
// cell. The c vector lies along Cartesian z and b lies in the yz plane.
//
// The zero Lattice is invalid; construct one with NewLattice.
type Lattice struct {
	params CellParams
	base   [3]v3.Vec // rows: a, b, c in Cartesian coordinates
	recip  [3]v3.Vec // reciprocal vectors, recip[i]·base[j] = δij
	volume float64
}

// NewLattice builds a lattice from cell parameters.
func NewLattice(a, b, c, alpha, beta, gamma float64) (Lattice, error) {
	return FromParams(CellParams{A: a, B: b, C: c, Alpha: alpha, Beta: beta, Gamma: gamma})
}

// Cubic is a convenience constructor for a cubic cell of edge a.
func Cubic(a float64) (Lattice, error) {
	return NewLattice(a, a, a, 90, 90, 90)
}

// FromParams builds a lattice from a CellParams value.
func FromParams(p CellParams) (Lattice, error) {
	for _, v := range []float64{p.A, p.B, p.C, p.Alpha, p.Beta, p.Gamma} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Lattice{}, &LatticeError{Op: "new", Reason: fmt.Sprintf("non-finite cell parameter in %+v", p)}
		}
	}
	if p.A <= 0 || p.B <= 0 || p.C <= 0 {
		return Lattice{}, &LatticeError{Op: "new", Reason: fmt.Sprintf("cell lengths must be positive, got %g %g %g", p.A, p.B, p.C)}
	}

	ca, cb, cg := cosd(p.Alpha), cosd(p.Beta), cosd(p.Gamma)
	sa, sb := sind(p.Alpha), sind(p.Beta)

	q := 1 - ca*ca - cb*cb - cg*cg + 2*ca*cb*cg
	if !(q > minVolumeFactor) || sa == 0 || sb == 0 {
		return Lattice{}, &LatticeError{Op: "new", Reason: fmt.Sprintf("degenerate cell angles %g %g %g", p.Alpha, p.Beta, p.Gamma)}
	}
	volume := p.A * p.B * p.C * math.Sqrt(q)

	// Reciprocal a* length and cos(gamma*), used to place a.
	ar := p.B * p.C * sa / volume
	cgr := (ca*cb - cg) / (sa * sb)
	sgr := math.Sqrt(1 - cgr*cgr)

	l := Lattice{params: p, volume: volume}
	l.base[0] = v3.Vec{X: 1 / ar, Y: -cgr / sgr / ar, Z: cb * p.A}
	l.base[1] = v3.Vec{X: 0, Y: p.B * sa, Z: p.B * ca}
	l.base[2] = v3.Vec{X: 0, Y: 0, Z: p.C}

	det := l.base[0].Dot(l.base[1].Cross(l.base[2]))
	if !(det > 0) {
		return Lattice{}, &LatticeError{Op: "new", Reason: "basis is not right-handed"}
	}
	l.recip[0] = l.base[1].Cross(l.base[2]).DivScalar(det)
	l.recip[1] = l.base[2].Cross(l.base[0]).DivScalar(det)
	l.recip[2] = l.base[0].Cross(l.base[1]).DivScalar(det)
	return l, nil
}

// Validate reports whether the lattice was constructed from valid parameters.
func (l Lattice) Validate() error {
	if !(l.volume > 0) {
		return &LatticeError{Op: "validate", Reason: "lattice is not initialized"}
	}
	return nil
}

// Params returns the cell parameters the lattice was built from.
func (l Lattice) Params() CellParams {
	return l.params
}

// Volume returns the unit cell volume in Å³.
func (l Lattice) Volume() float64 {
	return l.volume
}

// Base returns the Cartesian basis vectors a, b, c.
func (l Lattice) Base() [3]v3.Vec {
	return l.base
}

// Lengths returns the lengths of the three basis vectors.
func (l Lattice) Lengths() v3.Vec {
	return v3.Vec{X: l.base[0].Length(), Y: l.base[1].Length(), Z: l.base[2].Length()}
}

// Cartesian converts fractional coordinates to Cartesian coordinates.
func (l Lattice) Cartesian(frac v3.Vec) v3.Vec {
	return l.base[0].MulScalar(frac.X).
		Add(l.base[1].MulScalar(frac.Y)).
		Add(l.base[2].MulScalar(frac.Z))
}

// Fractional converts Cartesian coordinates to fractional coordinates.
func (l Lattice) Fractional(cart v3.Vec) v3.Vec {
	return v3.Vec{
		X: cart.Dot(l.recip[0]),
		Y: cart.Dot(l.recip[1]),
		Z: cart.Dot(l.recip[2]),
	}
}

// Distance returns the lattice-metric distance between two points given in
// fractional coordinates. No periodic wrapping is applied.
func (l Lattice) Distance(u, v v3.Vec) float64 {
	return l.Cartesian(u.Sub(v)).Length()
}

// Scaled returns the lattice of an m×n×o supercell.
func (l Lattice) Scaled(m, n, o int) (Lattice, error) {
	p := l.params
	p.A *= float64(m)
	p.B *= float64(n)
	p.C *= float64(o)
	return FromParams(p)
}

// MarshalJSON encodes the lattice as its cell parameters.
func (l Lattice) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.params)
}

// UnmarshalJSON decodes cell parameters and rebuilds the basis.
func (l *Lattice) UnmarshalJSON(data []byte) error {
	var p CellParams
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	nl, err := FromParams(p)
	if err != nil {
		return err
	}
	*l = nl
	return nil
}

// cosd is cos for degrees, exact at multiples of 90.
func cosd(deg float64) float64 {
	if r := math.Mod(deg, 90); r == 0 {
		return [4]float64{1, 0, -1, 0}[quadrant(deg)]
	}
	return math.Cos(deg * math.Pi / 180)
}

// sind is sin for degrees, exact at multiples of 90.
func sind(deg float64) float64 {
	if r := math.Mod(deg, 90); r == 0 {
		return [4]float64{0, 1, 0, -1}[quadrant(deg)]
	}
	return math.Sin(deg * math.Pi / 180)
}

func quadrant(deg float64) int {
	q := int(deg/90) % 4
	if q < 0 {
		q += 4
	}
	return q
}
