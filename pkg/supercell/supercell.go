// Package supercell builds replicated structures: an m×n×o block of unit
// cells expressed as a single larger cell.
package supercell

import (
	"fmt"
	"math"

	"github.com/chazu/nanocarve/pkg/crystal"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Replicate returns a new structure made of counts[0]×counts[1]×counts[2]
// copies of s. The lattice lengths are multiplied by the counts and
// fractional coordinates are rescaled into the larger cell. Atoms are
// emitted per original atom, then per cell offset with the last axis
// varying fastest. The input is not modified.
func Replicate(s *crystal.Structure, counts [3]int) (*crystal.Structure, error) {
	for axis, n := range counts {
		if n < 1 {
			return nil, fmt.Errorf("supercell: count along axis %d is %d, must be at least 1", axis, n)
		}
	}
	if err := s.Lattice.Validate(); err != nil {
		return nil, err
	}
	total := len(s.Atoms)
	for _, n := range counts {
		if total > math.MaxInt/n {
			return nil, fmt.Errorf("supercell: %v copies of %d atoms overflow the atom count", counts, len(s.Atoms))
		}
		total *= n
	}

	lat, err := s.Lattice.Scaled(counts[0], counts[1], counts[2])
	if err != nil {
		return nil, err
	}

	out := &crystal.Structure{
		Title:   s.Title,
		Lattice: lat,
		Atoms:   make([]crystal.Atom, 0, total),
		Meta:    s.Meta,
	}
	out.Meta.SpaceGroup = "P1"

	m, n, o := float64(counts[0]), float64(counts[1]), float64(counts[2])
	for _, a := range s.Atoms {
		for i := 0; i < counts[0]; i++ {
			for j := 0; j < counts[1]; j++ {
				for k := 0; k < counts[2]; k++ {
					frac := v3.Vec{
						X: (a.Frac.X + float64(i)) / m,
						Y: (a.Frac.Y + float64(j)) / n,
						Z: (a.Frac.Z + float64(k)) / o,
					}
					out.Atoms = append(out.Atoms, a.WithFrac(frac))
				}
			}
		}
	}
	return out, nil
}

// Func adapts a replication function to the carve.Replicator interface.
type Func func(s *crystal.Structure, counts [3]int) (*crystal.Structure, error)

// Replicate calls f.
func (f Func) Replicate(s *crystal.Structure, counts [3]int) (*crystal.Structure, error) {
	return f(s, counts)
}

// Default is the standard replicator.
var Default = Func(Replicate)
