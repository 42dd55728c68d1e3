package carve

import (
	"math"

	"github.com/chazu/nanocarve/pkg/crystal"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// CellCenter is the fractional point a structure's centre atom is measured
// from.
var CellCenter = v3.Vec{X: 0.5, Y: 0.5, Z: 0.5}

// FindCenter returns the index of the atom closest, by lattice-metric
// distance, to the fractional point (0.5, 0.5, 0.5). The lowest index wins
// ties.
func FindCenter(s *crystal.Structure) (int, error) {
	if s == nil || s.IsEmpty() {
		return -1, ErrEmptyStructure
	}
	if err := s.Lattice.Validate(); err != nil {
		return -1, err
	}

	best := -1
	bestd := math.Inf(1)
	for i, a := range s.Atoms {
		d := s.Lattice.Distance(a.Frac, CellCenter)
		if d < bestd {
			bestd = d
			best = i
		}
	}
	return best, nil
}
