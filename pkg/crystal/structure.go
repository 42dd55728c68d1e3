package crystal

import (
	"fmt"
)

// Meta holds format-level header data that is not part of the geometry.
type Meta struct {
	Scale      float64    `json:"scale,omitempty"`
	Sharpen    [4]float64 `json:"sharpen"` // delta2, delta1, sratio, rcut
	SpaceGroup string     `json:"space_group,omitempty"`
	CellSigma  [6]float64 `json:"cell_sigma"`
}

// Structure is an ordered list of atoms in a periodic lattice.
type Structure struct {
	Title   string  `json:"title,omitempty"`
	Lattice Lattice `json:"lattice"`
	Atoms   []Atom  `json:"atoms"`
	Meta    Meta    `json:"meta"`
}

// New creates an empty structure on the given lattice.
func New(lat Lattice) *Structure {
	return &Structure{
		Lattice: lat,
		Meta:    Meta{Scale: 1, SpaceGroup: "P1"},
	}
}

// Len returns the number of atoms.
func (s *Structure) Len() int {
	return len(s.Atoms)
}

// IsEmpty returns true if the structure has no atoms.
func (s *Structure) IsEmpty() bool {
	return len(s.Atoms) == 0
}

// At returns the atom at index i, or panics if i is out of range.
func (s *Structure) At(i int) Atom {
	if i < 0 || i >= len(s.Atoms) {
		panic(fmt.Sprintf("crystal: atom index %d out of range [0,%d)", i, len(s.Atoms)))
	}
	return s.Atoms[i]
}

// Append adds atoms to the end of the structure.
func (s *Structure) Append(atoms ...Atom) {
	s.Atoms = append(s.Atoms, atoms...)
}

// Remove deletes the atom at index i, shifting later atoms down.
func (s *Structure) Remove(i int) error {
	if i < 0 || i >= len(s.Atoms) {
		return fmt.Errorf("crystal: remove: index %d out of range [0,%d)", i, len(s.Atoms))
	}
	s.Atoms = append(s.Atoms[:i], s.Atoms[i+1:]...)
	return nil
}

// Clone returns a deep copy of the structure.
func (s *Structure) Clone() *Structure {
	c := *s
	c.Atoms = make([]Atom, len(s.Atoms))
	for i, a := range s.Atoms {
		c.Atoms[i] = a.Clone()
	}
	return &c
}

// Filter returns a new structure holding the atoms for which keep returns
// true, in their original order. The receiver is not modified.
func (s *Structure) Filter(keep func(i int, a Atom) bool) *Structure {
	c := *s
	c.Atoms = make([]Atom, 0, len(s.Atoms))
	for i, a := range s.Atoms {
		if keep(i, a) {
			c.Atoms = append(c.Atoms, a.Clone())
		}
	}
	return &c
}

// Composition counts atoms per element.
func (s *Structure) Composition() map[string]int {
	comp := make(map[string]int)
	for _, a := range s.Atoms {
		comp[a.Attrs.Element]++
	}
	return comp
}
