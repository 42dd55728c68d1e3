package crystal

import (
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Uncertainty holds the standard deviations reported alongside refined
// atom parameters.
type Uncertainty struct {
	XYZ       v3.Vec     `json:"xyz"`
	Occupancy float64    `json:"occupancy,omitempty"`
	U         [6]float64 `json:"u"`
}

// Attributes is the per-atom payload carried through replication and
// carving without interpretation.
type Attributes struct {
	Element   string            `json:"element"`
	Occupancy float64           `json:"occupancy"`
	U         [6]float64        `json:"u"` // U11, U22, U33, U12, U13, U23 in Å²
	Sigma     Uncertainty       `json:"sigma"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Clone returns a deep copy of the attributes.
func (a Attributes) Clone() Attributes {
	c := a
	if a.Labels != nil {
		c.Labels = make(map[string]string, len(a.Labels))
		for k, v := range a.Labels {
			c.Labels[k] = v
		}
	}
	return c
}

// Atom is a single site in a structure, positioned in fractional coordinates.
type Atom struct {
	Frac  v3.Vec     `json:"frac"`
	Attrs Attributes `json:"attrs"`
}

// NewAtom creates a fully occupied atom of the given element.
func NewAtom(element string, x, y, z float64) Atom {
	return Atom{
		Frac:  v3.Vec{X: x, Y: y, Z: z},
		Attrs: Attributes{Element: element, Occupancy: 1},
	}
}

// Clone returns a deep copy of the atom.
func (a Atom) Clone() Atom {
	return Atom{Frac: a.Frac, Attrs: a.Attrs.Clone()}
}

// WithFrac returns a copy of the atom moved to frac.
func (a Atom) WithFrac(frac v3.Vec) Atom {
	c := a.Clone()
	c.Frac = frac
	return c
}
