package crystal

import (
	"fmt"
	"math"
)

// Severity indicates whether a validation finding makes a structure unusable
// as a carving template or is merely informational.
type Severity int

const (
	SeverityError   Severity = iota // unusable template
	SeverityWarning                 // informational
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Finding describes a single validation result. Atom is -1 for
// structure-level findings.
type Finding struct {
	Atom     int
	Message  string
	Severity Severity
}

func (f Finding) Error() string {
	if f.Atom < 0 {
		return fmt.Sprintf("[%s] %s", f.Severity, f.Message)
	}
	return fmt.Sprintf("[%s] atom %d: %s", f.Severity, f.Atom, f.Message)
}

// Findings separates blocking errors from advisory warnings.
type Findings struct {
	Errors   []Finding
	Warnings []Finding
}

// OK returns true if there are no blocking errors.
func (f Findings) OK() bool {
	return len(f.Errors) == 0
}

// Validate checks a structure for use as a carving template. It is
// read-only and never mutates the structure.
func Validate(s *Structure) Findings {
	var all []Finding
	all = append(all, validateLattice(s)...)
	all = append(all, validateAtoms(s)...)
	all = append(all, validateAttributes(s)...)

	var f Findings
	for _, x := range all {
		if x.Severity == SeverityWarning {
			f.Warnings = append(f.Warnings, x)
		} else {
			f.Errors = append(f.Errors, x)
		}
	}
	return f
}

func validateLattice(s *Structure) []Finding {
	if err := s.Lattice.Validate(); err != nil {
		return []Finding{{Atom: -1, Message: err.Error(), Severity: SeverityError}}
	}
	return nil
}

// validateAtoms checks coordinates. Non-finite values are errors, values
// outside the unit cell are only warned about.
func validateAtoms(s *Structure) []Finding {
	if len(s.Atoms) == 0 {
		return []Finding{{Atom: -1, Message: "structure has no atoms", Severity: SeverityError}}
	}

	var out []Finding
	for i, a := range s.Atoms {
		coords := [3]float64{a.Frac.X, a.Frac.Y, a.Frac.Z}
		finite := true
		for _, c := range coords {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				finite = false
			}
		}
		if !finite {
			out = append(out, Finding{
				Atom:     i,
				Message:  fmt.Sprintf("non-finite fractional coordinates %v", coords),
				Severity: SeverityError,
			})
			continue
		}
		for axis, c := range coords {
			if c < 0 || c >= 1 {
				out = append(out, Finding{
					Atom:     i,
					Message:  fmt.Sprintf("fractional %c coordinate %.6f is outside [0,1)", "xyz"[axis], c),
					Severity: SeverityWarning,
				})
			}
		}
	}
	return out
}

func validateAttributes(s *Structure) []Finding {
	var out []Finding
	for i, a := range s.Atoms {
		if a.Attrs.Element == "" {
			out = append(out, Finding{Atom: i, Message: "missing element", Severity: SeverityWarning})
		}
		if occ := a.Attrs.Occupancy; occ < 0 || occ > 1 {
			out = append(out, Finding{
				Atom:     i,
				Message:  fmt.Sprintf("occupancy %.4f is outside [0,1]", occ),
				Severity: SeverityWarning,
			})
		}
	}
	return out
}
