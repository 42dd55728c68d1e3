package carve

import (
	"errors"
	"fmt"
)

// ErrEmptyStructure is returned when a structure with no atoms is passed to
// FindCenter or the carver.
var ErrEmptyStructure = errors.New("carve: structure has no atoms")

// ErrInvalidAxis is the sentinel wrapped by InvalidAxisError.
var ErrInvalidAxis = errors.New("carve: invalid semi-axis")

// InvalidAxisError reports a semi-axis that is not a positive finite number.
type InvalidAxisError struct {
	Axis  string // "a", "b" or "c"
	Value float64
}

func (e *InvalidAxisError) Error() string {
	return fmt.Sprintf("carve: semi-axis %s = %g must be positive and finite", e.Axis, e.Value)
}

func (e *InvalidAxisError) Unwrap() error {
	return ErrInvalidAxis
}

// SupercellSizeError reports semi-axes too large for the template cell: the
// supercell holding them would exceed MaxSupercellAtoms. It unwraps to
// ErrInvalidAxis.
type SupercellSizeError struct {
	Axes  Axes
	Atoms float64
}

func (e *SupercellSizeError) Error() string {
	return fmt.Sprintf("carve: semi-axes (%g, %g, %g) need a supercell of %g atoms, limit is %d",
		e.Axes.A, e.Axes.B, e.Axes.C, e.Atoms, MaxSupercellAtoms)
}

func (e *SupercellSizeError) Unwrap() error {
	return ErrInvalidAxis
}
