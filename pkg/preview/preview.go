// Package preview builds solid envelopes of carved particles using a
// geometry kernel. The envelope is the carving ellipsoid placed at the
// carve centre and clipped to the supercell, so a particle whose ellipsoid
// pokes out of the replicated cell shows the truncation.
package preview

import (
	"errors"
	"fmt"
	"math"

	"github.com/chazu/nanocarve/pkg/carve"
	"github.com/chazu/nanocarve/pkg/crystal"
	"github.com/chazu/nanocarve/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrNoResult is returned when no carve result is supplied.
var ErrNoResult = errors.New("preview: nil carve result")

// CellBounds returns the Cartesian axis-aligned bounds of the unit cell of
// lat, taken over its eight corners.
func CellBounds(lat crystal.Lattice) (min, max v3.Vec) {
	inf := math.Inf(1)
	min = v3.Vec{X: inf, Y: inf, Z: inf}
	max = v3.Vec{X: -inf, Y: -inf, Z: -inf}
	for i := 0; i < 8; i++ {
		corner := v3.Vec{X: float64(i & 1), Y: float64(i >> 1 & 1), Z: float64(i >> 2 & 1)}
		p := lat.Cartesian(corner)
		min = v3.Vec{X: math.Min(min.X, p.X), Y: math.Min(min.Y, p.Y), Z: math.Min(min.Z, p.Z)}
		max = v3.Vec{X: math.Max(max.X, p.X), Y: math.Max(max.Y, p.Y), Z: math.Max(max.Z, p.Z)}
	}
	return min, max
}

// Envelope returns the solid occupied by the carve described by res.
func Envelope(res *carve.Result, k kernel.Kernel) (kernel.Solid, error) {
	if res == nil {
		return nil, ErrNoResult
	}
	if err := res.Axes.Validate(); err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	if err := res.Supercell.Validate(); err != nil {
		return nil, fmt.Errorf("preview: supercell: %w", err)
	}

	c := res.CenterXYZ
	ell := k.Translate(k.Ellipsoid(res.Axes.A, res.Axes.B, res.Axes.C), c.X, c.Y, c.Z)

	lo, hi := CellBounds(res.Supercell)
	size := hi.Sub(lo)
	box := k.Translate(k.Box(size.X, size.Y, size.Z), lo.X, lo.Y, lo.Z)

	return k.Intersection(ell, box), nil
}

// Mesh tessellates the envelope of res and names the mesh after name.
func Mesh(res *carve.Result, k kernel.Kernel, name string) (*kernel.Mesh, error) {
	solid, err := Envelope(res, k)
	if err != nil {
		return nil, err
	}
	mesh, err := k.ToMesh(solid)
	if err != nil {
		return nil, fmt.Errorf("preview: ToMesh failed: %w", err)
	}
	mesh.Name = name
	return mesh, nil
}

// WriteSTL writes the envelope of res to path.
func WriteSTL(res *carve.Result, k kernel.Kernel, path string) error {
	solid, err := Envelope(res, k)
	if err != nil {
		return err
	}
	return k.WriteSTL(solid, path)
}
