// Package crystal defines the periodic crystal structure types used by
// nanocarve: a Lattice describing the unit cell, Atoms positioned in
// fractional coordinates, and the Structure that ties them together.
package crystal
