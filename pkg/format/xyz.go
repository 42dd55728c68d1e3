package format

import (
	"bufio"
	"fmt"
	"io"

	"github.com/chazu/nanocarve/pkg/crystal"
)

// XYZ writes Cartesian coordinates in the plain XYZ format used by most
// molecular viewers. XYZ carries no lattice, so it cannot be read back as a
// template.
type XYZ struct{}

func (XYZ) Name() string         { return "xyz" }
func (XYZ) Extensions() []string { return []string{".xyz"} }

func (XYZ) Read(io.Reader) (*crystal.Structure, error) {
	return nil, fmt.Errorf("xyz: %w", ErrWriteOnly)
}

func (XYZ) Write(w io.Writer, s *crystal.Structure) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n%s\n", s.Len(), s.Title)
	for _, a := range s.Atoms {
		p := s.Lattice.Cartesian(a.Frac)
		fmt.Fprintf(bw, "%-4s %16.8f %16.8f %16.8f\n", a.Attrs.Element, p.X, p.Y, p.Z)
	}
	return bw.Flush()
}
