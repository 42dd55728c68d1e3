package format

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/nanocarve/pkg/crystal"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// PDFfit reads and writes the PDFfit .stru structure format. Each atom
// takes six lines: element, xyz and occupancy; their uncertainties;
// U11 U22 U33; uncertainties; U12 U13 U23; uncertainties.
type PDFfit struct{}

func (PDFfit) Name() string         { return "pdffit" }
func (PDFfit) Extensions() []string { return []string{".stru", ".pdffit"} }

// lineReader yields trimmed non-empty lines with their line numbers.
type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func (lr *lineReader) next() (string, bool) {
	for lr.sc.Scan() {
		lr.line++
		if s := strings.TrimSpace(lr.sc.Text()); s != "" {
			return s, true
		}
	}
	return "", false
}

func (lr *lineReader) errorf(format string, args ...any) error {
	return &ParseError{Line: lr.line, Msg: fmt.Sprintf(format, args...)}
}

// fields splits on whitespace and commas.
func fields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

func (lr *lineReader) floats(toks []string, n int, what string) ([]float64, error) {
	if len(toks) < n {
		return nil, lr.errorf("%s: expected %d values, got %d", what, n, len(toks))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(toks[i], 64)
		if err != nil {
			return nil, lr.errorf("%s: invalid number %q", what, toks[i])
		}
		out[i] = f
	}
	return out, nil
}

func (p PDFfit) Read(r io.Reader) (*crystal.Structure, error) {
	lr := &lineReader{sc: bufio.NewScanner(r)}
	s := &crystal.Structure{Meta: crystal.Meta{Scale: 1, SpaceGroup: "P1"}}
	haveCell := false
	natoms := -1 // from ncell, when present

	for {
		line, ok := lr.next()
		if !ok {
			if err := lr.sc.Err(); err != nil {
				return nil, err
			}
			return nil, lr.errorf("missing atoms section")
		}
		keyword := strings.Fields(line)[0]
		rest := strings.TrimSpace(line[len(keyword):])
		toks := fields(rest)

		switch strings.ToLower(keyword) {
		case "title":
			s.Title = rest
		case "format":
			if rest != "" && strings.ToLower(rest) != "pdffit" {
				return nil, lr.errorf("unsupported format %q", rest)
			}
		case "scale":
			v, err := lr.floats(toks, 1, "scale")
			if err != nil {
				return nil, err
			}
			s.Meta.Scale = v[0]
		case "sharp":
			switch len(toks) {
			case 3:
				v, err := lr.floats(toks, 3, "sharp")
				if err != nil {
					return nil, err
				}
				s.Meta.Sharpen = [4]float64{v[0], 0, v[1], v[2]}
			default:
				v, err := lr.floats(toks, 4, "sharp")
				if err != nil {
					return nil, err
				}
				copy(s.Meta.Sharpen[:], v)
			}
		case "spcgr":
			s.Meta.SpaceGroup = rest
		case "cell":
			v, err := lr.floats(toks, 6, "cell")
			if err != nil {
				return nil, err
			}
			lat, err := crystal.NewLattice(v[0], v[1], v[2], v[3], v[4], v[5])
			if err != nil {
				return nil, err
			}
			s.Lattice = lat
			haveCell = true
		case "dcell":
			v, err := lr.floats(toks, 6, "dcell")
			if err != nil {
				return nil, err
			}
			copy(s.Meta.CellSigma[:], v)
		case "ncell":
			v, err := lr.floats(toks, 4, "ncell")
			if err != nil {
				return nil, err
			}
			if v[3] < 0 || v[3] != math.Trunc(v[3]) {
				return nil, lr.errorf("ncell: invalid atom count %q", toks[3])
			}
			natoms = int(v[3])
		case "shape":
			// Recomputed on write.
		case "atoms":
			if !haveCell {
				return nil, lr.errorf("atoms section before cell record")
			}
			if err := p.readAtoms(lr, s); err != nil {
				return nil, err
			}
			if natoms >= 0 && s.Len() != natoms {
				return nil, lr.errorf("expected %d atoms, read %d", natoms, s.Len())
			}
			return s, nil
		default:
			return nil, lr.errorf("unknown record %q", keyword)
		}
	}
}

func (p PDFfit) readAtoms(lr *lineReader, s *crystal.Structure) error {
	for {
		line, ok := lr.next()
		if !ok {
			return lr.sc.Err()
		}
		toks := fields(line)
		if len(toks) < 5 {
			return lr.errorf("atom record: expected element x y z occupancy")
		}
		v, err := lr.floats(toks[1:], 4, "atom record")
		if err != nil {
			return err
		}
		a := crystal.Atom{
			Frac: v3.Vec{X: v[0], Y: v[1], Z: v[2]},
			Attrs: crystal.Attributes{
				Element:   normalizeElement(toks[0]),
				Occupancy: v[3],
			},
		}

		blocks := []struct {
			n    int
			what string
			dst  []float64
		}{
			{4, "xyz/occupancy uncertainties", nil},
			{3, "U11 U22 U33", a.Attrs.U[0:3]},
			{3, "U11 U22 U33 uncertainties", a.Attrs.Sigma.U[0:3]},
			{3, "U12 U13 U23", a.Attrs.U[3:6]},
			{3, "U12 U13 U23 uncertainties", a.Attrs.Sigma.U[3:6]},
		}
		for _, b := range blocks {
			line, ok := lr.next()
			if !ok {
				return lr.errorf("atom %d: unexpected end of file reading %s", s.Len(), b.what)
			}
			vals, err := lr.floats(fields(line), b.n, b.what)
			if err != nil {
				return err
			}
			if b.dst == nil {
				a.Attrs.Sigma.XYZ = v3.Vec{X: vals[0], Y: vals[1], Z: vals[2]}
				a.Attrs.Sigma.Occupancy = vals[3]
				continue
			}
			copy(b.dst, vals)
		}
		s.Append(a)
	}
}

// normalizeElement turns "NI" or "ni" into "Ni", leaving charge suffixes
// such as "O2-" intact.
func normalizeElement(el string) string {
	if el == "" {
		return el
	}
	return strings.ToUpper(el[:1]) + strings.ToLower(el[1:])
}

func (PDFfit) Write(w io.Writer, s *crystal.Structure) error {
	bw := bufio.NewWriter(w)
	p := s.Lattice.Params()
	m := s.Meta
	scale := m.Scale
	if scale == 0 {
		scale = 1
	}
	spcgr := m.SpaceGroup
	if spcgr == "" {
		spcgr = "P1"
	}

	fmt.Fprintf(bw, "title  %s\n", s.Title)
	fmt.Fprintf(bw, "format pdffit\n")
	fmt.Fprintf(bw, "scale  %9.6f\n", scale)
	fmt.Fprintf(bw, "sharp  %9.6f, %9.6f, %9.6f, %9.6f\n", m.Sharpen[0], m.Sharpen[1], m.Sharpen[2], m.Sharpen[3])
	fmt.Fprintf(bw, "spcgr  %s\n", spcgr)
	fmt.Fprintf(bw, "cell   %9.6f, %9.6f, %9.6f, %9.6f, %9.6f, %9.6f\n", p.A, p.B, p.C, p.Alpha, p.Beta, p.Gamma)
	fmt.Fprintf(bw, "dcell  %9.6f, %9.6f, %9.6f, %9.6f, %9.6f, %9.6f\n",
		m.CellSigma[0], m.CellSigma[1], m.CellSigma[2], m.CellSigma[3], m.CellSigma[4], m.CellSigma[5])
	fmt.Fprintf(bw, "ncell  %9d, %9d, %9d, %9d\n", 1, 1, 1, s.Len())
	fmt.Fprintf(bw, "atoms\n")

	for _, a := range s.Atoms {
		at, sg := a.Attrs, a.Attrs.Sigma
		fmt.Fprintf(bw, "%-4s %17.8f %17.8f %17.8f %12.4f\n", strings.ToUpper(at.Element), a.Frac.X, a.Frac.Y, a.Frac.Z, at.Occupancy)
		fmt.Fprintf(bw, "     %17.8f %17.8f %17.8f %12.4f\n", sg.XYZ.X, sg.XYZ.Y, sg.XYZ.Z, sg.Occupancy)
		fmt.Fprintf(bw, "     %17.8f %17.8f %17.8f\n", at.U[0], at.U[1], at.U[2])
		fmt.Fprintf(bw, "     %17.8f %17.8f %17.8f\n", sg.U[0], sg.U[1], sg.U[2])
		fmt.Fprintf(bw, "     %17.8f %17.8f %17.8f\n", at.U[3], at.U[4], at.U[5])
		fmt.Fprintf(bw, "     %17.8f %17.8f %17.8f\n", sg.U[3], sg.U[4], sg.U[5])
	}
	return bw.Flush()
}
