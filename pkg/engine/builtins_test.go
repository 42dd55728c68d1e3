package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/nanocarve/pkg/crystal"
	"github.com/chazu/nanocarve/pkg/format"
	"github.com/chazu/nanocarve/pkg/kernel/sdfx"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(read-structure "Ni.stru" :format "pdffit")`,
			expect: `(read_structure "Ni.stru" "__kw_format" "pdffit")`,
		},
		{
			name:   "multiple keywords",
			input:  `(carve s 20 :b 10 :c 10)`,
			expect: `(carve s 20 "__kw_b" 10 "__kw_c" 10)`,
		},
		{
			name:   "hyphen in path preserved",
			input:  `(write-structure p "out/Ni-d20.stru")`,
			expect: `(write_structure p "out/Ni-d20.stru")`,
		},
		{
			name:   "exponent preserved",
			input:  `(carve s 2e-1)`,
			expect: `(carve s 2e-1)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(atom-count :part-a ref)`,
			expect: `(atom_count "__kw_part-a" ref)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:mesh-cells`,
			expect: `"__kw_mesh-cells"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Driver builtins
// ---------------------------------------------------------------------------

// writeSimpleCubic writes a 1 Å simple cubic template with one Ni atom at
// the origin into dir and returns its path.
func writeSimpleCubic(t *testing.T, dir string) string {
	t.Helper()
	lat, err := crystal.Cubic(1)
	if err != nil {
		t.Fatalf("Cubic: %v", err)
	}
	s := crystal.New(lat)
	s.Title = "simple cubic"
	s.Append(crystal.NewAtom("Ni", 0, 0, 0))
	path := filepath.Join(dir, "sc.stru")
	if err := format.WriteFile(path, "", s); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func evalIn(t *testing.T, dir, source string) (*Run, []EvalError) {
	t.Helper()
	eng := NewEngine(WithBaseDir(dir), WithKernel(sdfx.WithMeshCells(24)))
	run, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	return run, evalErrs
}

func TestReadAndCount(t *testing.T) {
	dir := t.TempDir()
	writeSimpleCubic(t, dir)

	run, evalErrs := evalIn(t, dir, `(atom-count (read-structure "sc.stru"))`)
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if run.Value != "1" {
		t.Errorf("Value = %q, want 1", run.Value)
	}
}

func TestCarveSphere(t *testing.T) {
	dir := t.TempDir()
	writeSimpleCubic(t, dir)

	source := `
; sphere of radius 2 out of the 1 Å cubic template
(def s (read-structure "sc.stru" :format "pdffit"))
(def p (carve s 2))
(write-structure p "out/sc_r2.stru")
(atom-count p)
`
	run, evalErrs := evalIn(t, dir, source)
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if run.Value != "30" {
		t.Errorf("Value = %q, want 30", run.Value)
	}

	want := filepath.Join(dir, "out", "sc_r2.stru")
	if len(run.Outputs) != 1 || run.Outputs[0] != want {
		t.Fatalf("Outputs = %v, want [%s]", run.Outputs, want)
	}
	got, err := format.ReadFile(want, "")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Len() != 30 {
		t.Errorf("written particle has %d atoms, want 30", got.Len())
	}
	if p := got.Lattice.Params(); p.A != 4 || p.B != 4 || p.C != 4 {
		t.Errorf("written cell = %+v, want 4 4 4", p)
	}
}

func TestCarveEllipsoidForms(t *testing.T) {
	dir := t.TempDir()
	writeSimpleCubic(t, dir)

	positional, evalErrs := evalIn(t, dir, `(atom-count (carve (read-structure "sc.stru") 3 2 1.5))`)
	if len(evalErrs) > 0 {
		t.Fatalf("positional eval errors: %v", evalErrs)
	}
	keyword, evalErrs := evalIn(t, dir, `(atom-count (carve (read-structure "sc.stru") 3 :b 2 :c 1.5))`)
	if len(evalErrs) > 0 {
		t.Fatalf("keyword eval errors: %v", evalErrs)
	}
	if positional.Value != keyword.Value {
		t.Errorf("positional carve kept %s atoms, keyword carve kept %s", positional.Value, keyword.Value)
	}
	sphere, evalErrs := evalIn(t, dir, `(atom-count (carve (read-structure "sc.stru") 3))`)
	if len(evalErrs) > 0 {
		t.Fatalf("sphere eval errors: %v", evalErrs)
	}
	if sphere.Value == positional.Value {
		t.Errorf("sphere and ellipsoid kept the same count %s", sphere.Value)
	}
}

func TestCarveErrors(t *testing.T) {
	dir := t.TempDir()
	writeSimpleCubic(t, dir)

	tests := []struct {
		name   string
		source string
	}{
		{"zero axis", `(carve (read-structure "sc.stru") 0)`},
		{"missing axes", `(carve (read-structure "sc.stru"))`},
		{"too many axes", `(carve (read-structure "sc.stru") 1 2 3 4)`},
		{"axis given twice", `(carve (read-structure "sc.stru") 1 2 :b 3)`},
		{"not a structure", `(carve 5 2)`},
		{"non-numeric axis", `(carve (read-structure "sc.stru") "big")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run, evalErrs := evalIn(t, dir, tt.source)
			if len(evalErrs) == 0 {
				t.Fatal("expected eval error")
			}
			if !strings.Contains(evalErrs[0].Message, "carve") {
				t.Errorf("error %q should name the builtin", evalErrs[0].Message)
			}
			if len(run.Outputs) != 0 {
				t.Errorf("expected no outputs, got %v", run.Outputs)
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, evalErrs := evalIn(t, dir, `(read-structure "nope.stru")`)
	if len(evalErrs) == 0 {
		t.Fatal("expected eval error for missing template")
	}
}

func TestCenterAtom(t *testing.T) {
	dir := t.TempDir()
	lat, err := crystal.Cubic(2)
	if err != nil {
		t.Fatalf("Cubic: %v", err)
	}
	s := crystal.New(lat)
	s.Append(
		crystal.NewAtom("Ni", 0, 0, 0),
		crystal.NewAtom("Ni", 0.5, 0.5, 0.5),
		crystal.NewAtom("Ni", 0.9, 0.9, 0.9),
	)
	if err := format.WriteFile(filepath.Join(dir, "bcc.json"), "", s); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	run, evalErrs := evalIn(t, dir, `(center-atom (read-structure "bcc.json"))`)
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if run.Value != "1" {
		t.Errorf("Value = %q, want 1", run.Value)
	}
}

func TestWriteStructureFormats(t *testing.T) {
	dir := t.TempDir()
	writeSimpleCubic(t, dir)

	source := `
(def p (carve (read-structure "sc.stru") 1))
(write-structure p "p.xyz")
(write-structure p "p.data" :format :json)
`
	run, evalErrs := evalIn(t, dir, source)
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if len(run.Outputs) != 2 {
		t.Fatalf("Outputs = %v, want 2 files", run.Outputs)
	}

	xyz, err := os.ReadFile(filepath.Join(dir, "p.xyz"))
	if err != nil {
		t.Fatalf("read xyz: %v", err)
	}
	if !strings.HasPrefix(string(xyz), "4\n") {
		t.Errorf("xyz should start with the atom count 4, got %q", strings.SplitN(string(xyz), "\n", 2)[0])
	}
	got, err := format.ReadFile(filepath.Join(dir, "p.data"), "json")
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	// Radius 1 in a 2x2x2 supercell keeps the centre and its three
	// neighbours inside the supercell.
	if got.Len() != 4 {
		t.Errorf("json particle has %d atoms, want 4", got.Len())
	}
}

func TestWriteStructureUnknownExtensionUsesDefault(t *testing.T) {
	dir := t.TempDir()
	writeSimpleCubic(t, dir)

	run, evalErrs := evalIn(t, dir, `(write-structure (read-structure "sc.stru") "copy.out")`)
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if len(run.Outputs) != 1 {
		t.Fatalf("Outputs = %v", run.Outputs)
	}
	if _, err := format.ReadFile(run.Outputs[0], "pdffit"); err != nil {
		t.Errorf("default format should be pdffit: %v", err)
	}
}

func TestWriteEnvelope(t *testing.T) {
	dir := t.TempDir()
	writeSimpleCubic(t, dir)

	source := `
(def s (read-structure "sc.stru"))
(write-envelope s 2 1.5 1.5 "mesh/ellipsoid.stl")
(write-envelope (carve s 2) "mesh/sphere.stl")
`
	run, evalErrs := evalIn(t, dir, source)
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if len(run.Outputs) != 2 {
		t.Fatalf("Outputs = %v, want 2 files", run.Outputs)
	}
	for _, p := range run.Outputs {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if info.Size() <= 84 {
			t.Errorf("%s is too small to hold triangles (%d bytes)", p, info.Size())
		}
	}
}

func TestPartialOutputsOnError(t *testing.T) {
	dir := t.TempDir()
	writeSimpleCubic(t, dir)

	source := `
(def s (read-structure "sc.stru"))
(write-structure (carve s 1) "first.stru")
(carve s -1)
(write-structure (carve s 2) "second.stru")
`
	run, evalErrs := evalIn(t, dir, source)
	if len(evalErrs) == 0 {
		t.Fatal("expected eval error")
	}
	if len(run.Outputs) != 1 || filepath.Base(run.Outputs[0]) != "first.stru" {
		t.Errorf("Outputs = %v, want only first.stru", run.Outputs)
	}
	if _, err := os.Stat(filepath.Join(dir, "second.stru")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("second.stru should not exist, stat err = %v", err)
	}
}

func TestArithmeticStillWorks(t *testing.T) {
	run, evalErrs := evalIn(t, t.TempDir(), `(def r 10) (* r 2)`)
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if run.Value != "20" {
		t.Errorf("Value = %q, want 20", run.Value)
	}
}
