package crystal

import (
	"math"
	"strings"
	"testing"
)

func hasFinding(fs []Finding, substr string) bool {
	for _, f := range fs {
		if strings.Contains(f.Message, substr) {
			return true
		}
	}
	return false
}

func TestValidateCleanStructure(t *testing.T) {
	f := Validate(buildNi(t))
	if !f.OK() {
		t.Fatalf("unexpected errors: %v", f.Errors)
	}
	if len(f.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", f.Warnings)
	}
}

func TestValidateEmptyStructure(t *testing.T) {
	lat, _ := Cubic(1)
	f := Validate(New(lat))
	if f.OK() {
		t.Fatal("expected error for empty structure")
	}
	if !hasFinding(f.Errors, "no atoms") {
		t.Errorf("errors = %v", f.Errors)
	}
}

func TestValidateZeroLattice(t *testing.T) {
	s := &Structure{Atoms: []Atom{NewAtom("C", 0, 0, 0)}}
	f := Validate(s)
	if !hasFinding(f.Errors, "not initialized") {
		t.Errorf("errors = %v", f.Errors)
	}
}

func TestValidateWarnings(t *testing.T) {
	s := buildNi(t)
	s.Atoms[0].Frac.X = 1.25
	s.Atoms[1].Attrs.Occupancy = 1.5
	s.Atoms[2].Attrs.Element = ""

	f := Validate(s)
	if !f.OK() {
		t.Fatalf("unexpected errors: %v", f.Errors)
	}
	for _, want := range []string{"outside [0,1)", "occupancy", "missing element"} {
		if !hasFinding(f.Warnings, want) {
			t.Errorf("missing warning containing %q in %v", want, f.Warnings)
		}
	}
}

func TestValidateNonFinite(t *testing.T) {
	s := buildNi(t)
	s.Atoms[3].Frac.Y = math.Inf(1)
	f := Validate(s)
	if f.OK() {
		t.Fatal("expected error for non-finite coordinate")
	}
	if f.Errors[0].Atom != 3 {
		t.Errorf("finding atom = %d, want 3", f.Errors[0].Atom)
	}
	if !strings.Contains(f.Errors[0].Error(), "atom 3") {
		t.Errorf("Error() = %q", f.Errors[0].Error())
	}
}
