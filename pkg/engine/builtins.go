package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/nanocarve/pkg/carve"
	"github.com/chazu/nanocarve/pkg/crystal"
	"github.com/chazu/nanocarve/pkg/format"
	"github.com/chazu/nanocarve/pkg/preview"
	zygo "github.com/glycerine/zygomys/zygo"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms driver script source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: read-structure -> read_structure
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpStructure wraps a crystal.Structure so it can be passed between
// builtins. Structures produced by carve also carry the carve result.
type sexpStructure struct {
	s      *crystal.Structure
	name   string
	result *carve.Result
}

func (st *sexpStructure) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(structure %q %d)", st.name, st.s.Len())
}
func (st *sexpStructure) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toStructure extracts a structure from a sexpStructure.
func toStructure(s zygo.Sexp) (*sexpStructure, error) {
	if st, ok := s.(*sexpStructure); ok {
		return st, nil
	}
	return nil, fmt.Errorf("expected structure, got %T (%s)", s, s.SexpString(nil))
}

// kwFormat returns the :format keyword argument, or "" when absent.
func kwFormat(pa kwArgs) (string, error) {
	v, ok := pa.kw["format"]
	if !ok {
		return "", nil
	}
	return toKeywordString(v)
}

// toAxes builds carve axes from up to three positional numbers and the
// optional :b and :c keywords. Unset b and c default to a.
func toAxes(nums []zygo.Sexp, kw map[string]zygo.Sexp) (carve.Axes, error) {
	if len(nums) == 0 {
		return carve.Axes{}, fmt.Errorf("semi-axis a is required")
	}
	if len(nums) > 3 {
		return carve.Axes{}, fmt.Errorf("at most 3 semi-axes, got %d", len(nums))
	}

	names := []string{"a", "b", "c"}
	vals := make([]float64, 3)
	set := make([]bool, 3)
	for i, n := range nums {
		f, err := toFloat64(n)
		if err != nil {
			return carve.Axes{}, fmt.Errorf("%s: %w", names[i], err)
		}
		vals[i], set[i] = f, true
	}
	for i := 1; i < 3; i++ {
		v, ok := kw[names[i]]
		if !ok {
			continue
		}
		if set[i] {
			return carve.Axes{}, fmt.Errorf("%s given both positionally and as :%s", names[i], names[i])
		}
		f, err := toFloat64(v)
		if err != nil {
			return carve.Axes{}, fmt.Errorf("%s: %w", names[i], err)
		}
		vals[i], set[i] = f, true
	}
	for i := 1; i < 3; i++ {
		if !set[i] {
			vals[i] = vals[0]
		}
	}
	return carve.Axes{A: vals[0], B: vals[1], C: vals[2]}, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// session holds the per-evaluation state shared by the builtins.
type session struct {
	eng *Engine
	run *Run
}

// formatFor picks the structure format for path, falling back to the
// engine default.
func (s *session) formatFor(explicit, path string) string {
	return format.NameFor(explicit, path, s.eng.defaultFormat)
}

func (s *session) wrote(path string) {
	s.run.Outputs = append(s.run.Outputs, path)
}

// registerBuiltins installs the driver builtins into a zygomys environment.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, sess *session) {
	log := sess.eng.log

	// -----------------------------------------------------------------------
	// (read-structure "Ni.stru" :format "pdffit")
	// -----------------------------------------------------------------------
	env.AddFunction("read_structure", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("read-structure requires a path argument")
		}
		path, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("read-structure: path: %w", err)
		}
		fmtName, err := kwFormat(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("read-structure: format: %w", err)
		}

		full := sess.eng.resolve(path)
		s, err := format.ReadFile(full, sess.formatFor(fmtName, full))
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("read-structure: %w", err)
		}
		log.Debug("read structure", zap.String("path", full), zap.Int("atoms", s.Len()))

		return &sexpStructure{s: s, name: filepath.Base(path)}, nil
	})

	// -----------------------------------------------------------------------
	// (carve s 20) / (carve s 20 10 10) / (carve s 20 :b 10 :c 10)
	// -----------------------------------------------------------------------
	env.AddFunction("carve", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("carve requires a structure and semi-axes")
		}
		st, err := toStructure(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("carve: %w", err)
		}
		ax, err := toAxes(pa.positional[1:], pa.kw)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("carve: %w", err)
		}

		res, err := sess.eng.carver.CarveAxes(st.s, ax)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("carve: %w", err)
		}
		log.Info("carved particle",
			zap.String("template", st.name),
			zap.Float64("a", ax.A), zap.Float64("b", ax.B), zap.Float64("c", ax.C),
			zap.Int("kept", res.Kept()),
			zap.Int("removed", res.Removed),
		)

		return &sexpStructure{s: res.Structure, name: st.name, result: res}, nil
	})

	// -----------------------------------------------------------------------
	// (write-structure s "out/Ni_d20.stru" :format "pdffit")
	// -----------------------------------------------------------------------
	env.AddFunction("write_structure", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("write-structure requires a structure and a path")
		}
		st, err := toStructure(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("write-structure: %w", err)
		}
		path, err := toString(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("write-structure: path: %w", err)
		}
		fmtName, err := kwFormat(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("write-structure: format: %w", err)
		}

		full := sess.eng.resolve(path)
		if err := format.WriteFile(full, sess.formatFor(fmtName, full), st.s); err != nil {
			return zygo.SexpNull, fmt.Errorf("write-structure: %w", err)
		}
		sess.wrote(full)
		log.Info("wrote structure", zap.String("path", full), zap.Int("atoms", st.s.Len()))

		return &zygo.SexpStr{S: full}, nil
	})

	// -----------------------------------------------------------------------
	// (atom-count s)
	// -----------------------------------------------------------------------
	env.AddFunction("atom_count", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("atom-count requires exactly 1 argument, got %d", len(args))
		}
		st, err := toStructure(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("atom-count: %w", err)
		}
		return &zygo.SexpInt{Val: int64(st.s.Len())}, nil
	})

	// -----------------------------------------------------------------------
	// (center-atom s)
	// -----------------------------------------------------------------------
	env.AddFunction("center_atom", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("center-atom requires exactly 1 argument, got %d", len(args))
		}
		st, err := toStructure(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("center-atom: %w", err)
		}
		i, err := carve.FindCenter(st.s)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("center-atom: %w", err)
		}
		return &zygo.SexpInt{Val: int64(i)}, nil
	})

	// -----------------------------------------------------------------------
	// (write-envelope s 20 10 10 "out/envelope.stl")
	// (write-envelope (carve s 20) "out/envelope.stl")
	// -----------------------------------------------------------------------
	env.AddFunction("write_envelope", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 2 {
			return zygo.SexpNull, fmt.Errorf("write-envelope requires a structure and a path")
		}
		st, err := toStructure(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("write-envelope: %w", err)
		}
		last := len(pa.positional) - 1
		path, err := toString(pa.positional[last])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("write-envelope: path: %w", err)
		}

		res := st.result
		nums := pa.positional[1:last]
		_, hasB := pa.kw["b"]
		_, hasC := pa.kw["c"]
		if len(nums) > 0 || hasB || hasC || res == nil {
			ax, err := toAxes(nums, pa.kw)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("write-envelope: %w", err)
			}
			res, err = sess.eng.carver.CarveAxes(st.s, ax)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("write-envelope: %w", err)
			}
		}

		full := sess.eng.resolve(path)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return zygo.SexpNull, fmt.Errorf("write-envelope: %w", err)
		}
		if err := preview.WriteSTL(res, sess.eng.kernel, full); err != nil {
			return zygo.SexpNull, fmt.Errorf("write-envelope: %w", err)
		}
		sess.wrote(full)
		log.Info("wrote envelope", zap.String("path", full))

		return &zygo.SexpStr{S: full}, nil
	})
}
