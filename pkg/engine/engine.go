// Package engine provides the Lisp evaluation engine for nanocarve driver
// scripts. It wraps zygomys in a sandboxed environment whose builtins read
// template structures, carve particles and write the results.
package engine

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/nanocarve/pkg/carve"
	"github.com/chazu/nanocarve/pkg/kernel"
	"github.com/chazu/nanocarve/pkg/kernel/sdfx"
	zygo "github.com/glycerine/zygomys/zygo"
	"go.uber.org/zap"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Run is the output of one evaluation.
type Run struct {
	// Outputs lists the files written, in the order they were written.
	Outputs []string
	// Value is the printed form of the last expression.
	Value string
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the hard limit for a single evaluation.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithBaseDir sets the directory relative paths in scripts resolve against.
func WithBaseDir(dir string) Option {
	return func(e *Engine) { e.baseDir = dir }
}

// WithCarver sets the carver used by the carve builtins.
func WithCarver(c *carve.Carver) Option {
	return func(e *Engine) { e.carver = c }
}

// WithKernel sets the geometry kernel used by write-envelope.
func WithKernel(k kernel.Kernel) Option {
	return func(e *Engine) { e.kernel = k }
}

// WithDefaultFormat sets the structure format used when neither :format
// nor the file extension names one.
func WithDefaultFormat(name string) Option {
	return func(e *Engine) { e.defaultFormat = name }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine wraps the zygomys interpreter for driver scripts.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	mu         sync.Mutex
	generation uint64

	timeout       time.Duration
	baseDir       string
	carver        *carve.Carver
	kernel        kernel.Kernel
	defaultFormat string
	log           *zap.Logger
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		timeout:       EvalTimeout,
		baseDir:       ".",
		carver:        carve.New(),
		kernel:        sdfx.New(),
		defaultFormat: "pdffit",
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the evaluation limit.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// Evaluate runs the Lisp source of a driver script.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns run + nil errors + nil error
//   - On parse/eval failure: returns the partial run (files already
//     written) + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Run, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		run, evalErrs, err := e.evaluate(source)
		ch <- evalResult{run: run, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation, e.timeout)
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*Run, []EvalError, error) {
	run := &Run{}

	// Empty source is a valid program that writes nothing.
	if strings.TrimSpace(source) == "" {
		return run, nil, nil
	}

	// Sandbox mode keeps user code away from the filesystem and syscalls;
	// only the builtins below touch files.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	registerBuiltins(env, &session{eng: e, run: run})

	err := env.LoadString(preprocessSource(source))
	if err != nil {
		return run, parseZygomysError(err), nil
	}

	v, err := env.Run()
	if err != nil {
		return run, parseZygomysError(err), nil
	}
	if v != nil {
		run.Value = v.SexpString(nil)
	}
	return run, nil, nil
}

// resolve makes a script path absolute against the engine base directory.
func (e *Engine) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.baseDir, path)
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	// zygomys formats parse errors as "Error on line N: <details>\n"
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{
				Line:    line,
				Message: strings.TrimSpace(m[2]),
			}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
