// Package format reads and writes crystal structure files.
package format

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chazu/nanocarve/pkg/crystal"
)

// ErrWriteOnly is returned when reading a format that carries no lattice.
var ErrWriteOnly = errors.New("format: write-only format")

// ParseError reports a malformed structure file.
type ParseError struct {
	Path string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Msg)
	}
	return e.Msg
}

// Format is a structure file codec.
type Format interface {
	Name() string
	Extensions() []string
	Read(r io.Reader) (*crystal.Structure, error)
	Write(w io.Writer, s *crystal.Structure) error
}

var registry = map[string]Format{}

func register(f Format) {
	registry[f.Name()] = f
}

func init() {
	register(PDFfit{})
	register(XYZ{})
	register(JSON{})
}

// Names returns the registered format names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the format registered under name.
func Lookup(name string) (Format, error) {
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("format: unknown format %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return f, nil
}

// ForPath picks a format from the file extension.
func ForPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, name := range Names() {
		f := registry[name]
		for _, e := range f.Extensions() {
			if e == ext {
				return f, nil
			}
		}
	}
	return nil, fmt.Errorf("format: cannot infer format from %q", path)
}

// Resolve returns the named format, or infers one from path when name is
// empty.
func Resolve(name, path string) (Format, error) {
	if name != "" {
		return Lookup(name)
	}
	return ForPath(path)
}

// NameFor picks the format name to use for path: explicit when set, empty
// (infer from the extension) when the extension is known, else fallback.
func NameFor(explicit, path, fallback string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := ForPath(path); err == nil {
		return ""
	}
	return fallback
}

// ReadFile reads a structure from path. An empty name infers the format
// from the extension.
func ReadFile(path, name string) (*crystal.Structure, error) {
	f, err := Resolve(name, path)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	s, err := f.Read(fh)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) && pe.Path == "" {
			pe.Path = path
		}
		return nil, err
	}
	return s, nil
}

// WriteFile writes s to path, creating parent directories as needed.
func WriteFile(path, name string, s *crystal.Structure) error {
	f, err := Resolve(name, path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Write(fh, s); err != nil {
		fh.Close()
		return fmt.Errorf("format: write %s: %w", path, err)
	}
	return fh.Close()
}
