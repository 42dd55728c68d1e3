// Package batch carves many particles from a YAML manifest in parallel.
package batch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chazu/nanocarve/pkg/carve"
)

// Manifest lists the carving jobs of a batch run.
//
//	jobs:
//	  - template: templates/Ni.stru
//	    carves:
//	      - {output: out/Ni_d20.stru, a: 10}
//	      - {output: out/Ni_a20_b10.stru, a: 20, b: 10, c: 10, envelope: out/Ni_a20_b10.stl}
type Manifest struct {
	Jobs []Job `yaml:"jobs"`

	// Dir is the directory relative paths resolve against. LoadManifest
	// sets it to the manifest's directory.
	Dir string `yaml:"-"`
}

// Job carves one template.
type Job struct {
	Template string `yaml:"template"`
	// Format of the template; inferred from the extension when empty.
	Format string `yaml:"format,omitempty"`
	// OutputFormat applies to every output of the job; inferred from each
	// output's extension when empty.
	OutputFormat string  `yaml:"output_format,omitempty"`
	Carves       []Carve `yaml:"carves"`
}

// Carve is a single particle to cut. B and C default to A when absent; an
// explicit value, zero included, is taken as given.
type Carve struct {
	Output   string   `yaml:"output"`
	A        float64  `yaml:"a"`
	B        *float64 `yaml:"b,omitempty"`
	C        *float64 `yaml:"c,omitempty"`
	Envelope string   `yaml:"envelope,omitempty"`
}

// Axes returns the semi-axes of the carve.
func (c Carve) Axes() carve.Axes {
	ax := carve.Sphere(c.A)
	if c.B != nil {
		ax.B = *c.B
	}
	if c.C != nil {
		ax.C = *c.C
	}
	return ax
}

// ParseManifest decodes a manifest, rejecting unknown keys.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("batch: manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifest reads and validates the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	m.Dir = filepath.Dir(path)
	return m, nil
}

// Validate checks that every job names a template and every carve an
// output and valid axes, and that no two carves write the same file.
func (m *Manifest) Validate() error {
	if len(m.Jobs) == 0 {
		return errors.New("batch: manifest has no jobs")
	}
	seen := make(map[string]string)
	claim := func(path, by string) error {
		key := filepath.Clean(path)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("batch: %s: %s already written by %s", by, path, prev)
		}
		seen[key] = by
		return nil
	}

	for i, j := range m.Jobs {
		if j.Template == "" {
			return fmt.Errorf("batch: job %d: missing template", i)
		}
		if len(j.Carves) == 0 {
			return fmt.Errorf("batch: job %d (%s): no carves", i, j.Template)
		}
		for k, c := range j.Carves {
			where := fmt.Sprintf("job %d carve %d", i, k)
			if c.Output == "" {
				return fmt.Errorf("batch: %s: missing output", where)
			}
			if err := c.Axes().Validate(); err != nil {
				return fmt.Errorf("batch: %s: %w", where, err)
			}
			if err := claim(c.Output, where); err != nil {
				return err
			}
			if c.Envelope != "" {
				if err := claim(c.Envelope, where); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// resolve makes path absolute against the manifest directory.
func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) || m.Dir == "" {
		return path
	}
	return filepath.Join(m.Dir, path)
}
