package format

import (
	"encoding/json"
	"io"

	"github.com/chazu/nanocarve/pkg/crystal"
)

// JSON stores the full structure, including per-atom attributes and labels.
type JSON struct{}

func (JSON) Name() string         { return "json" }
func (JSON) Extensions() []string { return []string{".json"} }

func (JSON) Read(r io.Reader) (*crystal.Structure, error) {
	var s crystal.Structure
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, err
	}
	if err := s.Lattice.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (JSON) Write(w io.Writer, s *crystal.Structure) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
