// Package config loads nanocarve settings from an optional TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/chazu/nanocarve/pkg/format"
)

// Config is the full set of tool settings.
type Config struct {
	Output  Output  `toml:"output"`
	Engine  Engine  `toml:"engine"`
	Batch   Batch   `toml:"batch"`
	Preview Preview `toml:"preview"`
	Log     Log     `toml:"log"`
}

// Output controls how structures are written.
type Output struct {
	// Format is used when a path's extension does not name one.
	Format string `toml:"format"`
}

// Engine controls driver script evaluation.
type Engine struct {
	// Timeout is a time.ParseDuration string.
	Timeout string `toml:"timeout"`
}

// Batch controls manifest runs.
type Batch struct {
	Parallelism int `toml:"parallelism"`
}

// Preview controls envelope tessellation.
type Preview struct {
	MeshCells int `toml:"mesh_cells"`
}

// Log controls logging.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Output:  Output{Format: "pdffit"},
		Engine:  Engine{Timeout: "30s"},
		Batch:   Batch{Parallelism: 4},
		Preview: Preview{MeshCells: 200},
		Log:     Log{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path or a missing file
// yields the defaults. Keys absent from the file keep their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the tool cannot run with.
func (c Config) Validate() error {
	if _, err := format.Lookup(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if c.Batch.Parallelism < 1 {
		return fmt.Errorf("batch.parallelism must be at least 1, got %d", c.Batch.Parallelism)
	}
	if c.Preview.MeshCells < 8 {
		return fmt.Errorf("preview.mesh_cells must be at least 8, got %d", c.Preview.MeshCells)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// Timeout returns the parsed engine timeout.
func (c Config) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Engine.Timeout)
	if err != nil {
		return 0, fmt.Errorf("engine.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("engine.timeout must be positive, got %s", d)
	}
	return d, nil
}

// Marshal renders c as TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
