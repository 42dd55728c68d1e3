// Command nanocarve cuts ellipsoidal nanoparticles out of periodic crystal
// structures.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chazu/nanocarve/pkg/carve"
	"github.com/chazu/nanocarve/pkg/config"
	"github.com/chazu/nanocarve/pkg/kernel"
	"github.com/chazu/nanocarve/pkg/kernel/sdfx"
	"github.com/chazu/nanocarve/pkg/logging"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Resolved in PersistentPreRunE
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nanocarve",
	Short: "Carve ellipsoidal nanoparticles out of crystal structures",
	Long: `nanocarve builds finite particle models for diffraction and PDF analysis.

It replicates a periodic template into a supercell large enough to hold the
requested ellipsoid, centres the ellipsoid on the atom nearest the middle of
the supercell, and keeps every atom inside it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Log.Level, verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func newCarver() *carve.Carver {
	return carve.New(carve.WithLogger(logger))
}

func newKernel() kernel.Kernel {
	return sdfx.WithMeshCells(cfg.Preview.MeshCells)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
