package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chazu/nanocarve/pkg/carve"
	"github.com/chazu/nanocarve/pkg/format"
	"github.com/chazu/nanocarve/pkg/preview"
)

var (
	carveA, carveB, carveC float64
	carveInFormat          string
	carveOutFormat         string
	carveEnvelope          string
)

var carveCmd = &cobra.Command{
	Use:   "carve TEMPLATE OUTPUT",
	Short: "Carve one particle out of a template",
	Long: `Cuts an ellipsoid with semi-axes a, b, c (in Å) out of TEMPLATE and writes
the particle to OUTPUT. b and c default to a, so --a alone cuts a sphere.

Example:
  nanocarve carve Ni.stru Ni_d20.stru --a 10
  nanocarve carve CdSe.stru CdSe_rod.xyz --a 20 --b 10 --c 10 --envelope rod.stl`,
	Args: cobra.ExactArgs(2),
	RunE: runCarve,
}

func init() {
	carveCmd.Flags().Float64Var(&carveA, "a", 0, "semi-axis along x (Å)")
	carveCmd.Flags().Float64Var(&carveB, "b", 0, "semi-axis along y (Å), defaults to a")
	carveCmd.Flags().Float64Var(&carveC, "c", 0, "semi-axis along z (Å), defaults to a")
	carveCmd.Flags().StringVar(&carveInFormat, "format", "", "template format (default: from extension)")
	carveCmd.Flags().StringVar(&carveOutFormat, "out-format", "", "output format (default: from extension, then config)")
	carveCmd.Flags().StringVar(&carveEnvelope, "envelope", "", "also write the carve envelope as STL")
	_ = carveCmd.MarkFlagRequired("a")
	rootCmd.AddCommand(carveCmd)
}

func runCarve(cmd *cobra.Command, args []string) error {
	template, output := args[0], args[1]

	s, err := format.ReadFile(template, carveInFormat)
	if err != nil {
		return err
	}

	ax := carve.Axes{A: carveA, B: carveB, C: carveC}
	if !cmd.Flags().Changed("b") {
		ax.B = ax.A
	}
	if !cmd.Flags().Changed("c") {
		ax.C = ax.A
	}

	res, err := newCarver().CarveAxes(s, ax)
	if err != nil {
		return err
	}

	name := format.NameFor(carveOutFormat, output, cfg.Output.Format)
	if err := format.WriteFile(output, name, res.Structure); err != nil {
		return err
	}

	cmd.Printf("kept %d of %d atoms (supercell %dx%dx%d, centre atom %d)\n",
		res.Kept(), res.Total, res.Counts[0], res.Counts[1], res.Counts[2], res.Center)
	cmd.Printf("wrote %s\n", output)

	if carveEnvelope != "" {
		if err := os.MkdirAll(filepath.Dir(carveEnvelope), 0o755); err != nil {
			return err
		}
		if err := preview.WriteSTL(res, newKernel(), carveEnvelope); err != nil {
			return fmt.Errorf("envelope: %w", err)
		}
		cmd.Printf("wrote %s\n", carveEnvelope)
	}
	return nil
}
