package main

import (
	"github.com/spf13/cobra"

	"github.com/chazu/nanocarve/pkg/carve"
	"github.com/chazu/nanocarve/pkg/format"
)

var centerFormat string

var centerCmd = &cobra.Command{
	Use:   "center FILE",
	Short: "Print the atom closest to the cell centre",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := format.ReadFile(args[0], centerFormat)
		if err != nil {
			return err
		}
		i, err := carve.FindCenter(s)
		if err != nil {
			return err
		}
		a := s.At(i)
		p := s.Lattice.Cartesian(a.Frac)
		cmd.Printf("%d %s frac=(%.6f, %.6f, %.6f) xyz=(%.6f, %.6f, %.6f)\n",
			i, a.Attrs.Element, a.Frac.X, a.Frac.Y, a.Frac.Z, p.X, p.Y, p.Z)
		return nil
	},
}

func init() {
	centerCmd.Flags().StringVar(&centerFormat, "format", "", "file format (default: from extension)")
	rootCmd.AddCommand(centerCmd)
}
