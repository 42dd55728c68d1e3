package main

import (
	"github.com/spf13/cobra"

	"github.com/chazu/nanocarve/pkg/batch"
)

var batchParallel int

var batchCmd = &cobra.Command{
	Use:   "batch MANIFEST",
	Short: "Carve every particle listed in a YAML manifest",
	Long: `Runs the carving jobs of a YAML manifest in parallel. Relative paths in
the manifest resolve against the manifest's directory.

Example manifest:
  jobs:
    - template: Ni.stru
      carves:
        - {output: out/Ni_d20.stru, a: 10}
        - {output: out/Ni_a20_b10_c10.stru, a: 20, b: 10, c: 10, envelope: out/Ni_rod.stl}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := batch.LoadManifest(args[0])
		if err != nil {
			return err
		}

		parallel := cfg.Batch.Parallelism
		if cmd.Flags().Changed("parallel") {
			parallel = batchParallel
		}
		r := batch.NewRunner(
			batch.WithParallelism(parallel),
			batch.WithCarver(newCarver()),
			batch.WithKernel(newKernel()),
			batch.WithOutputFormat(cfg.Output.Format),
			batch.WithLogger(logger),
		)

		rep, err := r.Run(cmd.Context(), m)
		if rep != nil {
			for _, o := range rep.Outcomes {
				cmd.Printf("%s: kept %d, removed %d\n", o.Output, o.Kept, o.Removed)
			}
			cmd.Printf("run %s: %d particles written\n", rep.RunID, len(rep.Outcomes))
		}
		return err
	},
}

func init() {
	batchCmd.Flags().IntVarP(&batchParallel, "parallel", "p", 0, "carves in flight (default: from config)")
	rootCmd.AddCommand(batchCmd)
}
