package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chazu/nanocarve/pkg/crystal"
	"github.com/chazu/nanocarve/pkg/format"
)

var validateFormat string

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Check structures for use as carving templates",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			s, err := format.ReadFile(path, validateFormat)
			if err != nil {
				cmd.Printf("%s: %v\n", path, err)
				failed++
				continue
			}
			f := crystal.Validate(s)
			for _, e := range f.Errors {
				cmd.Printf("%s: %v\n", path, e)
			}
			for _, w := range f.Warnings {
				cmd.Printf("%s: %v\n", path, w)
			}
			if !f.OK() {
				failed++
				continue
			}
			cmd.Printf("%s: ok (%d atoms)\n", path, s.Len())
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed validation", failed, len(args))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateFormat, "format", "", "file format (default: from extension)")
	rootCmd.AddCommand(validateCmd)
}
