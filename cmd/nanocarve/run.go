package main

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chazu/nanocarve/pkg/engine"
)

var runWatch bool

var runCmd = &cobra.Command{
	Use:   "run SCRIPT",
	Short: "Evaluate a driver script",
	Long: `Evaluates a Lisp driver script. Relative paths in the script resolve
against the script's directory.

Builtins:
  (read-structure "Ni.stru" :format "pdffit")
  (carve s 20)  (carve s 20 10 10)  (carve s 20 :b 10 :c 10)
  (write-structure p "out/Ni_d40.stru" :format "xyz")
  (atom-count s)  (center-atom s)
  (write-envelope s 20 10 10 "out/rod.stl")

With --watch the script is re-evaluated every time it is saved.`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	runCmd.Flags().BoolVarP(&runWatch, "watch", "w", false, "re-run the script when it changes")
	rootCmd.AddCommand(runCmd)
}

func newEngine(script string) (*engine.Engine, error) {
	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, err
	}
	return engine.NewEngine(
		engine.WithBaseDir(filepath.Dir(script)),
		engine.WithTimeout(timeout),
		engine.WithCarver(newCarver()),
		engine.WithKernel(newKernel()),
		engine.WithDefaultFormat(cfg.Output.Format),
		engine.WithLogger(logger),
	), nil
}

func runScript(cmd *cobra.Command, args []string) error {
	script := args[0]
	eng, err := newEngine(script)
	if err != nil {
		return err
	}

	if runWatch {
		return watchScript(cmd, eng, script)
	}

	src, err := os.ReadFile(script)
	if err != nil {
		return err
	}
	run, evalErrs, err := eng.Evaluate(string(src))
	if err != nil {
		return err
	}
	return printRun(cmd, script, run, evalErrs)
}

var errScriptFailed = errors.New("script failed")

func printRun(cmd *cobra.Command, script string, run *engine.Run, evalErrs []engine.EvalError) error {
	if run != nil {
		for _, out := range run.Outputs {
			cmd.Printf("wrote %s\n", out)
		}
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			cmd.PrintErrf("%s: %v\n", script, e)
		}
		return errScriptFailed
	}
	if run != nil && run.Value != "" {
		cmd.Println(run.Value)
	}
	return nil
}

func watchScript(cmd *cobra.Command, eng *engine.Engine, script string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	w, err := engine.NewWatcher(eng, script, 0)
	if err != nil {
		return err
	}
	reports := make(chan engine.Report)
	if err := w.Start(ctx, reports); err != nil {
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Done():
			return nil
		case rep := <-reports:
			if rep.Err != nil {
				cmd.PrintErrf("%s: %v\n", script, rep.Err)
				continue
			}
			// Failures are reported and the watch continues.
			_ = printRun(cmd, script, rep.Run, rep.Errors)
		}
	}
}
