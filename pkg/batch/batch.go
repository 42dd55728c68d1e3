package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/nanocarve/pkg/carve"
	"github.com/chazu/nanocarve/pkg/crystal"
	"github.com/chazu/nanocarve/pkg/format"
	"github.com/chazu/nanocarve/pkg/kernel"
	"github.com/chazu/nanocarve/pkg/kernel/sdfx"
	"github.com/chazu/nanocarve/pkg/preview"
)

// Outcome records one written particle.
type Outcome struct {
	Template string
	Output   string
	Envelope string
	Axes     carve.Axes
	Counts   [3]int
	Kept     int
	Removed  int
	Elapsed  time.Duration
}

// Report is the result of a batch run. Outcomes follow manifest order.
type Report struct {
	RunID    string
	Outcomes []Outcome
}

// Option configures a Runner.
type Option func(*Runner)

// WithParallelism bounds how many carves run at once.
func WithParallelism(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithCarver sets the carver.
func WithCarver(c *carve.Carver) Option {
	return func(r *Runner) { r.carver = c }
}

// WithKernel sets the geometry kernel used for envelopes.
func WithKernel(k kernel.Kernel) Option {
	return func(r *Runner) { r.kernel = k }
}

// WithOutputFormat sets the format used for outputs whose extension names
// none.
func WithOutputFormat(name string) Option {
	return func(r *Runner) { r.outputFormat = name }
}

// WithLogger sets the runner logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// Runner executes manifests.
type Runner struct {
	parallelism  int
	carver       *carve.Carver
	kernel       kernel.Kernel
	outputFormat string
	log          *zap.Logger
}

// NewRunner returns a Runner with four workers and the sdfx kernel unless
// overridden.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		parallelism:  4,
		carver:       carve.New(),
		kernel:       sdfx.New(),
		outputFormat: "pdffit",
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type task struct {
	slot     int
	job      Job
	template *crystal.Structure
	carve    Carve
}

// Run reads every template, then carves and writes all particles with at
// most the configured number in flight. The first failure cancels the
// remaining carves and is returned along with the outcomes completed so
// far.
func (r *Runner) Run(ctx context.Context, m *Manifest) (*Report, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	rep := &Report{RunID: uuid.NewString()}
	log := r.log.With(zap.String("run_id", rep.RunID))

	var tasks []task
	for _, j := range m.Jobs {
		s, err := format.ReadFile(m.resolve(j.Template), j.Format)
		if err != nil {
			return rep, fmt.Errorf("batch: template %s: %w", j.Template, err)
		}
		for _, c := range j.Carves {
			tasks = append(tasks, task{slot: len(tasks), job: j, template: s, carve: c})
		}
	}
	log.Info("batch started", zap.Int("carves", len(tasks)), zap.Int("parallelism", r.parallelism))

	outcomes := make([]Outcome, len(tasks))
	done := make([]bool, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, t := range tasks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := r.runOne(m, t)
			if err != nil {
				return fmt.Errorf("batch: %s: %w", t.carve.Output, err)
			}
			outcomes[t.slot] = out
			done[t.slot] = true
			log.Info("carve written",
				zap.String("template", t.job.Template),
				zap.String("output", out.Output),
				zap.Int("kept", out.Kept),
				zap.Duration("elapsed", out.Elapsed),
			)
			return nil
		})
	}
	err := g.Wait()

	for i, ok := range done {
		if ok {
			rep.Outcomes = append(rep.Outcomes, outcomes[i])
		}
	}
	if err != nil {
		log.Error("batch failed", zap.Error(err), zap.Int("completed", len(rep.Outcomes)))
		return rep, err
	}
	log.Info("batch finished", zap.Int("completed", len(rep.Outcomes)))
	return rep, nil
}

func (r *Runner) runOne(m *Manifest, t task) (Outcome, error) {
	start := time.Now()
	ax := t.carve.Axes()

	res, err := r.carver.CarveAxes(t.template, ax)
	if err != nil {
		return Outcome{}, err
	}

	out := m.resolve(t.carve.Output)
	name := format.NameFor(t.job.OutputFormat, out, r.outputFormat)
	if err := format.WriteFile(out, name, res.Structure); err != nil {
		return Outcome{}, err
	}

	var env string
	if t.carve.Envelope != "" {
		env = m.resolve(t.carve.Envelope)
		if err := os.MkdirAll(filepath.Dir(env), 0o755); err != nil {
			return Outcome{}, err
		}
		if err := preview.WriteSTL(res, r.kernel, env); err != nil {
			return Outcome{}, err
		}
	}

	return Outcome{
		Template: t.job.Template,
		Output:   out,
		Envelope: env,
		Axes:     ax,
		Counts:   res.Counts,
		Kept:     res.Kept(),
		Removed:  res.Removed,
		Elapsed:  time.Since(start),
	}, nil
}
