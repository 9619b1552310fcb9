package conformance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/genlower"
	generrors "github.com/wippyai/genlower/errors"
	"github.com/wippyai/genlower/gendef"
	"github.com/wippyai/genlower/interp"
)

// Result is the outcome of one case.
type Result struct {
	Test       Loaded
	Passed     bool
	Skipped    bool
	SkipReason string
	Error      error
}

// Runner lowers, evaluates and checks cases.
type Runner struct {
	log *zap.Logger
	// StepLimit bounds evaluation of each case.
	StepLimit int
}

// NewRunner creates a runner. A nil logger discards output.
func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{log: log, StepLimit: 100000}
}

// outcome is what running a case produced.
type outcome struct {
	values []any
	log    []any
	states int
	err    error
}

// Run executes a single case.
func (r *Runner) Run(test Loaded) Result {
	if skipped, reason := test.Case.IsSkipped(); skipped {
		return Result{Test: test, Skipped: true, SkipReason: reason}
	}

	out := r.execute(&test.Case)
	err := check(test.Case.Expect, out)
	r.log.Debug("conformance case",
		zap.String("file", test.File),
		zap.String("case", test.Case.Name),
		zap.Int("values", len(out.values)),
		zap.Bool("passed", err == nil))
	return Result{Test: test, Passed: err == nil, Error: err}
}

// RunAll executes cases in order.
func (r *Runner) RunAll(tests []Loaded) []Result {
	results := make([]Result, len(tests))
	for i, test := range tests {
		results[i] = r.Run(test)
	}
	return results
}

func (r *Runner) execute(c *Case) (out outcome) {
	host := gendef.NewHost()
	defer func() { out.log = host.Log }()

	def, err := gendef.Decode(&c.Generator, host)
	if err != nil {
		out.err = err
		return out
	}
	res, err := genlower.Lower(def, genlower.Config{Logger: r.log, Asserts: true})
	if err != nil {
		out.err = err
		return out
	}
	out.states = res.States

	prog, err := interp.Compile(res.Tree, interp.WithStepLimit(r.StepLimit))
	if err != nil {
		out.err = err
		return out
	}
	v, err := prog.Run()
	if err != nil {
		out.err = err
		return out
	}

	iterations := c.Iterations
	if iterations <= 0 {
		iterations = 1
	}
	for i := 0; i < iterations; i++ {
		g, err := interp.AsGenerator(v)
		if err != nil {
			out.err = err
			return out
		}
		values, err := drive(g, c)
		out.values = append(out.values, values...)
		if err != nil {
			out.err = err
			return out
		}
	}
	return out
}

// drive takes values from g as the case asks and disposes it when told to.
func drive(g *interp.Generator, c *Case) ([]any, error) {
	limit := c.Limit
	if c.DisposeAfter != nil {
		limit = *c.DisposeAfter
		if limit == 0 {
			return nil, g.Dispose()
		}
	}
	values, err := interp.Collect(g, limit)
	if err != nil {
		return values, err
	}
	if c.DisposeAfter != nil {
		return values, g.Dispose()
	}
	return values, nil
}

func check(expect Expectation, out outcome) error {
	var errs error
	if expect.Values != nil {
		if diff := cmp.Diff(normalize(expect.Values), out.values, cmpopts.EquateEmpty()); diff != "" {
			errs = multierr.Append(errs, fmt.Errorf("values mismatch (-want +got):\n%s", diff))
		}
	}
	if expect.Log != nil {
		if diff := cmp.Diff(normalize(expect.Log), out.log, cmpopts.EquateEmpty()); diff != "" {
			errs = multierr.Append(errs, fmt.Errorf("log mismatch (-want +got):\n%s", diff))
		}
	}
	if expect.States != 0 && expect.States != out.states {
		errs = multierr.Append(errs, fmt.Errorf("states = %d, want %d", out.states, expect.States))
	}

	if expect.Error == "" {
		if out.err != nil {
			errs = multierr.Append(errs, fmt.Errorf("unexpected error: %w", out.err))
		}
		return errs
	}
	if out.err == nil {
		return multierr.Append(errs, fmt.Errorf("expected error %s, got none", expect.Error))
	}

	var first *generrors.Error
	if !errors.As(multierr.Errors(out.err)[0], &first) {
		return multierr.Append(errs, fmt.Errorf("expected error %s, got %v", expect.Error, out.err))
	}
	if string(first.Kind) != expect.Error {
		errs = multierr.Append(errs, fmt.Errorf("error kind = %s, want %s (%v)", first.Kind, expect.Error, out.err))
	}
	if expect.Path != "" {
		if got := strings.Join(first.Path, "."); got != expect.Path {
			errs = multierr.Append(errs, fmt.Errorf("error path = %q, want %q", got, expect.Path))
		}
	}
	if expect.Exception != "" {
		var exc *interp.Exception
		switch {
		case !errors.As(out.err, &exc):
			errs = multierr.Append(errs, fmt.Errorf("error %v carries no exception", out.err))
		case exc.Class != expect.Exception:
			errs = multierr.Append(errs, fmt.Errorf("exception class = %s, want %s", exc.Class, expect.Exception))
		}
	}
	return errs
}

// normalize converts YAML decoded values to the interpreter's types.
func normalize(vals []any) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case []any:
		return normalize(v)
	}
	return v
}

// Stats summarizes results.
type Stats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ComputeStats counts results by outcome.
func ComputeStats(results []Result) Stats {
	stats := Stats{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Skipped:
			stats.Skipped++
		case r.Passed:
			stats.Passed++
		default:
			stats.Failed++
		}
	}
	return stats
}

// FormatStats renders stats on one line.
func FormatStats(s Stats) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)",
		s.Passed, s.Failed, s.Skipped, s.Total)
}
