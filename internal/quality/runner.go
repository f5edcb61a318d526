package quality

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dwq/internal/db"
)

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Concurrency  int           // checks evaluated at once; default 4
	CheckTimeout time.Duration // per check; 0 = none
	Now          func() time.Time
}

// Runner evaluates every registered check. A check that cannot run is
// recorded as errored and never stops the others.
type Runner struct {
	q    db.Querier
	reg  *Registry
	opts RunnerOptions
	log  *zap.Logger
}

// NewRunner creates a Runner over reg, querying through q.
func NewRunner(q db.Querier, reg *Registry, opts RunnerOptions, log *zap.Logger) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{q: q, reg: reg, opts: opts, log: log.With(zap.String("component", "quality.runner"))}
}

// Run evaluates the registry. Results are in registry order regardless of
// completion order.
func (r *Runner) Run(ctx context.Context) []Result {
	entries := r.reg.Entries()
	results := make([]Result, len(entries))

	r.log.Info("starting quality checks", zap.Int("checks", len(entries)), zap.Int("concurrency", r.opts.Concurrency))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, e := range entries {
		g.Go(func() error {
			results[i] = r.evaluate(ctx, e)
			return nil
		})
	}
	_ = g.Wait()

	r.log.Info("quality checks completed", zap.Int("checks", len(results)))
	return results
}

func (r *Runner) evaluate(ctx context.Context, e Entry) Result {
	log := r.log.With(
		zap.String("check_type", string(e.Spec.Kind)),
		zap.String("table", e.Spec.Table),
		zap.String("column", e.Spec.Column),
	)

	if e.Err != nil {
		log.Error("check misconfigured", zap.Error(e.Err))
		return ErroredResult(e.Spec, e.Err, r.opts.Now())
	}

	if r.opts.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.CheckTimeout)
		defer cancel()
	}

	start := time.Now()
	m, err := e.Check.Evaluate(ctx, r.q)
	if err != nil {
		execErr := &ExecutionError{Check: e.Spec.Name(), Err: err, Unreachable: db.IsConnectivity(err)}
		log.Error("check execution failed", zap.Bool("store_unreachable", execErr.Unreachable), zap.Error(execErr))
		res := ErroredResult(e.Spec, execErr, r.opts.Now())
		if execErr.Unreachable {
			res.Details = map[string]any{"store_unreachable": true}
		}
		res.Duration = time.Since(start)
		return res
	}

	res := NewResult(e.Spec, m, r.opts.Now())
	res.Duration = time.Since(start)

	switch res.Status {
	case StatusPassed:
		log.Info("check passed",
			zap.Int64("error_count", res.ErrorCount), zap.Int64("total_count", res.TotalCount))
	case StatusNoData:
		log.Warn("check found no rows")
	default:
		log.Warn("quality check failed",
			zap.Int64("error_count", res.ErrorCount), zap.Int64("total_count", res.TotalCount),
			zap.Float64("error_rate", res.ErrorRate()))
	}
	return res
}
