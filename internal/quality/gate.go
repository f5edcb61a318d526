package quality

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/dwq/internal/runlog"
)

// Observer receives every generated report.
type Observer interface {
	ObserveReport(r *Report)
}

// Gate runs the checks, generates the report, and hands it to the sink.
// It always produces a report.
type Gate struct {
	runner    *Runner
	sink      Sink
	runs      runlog.Recorder
	observers []Observer
	now       func() time.Time
	log       *zap.Logger
}

// NewGate wires a Gate. sink and runs may be nil.
func NewGate(runner *Runner, sink Sink, runs runlog.Recorder, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{
		runner: runner,
		sink:   sink,
		runs:   runs,
		now:    runner.opts.Now,
		log:    log.With(zap.String("component", "quality.gate")),
	}
}

// Observe registers an observer notified after every run.
func (g *Gate) Observe(o Observer) {
	g.observers = append(g.observers, o)
}

// Run evaluates every check and persists the report. The returned error
// reports sink failures only; the report is returned regardless.
func (g *Gate) Run(ctx context.Context) (*Report, error) {
	id := g.startRun(ctx)

	rep := Generate(g.runner.Run(ctx), g.now())

	var sinkErr error
	if g.sink != nil {
		sinkErr = g.sink.Write(ctx, rep)
	}

	g.finishRun(ctx, id, rep)
	for _, o := range g.observers {
		o.ObserveReport(rep)
	}

	fields := []zap.Field{
		zap.Int("total_checks", rep.TotalChecks),
		zap.Int("passed_checks", rep.PassedChecks),
		zap.Int("failed_checks", rep.FailedChecks),
		zap.Int("errored_checks", rep.ErroredChecks),
	}
	if rep.GatePassed() {
		g.log.Info("quality gate passed", fields...)
	} else {
		g.log.Warn("quality gate failed", fields...)
	}
	return rep, sinkErr
}

func (g *Gate) startRun(ctx context.Context) int64 {
	if g.runs == nil {
		return 0
	}
	id, err := g.runs.Start(ctx, runlog.KindCheck)
	if err != nil {
		g.log.Warn("failed to record run start", zap.Error(err))
		return 0
	}
	return id
}

func (g *Gate) finishRun(ctx context.Context, id int64, rep *Report) {
	if g.runs == nil || id == 0 {
		return
	}
	var err error
	if rep.GatePassed() {
		err = g.runs.Complete(ctx, id, &runlog.Result{
			Rows: int64(rep.TotalChecks),
			Metadata: map[string]any{
				"passed_checks": rep.PassedChecks,
				"failed_checks": rep.FailedChecks,
			},
		})
	} else {
		err = g.runs.Fail(ctx, id, fmt.Sprintf("%d of %d checks failed (%d errored, %d no data)",
			rep.FailedChecks, rep.TotalChecks, rep.ErroredChecks, rep.NoDataChecks))
	}
	if err != nil {
		g.log.Warn("failed to record run outcome", zap.Error(err))
	}
}
