// Package etl extracts transactions and customers from a source, conforms
// them to the staging schema, and upserts them into the warehouse.
package etl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dwq/internal/db"
	"github.com/sells-group/dwq/internal/model"
	"github.com/sells-group/dwq/internal/runlog"
)

// Pinger checks that the record store is reachable. db.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Observer receives the result of every completed run.
type Observer interface {
	ObserveLoad(r *RunResult)
}

// Options configures a Pipeline.
type Options struct {
	StageTimeout      time.Duration  // per extract and load stage; 0 = none
	EntityConcurrency int            // entities processed at once; 0 = all
	Entities          []model.Entity // nil = model.Entities
	Now               func() time.Time
}

// EntityResult reports one entity's sub-pipeline.
type EntityResult struct {
	Entity    model.Entity   `json:"entity"`
	Extracted int            `json:"extracted"`
	Dropped   int            `json:"dropped"`
	Loaded    int64          `json:"loaded"`
	Drops     map[string]int `json:"drop_reasons,omitempty"`
	Stage     Stage          `json:"stage"` // last stage reached; StageDone on success
	Err       error          `json:"-"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`
}

// OK reports whether the entity completed its load.
func (r EntityResult) OK() bool {
	return r.Err == nil && r.Stage == StageDone
}

// RunResult is the outcome of one pipeline run. Partial failure shows up
// here, not as a returned error.
type RunResult struct {
	RunID      string         `json:"run_id"`
	Window     model.Window   `json:"window"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Entities   []EntityResult `json:"entities"`
}

// Succeeded is true only when every entity completed its load.
func (r *RunResult) Succeeded() bool {
	for _, e := range r.Entities {
		if !e.OK() {
			return false
		}
	}
	return true
}

// Loaded sums rows written across entities.
func (r *RunResult) Loaded() int64 {
	var n int64
	for _, e := range r.Entities {
		n += e.Loaded
	}
	return n
}

// Failures summarizes failed entities as "entity@stage: error" strings.
func (r *RunResult) Failures() []string {
	var out []string
	for _, e := range r.Entities {
		if !e.OK() {
			out = append(out, fmt.Sprintf("%s@%s: %s", e.Entity, e.Stage, e.Error))
		}
	}
	return out
}

// Pipeline runs Extract, Transform, Load for each entity.
type Pipeline struct {
	store     Pinger
	extractor *Extractor
	loader    Loader
	runs      runlog.Recorder
	observers []Observer
	opts      Options
	log       *zap.Logger
}

// NewPipeline wires a Pipeline. runs may be nil to skip run-log recording.
func NewPipeline(store Pinger, extractor *Extractor, loader Loader, runs runlog.Recorder, opts Options, log *zap.Logger) *Pipeline {
	if opts.Entities == nil {
		opts.Entities = model.Entities
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		extractor: extractor,
		loader:    loader,
		runs:      runs,
		opts:      opts,
		log:       log.With(zap.String("component", "etl.pipeline")),
	}
}

// Observe registers an observer notified after every run.
func (p *Pipeline) Observe(o Observer) {
	p.observers = append(p.observers, o)
}

// Run loads every configured entity for window w. The returned error is
// non-nil only when the run could not start: an invalid window or an
// unreachable record store. Entity failures are reported in the result.
func (p *Pipeline) Run(ctx context.Context, w model.Window) (*RunResult, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := p.store.Ping(ctx); err != nil {
		return nil, &db.ConnectivityError{Err: eris.Wrap(err, "etl: ping record store")}
	}

	result := &RunResult{
		RunID:     uuid.NewString(),
		Window:    w,
		StartedAt: p.opts.Now(),
		Entities:  make([]EntityResult, len(p.opts.Entities)),
	}
	log := p.log.With(zap.String("run_id", result.RunID), zap.Stringer("window", w))
	log.Info("starting load run", zap.Int("entities", len(p.opts.Entities)))

	logID := p.startRun(ctx, log)

	// Entity goroutines never return an error, so one failing entity
	// cannot cancel its siblings.
	var g errgroup.Group
	if p.opts.EntityConcurrency > 0 {
		g.SetLimit(p.opts.EntityConcurrency)
	}
	for i, entity := range p.opts.Entities {
		g.Go(func() error {
			result.Entities[i] = p.runEntity(ctx, entity, w, result.StartedAt, log)
			return nil
		})
	}
	_ = g.Wait()

	result.FinishedAt = p.opts.Now()
	p.finishRun(ctx, logID, result, log)

	for _, o := range p.observers {
		o.ObserveLoad(result)
	}

	if result.Succeeded() {
		log.Info("load run complete", zap.Int64("loaded", result.Loaded()))
	} else {
		log.Error("load run partially failed", zap.Strings("failures", result.Failures()))
	}
	return result, nil
}

func (p *Pipeline) runEntity(ctx context.Context, entity model.Entity, w model.Window, now time.Time, log *zap.Logger) EntityResult {
	start := time.Now()
	log = log.With(zap.String("entity", string(entity)))

	var res EntityResult
	switch entity {
	case model.EntityTransactions:
		res = runStages(ctx, p, log,
			func(ctx context.Context) ([]model.Transaction, error) { return p.extractor.Transactions(ctx, w) },
			func(b []model.Transaction) ([]model.Transaction, []Drop) { return TransformTransactions(b, now) },
			p.loader.LoadTransactions,
		)
	case model.EntityCustomers:
		res = runStages(ctx, p, log,
			func(ctx context.Context) ([]model.Customer, error) { return p.extractor.Customers(ctx, w) },
			func(b []model.Customer) ([]model.Customer, []Drop) { return TransformCustomers(b, now) },
			p.loader.LoadCustomers,
		)
	default:
		res = EntityResult{Stage: StageExtract, Err: eris.Errorf("etl: unknown entity %q", entity)}
	}

	res.Entity = entity
	res.Duration = time.Since(start)
	if res.Err != nil {
		res.Error = res.Err.Error()
		log.Error("entity failed", zap.String("stage", string(res.Stage)), zap.Error(res.Err))
	}
	return res
}

// runStages runs extract, transform, and load strictly in sequence.
func runStages[T any](
	ctx context.Context,
	p *Pipeline,
	log *zap.Logger,
	extract func(context.Context) ([]T, error),
	transform func([]T) ([]T, []Drop),
	load func(context.Context, []T) (int64, error),
) EntityResult {
	var res EntityResult

	res.Stage = StageExtract
	batch, err := withTimeout(ctx, p.opts.StageTimeout, extract)
	if err != nil {
		res.Err = err
		return res
	}
	res.Extracted = len(batch)

	res.Stage = StageTransform
	kept, drops := transform(batch)
	res.Dropped = len(drops)
	res.Drops = CountReasons(drops)
	if len(drops) > 0 {
		log.Warn("dropped invalid rows", zap.Int("dropped", len(drops)), zap.Any("reasons", res.Drops))
	}

	res.Stage = StageLoad
	n, err := withTimeout(ctx, p.opts.StageTimeout, func(ctx context.Context) (int64, error) {
		return load(ctx, kept)
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Loaded = n
	res.Stage = StageDone
	return res
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return fn(ctx)
}

func (p *Pipeline) startRun(ctx context.Context, log *zap.Logger) int64 {
	if p.runs == nil {
		return 0
	}
	id, err := p.runs.Start(ctx, runlog.KindLoad)
	if err != nil {
		log.Warn("failed to record run start", zap.Error(err))
		return 0
	}
	return id
}

func (p *Pipeline) finishRun(ctx context.Context, id int64, r *RunResult, log *zap.Logger) {
	if p.runs == nil || id == 0 {
		return
	}
	var err error
	if r.Succeeded() {
		err = p.runs.Complete(ctx, id, &runlog.Result{
			Rows: r.Loaded(),
			Metadata: map[string]any{
				"run_id":   r.RunID,
				"window":   r.Window.String(),
				"entities": r.Entities,
			},
		})
	} else {
		err = p.runs.Fail(ctx, id, strings.Join(r.Failures(), "; "))
	}
	if err != nil {
		log.Warn("failed to record run outcome", zap.Error(err))
	}
}
