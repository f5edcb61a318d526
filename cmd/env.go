package main

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dwq/internal/config"
	"github.com/sells-group/dwq/internal/db"
	"github.com/sells-group/dwq/internal/etl"
	"github.com/sells-group/dwq/internal/fetcher"
	"github.com/sells-group/dwq/internal/metrics"
	"github.com/sells-group/dwq/internal/model"
	"github.com/sells-group/dwq/internal/monitoring"
	"github.com/sells-group/dwq/internal/quality"
	"github.com/sells-group/dwq/internal/resilience"
	"github.com/sells-group/dwq/internal/runlog"
)

// appEnv holds the store, the load pipeline, the quality gate, and the
// observability hooks shared by the load/check/run/serve commands.
type appEnv struct {
	Pool      *pgxpool.Pool
	Runs      *runlog.Log
	Pipeline  *etl.Pipeline
	Gate      *quality.Gate
	Registry  *quality.Registry
	Reports   *quality.PostgresSink // nil unless report.postgres is set
	Metrics   *metrics.Recorder
	Alerter   *monitoring.Alerter
	Collector *monitoring.Collector
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// envOptions overrides configuration from command flags.
type envOptions struct {
	Source       string // pipeline.source
	RegistryPath string // quality.registry_path
	ReportPath   string // report.path
}

// initEnv validates configuration for mode, connects to the store, and wires
// every component. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string, opts envOptions) (*appEnv, error) {
	c := *cfg
	if opts.Source != "" {
		c.Pipeline.Source = opts.Source
	}
	if opts.RegistryPath != "" {
		c.Quality.RegistryPath = opts.RegistryPath
	}
	if opts.ReportPath != "" {
		c.Report.Path = opts.ReportPath
	}

	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	pool, err := openStore(ctx, mode, c.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}

	runs := runlog.New(pool)
	env := &appEnv{
		Pool:      pool,
		Runs:      runs,
		Metrics:   metrics.New(),
		Alerter:   monitoring.NewAlerter(c.Monitoring, logger),
		Collector: monitoring.NewCollector(runs),
	}

	if mode != "check" {
		if env.Pipeline, err = newPipeline(&c, pool, runs); err != nil {
			env.Close()
			return nil, err
		}
		env.Pipeline.Observe(env.Metrics)
	}

	if mode != "load" {
		reg, err := loadRegistry(&c)
		if reg == nil {
			env.Close()
			return nil, err
		}
		if err != nil {
			// Misconfigured checks still run and are reported as errored.
			logger.Warn("check registry has misconfigured checks", zap.Error(err))
		}
		env.Registry = reg

		sink, reports := newSink(&c, pool, logger)
		env.Reports = reports

		runner := quality.NewRunner(pool, reg, quality.RunnerOptions{
			Concurrency:  c.Quality.Concurrency,
			CheckTimeout: c.Quality.CheckTimeout(),
		}, logger)
		env.Gate = quality.NewGate(runner, sink, runs, logger)
		env.Gate.Observe(env.Metrics)
	}

	return env, nil
}

// openStore connects to the record store. A load needs the store up front;
// checks must still produce a report when it is down, so every other mode
// only warns and lets each check record its own execution error.
func openStore(ctx context.Context, mode, dsn string) (*pgxpool.Pool, error) {
	if mode == "load" {
		return db.Connect(ctx, dsn)
	}
	pool, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx, pool); err != nil {
		logger.Warn("record store unreachable, checks will report errors", zap.Error(err))
	}
	return pool, nil
}

func newPipeline(c *config.Config, pool *pgxpool.Pool, runs runlog.Recorder) (*etl.Pipeline, error) {
	source, err := newSource(c, logger)
	if err != nil {
		return nil, err
	}
	customerMode, err := etl.ParseCustomerMode(c.Pipeline.CustomerMode)
	if err != nil {
		return nil, err
	}
	return etl.NewPipeline(
		pool,
		etl.NewExtractor(source, customerMode, logger),
		etl.NewPostgresLoader(pool, c.Tables, logger),
		runs,
		etl.Options{
			StageTimeout:      c.Pipeline.StageTimeout(),
			EntityConcurrency: c.Pipeline.EntityConcurrency,
		},
		logger,
	), nil
}

// loadRegistry builds the check registry from quality.registry_path, or the
// built-in battery when no path is set. A nil registry means the file could
// not be read; a non-nil registry with an error carries misconfigured checks.
func loadRegistry(c *config.Config) (*quality.Registry, error) {
	catalog, err := db.DefaultCatalog(c.Tables)
	if err != nil {
		return nil, eris.Wrap(err, "build catalog")
	}
	if c.Quality.RegistryPath != "" {
		return quality.LoadRegistry(c.Quality.RegistryPath, catalog)
	}
	return quality.DefaultRegistry(catalog, c.Tables)
}

// newSource picks the extraction source named by pipeline.source.
func newSource(c *config.Config, log *zap.Logger) (etl.Source, error) {
	switch c.Pipeline.Source {
	case etl.SourceSynthetic, "":
		return etl.NewSyntheticSource(etl.SyntheticOptions{
			Transactions: c.Pipeline.TransactionsPerRun,
			Customers:    c.Pipeline.CustomersPerRun,
			Seed:         c.Pipeline.Seed,
		}), nil
	case etl.SourceFeed:
		retry := resilience.DefaultRetryConfig()
		if c.Source.MaxRetries > 0 {
			retry.MaxAttempts = c.Source.MaxRetries
		}
		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:     c.Source.UserAgent,
			AuthToken:     c.Source.AuthToken,
			Timeout:       time.Duration(c.Source.TimeoutSecs) * time.Second,
			RatePerSecond: c.Source.RateLimitPerSec,
			Retry:         retry,
		}, log)
		return etl.NewFeedSource(f, etl.FeedOptions{
			TransactionsURL: c.Source.TransactionsURL,
			CustomersURL:    c.Source.CustomersURL,
			Format:          c.Source.Format,
		}, log)
	default:
		return nil, eris.Errorf("unknown pipeline source %q", c.Pipeline.Source)
	}
}

// newSink always writes the report file and, when enabled, the reports
// table. The Postgres sink is returned separately for the HTTP API.
func newSink(c *config.Config, pool db.Pool, log *zap.Logger) (quality.Sink, *quality.PostgresSink) {
	path := c.Report.Path
	if path == "" {
		path = quality.DefaultReportPath
	}
	sinks := []quality.Sink{&quality.FileSink{Path: path}}

	var reports *quality.PostgresSink
	if c.Report.Postgres && pool != nil {
		reports = quality.NewPostgresSink(pool, c.Report.Table)
		sinks = append(sinks, reports)
	}
	return quality.NewMultiSink(log, sinks...), reports
}

// runLoad runs the pipeline for w, then alerts on partial failure and pushes
// metrics. Only a run-aborting failure is returned as an error.
func (e *appEnv) runLoad(ctx context.Context, w model.Window) (*etl.RunResult, error) {
	res, err := e.Pipeline.Run(ctx, w)
	if err != nil {
		return nil, err
	}
	e.Alerter.SendAlerts(ctx, e.Alerter.EvaluateLoad(res))
	e.pushMetrics(ctx)
	return res, nil
}

// runCheck runs the quality gate, then alerts on a failed gate and pushes
// metrics. Sink failures are logged; the report is always returned.
func (e *appEnv) runCheck(ctx context.Context) *quality.Report {
	rep, err := e.Gate.Run(ctx)
	if err != nil {
		logger.Warn("quality report not fully persisted", zap.Error(err))
	}
	e.Alerter.SendAlerts(ctx, e.Alerter.EvaluateReport(rep))
	e.pushMetrics(ctx)
	return rep
}

// pushMetrics pushes the metrics registry when a gateway is configured.
// Failures are logged, never fatal.
func (e *appEnv) pushMetrics(ctx context.Context) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	if err := e.Metrics.Push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		logger.Warn("metrics push failed", zap.Error(err))
	}
}
