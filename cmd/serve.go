package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dwq/internal/config"
	"github.com/sells-group/dwq/internal/quality"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run scheduled loads and checks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve", envOptions{})
		if err != nil {
			return err
		}
		defer env.Close()

		var reports reportReader = &quality.FileSink{Path: cfg.Report.Path}
		if env.Reports != nil {
			reports = env.Reports
		}
		srv := newServer(ctx, env, reports)

		sched, err := newScheduler(srv, cfg.Schedule)
		if err != nil {
			return err
		}
		sched.Start()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.router(cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		logger.Info("starting server", zap.Int("port", port))
		return runServer(ctx, httpSrv, sched, srv)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// runServer serves until ctx is done, then shuts down. It returns only after
// handlers have drained, the scheduler has stopped, and async runs started by
// requests have finished recording.
func runServer(ctx context.Context, httpSrv *http.Server, sched *cron.Cron, s *server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			<-sched.Stop().Done()
			s.wait()
			return eris.Wrap(err, "server listen")
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}

	// No handler is running past this point, so no new async run can start.
	<-sched.Stop().Done()
	s.wait()
	return nil
}

// newScheduler registers the configured cron schedules. Empty expressions
// disable the corresponding job.
func newScheduler(s *server, sc config.ScheduleConfig) (*cron.Cron, error) {
	c := cron.New()

	if sc.LoadCron != "" {
		_, err := c.AddFunc(sc.LoadCron, s.scheduled("load", func(ctx context.Context) {
			w, err := parseWindowFlags("", "", s.now())
			if err != nil {
				s.log.Error("scheduled load window", zap.Error(err))
				return
			}
			if _, err := s.load(ctx, w); err != nil {
				s.log.Error("scheduled load aborted", zap.Error(err))
			}
		}))
		if err != nil {
			return nil, eris.Wrapf(err, "schedule: load_cron %q", sc.LoadCron)
		}
	}

	if sc.CheckCron != "" {
		_, err := c.AddFunc(sc.CheckCron, s.scheduled("check", func(ctx context.Context) {
			s.check(ctx)
		}))
		if err != nil {
			return nil, eris.Wrapf(err, "schedule: check_cron %q", sc.CheckCron)
		}
	}

	return c, nil
}
