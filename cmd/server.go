package main

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/dwq/internal/etl"
	"github.com/sells-group/dwq/internal/model"
	"github.com/sells-group/dwq/internal/monitoring"
	"github.com/sells-group/dwq/internal/quality"
)

// reportReader returns the newest stored report, or nil when none exists.
type reportReader interface {
	Latest(ctx context.Context) (*quality.Report, error)
}

// server exposes loads, checks, and status over HTTP. Only one load or
// check runs at a time, whether triggered by a request or by the scheduler.
type server struct {
	load    func(ctx context.Context, w model.Window) (*etl.RunResult, error)
	check   func(ctx context.Context) *quality.Report
	status  func(ctx context.Context, lookbackHours int) (*monitoring.Snapshot, error)
	reports reportReader
	metrics prometheus.Gatherer

	lookbackHours int
	now           func() time.Time
	log           *zap.Logger

	// base outlives requests and the shutdown signal; async and scheduled
	// runs use it so they can finish recording.
	base context.Context
	busy sync.Mutex
	wg   sync.WaitGroup
}

func newServer(ctx context.Context, env *appEnv, reports reportReader) *server {
	return &server{
		load:          env.runLoad,
		check:         env.runCheck,
		status:        env.Collector.Collect,
		reports:       reports,
		metrics:       env.Metrics.Registry(),
		lookbackHours: cfg.Monitoring.LookbackHours,
		now:           time.Now,
		log:           logger.With(zap.String("component", "server")),
		base:          context.WithoutCancel(ctx),
	}
}

// router builds the chi mux with CORS for origins.
func (s *server) router(origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/reports/latest", s.handleLatestReport)
	r.Route("/runs", func(r chi.Router) {
		r.Post("/load", s.handleLoad)
		r.Post("/check", s.handleCheck)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	hours := s.lookbackHours
	if v := r.URL.Query().Get("lookback"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.fail(w, r, http.StatusBadRequest, "lookback must be a positive integer")
			return
		}
		hours = n
	}

	snap, err := s.status(r.Context(), hours)
	if err != nil {
		s.log.Error("collect status", zap.Error(err))
		s.fail(w, r, http.StatusServiceUnavailable, "status unavailable")
		return
	}
	render.JSON(w, r, snap)
}

func (s *server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.reports.Latest(r.Context())
	if err != nil {
		s.log.Error("read latest report", zap.Error(err))
		s.fail(w, r, http.StatusServiceUnavailable, "report unavailable")
		return
	}
	if rep == nil {
		s.fail(w, r, http.StatusNotFound, "no report yet")
		return
	}
	render.JSON(w, r, rep)
}

// handleLoad starts a load for ?start=&end=. With ?wait=true the request
// blocks and returns the run result; otherwise it returns 202 at once.
func (s *server) handleLoad(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	win, err := parseWindowFlags(q.Get("start"), q.Get("end"), s.now())
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.trigger(w, r, "load", map[string]string{"window": win.String()}, func(ctx context.Context) any {
		res, err := s.load(ctx, win)
		if err != nil {
			s.log.Error("load aborted", zap.Stringer("window", win), zap.Error(err))
			return map[string]string{"status": "aborted", "error": err.Error()}
		}
		return res
	})
}

// handleCheck starts a quality run. ?wait=true returns the report.
func (s *server) handleCheck(w http.ResponseWriter, r *http.Request) {
	s.trigger(w, r, "check", nil, func(ctx context.Context) any {
		return s.check(ctx)
	})
}

// trigger runs fn while holding the run lock. A busy server answers 409.
func (s *server) trigger(w http.ResponseWriter, r *http.Request, kind string, info map[string]string, fn func(context.Context) any) {
	if !s.busy.TryLock() {
		s.fail(w, r, http.StatusConflict, "a run is already in progress")
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		defer s.busy.Unlock()
		render.JSON(w, r, fn(r.Context()))
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Unlock()
		fn(s.base)
	}()

	resp := map[string]string{"status": "accepted", "kind": kind}
	for k, v := range info {
		resp[k] = v
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, resp)
}

// scheduled runs fn for the scheduler, skipping the tick when busy.
func (s *server) scheduled(kind string, fn func(context.Context)) func() {
	return func() {
		if !s.busy.TryLock() {
			s.log.Warn("scheduled run skipped, another run in progress", zap.String("kind", kind))
			return
		}
		defer s.busy.Unlock()
		s.log.Info("scheduled run starting", zap.String("kind", kind))
		fn(s.base)
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, map[string]string{"error": msg})
}

// wait blocks until async runs started by requests have finished.
func (s *server) wait() {
	s.wg.Wait()
}
