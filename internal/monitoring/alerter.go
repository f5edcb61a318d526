// Package monitoring turns load results, quality reports, and the run log
// into alerts and status summaries.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dwq/internal/config"
	"github.com/sells-group/dwq/internal/etl"
	"github.com/sells-group/dwq/internal/quality"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertGateFailed       AlertType = "quality_gate_failed"
	AlertChecksErrored    AlertType = "quality_checks_errored"
	AlertPartialLoad      AlertType = "partial_load"
	AlertLoadFailureRate  AlertType = "load_failure_rate"
	AlertCheckFailureRate AlertType = "check_failure_rate"
)

// minFinished is the sample size below which failure rates are not alerted on.
const minFinished = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates run outcomes against configured thresholds and sends
// alerts via webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	log    *zap.Logger
	now    func() time.Time
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig, log *zap.Logger) *Alerter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With(zap.String("component", "alerter")),
		now:    time.Now,
	}
}

// EvaluateReport alerts on a failed gate and, separately, on checks that
// could not be evaluated at all.
func (a *Alerter) EvaluateReport(r *quality.Report) []Alert {
	if r == nil || r.GatePassed() {
		return nil
	}
	now := a.now().UTC()

	var failed []string
	for _, d := range r.Failed() {
		failed = append(failed, fmt.Sprintf("%s:%s.%s", d.CheckType, d.TableName, d.ColumnName))
	}

	alerts := []Alert{{
		Type:     AlertGateFailed,
		Severity: "high",
		Message: fmt.Sprintf(
			"Quality gate failed: %d of %d checks did not pass",
			r.FailedChecks, r.TotalChecks,
		),
		Details: map[string]any{
			"total_checks":  r.TotalChecks,
			"failed_checks": r.FailedChecks,
			"failed":        failed,
		},
		Timestamp: now,
	}}

	if r.ErroredChecks > 0 {
		var errs []string
		for _, d := range r.CheckDetails {
			if d.Status == quality.StatusErrored {
				errs = append(errs, d.Error)
			}
		}
		alerts = append(alerts, Alert{
			Type:     AlertChecksErrored,
			Severity: "medium",
			Message:  fmt.Sprintf("%d check(s) could not be evaluated", r.ErroredChecks),
			Details: map[string]any{
				"errored_checks": r.ErroredChecks,
				"errors":         errs,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// EvaluateLoad alerts when any entity of a load run failed.
func (a *Alerter) EvaluateLoad(r *etl.RunResult) []Alert {
	if r == nil || r.Succeeded() {
		return nil
	}
	failures := r.Failures()
	return []Alert{{
		Type:     AlertPartialLoad,
		Severity: "high",
		Message: fmt.Sprintf(
			"Load %s for window %s failed for %d of %d entities: %s",
			r.RunID, r.Window, len(failures), len(r.Entities), strings.Join(failures, "; "),
		),
		Details: map[string]any{
			"run_id":      r.RunID,
			"window":      r.Window.String(),
			"failures":    failures,
			"rows_loaded": r.Loaded(),
		},
		Timestamp: a.now().UTC(),
	}}
}

// Evaluate checks run-log failure rates in the snapshot against the
// configured threshold.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	if snap == nil || a.cfg.FailureRateAlert <= 0 {
		return nil
	}
	now := a.now().UTC()

	var alerts []Alert
	for _, k := range []struct {
		typ  AlertType
		name string
		sum  KindSummary
	}{
		{AlertLoadFailureRate, "Load", snap.Loads},
		{AlertCheckFailureRate, "Check", snap.Checks},
	} {
		finished := k.sum.Complete + k.sum.Failed
		if finished < minFinished || k.sum.FailRate <= a.cfg.FailureRateAlert {
			continue
		}
		alerts = append(alerts, Alert{
			Type:     k.typ,
			Severity: "high",
			Message: fmt.Sprintf(
				"%s failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				k.name, k.sum.FailRate*100, a.cfg.FailureRateAlert*100,
				k.sum.Failed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": k.sum.FailRate,
				"threshold":    a.cfg.FailureRateAlert,
				"failed":       k.sum.Failed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}
	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			a.log.Error("failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		a.log.Info("alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
