package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRejectRate AlertType = "reject_rate"
	AlertFailures   AlertType = "batch_failures"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and posts alerts to a webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	decided := snap.Accepted + snap.Rejected
	if decided >= max(a.cfg.MinRuns, 1) && a.cfg.RejectRateThreshold > 0 && snap.RejectRate > a.cfg.RejectRateThreshold {
		branches := make([]string, 0, len(snap.Unresolved))
		for _, b := range snap.Unresolved {
			branches = append(branches, b.Branch)
		}
		alerts = append(alerts, Alert{
			Type:     AlertRejectRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Batch rejection rate %.1f%% exceeds threshold %.1f%% (%d rejected / %d in last %dh)",
				snap.RejectRate*100, a.cfg.RejectRateThreshold*100,
				snap.Rejected, decided, snap.LookbackHours,
			),
			Details: map[string]any{
				"reject_rate":         snap.RejectRate,
				"threshold":           a.cfg.RejectRateThreshold,
				"rejected":            snap.Rejected,
				"unresolved_branches": branches,
			},
			Timestamp: now,
		})
	}

	if snap.Failed > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertFailures,
			Severity: "medium",
			Message:  fmt.Sprintf("%d batch(es) failed in last %dh", snap.Failed, snap.LookbackHours),
			Details: map[string]any{
				"failed": snap.Failed,
				"total":  snap.Total,
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
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
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
