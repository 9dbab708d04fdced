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

	"github.com/lekki-homes/leadflow/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSLARisk       AlertType = "sla_risk"
	AlertCriticalLeads AlertType = "critical_leads"
	AlertDraftBacklog  AlertType = "draft_backlog"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// draftBacklogThreshold is how many unreviewed drafts it takes before
// the agent is told to catch up on approvals.
const draftBacklogThreshold = 10

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
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

	if a.cfg.SLARiskThreshold > 0 && snap.SLARiskCount >= a.cfg.SLARiskThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertSLARisk,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d lead(s) past the follow-up window (threshold %d)",
				snap.SLARiskCount, a.cfg.SLARiskThreshold,
			),
			Details: map[string]any{
				"sla_risk_count": snap.SLARiskCount,
				"threshold":      a.cfg.SLARiskThreshold,
				"lead_total":     snap.LeadTotal,
			},
			Timestamp: now,
		})
	}

	if a.cfg.CriticalThreshold > 0 && snap.CriticalCount >= a.cfg.CriticalThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertCriticalLeads,
			Severity: "critical",
			Message: fmt.Sprintf(
				"%d lead(s) at critical urgency need immediate attention",
				snap.CriticalCount,
			),
			Details: map[string]any{
				"critical_count": snap.CriticalCount,
				"hot_leads":      snap.LeadHot,
			},
			Timestamp: now,
		})
	}

	backlog := snap.DraftsPending + snap.DraftsNeedsReview
	if backlog >= draftBacklogThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertDraftBacklog,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d draft(s) awaiting approval or review",
				backlog,
			),
			Details: map[string]any{
				"pending":      snap.DraftsPending,
				"needs_review": snap.DraftsNeedsReview,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.AlertWebhookURL == "" || len(alerts) == 0 {
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

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.AlertWebhookURL, bytes.NewReader(payload))
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
