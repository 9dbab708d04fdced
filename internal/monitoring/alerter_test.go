package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekki-homes/leadflow/internal/config"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		SLARiskThreshold:  5,
		CriticalThreshold: 1,
	})

	snap := &MetricsSnapshot{
		LeadTotal:     20,
		SLARiskCount:  2,
		CriticalCount: 0,
		DraftsPending: 3,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_SLARisk(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		SLARiskThreshold:  5,
		CriticalThreshold: 3,
	})

	snap := &MetricsSnapshot{
		LeadTotal:    40,
		SLARiskCount: 7,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSLARisk, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "7 lead(s) past the follow-up window")
}

func TestAlerter_Evaluate_CriticalLeads(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		SLARiskThreshold:  50,
		CriticalThreshold: 1,
	})

	snap := &MetricsSnapshot{
		LeadTotal:     10,
		LeadHot:       4,
		CriticalCount: 2,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCriticalLeads, alerts[0].Type)
	assert.Equal(t, "critical", alerts[0].Severity)
	assert.Equal(t, 2, alerts[0].Details["critical_count"])
}

func TestAlerter_Evaluate_DraftBacklog(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		SLARiskThreshold:  50,
		CriticalThreshold: 50,
	})

	snap := &MetricsSnapshot{
		DraftsPending:     8,
		DraftsNeedsReview: 4,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertDraftBacklog, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "12 draft(s)")
}

func TestAlerter_Evaluate_DisabledThresholds(t *testing.T) {
	// Zero thresholds turn the corresponding checks off.
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		SLARiskCount:  100,
		CriticalCount: 100,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int32
	var last Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&last))
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{AlertWebhookURL: srv.URL})

	alerts := []Alert{
		{Type: AlertSLARisk, Severity: "high", Message: "7 lead(s) past the follow-up window"},
		{Type: AlertCriticalLeads, Severity: "critical", Message: "2 lead(s) at critical urgency"},
	}
	sent := a.SendAlerts(context.Background(), alerts)

	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
	assert.Equal(t, AlertCriticalLeads, last.Type)
}

func TestAlerter_SendAlerts_NoURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertSLARisk}})
	assert.Zero(t, sent)
}

func TestAlerter_SendAlerts_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{AlertWebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertSLARisk}})
	assert.Zero(t, sent)
}
