package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lekki-homes/leadflow/internal/insight"
	"github.com/lekki-homes/leadflow/internal/model"
	"github.com/lekki-homes/leadflow/internal/store"
)

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Lead metrics.
	LeadTotal     int `json:"lead_total"`
	LeadHot       int `json:"lead_hot"`
	LeadWarm      int `json:"lead_warm"`
	LeadCold      int `json:"lead_cold"`
	LeadClosed    int `json:"lead_closed"`
	SLARiskCount  int `json:"sla_risk_count"`
	CriticalCount int `json:"critical_count"`

	// Draft backlog.
	DraftsPending     int `json:"drafts_pending"`
	DraftsNeedsReview int `json:"drafts_needs_review"`

	// Portfolio projection.
	ProjectedViewings30d float64 `json:"projected_viewings_30d"`

	CollectedAt time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect gathers a snapshot of lead and draft metrics.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{CollectedAt: now}

	leads, err := c.store.ListLeads(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list leads")
	}

	snap.LeadTotal = len(leads)
	for _, l := range leads {
		switch l.Tier {
		case model.TierHot:
			snap.LeadHot++
		case model.TierWarm:
			snap.LeadWarm++
		case model.TierCold:
			snap.LeadCold++
		}
		if l.PipelineStatus == model.StatusClosed {
			snap.LeadClosed++
			continue
		}
		li := insight.BuildLeadInsight(l, now)
		if li.SLARisk {
			snap.SLARiskCount++
		}
		if li.Urgency == insight.UrgencyCritical {
			snap.CriticalCount++
		}
	}

	portfolio := insight.BuildPortfolioInsight(leads, now)
	snap.ProjectedViewings30d = portfolio.ProjectedViewings30d

	pending, err := c.store.ListDrafts(ctx, model.DraftPendingApproval)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list pending drafts")
	}
	snap.DraftsPending = len(pending)

	review, err := c.store.ListDrafts(ctx, model.DraftNeedsReview)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list needs-review drafts")
	}
	snap.DraftsNeedsReview = len(review)

	return snap, nil
}
