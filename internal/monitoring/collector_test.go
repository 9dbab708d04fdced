package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekki-homes/leadflow/internal/model"
	"github.com/lekki-homes/leadflow/internal/store"
)

func seedLead(t *testing.T, st store.Store, tier model.Tier, status model.PipelineStatus, lastEmail *time.Time) {
	t.Helper()
	lead := &model.Lead{
		FullName:        "Test Lead",
		Email:           "lead-" + string(tier) + "-" + string(status) + "@example.com",
		TotalScore:      60,
		Tier:            tier,
		PipelineStatus:  status,
		LastEmailSentAt: lastEmail,
	}
	require.NoError(t, st.CreateLead(context.Background(), lead))
}

func TestCollector_Collect(t *testing.T) {
	st := store.NewMemory()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * time.Hour)
	stale := now.Add(-48 * time.Hour)

	// Hot lead contacted recently: counted but not at risk.
	seedLead(t, st, model.TierHot, model.StatusInterested, &recent)
	// Warm lead gone quiet for two days: SLA risk.
	seedLead(t, st, model.TierWarm, model.StatusContacted, &stale)
	// Never-contacted new lead: SLA risk.
	seedLead(t, st, model.TierCold, model.StatusNew, nil)
	// Closed lead: skipped for risk accounting.
	seedLead(t, st, model.TierHot, model.StatusClosed, &stale)

	require.NoError(t, st.CreateEmail(context.Background(), &model.EmailRecord{
		LeadID:      "x",
		Direction:   model.DirectionDraft,
		DraftStatus: model.DraftPendingApproval,
		Body:        "draft",
	}))

	c := NewCollector(st)
	c.now = func() time.Time { return now }

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, snap.LeadTotal)
	assert.Equal(t, 2, snap.LeadHot)
	assert.Equal(t, 1, snap.LeadWarm)
	assert.Equal(t, 1, snap.LeadCold)
	assert.Equal(t, 1, snap.LeadClosed)
	assert.Equal(t, 2, snap.SLARiskCount)
	assert.Equal(t, 1, snap.CriticalCount)
	assert.Equal(t, 1, snap.DraftsPending)
	assert.Equal(t, 0, snap.DraftsNeedsReview)
	assert.Equal(t, now, snap.CollectedAt)
	assert.Greater(t, snap.ProjectedViewings30d, 0.0)
}

func TestCollector_CollectEmpty(t *testing.T) {
	c := NewCollector(store.NewMemory())

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)

	assert.Zero(t, snap.LeadTotal)
	assert.Zero(t, snap.SLARiskCount)
	assert.Zero(t, snap.ProjectedViewings30d)
}
