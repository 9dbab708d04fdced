package insight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekki-homes/leadflow/internal/model"
)

func TestBuildLeadInsightHotNewNeverContacted(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	lead := model.Lead{
		TotalScore:     82.4,
		Tier:           model.TierHot,
		PipelineStatus: model.StatusNew,
	}

	li := BuildLeadInsight(lead, now)

	// 82.4 + 20 (hot) + 25 (new) + 20 (never contacted) = 147.4
	assert.Equal(t, 147, li.PriorityScore)
	assert.Equal(t, UrgencyCritical, li.Urgency)
	assert.Equal(t, "Send first response now and propose 2 viewing slots.", li.NextAction)
	assert.True(t, li.SLARisk)
	assert.False(t, li.StaleLead)
	assert.Nil(t, li.HoursSinceLastEmail)
}

func TestBuildLeadInsightClosedForcedToZero(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sent := now.Add(-200 * time.Hour)
	lead := model.Lead{
		TotalScore:      95,
		Tier:            model.TierHot,
		PipelineStatus:  model.StatusClosed,
		LastEmailSentAt: &sent,
	}

	li := BuildLeadInsight(lead, now)

	assert.Equal(t, 0, li.PriorityScore)
	assert.Equal(t, UrgencyLow, li.Urgency)
	assert.Equal(t, "No action required. Lead is closed.", li.NextAction)
	assert.False(t, li.SLARisk)
	assert.False(t, li.StaleLead)
}

func TestBuildLeadInsightStaleWarmLead(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sent := now.Add(-80 * time.Hour)
	lead := model.Lead{
		TotalScore:      30,
		Tier:            model.TierWarm,
		PipelineStatus:  model.StatusContacted,
		LastEmailSentAt: &sent,
	}

	li := BuildLeadInsight(lead, now)

	// 30 + 10 (warm) + 15 (>=24h) + 10 (>=72h) = 65
	assert.Equal(t, 65, li.PriorityScore)
	assert.Equal(t, UrgencyMedium, li.Urgency)
	assert.True(t, li.StaleLead)
	assert.True(t, li.SLARisk)
	require.NotNil(t, li.HoursSinceLastEmail)
	assert.Equal(t, 80, *li.HoursSinceLastEmail)
	assert.Equal(t, "No follow-up in the last 24+ hours", li.Rationale)
}

func TestBuildLeadInsightCapsAt150(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	lead := model.Lead{
		TotalScore:       100,
		InteractionScore: 90,
		Tier:             model.TierHot,
		PipelineStatus:   model.StatusNew,
	}

	li := BuildLeadInsight(lead, now)

	assert.Equal(t, 150, li.PriorityScore)
	assert.Equal(t, UrgencyCritical, li.Urgency)
}

func TestBuildLeadInsightRationaleTruncation(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sent := now.Add(-30 * time.Hour)
	lead := model.Lead{
		TotalScore:       88,
		InteractionScore: 75,
		Tier:             model.TierHot,
		PipelineStatus:   model.StatusInterested,
		LastEmailSentAt:  &sent,
	}

	li := BuildLeadInsight(lead, now)

	// Hot outranks Interested in the action chain, and only the first
	// two reasons survive.
	assert.Equal(t, "Call now and lock a viewing date this week.", li.NextAction)
	assert.Equal(t, "Lead tier is Hot | No follow-up in the last 24+ hours", li.Rationale)
}

func TestBuildPortfolioInsight(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sent := now.Add(-2 * time.Hour)
	leads := []model.Lead{
		{TotalScore: 85, Tier: model.TierHot, PipelineStatus: model.StatusInterested, LastEmailSentAt: &sent},
		{TotalScore: 55, Tier: model.TierWarm, PipelineStatus: model.StatusContacted, LastEmailSentAt: &sent},
		{TotalScore: 20, Tier: model.TierCold, PipelineStatus: model.StatusUnqualified, LastEmailSentAt: &sent},
	}

	pi := BuildPortfolioInsight(leads, now)

	// 0.25 + 0.10 (interested) + 0.12 = 0.47, rounded to 0.5.
	assert.Equal(t, 0.5, pi.ProjectedViewings30d)
	assert.Equal(t, 1, pi.HighPriorityCount)
	assert.Equal(t, 0, pi.SLARiskCount)
}
