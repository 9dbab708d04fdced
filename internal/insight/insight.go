// Package insight derives triage guidance from lead state: a priority
// score with an urgency bucket and a recommended next action per lead,
// plus portfolio-level aggregates for the dashboard.
package insight

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lekki-homes/leadflow/internal/model"
)

// Urgency buckets a lead's priority score for triage.
type Urgency string

const (
	UrgencyCritical Urgency = "Critical"
	UrgencyHigh     Urgency = "High"
	UrgencyMedium   Urgency = "Medium"
	UrgencyLow      Urgency = "Low"
)

// LeadInsight is the per-lead triage view.
type LeadInsight struct {
	PriorityScore       int     `json:"priority_score"`
	Urgency             Urgency `json:"urgency"`
	NextAction          string  `json:"next_action"`
	Rationale           string  `json:"rationale"`
	SLARisk             bool    `json:"sla_risk"`
	StaleLead           bool    `json:"stale_lead"`
	HoursSinceLastEmail *int    `json:"hours_since_last_email"`
}

// PortfolioInsight aggregates triage signals across all leads.
type PortfolioInsight struct {
	ProjectedViewings30d float64 `json:"projected_viewings_30d"`
	HighPriorityCount    int     `json:"high_priority_count"`
	SLARiskCount         int     `json:"sla_risk_count"`
}

func hoursBetween(from *time.Time, to time.Time) *int {
	if from == nil {
		return nil
	}
	h := int(math.Floor(to.Sub(*from).Hours()))
	if h < 0 {
		h = 0
	}
	return &h
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// BuildLeadInsight computes priority, urgency, and the recommended next
// action for one lead at the given instant.
func BuildLeadInsight(lead model.Lead, now time.Time) LeadInsight {
	hoursSince := hoursBetween(lead.LastEmailSentAt, now)
	status := lead.PipelineStatus
	closed := status == model.StatusClosed

	neverContacted := lead.LastEmailSentAt == nil
	stale := !closed && hoursSince != nil && *hoursSince >= 24
	slaRisk := !closed && (neverContacted || stale)

	priority := lead.TotalScore
	switch lead.Tier {
	case model.TierHot:
		priority += 20
	case model.TierWarm:
		priority += 10
	}
	switch status {
	case model.StatusNew:
		priority += 25
	case model.StatusQuestion, model.StatusObjection:
		priority += 15
	case model.StatusInterested:
		priority += 12
	}
	if neverContacted && !closed {
		priority += 20
	}
	if hoursSince != nil && *hoursSince >= 24 {
		priority += 15
	}
	if hoursSince != nil && *hoursSince >= 72 {
		priority += 10
	}
	if closed {
		priority -= 100
	}

	priorityScore := clampInt(int(math.Round(priority)), 0, 150)
	if closed {
		priorityScore = 0
	}

	urgency := UrgencyLow
	switch {
	case priorityScore >= 95:
		urgency = UrgencyCritical
	case priorityScore >= 75:
		urgency = UrgencyHigh
	case priorityScore >= 50:
		urgency = UrgencyMedium
	}

	nextAction := "Monitor activity and keep nurturing."
	var reasons []string
	switch {
	case closed:
		nextAction = "No action required. Lead is closed."
		reasons = append(reasons, "Pipeline status is Closed")
	case status == model.StatusNew || neverContacted:
		nextAction = "Send first response now and propose 2 viewing slots."
		reasons = append(reasons, "No outbound email sent yet")
	case status == model.StatusObjection || status == model.StatusQuestion:
		nextAction = "Address objection/question with a tailored response."
		reasons = append(reasons, fmt.Sprintf("Lead is in %s stage", status))
	case lead.Tier == model.TierHot:
		nextAction = "Call now and lock a viewing date this week."
		reasons = append(reasons, "Lead tier is Hot")
	case status == model.StatusInterested:
		nextAction = "Send curated listings and ask for preferred viewing time."
		reasons = append(reasons, "Lead already signaled interest")
	}

	if stale {
		reasons = append(reasons, "No follow-up in the last 24+ hours")
	}
	if lead.InteractionScore >= 70 {
		reasons = append(reasons, "Strong interaction signals")
	}
	if lead.TotalScore >= 75 {
		reasons = append(reasons, "High conversion potential")
	}

	rationale := "No strong signals yet"
	if len(reasons) > 0 {
		if len(reasons) > 2 {
			reasons = reasons[:2]
		}
		rationale = strings.Join(reasons, " | ")
	}

	return LeadInsight{
		PriorityScore:       priorityScore,
		Urgency:             urgency,
		NextAction:          nextAction,
		Rationale:           rationale,
		SLARisk:             slaRisk,
		StaleLead:           stale,
		HoursSinceLastEmail: hoursSince,
	}
}

// BuildPortfolioInsight aggregates per-lead insights. The 30-day viewing
// forecast sums per-lead conversion weights (Hot 0.25, Warm 0.12, Cold
// 0.04, +0.10 for Interested), skipping Closed and Unqualified leads.
func BuildPortfolioInsight(leads []model.Lead, now time.Time) PortfolioInsight {
	var projected float64
	var highPriority, slaRisk int

	for _, lead := range leads {
		li := BuildLeadInsight(lead, now)
		if li.Urgency == UrgencyCritical || li.Urgency == UrgencyHigh {
			highPriority++
		}
		if li.SLARisk {
			slaRisk++
		}
		if lead.PipelineStatus == model.StatusClosed || lead.PipelineStatus == model.StatusUnqualified {
			continue
		}

		switch lead.Tier {
		case model.TierHot:
			projected += 0.25
		case model.TierWarm:
			projected += 0.12
		default:
			projected += 0.04
		}
		if lead.PipelineStatus == model.StatusInterested {
			projected += 0.10
		}
	}

	return PortfolioInsight{
		ProjectedViewings30d: math.Round(projected*10) / 10,
		HighPriorityCount:    highPriority,
		SLARiskCount:         slaRisk,
	}
}
