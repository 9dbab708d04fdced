// Package scoring implements the deterministic lead-scoring engine: form
// score from submission attributes, interaction score from reply behavior,
// and the weighted total with its tier banding. Everything here is pure:
// same input, same output.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/lekki-homes/leadflow/internal/model"
)

// PurchaseTimeline is the normalized urgency of a buyer's timeline.
type PurchaseTimeline string

const (
	TimelineImmediate  PurchaseTimeline = "immediate"
	TimelineOneToThree PurchaseTimeline = "one_to_three_months"
	TimelineThreeToSix PurchaseTimeline = "three_to_six_months"
	TimelineSixPlus    PurchaseTimeline = "six_plus_months"
	TimelineBrowsing   PurchaseTimeline = "browsing"
)

// PaymentReadiness is the normalized financing posture.
type PaymentReadiness string

const (
	PaymentCashReady           PaymentReadiness = "cash_ready"
	PaymentMortgagePreApproved PaymentReadiness = "mortgage_pre_approved"
	PaymentMortgagePlanning    PaymentReadiness = "mortgage_planning"
	PaymentNotSpecified        PaymentReadiness = "not_specified"
)

// LocationMatch grades how well the buyer's location preference fits the
// agent's coverage area.
type LocationMatch string

const (
	LocationCore         LocationMatch = "core_area"
	LocationNearby       LocationMatch = "nearby_area"
	LocationOutside      LocationMatch = "outside_target"
	LocationNotSpecified LocationMatch = "not_specified"
)

// PropertyTypeSpecificity grades how concrete the property ask is.
type PropertyTypeSpecificity string

const (
	PropertySpecific     PropertyTypeSpecificity = "specific"
	PropertyBroad        PropertyTypeSpecificity = "broad"
	PropertyNotSpecified PropertyTypeSpecificity = "not_specified"
)

// FormInput carries the normalized submission attributes scored at intake.
type FormInput struct {
	Budget       int64
	Timeline     PurchaseTimeline
	Payment      PaymentReadiness
	Location     LocationMatch
	PropertyType PropertyTypeSpecificity
}

// InteractionInput carries the reply context scored during the poll cycle.
type InteractionInput struct {
	LastEmailSentAt    *time.Time
	ReplyReceivedAt    *time.Time
	MessageBody        string
	ReplyCountInThread int
}

// Intent keyword tiers. Matching is case-insensitive substring; only the
// highest matching tier counts, never a sum.
var (
	highIntentKeywords = []string{
		"schedule viewing",
		"book viewing",
		"ready to buy",
		"cash ready",
		"when can we meet",
	}
	mediumIntentKeywords = []string{"interested", "tell me more", "available", "price negotiable"}
	lowIntentKeywords    = []string{"still considering", "maybe later", "just checking"}
)

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp100(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func containsAny(body string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(body, kw) {
			return true
		}
	}
	return false
}

// BudgetScore bands the budget against the configured thresholds.
func BudgetScore(budget int64, cfg Config) float64 {
	switch {
	case budget <= 0:
		return 0
	case budget >= cfg.PremiumBudgetThreshold:
		return 30
	case budget >= cfg.MidTierBudgetThreshold:
		return 20
	case budget >= cfg.EntryTierBudgetThreshold:
		return 10
	default:
		return 0
	}
}

// TimelineScore scores purchase urgency.
func TimelineScore(t PurchaseTimeline) float64 {
	switch t {
	case TimelineImmediate:
		return 25
	case TimelineOneToThree:
		return 18
	case TimelineThreeToSix:
		return 10
	case TimelineSixPlus:
		return 5
	default:
		return 0
	}
}

// PaymentScore scores financing readiness.
func PaymentScore(p PaymentReadiness) float64 {
	switch p {
	case PaymentCashReady:
		return 20
	case PaymentMortgagePreApproved:
		return 15
	case PaymentMortgagePlanning:
		return 8
	default:
		return 0
	}
}

// LocationScore scores the coverage-area fit.
func LocationScore(l LocationMatch) float64 {
	switch l {
	case LocationCore:
		return 15
	case LocationNearby:
		return 10
	case LocationOutside:
		return 5
	default:
		return 0
	}
}

// PropertyTypeScore scores ask specificity.
func PropertyTypeScore(p PropertyTypeSpecificity) float64 {
	switch p {
	case PropertySpecific:
		return 10
	case PropertyBroad:
		return 5
	default:
		return 0
	}
}

// FormScore sums the five capped sub-scores, clamped to [0,100] and
// rounded to one decimal.
func FormScore(in FormInput, cfg Config) float64 {
	total := BudgetScore(in.Budget, cfg) +
		TimelineScore(in.Timeline) +
		PaymentScore(in.Payment) +
		LocationScore(in.Location) +
		PropertyTypeScore(in.PropertyType)
	return round1(clamp100(total))
}

// ReplySpeedScore scores the time from the last outbound email to the
// reply. Zero when either timestamp is missing or the reply predates the
// outbound.
func ReplySpeedScore(in InteractionInput) float64 {
	if in.LastEmailSentAt == nil || in.ReplyReceivedAt == nil {
		return 0
	}
	diff := in.ReplyReceivedAt.Sub(*in.LastEmailSentAt)
	if diff < 0 {
		return 0
	}
	hours := diff.Hours()
	switch {
	case hours < 6:
		return 30
	case hours <= 24:
		return 20
	case hours <= 72:
		return 10
	default:
		return 5
	}
}

// IntentScore returns the score of the highest-priority keyword tier the
// body matches: 40, 25, 10, or 0.
func IntentScore(body string) float64 {
	b := strings.ToLower(strings.TrimSpace(body))
	if b == "" {
		return 0
	}
	switch {
	case containsAny(b, highIntentKeywords):
		return 40
	case containsAny(b, mediumIntentKeywords):
		return 25
	case containsAny(b, lowIntentKeywords):
		return 10
	default:
		return 0
	}
}

// LengthScore bands the body's word count.
func LengthScore(body string) float64 {
	words := countWords(body)
	switch {
	case words >= 50:
		return 15
	case words >= 20:
		return 10
	case words >= 5:
		return 5
	default:
		return 0
	}
}

// FollowUpScore scores thread depth: how many inbound replies preceded
// this one in the bound thread.
func FollowUpScore(replyCountInThread int) float64 {
	switch {
	case replyCountInThread >= 3:
		return 15
	case replyCountInThread == 2:
		return 10
	case replyCountInThread == 1:
		return 5
	default:
		return 0
	}
}

// InteractionScore sums reply speed, intent, length, and thread depth,
// clamped to [0,100] and rounded to one decimal.
func InteractionScore(in InteractionInput) float64 {
	total := ReplySpeedScore(in) +
		IntentScore(in.MessageBody) +
		LengthScore(in.MessageBody) +
		FollowUpScore(in.ReplyCountInThread)
	return round1(clamp100(total))
}

// TotalScore weights form 60/40 against interaction.
func TotalScore(formScore, interactionScore float64) float64 {
	return round1(clamp100(formScore*0.6 + interactionScore*0.4))
}

// TierFor bands the total score. Boundaries are inclusive: 75.0 is Hot,
// 50.0 is Warm.
func TierFor(totalScore float64) model.Tier {
	switch {
	case totalScore >= 75:
		return model.TierHot
	case totalScore >= 50:
		return model.TierWarm
	default:
		return model.TierCold
	}
}
