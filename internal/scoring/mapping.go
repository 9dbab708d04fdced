package scoring

import "strings"

// The mapping functions tolerate varied upstream form wording by matching
// substrings of the free-text answer. Each returns a closed enum so the
// scoring functions never see raw text.

func normalized(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// MapPurchaseTimeline maps a free-text timeline answer to a timeline bucket.
func MapPurchaseTimeline(value string) PurchaseTimeline {
	v := normalized(value)
	switch {
	case strings.Contains(v, "immediate"), strings.Contains(v, "0-1"), strings.Contains(v, "now"):
		return TimelineImmediate
	case strings.Contains(v, "1-3"):
		return TimelineOneToThree
	case strings.Contains(v, "3-6"):
		return TimelineThreeToSix
	case strings.Contains(v, "6+"), strings.Contains(v, "six"), strings.Contains(v, "later"):
		return TimelineSixPlus
	default:
		return TimelineBrowsing
	}
}

// MapPaymentReadiness maps a free-text payment answer to a readiness bucket.
func MapPaymentReadiness(value string) PaymentReadiness {
	v := normalized(value)
	switch {
	case strings.Contains(v, "cash"):
		return PaymentCashReady
	case strings.Contains(v, "pre") && strings.Contains(v, "approved"):
		return PaymentMortgagePreApproved
	case strings.Contains(v, "mortgage") && strings.Contains(v, "planning"):
		return PaymentMortgagePlanning
	default:
		return PaymentNotSpecified
	}
}

// MapLocationPreference maps a free-text location answer to a coverage
// bucket. Core areas are Lekki and Victoria Island.
func MapLocationPreference(value string) LocationMatch {
	v := normalized(value)
	switch {
	case v == "", strings.Contains(v, "not specified"), strings.Contains(v, "n/a"):
		return LocationNotSpecified
	case strings.Contains(v, "lekki"), strings.Contains(v, "victoria island"):
		return LocationCore
	case strings.Contains(v, "ajah"), strings.Contains(v, "ikoyi"), strings.Contains(v, "oniru"),
		strings.Contains(v, "chevron"), strings.Contains(v, "nearby"):
		return LocationNearby
	default:
		return LocationOutside
	}
}

// MapPropertyTypeSpecificity maps a free-text property answer to a
// specificity bucket.
func MapPropertyTypeSpecificity(value string) PropertyTypeSpecificity {
	v := normalized(value)
	switch {
	case v == "", strings.Contains(v, "not specified"), strings.Contains(v, "no preference"), v == "any":
		return PropertyNotSpecified
	case strings.Contains(v, "broad"), strings.Contains(v, "all properties"), strings.Contains(v, "any property"):
		return PropertyBroad
	default:
		return PropertySpecific
	}
}
