package scoring

import "math"

// DefaultPremiumBudgetThreshold is used when configuration provides no
// premium threshold (naira).
const DefaultPremiumBudgetThreshold int64 = 100_000_000

// Config holds the budget banding thresholds. Mid and entry tiers are
// derived from premium unless explicitly overridden.
type Config struct {
	PremiumBudgetThreshold   int64 `yaml:"premium_budget_threshold" mapstructure:"premium_budget_threshold"`
	MidTierBudgetThreshold   int64 `yaml:"mid_tier_budget_threshold" mapstructure:"mid_tier_budget_threshold"`
	EntryTierBudgetThreshold int64 `yaml:"entry_tier_budget_threshold" mapstructure:"entry_tier_budget_threshold"`
}

// NormalizeConfig fills in derived thresholds: mid defaults to 60% of
// premium, entry to 50% of mid. A non-positive premium falls back to
// DefaultPremiumBudgetThreshold.
func NormalizeConfig(cfg Config) Config {
	premium := cfg.PremiumBudgetThreshold
	if premium <= 0 {
		premium = DefaultPremiumBudgetThreshold
	}
	mid := cfg.MidTierBudgetThreshold
	if mid <= 0 {
		mid = int64(math.Round(float64(premium) * 0.6))
	}
	entry := cfg.EntryTierBudgetThreshold
	if entry <= 0 {
		entry = int64(math.Round(float64(mid) * 0.5))
	}
	return Config{
		PremiumBudgetThreshold:   premium,
		MidTierBudgetThreshold:   mid,
		EntryTierBudgetThreshold: entry,
	}
}
