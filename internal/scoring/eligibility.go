// Package scoring implements the Sell Scorer of spec.md §4.3: hard-block
// eligibility gates followed by a 5-component weighted sell-priority score.
package scoring

import (
	"fmt"
	"time"
)

// EligibilityInput is everything the hard-block gates need about one
// position, independent of where the caller sourced it from.
type EligibilityInput struct {
	AllowSell         bool
	ProfitPct         float64
	LastTransactionAt time.Time // zero value means "no transaction on record"
	Now               time.Time
	MaxLossThreshold  float64 // e.g. -0.20
	MinHoldDays       int
	SellCooldownDays  int
}

// CheckEligibility runs the hard blocks in spec.md §4.3 order: allow_sell,
// loss threshold, min hold days, sell cooldown. The first one tripped wins.
func CheckEligibility(in EligibilityInput) (eligible bool, reason string) {
	if !in.AllowSell {
		return false, "allow_sell=false"
	}

	if in.ProfitPct < in.MaxLossThreshold {
		return false, fmt.Sprintf("Loss %.1f%% exceeds %.0f%% threshold", -in.ProfitPct*100, -in.MaxLossThreshold*100)
	}

	if in.LastTransactionAt.IsZero() {
		return true, ""
	}

	daysSince := int(in.Now.Sub(in.LastTransactionAt).Hours() / 24)

	if daysSince < in.MinHoldDays {
		return false, fmt.Sprintf("held only %d days (min %d)", daysSince, in.MinHoldDays)
	}

	if daysSince < in.SellCooldownDays {
		return false, fmt.Sprintf("last transaction %d days ago (cooldown %d)", daysSince, in.SellCooldownDays)
	}

	return true, ""
}

// LastTransactionAt resolves spec.md §4.3's "maximum of first_bought_at and
// last_sold_at" rule, returning the zero time if neither is set.
func LastTransactionAt(firstBoughtAt, lastSoldAt *time.Time) time.Time {
	var latest time.Time
	if firstBoughtAt != nil && firstBoughtAt.After(latest) {
		latest = *firstBoughtAt
	}
	if lastSoldAt != nil && lastSoldAt.After(latest) {
		latest = *lastSoldAt
	}
	return latest
}
