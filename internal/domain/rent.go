package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RentOnDate resolves the rent amount in force on the given date against a
// piecewise-constant rate history: the latest increase whose effective date
// is on or before the date wins; when none qualifies the base rent applies.
//
// History must be passed in insertion order and never reordered. Entries
// sharing an effective date resolve to the later-inserted one. This is the
// single rent-resolution code path; every feature that computes a charge
// amount must call it rather than reimplement the lookup.
func RentOnDate(base decimal.Decimal, history []RentIncrease, on time.Time) decimal.Decimal {
	amount := base
	var effective time.Time
	found := false

	for _, inc := range history {
		if inc.EffectiveDate.After(on) {
			continue
		}
		// >= keeps the later-inserted entry on an effective-date tie.
		if !found || !inc.EffectiveDate.Before(effective) {
			amount = inc.NewAmount
			effective = inc.EffectiveDate
			found = true
		}
	}

	return amount
}
