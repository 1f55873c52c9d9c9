package scheduler

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lodgepole/rentroll/internal/domain"
)

// EligibleOwners returns the owners whose local wall-clock time is currently
// midnight on the first of the month. The trigger fires hourly, so exactly
// one tick per month matches for any given zone.
//
// Unknown zone names are logged and skipped, never fatal. A fall-back
// transition can repeat the midnight hour and match two adjacent ticks; the
// charge uniqueness constraint downstream absorbs the double. A
// spring-forward transition can remove 00:00 entirely, so the first hour of
// the 1st is accepted whenever the previous tick still fell on the previous
// day.
func EligibleOwners(now time.Time, zones []domain.OwnerZone, logger *slog.Logger) []uuid.UUID {
	var eligible []uuid.UUID

	for _, z := range zones {
		loc, err := time.LoadLocation(z.Timezone)
		if err != nil {
			logger.Warn("skipping owner with invalid timezone",
				"owner_id", z.OwnerID,
				"timezone", z.Timezone,
			)
			continue
		}

		if atLocalMidnightFirst(now, loc) {
			eligible = append(eligible, z.OwnerID)
		}
	}

	return eligible
}

// atLocalMidnightFirst reports whether this hourly tick is the zone's local
// midnight on the first of the month, or its nearest hour when midnight was
// skipped by DST.
func atLocalMidnightFirst(now time.Time, loc *time.Location) bool {
	local := now.In(loc)
	if local.Day() != 1 {
		return false
	}
	if local.Hour() == 0 {
		return true
	}
	// First tick of the 1st but with a non-zero hour: midnight was skipped.
	return now.Add(-time.Hour).In(loc).Day() != 1
}
