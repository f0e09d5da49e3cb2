package ledger

import (
	"fmt"
	"time"

	apperrors "github.com/Proton-105/ledger-bot/internal/errors"
)

const periodLayout = "2006-01"

// PeriodKey returns the YYYY-MM key of the month containing t.
func PeriodKey(t time.Time) string {
	return t.Format(periodLayout)
}

// ParsePeriodKey parses a YYYY-MM key into the first instant of that month in loc.
// A malformed key yields a validation AppError.
func ParsePeriodKey(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	t, err := time.ParseInLocation(periodLayout, key, loc)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError(fmt.Sprintf("invalid period %q, want YYYY-MM", key))
	}

	return t, nil
}
