package model

import (
	"regexp"
	"strconv"
	"time"
)

var periodPattern = regexp.MustCompile(`^\d+[hdwmy]$`)

// periodUnitSeconds maps a period unit to its length in seconds.
var periodUnitSeconds = map[byte]int64{
	'h': 3600,
	'd': 86400,
	'w': 7 * 86400,
	'm': 30 * 86400,
	'y': 365 * 86400,
}

// ParsePeriod parses a stats/retention period string of the form
// `^\d+[hdwmy]$` into a duration. "0d" is a valid, zero-length
// period. Malformed input yields a ValidationError.
func ParsePeriod(period string) (time.Duration, error) {
	if !periodPattern.MatchString(period) {
		return 0, NewValidationError("invalid period %q: must match ^\\d+[hdwmy]$", period)
	}

	unit := period[len(period)-1]
	n, err := strconv.ParseInt(period[:len(period)-1], 10, 64)
	if err != nil {
		return 0, NewValidationError("invalid period %q: %s", period, err.Error())
	}

	return time.Duration(n*periodUnitSeconds[unit]) * time.Second, nil
}

// PeriodWindow returns the [from, to] window covered by a period string
// ending at `now`, inclusive of both bounds.
func PeriodWindow(period string, now time.Time) (from, to time.Time, err error) {
	d, err := ParsePeriod(period)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return now.Add(-d), now, nil
}
