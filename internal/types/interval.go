package types

import "time"

// Interval is the sampling granularity of a history query.
type Interval string

const (
	IntervalOneMinute      Interval = "1m"
	IntervalFiveMinutes    Interval = "5m"
	IntervalFifteenMinutes Interval = "15m"
	IntervalThirtyMinutes  Interval = "30m"
	IntervalOneHour        Interval = "1h"
	IntervalOneDay         Interval = "1d"
	IntervalOneWeek        Interval = "1w"
	IntervalOneMonth       Interval = "1M"
)

// SupportedIntervals lists every interval all providers understand, in
// ascending order of duration.
var SupportedIntervals = []Interval{
	IntervalOneMinute,
	IntervalFiveMinutes,
	IntervalFifteenMinutes,
	IntervalThirtyMinutes,
	IntervalOneHour,
	IntervalOneDay,
	IntervalOneWeek,
	IntervalOneMonth,
}

// IsValid reports whether the interval is one of SupportedIntervals.
func (i Interval) IsValid() bool {
	for _, s := range SupportedIntervals {
		if s == i {
			return true
		}
	}

	return false
}

// Duration returns the nominal length of one sample. A month is 30 days.
func (i Interval) Duration() time.Duration {
	switch i {
	case IntervalOneMinute:
		return time.Minute
	case IntervalFiveMinutes:
		return 5 * time.Minute
	case IntervalFifteenMinutes:
		return 15 * time.Minute
	case IntervalThirtyMinutes:
		return 30 * time.Minute
	case IntervalOneHour:
		return time.Hour
	case IntervalOneDay:
		return 24 * time.Hour
	case IntervalOneWeek:
		return 7 * 24 * time.Hour
	case IntervalOneMonth:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}
