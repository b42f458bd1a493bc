package stats

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/tickerwatch/internal/types"
)

// TrailingWindow is the number of samples averaged for the report's trailing average.
const TrailingWindow = 30

// Summarize reduces an ascending close-price series into a report row.
// It returns None for an empty series.
//
// The trailing average is the last full window average; with fewer samples
// than window it falls back to 0 so existing report consumers keep a numeric
// column.
func Summarize(periodStart time.Time, symbol string, series []float64, window int) optional.Option[types.SummaryReport] {
	if len(series) == 0 {
		return optional.None[types.SummaryReport]()
	}

	change := PeriodChange(series).Unwrap()

	trailing := 0.0
	if averages := WindowedAverage(window, series).TakeOr(nil); len(averages) > 0 {
		trailing = averages[len(averages)-1]
	}

	return optional.Some(types.SummaryReport{
		PeriodStart:     periodStart,
		Symbol:          symbol,
		Price:           series[len(series)-1],
		PercentChange:   change.PercentChange,
		AbsoluteChange:  change.AbsoluteChange,
		Min:             Minimum(series).Unwrap(),
		Max:             Maximum(series).Unwrap(),
		TrailingAverage: trailing,
	})
}
