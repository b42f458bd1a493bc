// Package stats reduces an ordered price series into the aggregates shown in
// the report. Every function is pure; absent results are optional.None.
package stats

import (
	"math"

	"github.com/moznion/go-optional"
)

// PriceChange is the difference between the last and the first price of a series.
type PriceChange struct {
	AbsoluteChange float64 `json:"absolute_change"`
	// PercentChange is computed against 1.0 when the first price is zero and
	// is not meaningful in that case.
	PercentChange float64 `json:"percent_change"`
}

// Minimum returns the smallest price, or None for an empty series.
func Minimum(series []float64) optional.Option[float64] {
	if len(series) == 0 {
		return optional.None[float64]()
	}

	found := series[0]
	for _, s := range series[1:] {
		if s < found {
			found = s
		}
	}

	return optional.Some(found)
}

// Maximum returns the largest price, or None for an empty series.
func Maximum(series []float64) optional.Option[float64] {
	if len(series) == 0 {
		return optional.None[float64]()
	}

	found := series[0]
	for _, s := range series[1:] {
		if s > found {
			found = s
		}
	}

	return optional.Some(found)
}

// PeriodChange compares the last price of the series against the first.
func PeriodChange(series []float64) optional.Option[PriceChange] {
	if len(series) == 0 {
		return optional.None[PriceChange]()
	}

	first, last := series[0], series[len(series)-1]
	absolute := last - first

	base := first
	if base == 0 {
		base = 1.0
	}

	return optional.Some(PriceChange{
		AbsoluteChange: absolute,
		PercentChange:  absolute / base * 100,
	})
}

// WindowedAverage computes the simple moving average of every full window of
// n consecutive prices.
//
// The result is None when the call is invalid (empty series or n <= 1) and
// Some of an empty slice when the series is shorter than the window.
func WindowedAverage(n int, series []float64) optional.Option[[]float64] {
	if len(series) == 0 || n <= 1 {
		return optional.None[[]float64]()
	}

	count := len(series) - n + 1
	if count < 0 {
		count = 0
	}

	averages := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		sum := 0.0
		for _, s := range series[i : i+n] {
			sum += s
		}

		averages = append(averages, sum/float64(n))
	}

	return optional.Some(averages)
}

// ContainsNaN reports whether any price in the series is NaN. The aggregate
// functions give no guarantees for such input.
func ContainsNaN(series []float64) bool {
	for _, s := range series {
		if math.IsNaN(s) {
			return true
		}
	}

	return false
}
