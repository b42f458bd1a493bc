package types

import "time"

// PeriodStartLayout formats SummaryReport.PeriodStart with a numeric zone
// offset ("+00:00" rather than "Z").
const PeriodStartLayout = "2006-01-02T15:04:05-07:00"

// SummaryReport is one printable row of the rolling report.
type SummaryReport struct {
	PeriodStart     time.Time `json:"period_start"`
	Symbol          string    `json:"symbol"`
	Price           float64   `json:"price"`
	PercentChange   float64   `json:"percent_change"`
	AbsoluteChange  float64   `json:"absolute_change"`
	Min             float64   `json:"min"`
	Max             float64   `json:"max"`
	TrailingAverage float64   `json:"trailing_average"`
}
