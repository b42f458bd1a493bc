package types

import (
	"sort"
	"time"
)

// Quote is one sampled price point returned by a market data provider.
type Quote struct {
	Symbol   string    `csv:"symbol" json:"symbol"`
	Time     time.Time `csv:"time" json:"time"`
	Open     float64   `csv:"open" json:"open"`
	High     float64   `csv:"high" json:"high"`
	Low      float64   `csv:"low" json:"low"`
	Close    float64   `csv:"close" json:"close"`
	AdjClose float64   `csv:"adj_close" json:"adj_close"`
	Volume   float64   `csv:"volume" json:"volume"`
}

// SortQuotesByTime returns a copy of quotes ordered ascending by timestamp.
// The sort is stable, so quotes sharing a timestamp keep provider order.
// The input slice is left untouched.
func SortQuotesByTime(quotes []Quote) []Quote {
	sorted := make([]Quote, len(quotes))
	copy(sorted, quotes)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	return sorted
}

// ClosePrices projects the close price of each quote, preserving order.
func ClosePrices(quotes []Quote) []float64 {
	closes := make([]float64, len(quotes))
	for i, q := range quotes {
		closes[i] = q.Close
	}

	return closes
}
