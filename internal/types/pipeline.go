package types

import "time"

// TimeRange is the window of a history query. From is fixed for the life
// of the process; To advances every tick.
type TimeRange struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Interval Interval  `json:"interval"`
}

// FetchRequest is one unit of work for the dispatcher.
type FetchRequest struct {
	// TickID correlates every request, batch and log line of one scheduler tick.
	TickID   string    `json:"tick_id"`
	Symbol   string    `json:"symbol"`
	Range    TimeRange `json:"range"`
	IssuedAt time.Time `json:"issued_at"`
}

// QuoteBatch holds every quote returned for one symbol in one fetch.
// Quotes may be unordered and may be empty.
type QuoteBatch struct {
	TickID string    `json:"tick_id"`
	Symbol string    `json:"symbol"`
	Range  TimeRange `json:"range"`
	Quotes []Quote   `json:"quotes"`
}

// IsEmpty reports whether the batch carries no quotes.
func (b QuoteBatch) IsEmpty() bool {
	return len(b.Quotes) == 0
}

// EmptyBatch builds the batch published when a fetch fails.
func EmptyBatch(req FetchRequest) QuoteBatch {
	return QuoteBatch{
		TickID: req.TickID,
		Symbol: req.Symbol,
		Range:  req.Range,
		Quotes: nil,
	}
}
