// Package pipeline wires the polling stages together: the scheduler
// publishes fetch requests, the dispatcher turns each request into exactly
// one quote batch, and the processor reduces batches into report rows.
package pipeline

import (
	"context"

	"github.com/rxtech-lab/tickerwatch/internal/bus"
	"github.com/rxtech-lab/tickerwatch/internal/types"
)

var (
	// RequestTopic carries one FetchRequest per symbol per tick.
	RequestTopic = bus.NewTopic[types.FetchRequest]("fetch.requests")
	// BatchTopic carries one QuoteBatch per consumed FetchRequest.
	BatchTopic = bus.NewTopic[types.QuoteBatch]("quote.batches")
)

// Fetcher retrieves the quotes a request asks for.
type Fetcher interface {
	Fetch(ctx context.Context, req types.FetchRequest) (types.QuoteBatch, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req types.FetchRequest) (types.QuoteBatch, error)

// Fetch calls f(ctx, req).
func (f FetcherFunc) Fetch(ctx context.Context, req types.FetchRequest) (types.QuoteBatch, error) {
	return f(ctx, req)
}

// ReportSink receives finished report rows.
type ReportSink interface {
	Write(report types.SummaryReport) error
}
