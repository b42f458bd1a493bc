package pipeline

import (
	"context"

	"github.com/rxtech-lab/tickerwatch/internal/bus"
	"github.com/rxtech-lab/tickerwatch/internal/logger"
	"github.com/rxtech-lab/tickerwatch/internal/stats"
	"github.com/rxtech-lab/tickerwatch/internal/status"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
	"go.uber.org/zap"
)

// Processor reduces quote batches into report rows.
type Processor struct {
	batches  *bus.Subscription[types.QuoteBatch]
	sink     ReportSink
	window   int
	counters *status.Counters
	log      *logger.Logger
}

// NewProcessor creates a processor reading from batches. A window below 2
// falls back to stats.TrailingWindow.
func NewProcessor(batches *bus.Subscription[types.QuoteBatch], sink ReportSink, window int, counters *status.Counters, log *logger.Logger) *Processor {
	if window < 2 {
		window = stats.TrailingWindow
	}

	return &Processor{
		batches:  batches,
		sink:     sink,
		window:   window,
		counters: counters,
		log:      log,
	}
}

// Run processes batches in arrival order until ctx is cancelled or the
// subscription closes. A sink failure ends the run.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-p.batches.C():
			if !ok {
				return nil
			}

			if err := p.Process(batch); err != nil {
				return err
			}
		}
	}
}

// Process turns one batch into at most one report row. Empty batches
// produce nothing. Quotes are sorted by time before reduction; a batch with
// a NaN close is rejected.
func (p *Processor) Process(batch types.QuoteBatch) error {
	if batch.IsEmpty() {
		p.log.Debug("Skipping empty batch",
			zap.String("tick_id", batch.TickID),
			zap.String("symbol", batch.Symbol),
		)

		return nil
	}

	closes := types.ClosePrices(types.SortQuotesByTime(batch.Quotes))
	if stats.ContainsNaN(closes) {
		p.counters.RejectedBatches.Add(1)
		p.log.Warn("Rejecting batch with NaN close price",
			zap.String("tick_id", batch.TickID),
			zap.String("symbol", batch.Symbol),
			zap.Int("quotes", len(closes)),
		)

		return nil
	}

	report := stats.Summarize(batch.Range.From, batch.Symbol, closes, p.window)
	if report.IsNone() {
		return nil
	}

	if err := p.sink.Write(report.Unwrap()); err != nil {
		return errors.Wrapf(errors.ErrCodeStageFailed, err, "write report for %s", batch.Symbol)
	}

	p.counters.ReportsEmitted.Add(1)

	return nil
}
