package pipeline

import (
	"context"
	"time"

	"github.com/rxtech-lab/tickerwatch/internal/bus"
	"github.com/rxtech-lab/tickerwatch/internal/logger"
	"github.com/rxtech-lab/tickerwatch/internal/status"
	"github.com/rxtech-lab/tickerwatch/internal/supervisor"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DispatcherConfig tunes request handling.
type DispatcherConfig struct {
	// MaxConcurrentFetches caps in-flight provider calls across all symbols.
	MaxConcurrentFetches int64
	// LaneCapacity is the number of pending requests kept per symbol. When a
	// lane is full the oldest request is dropped.
	LaneCapacity int
	// FetchTimeout bounds a single provider call. A call still running at the
	// deadline is abandoned and gives up its concurrency slot. Zero means no
	// timeout.
	FetchTimeout time.Duration
	// Retry is applied to transient fetch failures. MaxRetries 0 means one attempt.
	Retry supervisor.Policy
}

// DefaultDispatcherConfig returns the dispatcher defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxConcurrentFetches: 8,
		LaneCapacity:         4,
		FetchTimeout:         0,
		Retry:                supervisor.DefaultPolicy(),
	}
}

// Dispatcher consumes fetch requests and publishes one quote batch for each,
// empty when the fetch fails. Every symbol gets its own lane, so a slow or
// hanging symbol never delays another while requests of one symbol keep
// their issue order.
type Dispatcher struct {
	fetcher  Fetcher
	bus      *bus.Bus
	requests *bus.Subscription[types.FetchRequest]
	config   DispatcherConfig
	sem      *semaphore.Weighted
	counters *status.Counters
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher reading from requests.
func NewDispatcher(fetcher Fetcher, b *bus.Bus, requests *bus.Subscription[types.FetchRequest], config DispatcherConfig, counters *status.Counters, log *logger.Logger) *Dispatcher {
	if config.MaxConcurrentFetches <= 0 {
		config.MaxConcurrentFetches = DefaultDispatcherConfig().MaxConcurrentFetches
	}

	if config.LaneCapacity <= 0 {
		config.LaneCapacity = DefaultDispatcherConfig().LaneCapacity
	}

	return &Dispatcher{
		fetcher:  fetcher,
		bus:      b,
		requests: requests,
		config:   config,
		sem:      semaphore.NewWeighted(config.MaxConcurrentFetches),
		counters: counters,
		log:      log,
	}
}

// fetchOutcome is the result of one provider call.
type fetchOutcome struct {
	batch types.QuoteBatch
	err   error
}

// Run routes requests to per-symbol lanes until ctx is cancelled or the
// request subscription closes. A panicking lane ends the run with a
// StageError so the supervisor can start a fresh dispatcher.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	lanes := make(map[string]*bus.Queue[types.FetchRequest])

	defer func() {
		for _, lane := range lanes {
			lane.Close()
		}
	}()

	for {
		select {
		case <-gctx.Done():
			return d.finish(ctx, lanes, g)
		case req, ok := <-d.requests.C():
			if !ok {
				return d.finish(ctx, lanes, g)
			}

			lane, exists := lanes[req.Symbol]
			if !exists {
				lane = d.startLane(gctx, g, req.Symbol)
				lanes[req.Symbol] = lane
			}

			if err := lane.Push(gctx, req); err != nil {
				d.log.Warn("Failed to queue fetch request",
					zap.String("tick_id", req.TickID),
					zap.String("symbol", req.Symbol),
					zap.Error(err),
				)
			}
		}
	}
}

func (d *Dispatcher) finish(ctx context.Context, lanes map[string]*bus.Queue[types.FetchRequest], g *errgroup.Group) error {
	for _, lane := range lanes {
		lane.Close()
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}

	return err
}

func (d *Dispatcher) startLane(ctx context.Context, g *errgroup.Group, symbol string) *bus.Queue[types.FetchRequest] {
	lane := bus.NewQueue[types.FetchRequest](
		bus.WithCapacity(d.config.LaneCapacity),
		bus.WithPolicy(bus.OverflowDropOldest),
		bus.WithOnDrop(func() {
			d.counters.DroppedRequests.Add(1)
			d.log.Warn("Lane full, dropped oldest fetch request", zap.String("symbol", symbol))
		}),
	)

	g.Go(func() error {
		return supervisor.Guard(ctx, "dispatcher:"+symbol, 1, func(ctx context.Context) error {
			return d.runLane(ctx, lane)
		})
	})

	return lane
}

func (d *Dispatcher) runLane(ctx context.Context, lane *bus.Queue[types.FetchRequest]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-lane.C():
			if !ok {
				return nil
			}

			if stop := d.Handle(ctx, req); stop {
				return nil
			}
		}
	}
}

// Handle fetches one request and publishes its batch. It reports true when
// the lane should stop because the pipeline is shutting down.
func (d *Dispatcher) Handle(ctx context.Context, req types.FetchRequest) bool {
	batch, err := d.fetch(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}

		d.counters.FetchFailures.Add(1)
		d.log.Warn("Failed to fetch quotes, publishing empty batch",
			zap.String("tick_id", req.TickID),
			zap.String("symbol", req.Symbol),
			zap.Int("code", int(errors.GetCode(err))),
			zap.Error(err),
		)

		batch = types.EmptyBatch(req)
	}

	if batch.IsEmpty() {
		d.counters.EmptyBatches.Add(1)
	}

	if err := bus.Publish(ctx, d.bus, BatchTopic, batch); err != nil {
		if errors.HasCode(err, errors.ErrCodeBusClosed) || ctx.Err() != nil {
			return true
		}

		d.log.Warn("Failed to publish quote batch",
			zap.String("tick_id", req.TickID),
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)

		return false
	}

	d.counters.BatchesPublished.Add(1)

	return false
}

// fetch calls the fetcher under the concurrency limit, retrying transient
// failures per the retry policy. Unknown symbols and invalid ranges fail
// immediately.
func (d *Dispatcher) fetch(ctx context.Context, req types.FetchRequest) (types.QuoteBatch, error) {
	var batch types.QuoteBatch

	err := supervisor.Retry(ctx, d.config.Retry, "fetch:"+req.Symbol, func(ctx context.Context, attempt int) error {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return supervisor.Permanent(err)
		}
		defer d.sem.Release(1)

		fetchCtx := ctx
		if d.config.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, d.config.FetchTimeout)
			defer cancel()
		}

		result, err := d.callFetcher(fetchCtx, req)
		if err != nil {
			if !errors.IsRetryable(err) {
				return supervisor.Permanent(err)
			}

			if attempt <= d.config.Retry.MaxRetries {
				d.log.Debug("Retrying fetch",
					zap.String("tick_id", req.TickID),
					zap.String("symbol", req.Symbol),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
			}

			return err
		}

		batch = result

		return nil
	})
	if err != nil {
		return types.QuoteBatch{}, err
	}

	return batch, nil
}

// callFetcher stops waiting for the fetcher once ctx ends, so the caller
// releases its concurrency slot on time. A fetcher that ignores ctx keeps
// running in the background until it returns and its result is discarded.
func (d *Dispatcher) callFetcher(ctx context.Context, req types.FetchRequest) (types.QuoteBatch, error) {
	done := make(chan fetchOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{
					batch: types.QuoteBatch{},
					err:   errors.Newf(errors.ErrCodeStagePanicked, "fetch %s panicked: %v", req.Symbol, r),
				}
			}
		}()

		batch, err := d.fetcher.Fetch(ctx, req)
		done <- fetchOutcome{batch: batch, err: err}
	}()

	select {
	case outcome := <-done:
		return outcome.batch, outcome.err
	case <-ctx.Done():
		return types.QuoteBatch{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, ctx.Err(),
			"fetch %s abandoned", req.Symbol)
	}
}
