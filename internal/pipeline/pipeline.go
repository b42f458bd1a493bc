package pipeline

import (
	"context"
	"time"

	"github.com/rxtech-lab/tickerwatch/internal/bus"
	"github.com/rxtech-lab/tickerwatch/internal/logger"
	"github.com/rxtech-lab/tickerwatch/internal/stats"
	"github.com/rxtech-lab/tickerwatch/internal/status"
	"github.com/rxtech-lab/tickerwatch/internal/supervisor"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config is everything needed to assemble a pipeline.
type Config struct {
	Symbols    []string
	From       time.Time
	Interval   types.Interval
	TickPeriod time.Duration

	// QueueSize bounds each stage's subscription.
	QueueSize      int
	OverflowPolicy bus.OverflowPolicy

	Dispatcher DispatcherConfig
	Window     int

	// Restart is the backoff between stage restarts.
	Restart     supervisor.Policy
	MaxRestarts int
}

// Pipeline owns the bus and the three stages. Subscriptions are created in
// New, before the scheduler can publish, so no request is missed.
type Pipeline struct {
	config     Config
	bus        *bus.Bus
	requests   *bus.Subscription[types.FetchRequest]
	batches    *bus.Subscription[types.QuoteBatch]
	scheduler  *Scheduler
	supervisor *supervisor.Supervisor
	fetcher    Fetcher
	sink       ReportSink
	counters   *status.Counters
	log        *logger.Logger
}

// New builds the bus, subscribes the dispatcher and processor, and prepares
// an idle scheduler.
func New(config Config, fetcher Fetcher, sink ReportSink, counters *status.Counters, log *logger.Logger, opts ...SchedulerOption) (*Pipeline, error) {
	if len(config.Symbols) == 0 {
		return nil, errors.New(errors.ErrCodeMissingParameter, "at least one symbol is required")
	}

	if !config.Interval.IsValid() {
		return nil, errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval %q", config.Interval)
	}

	if config.Window < 2 {
		config.Window = stats.TrailingWindow
	}

	if counters == nil {
		counters = status.NewCounters()
	}

	b := bus.New()
	queueOpts := []bus.QueueOption{bus.WithCapacity(config.QueueSize), bus.WithPolicy(config.OverflowPolicy)}

	requests, err := bus.Subscribe(b, RequestTopic, queueOpts...)
	if err != nil {
		return nil, err
	}

	batches, err := bus.Subscribe(b, BatchTopic, queueOpts...)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		config:     config,
		bus:        b,
		requests:   requests,
		batches:    batches,
		scheduler:  nil,
		supervisor: nil,
		fetcher:    fetcher,
		sink:       sink,
		counters:   counters,
		log:        log,
	}

	p.scheduler = NewScheduler(SchedulerConfig{
		Symbols:  config.Symbols,
		From:     config.From,
		Interval: config.Interval,
		Period:   config.TickPeriod,
	}, b, counters, log.Named("scheduler"), opts...)

	p.supervisor = supervisor.New(log.Named("supervisor"), config.Restart,
		supervisor.WithMaxRestarts(config.MaxRestarts),
		supervisor.WithOnRestart(func(string, *supervisor.StageError) {
			counters.StageRestarts.Add(1)
		}),
	)

	return p, nil
}

// Bus returns the pipeline's event bus.
func (p *Pipeline) Bus() *bus.Bus {
	return p.bus
}

// Counters returns the pipeline's counters.
func (p *Pipeline) Counters() *status.Counters {
	return p.counters
}

// State returns the scheduler state as a string.
func (p *Pipeline) State() string {
	return p.scheduler.State().String()
}

// Run starts the supervised dispatcher and processor and then the scheduler.
// It returns nil after ctx is cancelled, or the first fatal error. The bus is
// closed on return.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.bus.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.supervisor.Supervise(gctx, "dispatcher", func() supervisor.Stage {
			return NewDispatcher(p.fetcher, p.bus, p.requests, p.config.Dispatcher, p.counters, p.log.Named("dispatcher"))
		})
	})

	g.Go(func() error {
		return p.supervisor.Supervise(gctx, "processor", func() supervisor.Stage {
			return NewProcessor(p.batches, p.sink, p.config.Window, p.counters, p.log.Named("processor"))
		})
	})

	g.Go(func() error {
		return p.scheduler.Run(gctx)
	})

	err := g.Wait()
	if err != nil {
		p.log.Error("Pipeline stopped with error", zap.Error(err))

		return err
	}

	p.log.Info("Pipeline stopped")

	return nil
}
