package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/tickerwatch/internal/bus"
	"github.com/rxtech-lab/tickerwatch/internal/logger"
	"github.com/rxtech-lab/tickerwatch/internal/status"
	"github.com/rxtech-lab/tickerwatch/internal/types"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
	"go.uber.org/zap"
)

// DefaultTickPeriod is the time between two scheduler ticks.
const DefaultTickPeriod = 10 * time.Second

// SchedulerState is the scheduler's lifecycle state.
type SchedulerState int32

const (
	StateIdle SchedulerState = iota
	StateRunning
	StateStopped
)

func (s SchedulerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SchedulerConfig describes what every tick requests.
type SchedulerConfig struct {
	Symbols  []string
	From     time.Time
	Interval types.Interval
	Period   time.Duration
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces time.Now as the source of each tick's end time.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.now = now
	}
}

// WithTickIDs replaces the tick id generator.
func WithTickIDs(newID func() string) SchedulerOption {
	return func(s *Scheduler) {
		s.newID = newID
	}
}

// Scheduler publishes one fetch request per symbol per tick. It ticks once
// immediately and then every period. The range start stays fixed at From;
// only the end advances.
type Scheduler struct {
	config   SchedulerConfig
	bus      *bus.Bus
	now      func() time.Time
	newID    func() string
	state    atomic.Int32
	counters *status.Counters
	log      *logger.Logger
}

// NewScheduler creates an idle scheduler.
func NewScheduler(config SchedulerConfig, b *bus.Bus, counters *status.Counters, log *logger.Logger, opts ...SchedulerOption) *Scheduler {
	if config.Period <= 0 {
		config.Period = DefaultTickPeriod
	}

	s := &Scheduler{
		config:   config,
		bus:      b,
		now:      time.Now,
		newID:    uuid.NewString,
		counters: counters,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// State returns the current lifecycle state.
func (s *Scheduler) State() SchedulerState {
	return SchedulerState(s.state.Load())
}

// Run ticks until ctx is cancelled (returning nil) or the bus is closed
// (returning a bus-closed error). A scheduler runs at most once.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return errors.Newf(errors.ErrCodeStageFailed, "scheduler cannot start from state %s", s.State())
	}
	defer s.state.Store(int32(StateStopped))

	s.log.Info("Scheduler started",
		zap.Strings("symbols", s.config.Symbols),
		zap.Time("from", s.config.From),
		zap.String("interval", string(s.config.Interval)),
		zap.Duration("period", s.config.Period),
	)

	ticker := time.NewTicker(s.config.Period)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil {
			s.log.Error("Scheduler stopped", zap.Error(err))

			return err
		}

		select {
		case <-ctx.Done():
			s.log.Info("Scheduler stopped", zap.Error(ctx.Err()))

			return nil
		case <-ticker.C:
		}
	}
}

// Tick publishes one request per symbol. A failed publish is logged and
// counted and the remaining symbols are still published; only a closed bus
// aborts the tick.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()
	tickID := s.newID()
	s.counters.Ticks.Add(1)

	for _, symbol := range s.config.Symbols {
		req := types.FetchRequest{
			TickID: tickID,
			Symbol: symbol,
			Range: types.TimeRange{
				From:     s.config.From,
				To:       now,
				Interval: s.config.Interval,
			},
			IssuedAt: now,
		}

		if err := bus.Publish(ctx, s.bus, RequestTopic, req); err != nil {
			if errors.HasCode(err, errors.ErrCodeBusClosed) {
				return err
			}

			if ctx.Err() != nil {
				return nil
			}

			s.counters.PublishFailures.Add(1)
			s.log.Warn("Failed to publish fetch request",
				zap.String("tick_id", tickID),
				zap.String("symbol", symbol),
				zap.Error(err),
			)

			continue
		}

		s.counters.RequestsPublished.Add(1)
	}

	s.log.Debug("Tick published", zap.String("tick_id", tickID), zap.Time("to", now))

	return nil
}
