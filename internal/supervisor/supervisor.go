// Package supervisor keeps pipeline stages alive. It recovers panics, turns
// every fault into a typed StageError, and restarts a fresh stage instance
// after an exponential backoff delay.
package supervisor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rxtech-lab/tickerwatch/internal/logger"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
	"go.uber.org/zap"
)

// Stage is a long-running pipeline component. Run returns nil when its input
// is exhausted or ctx is cancelled, and an error on a fault.
type Stage interface {
	Run(ctx context.Context) error
}

// StageFunc adapts a function to Stage.
type StageFunc func(ctx context.Context) error

// Run calls f(ctx).
func (f StageFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// StageError describes one failed stage run or attempt.
type StageError struct {
	Stage   string
	Attempt int
	// Panic holds the recovered value when the stage panicked.
	Panic any
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s attempt %d: %v", e.Stage, e.Attempt, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Panicked reports whether the failure was a recovered panic.
func (e *StageError) Panicked() bool {
	return e.Panic != nil
}

// Policy configures exponential backoff between attempts.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// MaxRetries bounds the extra attempts made by Retry. Zero means a single attempt.
	MaxRetries int
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2,
		MaxRetries:      0,
	}
}

// NewBackOff builds an unbounded exponential backoff from the policy.
func (p Policy) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}

	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	if p.Multiplier >= 1 {
		b.Multiplier = p.Multiplier
	}

	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// Permanent marks err so that Retry gives up immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Guard runs fn once, converting a panic into a StageError.
func Guard(ctx context.Context, stage string, attempt int, fn func(ctx context.Context) error) error {
	if err := guard(ctx, stage, attempt, fn); err != nil {
		return err
	}

	return nil
}

func guard(ctx context.Context, stage string, attempt int, fn func(ctx context.Context) error) (stageErr *StageError) {
	defer func() {
		if r := recover(); r != nil {
			stageErr = &StageError{
				Stage:   stage,
				Attempt: attempt,
				Panic:   r,
				Err:     errors.Newf(errors.ErrCodeStagePanicked, "panic: %v", r),
			}
		}
	}()

	if err := fn(ctx); err != nil {
		return &StageError{
			Stage:   stage,
			Attempt: attempt,
			Panic:   nil,
			Err:     err,
		}
	}

	return nil
}

// Retry calls fn until it succeeds, returns a Permanent error, or the policy's
// retries are used up. fn receives the 1-based attempt number. The final
// failure is returned as a *StageError; a cancelled ctx returns ctx.Err().
func Retry(ctx context.Context, policy Policy, stage string, fn func(ctx context.Context, attempt int) error) error {
	attempt := 0
	op := func() error {
		attempt++

		current := attempt
		stageErr := guard(ctx, stage, current, func(ctx context.Context) error {
			return fn(ctx, current)
		})
		if stageErr == nil {
			return nil
		}

		var permanent *backoff.PermanentError
		if errors.As(stageErr.Err, &permanent) {
			stageErr.Err = permanent.Err

			return backoff.Permanent(stageErr)
		}

		return stageErr
	}

	maxRetries := policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy.NewBackOff(), uint64(maxRetries)), ctx)

	return backoff.Retry(op, b)
}

// Supervisor restarts faulted stages.
type Supervisor struct {
	log         *logger.Logger
	policy      Policy
	maxRestarts int
	restarts    atomic.Uint64
	onRestart   func(stage string, err *StageError)
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithMaxRestarts caps restarts per supervised stage. Zero means unlimited.
func WithMaxRestarts(n int) Option {
	return func(s *Supervisor) {
		if n >= 0 {
			s.maxRestarts = n
		}
	}
}

// WithOnRestart registers a hook called before each restart delay.
func WithOnRestart(fn func(stage string, err *StageError)) Option {
	return func(s *Supervisor) {
		s.onRestart = fn
	}
}

// New creates a Supervisor.
func New(log *logger.Logger, policy Policy, opts ...Option) *Supervisor {
	s := &Supervisor{
		log:         log,
		policy:      policy,
		maxRestarts: 0,
		onRestart:   nil,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Restarts returns the total number of restarts across all stages.
func (s *Supervisor) Restarts() uint64 {
	return s.restarts.Load()
}

// Supervise runs factory() and restarts a new instance after every fault
// until ctx is cancelled or a stage instance returns nil. When the restart
// cap is exceeded the last StageError is returned.
func (s *Supervisor) Supervise(ctx context.Context, stage string, factory func() Stage) error {
	b := s.policy.NewBackOff()
	restarts := 0

	for {
		startedAt := time.Now()

		stageErr := guard(ctx, stage, restarts+1, func(ctx context.Context) error {
			return factory().Run(ctx)
		})
		if stageErr == nil || ctx.Err() != nil {
			return nil
		}

		// a long healthy run starts the backoff sequence over
		if time.Since(startedAt) > b.MaxInterval {
			b.Reset()
		}

		fields := []zap.Field{
			zap.String("stage", stage),
			zap.Int("attempt", stageErr.Attempt),
			zap.Int("code", int(errors.GetCode(stageErr))),
			zap.Error(stageErr.Err),
		}
		if stageErr.Panicked() {
			fields = append(fields, zap.Any("panic", stageErr.Panic))
		}

		if s.maxRestarts > 0 && restarts >= s.maxRestarts {
			s.log.Error("Stage exceeded restart limit", append(fields, zap.Int("max_restarts", s.maxRestarts))...)

			return stageErr
		}

		restarts++
		s.restarts.Add(1)

		delay := b.NextBackOff()
		s.log.Warn("Stage failed, restarting", append(fields, zap.Duration("delay", delay))...)

		if s.onRestart != nil {
			s.onRestart(stage, stageErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()

			return nil
		case <-timer.C:
		}
	}
}
