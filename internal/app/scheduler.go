package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bsm/internal/logging"
)

// CycleFunc runs one cycle.
type CycleFunc func(ctx context.Context) error

// Scheduler drives cycles on a fixed interval from a single goroutine.
// Params: cycle function, interval, and logger.
// Returns: scheduler that never overlaps cycles and survives failures.
type Scheduler struct {
	cycle    CycleFunc
	interval time.Duration
	logger   *slog.Logger
	resets   chan time.Duration
}

// NewScheduler creates scheduler.
// Params: cycle function, positive interval, and optional logger.
// Returns: scheduler ready for Run.
func NewScheduler(cycle CycleFunc, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{
		cycle:    cycle,
		interval: interval,
		logger:   logger,
		resets:   make(chan time.Duration, 1),
	}
}

// SetInterval changes tick interval of a running scheduler.
// Params: new positive interval; non-positive values are ignored.
// Returns: none; latest value wins when called repeatedly.
func (s *Scheduler) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	for {
		select {
		case s.resets <- interval:
			return
		default:
		}
		select {
		case <-s.resets:
		default:
		}
	}
}

// Run waits for ready, runs first cycle immediately, then one per tick.
// Params: context stopping the loop and ready signal from chat platform.
// Returns: nil on context cancellation.
func (s *Scheduler) Run(ctx context.Context, ready <-chan struct{}) error {
	if ready != nil {
		select {
		case <-ctx.Done():
			return nil
		case <-ready:
		}
	}
	s.logger.Info("scheduler started", "interval", s.interval.String())
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case interval := <-s.resets:
			s.interval = interval
			ticker.Reset(interval)
			s.logger.Info("scheduler interval changed", "interval", interval.String())
		case <-ticker.C:
			s.runOnce(ctx)
			// Ticks that fired while the cycle was running are dropped.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// runOnce executes one cycle and contains its errors and panics.
func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("cycle panicked", "panic", fmt.Sprint(recovered))
		}
	}()
	if err := s.cycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("cycle failed", "error", err.Error())
	}
}
