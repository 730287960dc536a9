package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bsm/internal/clock"
	"bsm/internal/domain"
	"bsm/internal/engine"
	"bsm/internal/feed"
	"bsm/internal/logging"
	"bsm/internal/metrics"

	"github.com/google/uuid"
)

// RuleSource reads the full rule snapshot for one cycle.
type RuleSource interface {
	ListAll(ctx context.Context) ([]domain.AlertRule, error)
}

// CycleRunner performs one poll-evaluate-notify pass.
// Params: feed, rule source, engine, owned transition state, metrics, and clock.
// Returns: runner whose cycles must be serialized by the caller.
type CycleRunner struct {
	feed    feed.Fetcher
	rules   RuleSource
	engine  *engine.Engine
	state   *engine.TransitionState
	metrics *metrics.Metrics
	clock   clock.Clock
	logger  *slog.Logger
}

// NewCycleRunner creates cycle runner with fresh transition state.
// Params: collaborators; metrics and logger may be nil.
// Returns: cycle runner.
func NewCycleRunner(servers feed.Fetcher, rules RuleSource, eng *engine.Engine, m *metrics.Metrics, clk clock.Clock, logger *slog.Logger) *CycleRunner {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &CycleRunner{
		feed:    servers,
		rules:   rules,
		engine:  eng,
		state:   engine.NewTransitionState(),
		metrics: m,
		clock:   clk,
		logger:  logger,
	}
}

// State exposes transition state for inspection in tests.
func (r *CycleRunner) State() *engine.TransitionState {
	return r.state
}

// RunCycle fetches inputs, evaluates rules, and records the outcome.
// Params: context bounding the whole cycle.
// Returns: evaluation report or ErrFeedUnavailable/ErrStoreUnavailable; no evaluation happens on error.
func (r *CycleRunner) RunCycle(ctx context.Context) (engine.Report, error) {
	cycleID := uuid.NewString()
	logger := r.logger.With("cycle_id", cycleID)
	started := r.clock.Now()

	servers, err := r.feed.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrFeedUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrFeedUnavailable, err)
		}
		r.finish(logger, resultFor(ctx, metrics.CycleFeedUnavailable), started)
		logger.Error("cycle abandoned", "reason", "feed", "error", err.Error())
		return engine.Report{}, err
	}

	rules, err := r.rules.ListAll(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		r.finish(logger, resultFor(ctx, metrics.CycleStoreFailed), started)
		logger.Error("cycle abandoned", "reason", "store", "error", err.Error())
		return engine.Report{}, err
	}

	report := r.engine.Evaluate(ctx, r.state, rules, servers)

	if r.metrics != nil {
		r.metrics.FeedServers.Set(float64(len(servers)))
		r.metrics.Rules.Set(float64(len(rules)))
		r.metrics.TransitionEntries.Set(float64(r.state.Len()))
		r.metrics.UnresolvableSkips.Add(float64(len(report.SkippedRules)))
		r.metrics.RulePanicsTotal.Add(float64(len(report.PanickedRules)))
		for _, event := range report.Delivered {
			r.metrics.ObserveNotification(event.Kind, true)
		}
		for _, failed := range report.Failed {
			r.metrics.ObserveNotification(failed.Event.Kind, false)
		}
	}
	r.finish(logger, resultFor(ctx, metrics.CycleOK), started)

	logger.Info("cycle completed",
		"servers", len(servers),
		"rules", len(rules),
		"evaluated", report.RulesEvaluated,
		"delivered", len(report.Delivered),
		"failed", len(report.Failed),
		"skipped", len(report.SkippedRules),
		"pruned", report.Pruned,
		"transitions", r.state.Len(),
	)
	return report, nil
}

// finish records cycle metrics.
func (r *CycleRunner) finish(logger *slog.Logger, result string, started time.Time) {
	if r.metrics == nil {
		return
	}
	now := r.clock.Now()
	r.metrics.ObserveCycle(result, now.Sub(started), now)
	logger.Debug("cycle recorded", "result", result)
}

// resultFor reports cancellation ahead of the nominal result.
func resultFor(ctx context.Context, result string) string {
	if ctx.Err() != nil {
		return metrics.CycleCanceled
	}
	return result
}
