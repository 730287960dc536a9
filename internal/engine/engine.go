package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"bsm/internal/domain"
)

// Notifier resolves destinations and delivers crossing events.
// Params: channel references and events produced by the engine.
// Returns: nil only for confirmed delivery.
type Notifier interface {
	ResolveChannel(ctx context.Context, channel string) error
	Deliver(ctx context.Context, event domain.Event) error
}

// FailedDelivery pairs event with its final delivery error.
type FailedDelivery struct {
	Event domain.Event
	Err   error
}

// Report summarizes one evaluation pass.
// Params: delivered events in emission order plus skip/failure details.
// Returns: data for cycle logging and metrics.
type Report struct {
	RulesEvaluated int
	Delivered      []domain.Event
	Failed         []FailedDelivery
	SkippedRules   []int64
	PanickedRules  []int64
	Pruned         int
}

// Engine joins rules with live servers and emits threshold crossings.
// Params: notifier used for channel checks and synchronous delivery.
// Returns: evaluator that commits transitions only after confirmed delivery.
type Engine struct {
	notifier Notifier
	logger   *slog.Logger
}

// channelGate caches per-cycle channel resolution of one rule.
type channelGate struct {
	checked bool
	blocked bool
}

// New constructs evaluation engine.
// Params: notifier and optional logger.
// Returns: engine instance.
func New(notifier Notifier, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{notifier: notifier, logger: logger}
}

// Evaluate runs one pass over rules x servers and updates state.
// Params: context, transition state owned by caller, rule snapshot, and feed snapshot.
// Returns: report with delivered events ordered rules-outer, servers-inner, name before map.
func (e *Engine) Evaluate(ctx context.Context, state *TransitionState, rules []domain.AlertRule, servers []domain.ServerRecord) Report {
	ordered := make([]domain.AlertRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	active := make(map[int64]struct{}, len(ordered))
	for _, rule := range ordered {
		active[rule.ID] = struct{}{}
	}

	var report Report
	for _, rule := range ordered {
		if ctx.Err() != nil {
			break
		}
		e.evaluateRuleIsolated(ctx, state, rule, servers, &report)
	}
	report.Pruned = state.PruneRules(active)
	return report
}

// evaluateRuleIsolated evaluates one rule and contains its panics.
// Params: context, state, rule, servers, and report accumulator.
// Returns: none; panics are logged and recorded.
func (e *Engine) evaluateRuleIsolated(ctx context.Context, state *TransitionState, rule domain.AlertRule, servers []domain.ServerRecord, report *Report) {
	defer func() {
		if recovered := recover(); recovered != nil {
			report.PanickedRules = append(report.PanickedRules, rule.ID)
			e.logger.Error("rule evaluation panicked", "rule_id", rule.ID, "panic", fmt.Sprint(recovered))
		}
	}()
	e.evaluateRule(ctx, state, rule, servers, report)
}

// evaluateRule walks servers for one rule.
// Params: context, state, rule, servers, and report accumulator.
// Returns: none.
func (e *Engine) evaluateRule(ctx context.Context, state *TransitionState, rule domain.AlertRule, servers []domain.ServerRecord, report *Report) {
	threshold, ok := rule.Threshold()
	if !ok {
		return
	}
	report.RulesEvaluated++

	var gate channelGate
	for _, server := range servers {
		if rule.MatchesName(server.Name) {
			if !e.step(ctx, state, rule, threshold, domain.MatchKindName, server.Name, server, &gate, report) {
				return
			}
		}
		if rule.MatchesMap(server.Map) {
			if !e.step(ctx, state, rule, threshold, domain.MatchKindMap, server.Map, server, &gate, report) {
				return
			}
		}
	}
}

// step applies crossing logic to one (rule, kind, key) track.
// Params: evaluation inputs, per-rule channel gate, and report accumulator.
// Returns: false when the rest of the rule must be skipped this cycle.
func (e *Engine) step(
	ctx context.Context,
	state *TransitionState,
	rule domain.AlertRule,
	threshold int,
	kind domain.MatchKind,
	key string,
	server domain.ServerRecord,
	gate *channelGate,
	report *Report,
) bool {
	above := state.Get(rule.ID, kind, key)

	var crossing domain.EventKind
	switch {
	case server.Players >= threshold && !above:
		crossing = domain.EventKindEntered
	case server.Players < threshold && rule.BelowWarningEnabled && above:
		crossing = domain.EventKindExited
	default:
		return true
	}

	if !gate.checked {
		gate.checked = true
		if err := e.notifier.ResolveChannel(ctx, rule.TargetChannel); err != nil {
			gate.blocked = true
			report.SkippedRules = append(report.SkippedRules, rule.ID)
			e.logger.Debug("rule skipped: channel unresolvable", "rule_id", rule.ID, "channel", rule.TargetChannel, "error", err.Error())
		}
	}
	if gate.blocked {
		return false
	}

	event := BuildEvent(rule, kind, crossing, server)
	if err := e.notifier.Deliver(ctx, event); err != nil {
		report.Failed = append(report.Failed, FailedDelivery{Event: event, Err: err})
		e.logger.Warn("notification delivery failed",
			"rule_id", rule.ID,
			"kind", string(crossing),
			"match", string(kind),
			"key", key,
			"error", err.Error(),
		)
		if errors.Is(err, domain.ErrChannelUnresolvable) {
			gate.blocked = true
			return false
		}
		return ctx.Err() == nil
	}

	state.Set(rule.ID, kind, key, crossing == domain.EventKindEntered)
	report.Delivered = append(report.Delivered, event)
	return true
}
