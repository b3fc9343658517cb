package alerting

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/windwatch/windwatch-go/internal/conf"
	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/errors"
	"github.com/windwatch/windwatch-go/internal/metricsource"
	"github.com/windwatch/windwatch-go/internal/observability"
)

// Evaluator runs the scheduled evaluation loop: every tick it expands
// each enabled rule's scope into concrete windfarms, checks the metric
// window for each, and feeds the verdicts to the trigger lifecycle.
//
// Sustained-window semantics: with sustained_minutes > 0 the condition
// must hold for every sample in the trailing window (equivalent to
// comparing the window max for "below" and the window min for "above");
// a single in-range sample resets the episode. With sustained_minutes = 0
// only the latest sample is checked.
type Evaluator struct {
	ds        datastore.Interface
	source    metricsource.Source
	lifecycle *Lifecycle
	metrics   *observability.Metrics
	settings  *conf.Settings
	logger    *slog.Logger
}

// target is one (rule, windfarm) evaluation unit.
type target struct {
	rule       *datastore.AlertRule
	windfarmID uint
}

// NewEvaluator creates the rule evaluator.
func NewEvaluator(ds datastore.Interface, source metricsource.Source, lifecycle *Lifecycle, metrics *observability.Metrics, settings *conf.Settings) *Evaluator {
	return &Evaluator{
		ds:        ds,
		source:    source,
		lifecycle: lifecycle,
		metrics:   metrics,
		settings:  settings,
		logger:    getLoggerSafe("rule-evaluator"),
	}
}

// Start runs the evaluation loop until ctx is canceled.
func (e *Evaluator) Start(ctx context.Context) {
	interval := e.settings.Alerting.EvaluationInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("rule evaluator started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("rule evaluator stopped")
			return
		case <-ticker.C:
			e.Tick(ctx, time.Now())
		}
	}
}

// Tick evaluates all enabled rules once. Failures of individual rules or
// windfarms are isolated and logged; the tick always completes for the
// rest.
func (e *Evaluator) Tick(ctx context.Context, now time.Time) {
	started := time.Now()
	if e.metrics != nil {
		e.metrics.TicksTotal.Inc()
		defer func() {
			e.metrics.TickDuration.Observe(time.Since(started).Seconds())
		}()
	}

	rules, err := e.ds.ListEnabledRules()
	if err != nil {
		e.logger.Error("failed to list enabled rules, skipping tick", "error", err)
		return
	}

	targets := e.expandScopes(rules)
	if len(targets) == 0 {
		return
	}

	// Evaluations are independent across rules and windfarms; the pool
	// bound keeps the metric source from being overwhelmed.
	group := &errgroup.Group{}
	group.SetLimit(e.settings.Alerting.WorkerPoolSize)
	for _, tgt := range targets {
		group.Go(func() error {
			e.evaluateTarget(ctx, tgt, now)
			return nil
		})
	}
	_ = group.Wait()
}

// expandScopes resolves every rule's scope to its member windfarms.
// Scope resolution uses current membership; changes take effect on the
// next tick.
func (e *Evaluator) expandScopes(rules []datastore.AlertRule) []target {
	var targets []target
	for i := range rules {
		rule := &rules[i]
		ids, err := e.resolveScope(rule)
		if err != nil {
			e.logger.Error("scope resolution failed", "rule_id", rule.ID, "error", err)
			if e.metrics != nil {
				e.metrics.EvaluationErrors.WithLabelValues("scope").Inc()
			}
			continue
		}
		for _, id := range ids {
			targets = append(targets, target{rule: rule, windfarmID: id})
		}
	}
	return targets
}

func (e *Evaluator) resolveScope(rule *datastore.AlertRule) ([]uint, error) {
	switch rule.Scope {
	case datastore.ScopeSpecificWindfarm:
		if rule.WindfarmID == nil {
			return nil, errors.Newf("rule has specific_windfarm scope but no windfarm_id").
				Component("alerting").
				Category(errors.CategoryState).
				Context("rule_id", rule.ID).
				Build()
		}
		return []uint{*rule.WindfarmID}, nil
	case datastore.ScopePortfolio:
		if rule.PortfolioID == nil {
			return nil, errors.Newf("rule has portfolio scope but no portfolio_id").
				Component("alerting").
				Category(errors.CategoryState).
				Context("rule_id", rule.ID).
				Build()
		}
		return e.ds.GetPortfolioWindfarmIDs(*rule.PortfolioID)
	case datastore.ScopeAllWindfarms:
		return e.ds.GetActiveWindfarmIDs()
	}
	return nil, errors.Newf("unknown scope: %s", rule.Scope).
		Component("alerting").
		Category(errors.CategoryState).
		Context("rule_id", rule.ID).
		Build()
}

// evaluateTarget checks one (rule, windfarm) pair and applies the verdict.
// Metric data gaps are non-fatal: no breach, no transition, retried next
// tick. In particular a data gap never resolves an existing open trigger.
func (e *Evaluator) evaluateTarget(ctx context.Context, tgt target, now time.Time) {
	if e.metrics != nil {
		e.metrics.RulesEvaluated.Inc()
	}

	window := time.Duration(tgt.rule.SustainedMinutes) * time.Minute
	if window <= 0 {
		window = e.settings.Alerting.EvaluationInterval
	}

	samples, err := e.source.Window(ctx, tgt.rule.Metric, tgt.windfarmID, now.Add(-window), now)
	if err != nil {
		if errors.Is(err, metricsource.ErrNoData) {
			e.logger.Debug("no metric data, no transition",
				"rule_id", tgt.rule.ID, "windfarm_id", tgt.windfarmID, "metric", string(tgt.rule.Metric))
		} else {
			e.logger.Warn("metric fetch failed, no transition",
				"rule_id", tgt.rule.ID, "windfarm_id", tgt.windfarmID, "error", err)
		}
		if e.metrics != nil {
			e.metrics.EvaluationErrors.WithLabelValues("metric_fetch").Inc()
		}
		return
	}

	breaching, value := e.verdict(tgt.rule, samples)
	if err := e.lifecycle.Apply(ctx, tgt.rule, tgt.windfarmID, breaching, value, now); err != nil {
		e.logger.Error("trigger transition failed",
			"rule_id", tgt.rule.ID, "windfarm_id", tgt.windfarmID, "error", err)
		if e.metrics != nil {
			e.metrics.EvaluationErrors.WithLabelValues("transition").Inc()
		}
	}
}

// verdict decides whether the rule is breaching for the given window and
// reports the value to snapshot on a trigger (the latest sample).
func (e *Evaluator) verdict(rule *datastore.AlertRule, samples []metricsource.Sample) (breaching bool, value float64) {
	value = samples[len(samples)-1].Value

	if rule.SustainedMinutes <= 0 {
		return breaches(rule, value), value
	}

	for i := range samples {
		if !breaches(rule, samples[i].Value) {
			return false, value
		}
	}
	return true, value
}

// breaches applies the rule condition to a single value. Inequalities are
// strict: a value exactly on a threshold never breaches.
func breaches(rule *datastore.AlertRule, value float64) bool {
	switch rule.Condition {
	case datastore.ConditionBelow:
		return value < rule.ThresholdValue
	case datastore.ConditionAbove:
		return value > rule.ThresholdValue
	case datastore.ConditionOutsideRange:
		if rule.ThresholdValueUpper == nil {
			return false
		}
		return value < rule.ThresholdValue || value > *rule.ThresholdValueUpper
	}
	return false
}
