package alerting

import (
	"context"
	"log/slog"
	"time"

	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/errors"
	"github.com/windwatch/windwatch-go/internal/observability"
)

// Lifecycle converts breach/non-breach observations into trigger state
// transitions. Opening is a check-and-set in the store, so re-running a
// tick, or two ticks racing, cannot double-open a trigger; the losing
// writer sees "already open" and treats it as success.
type Lifecycle struct {
	ds         datastore.Interface
	dispatcher *Dispatcher
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewLifecycle creates a trigger lifecycle manager.
func NewLifecycle(ds datastore.Interface, dispatcher *Dispatcher, metrics *observability.Metrics) *Lifecycle {
	return &Lifecycle{
		ds:         ds,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     getLoggerSafe("trigger-lifecycle"),
	}
}

// Apply records one evaluation observation for a (rule, windfarm) pair.
//
//   - breaching with no open trigger: opens a new trigger and hands it to
//     the dispatcher exactly once.
//   - breaching with an open trigger: no-op.
//   - not breaching with an open trigger: auto-resolves it. Acknowledged
//     triggers resolve the same way; a trigger never becomes acknowledged
//     automatically.
//   - not breaching with no open trigger: no-op.
func (l *Lifecycle) Apply(ctx context.Context, rule *datastore.AlertRule, windfarmID uint, breaching bool, value float64, now time.Time) error {
	if breaching {
		trigger := &datastore.AlertTrigger{
			RuleID:         rule.ID,
			WindfarmID:     windfarmID,
			TriggeredValue: value,
			ThresholdValue: rule.ThresholdValue,
			TriggeredAt:    now,
		}
		err := l.ds.OpenTrigger(trigger)
		if errors.Is(err, datastore.ErrTriggerAlreadyOpen) {
			return nil
		}
		if err != nil {
			return err
		}

		l.logger.Info("trigger opened",
			"rule_id", rule.ID, "windfarm_id", windfarmID,
			"value", value, "threshold", rule.ThresholdValue,
			"severity", string(rule.Severity))
		if l.metrics != nil {
			l.metrics.TriggersOpened.Inc()
		}
		l.dispatcher.DispatchTrigger(ctx, rule, trigger)
		return nil
	}

	_, err := l.ds.ResolveOpenTrigger(rule.ID, windfarmID, now)
	if errors.Is(err, datastore.ErrTriggerNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	l.logger.Info("trigger auto-resolved", "rule_id", rule.ID, "windfarm_id", windfarmID)
	if l.metrics != nil {
		l.metrics.TriggersResolved.Inc()
	}
	return nil
}
