package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/windwatch/windwatch-go/internal/conf"
	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/notification"
	"github.com/windwatch/windwatch-go/internal/observability"
)

// Dispatcher turns a newly opened trigger into notifications across the
// rule's channels, honoring the user's delivery preferences. Channel
// outcomes are independent: one channel failing never blocks another.
type Dispatcher struct {
	ds      datastore.Interface
	email   notification.Sender
	metrics *observability.Metrics
	logger  *slog.Logger

	attempts int
	backoff  time.Duration

	wg  sync.WaitGroup
	now func() time.Time
}

// NewDispatcher creates a dispatcher. email may be nil when SMTP is
// disabled; immediate email deliveries are then abandoned (and logged)
// while the in-app rows are still written.
func NewDispatcher(ds datastore.Interface, email notification.Sender, metrics *observability.Metrics, settings *conf.Settings) *Dispatcher {
	attempts := settings.Alerting.DeliveryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := settings.Alerting.DeliveryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	return &Dispatcher{
		ds:       ds,
		email:    email,
		metrics:  metrics,
		logger:   getLoggerSafe("alert-dispatcher"),
		attempts: attempts,
		backoff:  backoff,
		now:      time.Now,
	}
}

// DispatchTrigger fans a new active trigger out to the rule's channels.
// Called exactly once per opened trigger, from the lifecycle manager.
func (d *Dispatcher) DispatchTrigger(ctx context.Context, rule *datastore.AlertRule, trigger *datastore.AlertTrigger) {
	pref, err := d.ds.GetPreference(rule.UserID)
	if err != nil {
		d.logger.Error("failed to load preferences, skipping dispatch",
			"user_id", rule.UserID, "trigger_id", trigger.ID, "error", err)
		return
	}

	title, message := d.composeMessage(rule, trigger)
	now := d.now()

	for _, channel := range rule.Channels() {
		decision := ShouldDeliverNow(pref, rule.Severity, channel, now)
		d.logger.Debug("dispatch decision",
			"trigger_id", trigger.ID, "channel", string(channel), "decision", decision.String())

		if decision == DecisionSuppress {
			continue
		}

		n := &datastore.Notification{
			UserID:    rule.UserID,
			TriggerID: &trigger.ID,
			Title:     title,
			Message:   message,
			Severity:  rule.Severity,
			Channel:   channel,
			Status:    datastore.NotificationUnread,
		}
		if decision == DecisionDigest {
			n.Channel = datastore.ChannelEmailDigest
		}

		if err := d.ds.CreateNotification(n); err != nil {
			d.logger.Error("failed to create notification",
				"trigger_id", trigger.ID, "channel", string(channel), "error", err)
			continue
		}
		if d.metrics != nil {
			d.metrics.NotificationsCreated.WithLabelValues(string(n.Channel)).Inc()
		}

		// Immediate email goes out asynchronously with bounded retries
		// so a slow SMTP server cannot stall the evaluation loop.
		if decision == DecisionDeliver && channel == datastore.ChannelEmail {
			d.wg.Add(1)
			go func(n *datastore.Notification) {
				defer d.wg.Done()
				d.sendWithRetry(ctx, n)
			}(n)
		}
	}
}

// sendWithRetry attempts an email delivery with bounded exponential
// backoff. After exhaustion the attempt is abandoned and logged; the
// notification row stays unread in the store.
func (d *Dispatcher) sendWithRetry(ctx context.Context, n *datastore.Notification) {
	if d.email == nil {
		d.logger.Warn("email channel configured on rule but SMTP is disabled",
			"notification_id", n.ID)
		if d.metrics != nil {
			d.metrics.DeliveryFailures.WithLabelValues(string(n.Channel)).Inc()
		}
		return
	}

	backoff := d.backoff
	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		lastErr = d.email.Send(ctx, n)
		if lastErr == nil {
			d.logger.Debug("email delivered", "notification_id", n.ID, "attempt", attempt)
			return
		}
		if attempt == d.attempts {
			break
		}
		select {
		case <-ctx.Done():
			d.logger.Warn("email delivery canceled", "notification_id", n.ID)
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	d.logger.Error("email delivery abandoned after retries",
		"notification_id", n.ID, "attempts", d.attempts, "error", lastErr)
	if d.metrics != nil {
		d.metrics.DeliveryFailures.WithLabelValues(string(n.Channel)).Inc()
	}
}

// Wait blocks until all in-flight deliveries have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// composeMessage builds the notification title and message for a trigger.
func (d *Dispatcher) composeMessage(rule *datastore.AlertRule, trigger *datastore.AlertTrigger) (title, message string) {
	farmName := fmt.Sprintf("windfarm %d", trigger.WindfarmID)
	if farm, err := d.ds.GetWindfarm(trigger.WindfarmID); err == nil {
		farmName = farm.Name
	}

	title = fmt.Sprintf("%s: %s", rule.Name, farmName)
	switch rule.Condition {
	case datastore.ConditionBelow:
		message = fmt.Sprintf("%s at %s is %.2f, below threshold %.2f",
			rule.Metric, farmName, trigger.TriggeredValue, trigger.ThresholdValue)
	case datastore.ConditionAbove:
		message = fmt.Sprintf("%s at %s is %.2f, above threshold %.2f",
			rule.Metric, farmName, trigger.TriggeredValue, trigger.ThresholdValue)
	case datastore.ConditionOutsideRange:
		upper := trigger.ThresholdValue
		if rule.ThresholdValueUpper != nil {
			upper = *rule.ThresholdValueUpper
		}
		message = fmt.Sprintf("%s at %s is %.2f, outside range %.2f-%.2f",
			rule.Metric, farmName, trigger.TriggeredValue, trigger.ThresholdValue, upper)
	}
	return title, message
}
