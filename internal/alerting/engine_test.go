package alerting

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windwatch/windwatch-go/internal/conf"
	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/metricsource"
	"github.com/windwatch/windwatch-go/internal/observability"
)

// fakeSource serves canned samples per (metric, windfarm).
type fakeSource struct {
	mu      sync.Mutex
	samples map[string][]metricsource.Sample
	err     error
}

func sourceKey(metric datastore.Metric, windfarmID uint) string {
	return fmt.Sprintf("%s/%d", metric, windfarmID)
}

func (f *fakeSource) set(metric datastore.Metric, windfarmID uint, values ...float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.samples == nil {
		f.samples = make(map[string][]metricsource.Sample)
	}
	samples := make([]metricsource.Sample, 0, len(values))
	base := time.Now().Add(-time.Duration(len(values)) * time.Minute)
	for i, v := range values {
		samples = append(samples, metricsource.Sample{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Value:     v,
		})
	}
	f.samples[sourceKey(metric, windfarmID)] = samples
}

func (f *fakeSource) Window(_ context.Context, metric datastore.Metric, windfarmID uint, _, _ time.Time) ([]metricsource.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	samples, ok := f.samples[sourceKey(metric, windfarmID)]
	if !ok || len(samples) == 0 {
		return nil, metricsource.ErrNoData
	}
	return samples, nil
}

// fakeEmail records sends and can be told to fail.
type fakeEmail struct {
	mu       sync.Mutex
	sent     []datastore.Notification
	failures int
}

func (f *fakeEmail) Name() string { return "fake-email" }

func (f *fakeEmail) Send(_ context.Context, n *datastore.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return fmt.Errorf("smtp unavailable")
	}
	f.sent = append(f.sent, *n)
	return nil
}

func (f *fakeEmail) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type engineFixture struct {
	ds        datastore.Interface
	source    *fakeSource
	email     *fakeEmail
	evaluator *Evaluator
	disp      *Dispatcher
	digest    *DigestScheduler
	settings  *conf.Settings
	user      *datastore.User
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	settings := &conf.Settings{
		Output: conf.OutputSettings{Database: conf.DatabaseSettings{Type: "sqlite", Path: ":memory:"}},
		Alerting: conf.AlertingSettings{
			EvaluationInterval:  time.Minute,
			WorkerPoolSize:      4,
			DeliveryAttempts:    3,
			DeliveryBackoff:     time.Millisecond,
			DigestCheckInterval: time.Hour,
		},
	}

	store := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	user := &datastore.User{Username: "operator", PasswordHash: "x"}
	require.NoError(t, store.CreateUser(user))

	source := &fakeSource{}
	email := &fakeEmail{}
	metrics := observability.NewMetrics()

	disp := NewDispatcher(store, email, metrics, settings)
	lifecycle := NewLifecycle(store, disp, metrics)
	evaluator := NewEvaluator(store, source, lifecycle, metrics, settings)
	digest := NewDigestScheduler(store, email, metrics, settings)

	return &engineFixture{
		ds: store, source: source, email: email,
		evaluator: evaluator, disp: disp, digest: digest,
		settings: settings, user: user,
	}
}

func (fx *engineFixture) createRule(t *testing.T, mutate func(*datastore.AlertRule)) *datastore.AlertRule {
	t.Helper()
	windfarmID := uint(42)
	rule := &datastore.AlertRule{
		UserID:         fx.user.ID,
		Name:           "low capacity factor",
		Metric:         datastore.MetricCapacityFactor,
		Condition:      datastore.ConditionBelow,
		ThresholdValue: 10,
		Scope:          datastore.ScopeSpecificWindfarm,
		WindfarmID:     &windfarmID,
		Severity:       datastore.SeverityHigh,
		IsEnabled:      true,
	}
	rule.SetChannels([]datastore.Channel{datastore.ChannelInApp, datastore.ChannelEmail})
	if mutate != nil {
		mutate(rule)
	}
	require.NoError(t, fx.ds.CreateRule(rule))
	return rule
}

func TestEndToEndBreachOpensTriggerAndNotifies(t *testing.T) {
	fx := newEngineFixture(t)
	rule := fx.createRule(t, nil)
	fx.source.set(datastore.MetricCapacityFactor, 42, 8)

	fx.evaluator.Tick(context.Background(), time.Now())
	fx.disp.Wait()

	triggers, err := fx.ds.ListTriggers(fx.user.ID, "")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	assert.Equal(t, datastore.TriggerActive, triggers[0].Status)
	assert.Equal(t, rule.ID, triggers[0].RuleID)
	assert.InDelta(t, 8.0, triggers[0].TriggeredValue, 0.001)
	assert.InDelta(t, 10.0, triggers[0].ThresholdValue, 0.001)

	notifications, err := fx.ds.ListNotifications(fx.user.ID, "")
	require.NoError(t, err)
	require.Len(t, notifications, 2, "one in_app row and one email row")

	assert.Equal(t, 1, fx.email.sentCount(), "one email send attempt in the same tick")
}

func TestAtMostOneOpenTriggerAcrossTicks(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createRule(t, nil)
	fx.source.set(datastore.MetricCapacityFactor, 42, 8)

	for range 5 {
		fx.evaluator.Tick(context.Background(), time.Now())
	}
	fx.disp.Wait()

	triggers, err := fx.ds.ListTriggers(fx.user.ID, datastore.TriggerActive)
	require.NoError(t, err)
	assert.Len(t, triggers, 1, "N breaching ticks open exactly one trigger")

	notifications, err := fx.ds.ListNotifications(fx.user.ID, "")
	require.NoError(t, err)
	assert.Len(t, notifications, 2, "dispatch happens exactly once per episode")
}

func TestAutoResolveAndNoReopen(t *testing.T) {
	fx := newEngineFixture(t)
	rule := fx.createRule(t, nil)

	fx.source.set(datastore.MetricCapacityFactor, 42, 8)
	fx.evaluator.Tick(context.Background(), time.Now())
	fx.disp.Wait()

	// Recovery resolves automatically, never acknowledges.
	fx.source.set(datastore.MetricCapacityFactor, 42, 15)
	fx.evaluator.Tick(context.Background(), time.Now())

	triggers, err := fx.ds.ListTriggers(fx.user.ID, "")
	require.NoError(t, err)
	require.Len(t, triggers, 1)
	first := triggers[0]
	assert.Equal(t, datastore.TriggerResolved, first.Status)
	require.NotNil(t, first.ResolvedAt)
	assert.False(t, first.ResolvedAt.Before(first.TriggeredAt))
	assert.Nil(t, first.AcknowledgedAt)

	// A later breach opens a brand-new trigger row.
	fx.source.set(datastore.MetricCapacityFactor, 42, 7)
	fx.evaluator.Tick(context.Background(), time.Now())
	fx.disp.Wait()

	triggers, err = fx.ds.ListTriggers(fx.user.ID, "")
	require.NoError(t, err)
	require.Len(t, triggers, 2)
	_ = rule
}

func TestDataGapNeverResolvesOpenTrigger(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createRule(t, nil)

	fx.source.set(datastore.MetricCapacityFactor, 42, 8)
	fx.evaluator.Tick(context.Background(), time.Now())
	fx.disp.Wait()

	// Metric store goes dark: no transition, trigger stays open.
	fx.source.samples = nil
	fx.evaluator.Tick(context.Background(), time.Now())

	triggers, err := fx.ds.ListTriggers(fx.user.ID, datastore.TriggerActive)
	require.NoError(t, err)
	assert.Len(t, triggers, 1)
}

func TestSustainedWindowRequiresFullBreach(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createRule(t, func(r *datastore.AlertRule) {
		r.SustainedMinutes = 60
	})

	// Window contains a recovery sample: no trigger.
	fx.source.set(datastore.MetricCapacityFactor, 42, 8, 8, 12, 8)
	fx.evaluator.Tick(context.Background(), time.Now())
	triggers, err := fx.ds.ListTriggers(fx.user.ID, "")
	require.NoError(t, err)
	assert.Empty(t, triggers)

	// Entire window breaching: exactly one trigger.
	fx.source.set(datastore.MetricCapacityFactor, 42, 8, 9, 7, 8)
	fx.evaluator.Tick(context.Background(), time.Now())
	fx.disp.Wait()
	triggers, err = fx.ds.ListTriggers(fx.user.ID, "")
	require.NoError(t, err)
	assert.Len(t, triggers, 1)
}

func TestOutsideRangeCondition(t *testing.T) {
	fx := newEngineFixture(t)
	upper := 30.0
	fx.createRule(t, func(r *datastore.AlertRule) {
		r.Condition = datastore.ConditionOutsideRange
		r.ThresholdValue = 10
		r.ThresholdValueUpper = &upper
	})

	// Inside the range, and exactly on a bound: no breach.
	for _, v := range []float64{20, 10, 30} {
		fx.source.set(datastore.MetricCapacityFactor, 42, v)
		fx.evaluator.Tick(context.Background(), time.Now())
		triggers, err := fx.ds.ListTriggers(fx.user.ID, datastore.TriggerActive)
		require.NoError(t, err)
		assert.Empty(t, triggers, "value %v must not breach", v)
	}

	fx.source.set(datastore.MetricCapacityFactor, 42, 31)
	fx.evaluator.Tick(context.Background(), time.Now())
	fx.disp.Wait()
	triggers, err := fx.ds.ListTriggers(fx.user.ID, datastore.TriggerActive)
	require.NoError(t, err)
	assert.Len(t, triggers, 1)
}

func TestDisabledRulesAreSkipped(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createRule(t, func(r *datastore.AlertRule) {
		r.IsEnabled = false
	})
	fx.source.set(datastore.MetricCapacityFactor, 42, 8)

	fx.evaluator.Tick(context.Background(), time.Now())

	triggers, err := fx.ds.ListTriggers(fx.user.ID, "")
	require.NoError(t, err)
	assert.Empty(t, triggers)
}

func TestPortfolioScopeExpansion(t *testing.T) {
	fx := newEngineFixture(t)
	for _, farm := range []datastore.Windfarm{{ID: 1, Name: "North Ridge", IsActive: true}, {ID: 2, Name: "East Bank", IsActive: true}} {
		require.NoError(t, fx.ds.SaveWindfarm(&farm))
	}
	require.NoError(t, fx.ds.AddPortfolioMember(5, 1))
	require.NoError(t, fx.ds.AddPortfolioMember(5, 2))

	portfolioID := uint(5)
	fx.createRule(t, func(r *datastore.AlertRule) {
		r.Scope = datastore.ScopePortfolio
		r.WindfarmID = nil
		r.PortfolioID = &portfolioID
	})

	fx.source.set(datastore.MetricCapacityFactor, 1, 8)
	fx.source.set(datastore.MetricCapacityFactor, 2, 9)
	fx.evaluator.Tick(context.Background(), time.Now())
	fx.disp.Wait()

	triggers, err := fx.ds.ListTriggers(fx.user.ID, datastore.TriggerActive)
	require.NoError(t, err)
	assert.Len(t, triggers, 2, "one trigger per member windfarm")
}

func TestSeverityFloorSuppressesAllChannels(t *testing.T) {
	fx := newEngineFixture(t)
	pref, err := fx.ds.GetPreference(fx.user.ID)
	require.NoError(t, err)
	pref.MinSeverity = datastore.SeverityHigh
	require.NoError(t, fx.ds.UpsertPreference(pref))

	fx.createRule(t, func(r *datastore.AlertRule) {
		r.Severity = datastore.SeverityMedium
		r.SetChannels([]datastore.Channel{datastore.ChannelInApp, datastore.ChannelEmail, datastore.ChannelEmailDigest})
	})
	fx.source.set(datastore.MetricCapacityFactor, 42, 8)

	fx.evaluator.Tick(context.Background(), time.Now())
	fx.disp.Wait()

	// The trigger still opens; only delivery is suppressed.
	triggers, err := fx.ds.ListTriggers(fx.user.ID, datastore.TriggerActive)
	require.NoError(t, err)
	assert.Len(t, triggers, 1)

	notifications, err := fx.ds.ListNotifications(fx.user.ID, "")
	require.NoError(t, err)
	assert.Empty(t, notifications)
	assert.Zero(t, fx.email.sentCount())
}

func TestQuietHoursSuppressEmailOnly(t *testing.T) {
	fx := newEngineFixture(t)
	pref, err := fx.ds.GetPreference(fx.user.ID)
	require.NoError(t, err)
	pref.QuietHoursEnabled = true
	pref.QuietHoursStart = 22
	pref.QuietHoursEnd = 7
	require.NoError(t, fx.ds.UpsertPreference(pref))

	fx.createRule(t, func(r *datastore.AlertRule) {
		r.Severity = datastore.SeverityCritical
	})
	fx.source.set(datastore.MetricCapacityFactor, 42, 8)

	// Fix dispatch time at 23:00.
	fx.disp.now = func() time.Time {
		return time.Date(2026, 8, 30, 23, 0, 0, 0, time.UTC)
	}
	fx.evaluator.Tick(context.Background(), time.Now())
	fx.disp.Wait()

	notifications, err := fx.ds.ListNotifications(fx.user.ID, "")
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, datastore.ChannelInApp, notifications[0].Channel)
	assert.Zero(t, fx.email.sentCount(), "email suppressed during quiet hours")
}

func TestEmailRetrySucceedsAfterTransientFailure(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createRule(t, nil)
	fx.source.set(datastore.MetricCapacityFactor, 42, 8)
	fx.email.failures = 2 // two failures, third attempt succeeds

	fx.evaluator.Tick(context.Background(), time.Now())
	fx.disp.Wait()

	assert.Equal(t, 1, fx.email.sentCount())
}

func TestEmailFailureDoesNotBlockInApp(t *testing.T) {
	fx := newEngineFixture(t)
	fx.createRule(t, nil)
	fx.source.set(datastore.MetricCapacityFactor, 42, 8)
	fx.email.failures = 100 // exhaust all attempts

	fx.evaluator.Tick(context.Background(), time.Now())
	fx.disp.Wait()

	notifications, err := fx.ds.ListNotifications(fx.user.ID, "")
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	for i := range notifications {
		assert.Equal(t, datastore.NotificationUnread, notifications[i].Status)
	}
	assert.Zero(t, fx.email.sentCount())
}
