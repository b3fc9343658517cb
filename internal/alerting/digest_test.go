package alerting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windwatch/windwatch-go/internal/datastore"
)

func TestDigestBatchesThreeBreachesIntoOneEmail(t *testing.T) {
	fx := newEngineFixture(t)
	pref, err := fx.ds.GetPreference(fx.user.ID)
	require.NoError(t, err)
	require.NoError(t, fx.ds.UpsertPreference(pref))
	fx.createRule(t, func(r *datastore.AlertRule) {
		r.SetChannels([]datastore.Channel{datastore.ChannelEmailDigest})
	})

	// Three separate breach episodes accumulate three digest items.
	for range 3 {
		fx.source.set(datastore.MetricCapacityFactor, 42, 8)
		fx.evaluator.Tick(context.Background(), time.Now())
		fx.source.set(datastore.MetricCapacityFactor, 42, 15)
		fx.evaluator.Tick(context.Background(), time.Now())
	}
	fx.disp.Wait()

	pending, err := fx.ds.PendingDigestNotifications(fx.user.ID)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Zero(t, fx.email.sentCount(), "digest items are never sent synchronously")

	fx.digest.Flush(context.Background(), time.Now())

	require.Equal(t, 1, fx.email.sentCount(), "one batched email, not three")
	body := fx.email.sent[0].Message
	assert.Equal(t, 3, strings.Count(body, "low capacity factor"), "all three items summarized")

	pending, err = fx.ds.PendingDigestNotifications(fx.user.ID)
	require.NoError(t, err)
	assert.Empty(t, pending, "flushed items are marked delivered")
}

func TestDigestSkipsUsersWithNothingPending(t *testing.T) {
	fx := newEngineFixture(t)
	pref, err := fx.ds.GetPreference(fx.user.ID)
	require.NoError(t, err)
	require.NoError(t, fx.ds.UpsertPreference(pref))

	fx.digest.Flush(context.Background(), time.Now())
	assert.Zero(t, fx.email.sentCount(), "no empty digests")
}

func TestDigestHonorsFrequency(t *testing.T) {
	fx := newEngineFixture(t)
	pref, err := fx.ds.GetPreference(fx.user.ID)
	require.NoError(t, err)
	pref.DigestFrequencyHours = 24
	require.NoError(t, fx.ds.UpsertPreference(pref))

	require.NoError(t, fx.ds.CreateNotification(&datastore.Notification{
		UserID: fx.user.ID, Title: "breach", Message: "m",
		Severity: datastore.SeverityMedium, Channel: datastore.ChannelEmailDigest,
	}))

	now := time.Now()
	fx.digest.Flush(context.Background(), now)
	require.Equal(t, 1, fx.email.sentCount())

	// A second item inside the same period is not flushed yet.
	require.NoError(t, fx.ds.CreateNotification(&datastore.Notification{
		UserID: fx.user.ID, Title: "breach", Message: "m",
		Severity: datastore.SeverityMedium, Channel: datastore.ChannelEmailDigest,
	}))
	fx.digest.Flush(context.Background(), now.Add(6*time.Hour))
	assert.Equal(t, 1, fx.email.sentCount(), "not due yet")

	fx.digest.Flush(context.Background(), now.Add(25*time.Hour))
	assert.Equal(t, 2, fx.email.sentCount(), "due after the configured frequency")
}

func TestDigestSendFailureLeavesItemsPending(t *testing.T) {
	fx := newEngineFixture(t)
	pref, err := fx.ds.GetPreference(fx.user.ID)
	require.NoError(t, err)
	require.NoError(t, fx.ds.UpsertPreference(pref))
	require.NoError(t, fx.ds.CreateNotification(&datastore.Notification{
		UserID: fx.user.ID, Title: "breach", Message: "m",
		Severity: datastore.SeverityHigh, Channel: datastore.ChannelEmailDigest,
	}))

	fx.email.failures = 1
	fx.digest.Flush(context.Background(), time.Now())
	assert.Zero(t, fx.email.sentCount())

	pending, err := fx.ds.PendingDigestNotifications(fx.user.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "failed flush leaves items for the next run")

	fx.digest.Flush(context.Background(), time.Now())
	assert.Equal(t, 1, fx.email.sentCount(), "retried on the next flush")
}
