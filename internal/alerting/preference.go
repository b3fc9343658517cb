// Package alerting implements the alert engine: rule evaluation against
// windfarm metrics, the trigger lifecycle state machine, preference-aware
// notification dispatch and the digest scheduler.
package alerting

import (
	"time"

	"github.com/windwatch/windwatch-go/internal/datastore"
)

// Decision is the outcome of a delivery preference check.
type Decision int

const (
	// DecisionSuppress drops the notification entirely for the channel.
	DecisionSuppress Decision = iota
	// DecisionDeliver delivers on the channel immediately.
	DecisionDeliver
	// DecisionDigest defers the notification into the user's next digest.
	DecisionDigest
)

// String returns the decision name for logging.
func (d Decision) String() string {
	switch d {
	case DecisionSuppress:
		return "suppress"
	case DecisionDeliver:
		return "deliver"
	case DecisionDigest:
		return "digest"
	}
	return "unknown"
}

// ShouldDeliverNow decides whether a notification of the given severity
// should be delivered on the given channel at the given time, per the
// user's preferences.
//
// Quiet hours gate the email channel only: in-app notifications are
// non-interruptive and are still written, and digest accumulation is a
// deferral, not an interruption.
func ShouldDeliverNow(pref *datastore.NotificationPreference, severity datastore.Severity, channel datastore.Channel, now time.Time) Decision {
	if !channelEnabled(pref, channel) {
		return DecisionSuppress
	}
	if severity.Rank() < pref.MinSeverity.Rank() {
		return DecisionSuppress
	}
	if channel == datastore.ChannelEmail && inQuietHours(pref, now) {
		return DecisionSuppress
	}
	if channel == datastore.ChannelEmailDigest {
		return DecisionDigest
	}
	return DecisionDeliver
}

// channelEnabled applies the per-channel kill switches.
func channelEnabled(pref *datastore.NotificationPreference, channel datastore.Channel) bool {
	switch channel {
	case datastore.ChannelInApp:
		return pref.InAppEnabled
	case datastore.ChannelEmail:
		return pref.EmailEnabled
	case datastore.ChannelEmailDigest:
		return pref.EmailDigestEnabled
	}
	return false
}

// inQuietHours reports whether now falls in the user's quiet hours
// window [start, end), with wrap-around across midnight (e.g. 22 -> 7).
func inQuietHours(pref *datastore.NotificationPreference, now time.Time) bool {
	if !pref.QuietHoursEnabled {
		return false
	}
	hour := now.Hour()
	start, end := pref.QuietHoursStart, pref.QuietHoursEnd
	if start == end {
		// Degenerate window covers the whole day.
		return true
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
