// Package datastore provides durable storage for alert rules, triggers,
// notifications and notification preferences, backed by gorm with SQLite
// or MySQL drivers.
package datastore

import (
	"strings"

	"github.com/windwatch/windwatch-go/internal/errors"
)

// Metric identifies the time-series a rule is evaluated against.
type Metric string

const (
	MetricCapacityFactor Metric = "capacity_factor"
	MetricGeneration     Metric = "generation"
	MetricAvailability   Metric = "availability"
	MetricPrice          Metric = "price"
	MetricWindSpeed      Metric = "wind_speed"
)

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricCapacityFactor, MetricGeneration, MetricAvailability, MetricPrice, MetricWindSpeed:
		return true
	}
	return false
}

// Condition is the comparison a rule applies to a metric value.
type Condition string

const (
	ConditionBelow        Condition = "below"
	ConditionAbove        Condition = "above"
	ConditionOutsideRange Condition = "outside_range"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	switch c {
	case ConditionBelow, ConditionAbove, ConditionOutsideRange:
		return true
	}
	return false
}

// Scope selects which windfarms a rule applies to.
type Scope string

const (
	ScopeAllWindfarms     Scope = "all_windfarms"
	ScopeSpecificWindfarm Scope = "specific_windfarm"
	ScopePortfolio        Scope = "portfolio"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeAllWindfarms, ScopeSpecificWindfarm, ScopePortfolio:
		return true
	}
	return false
}

// Severity is the urgency level of a rule and its triggers.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank returns the ordering of a severity: low < medium < high < critical.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	}
	return -1
}

// Channel is a notification delivery channel.
type Channel string

const (
	ChannelInApp       Channel = "in_app"
	ChannelEmail       Channel = "email"
	ChannelEmailDigest Channel = "email_digest"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelEmailDigest:
		return true
	}
	return false
}

// TriggerStatus is the lifecycle state of an alert trigger.
type TriggerStatus string

const (
	TriggerActive       TriggerStatus = "active"
	TriggerAcknowledged TriggerStatus = "acknowledged"
	TriggerResolved     TriggerStatus = "resolved"
)

// Open reports whether the status counts against the one-open-trigger
// invariant.
func (s TriggerStatus) Open() bool {
	return s == TriggerActive || s == TriggerAcknowledged
}

// NotificationStatus is the read state of a notification.
type NotificationStatus string

const (
	NotificationUnread   NotificationStatus = "unread"
	NotificationRead     NotificationStatus = "read"
	NotificationArchived NotificationStatus = "archived"
)

// joinChannels serializes a channel set into its stored form.
func joinChannels(channels []Channel) string {
	parts := make([]string, 0, len(channels))
	for _, c := range channels {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}

// splitChannels parses the stored channel set.
func splitChannels(raw string) []Channel {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	channels := make([]Channel, 0, len(parts))
	for _, p := range parts {
		channels = append(channels, Channel(p))
	}
	return channels
}

// ParseChannels validates and canonicalizes a list of channel names.
func ParseChannels(names []string) ([]Channel, error) {
	if len(names) == 0 {
		return nil, errors.Newf("channel list is empty").
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("field", "channels").
			Build()
	}
	seen := make(map[Channel]bool, len(names))
	channels := make([]Channel, 0, len(names))
	for _, name := range names {
		ch := Channel(name)
		if !ch.Valid() {
			return nil, errors.Newf("unknown channel: %s", name).
				Component("datastore").
				Category(errors.CategoryValidation).
				Context("field", "channels").
				Build()
		}
		if !seen[ch] {
			seen[ch] = true
			channels = append(channels, ch)
		}
	}
	return channels, nil
}
