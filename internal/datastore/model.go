// model.go defines the persistent data model for the alert engine.
package datastore

import (
	"time"

	"gorm.io/gorm"
)

// User is an account that owns rules, triggers and notifications.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
}

// Windfarm is a minimal mirror of the externally managed windfarm record,
// kept for scope expansion and display names on triggers.
type Windfarm struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"index"`
	IsActive bool   `gorm:"index"`
}

// PortfolioMembership links a windfarm into a portfolio. Membership is
// read at evaluation time; changes take effect on the next tick.
type PortfolioMembership struct {
	ID          uint `gorm:"primaryKey"`
	PortfolioID uint `gorm:"index:idx_portfolio_windfarm,unique"`
	WindfarmID  uint `gorm:"index:idx_portfolio_windfarm,unique"`
}

// AlertRule describes a user-owned threshold condition over a metric.
type AlertRule struct {
	ID                  uint   `gorm:"primaryKey"`
	UserID              uint   `gorm:"index;not null"`
	Name                string `gorm:"not null"`
	Description         string
	Metric              Metric    `gorm:"type:varchar(32);not null"`
	Condition           Condition `gorm:"type:varchar(16);not null"`
	ThresholdValue      float64
	ThresholdValueUpper *float64 // set iff Condition is outside_range
	Scope               Scope    `gorm:"type:varchar(24);not null"`
	WindfarmID          *uint    // set iff Scope is specific_windfarm
	PortfolioID         *uint    // set iff Scope is portfolio
	Severity            Severity `gorm:"type:varchar(16);not null"`
	SustainedMinutes    int
	RawChannels         string `gorm:"column:channels;not null"`
	IsEnabled           bool   `gorm:"index"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           gorm.DeletedAt `gorm:"index"`
}

// Channels returns the rule's delivery channels in canonical order.
func (r *AlertRule) Channels() []Channel {
	return splitChannels(r.RawChannels)
}

// SetChannels stores the given channel set on the rule.
func (r *AlertRule) SetChannels(channels []Channel) {
	r.RawChannels = joinChannels(channels)
}

// AlertTrigger is one breach episode of one rule against one windfarm.
//
// OpenMarker is 1 while the trigger is active or acknowledged and NULL
// once resolved; the unique index on (rule_id, windfarm_id, open_marker)
// is the atomic guard that keeps at most one open trigger per pair.
type AlertTrigger struct {
	ID             uint `gorm:"primaryKey"`
	RuleID         uint `gorm:"index;not null;index:idx_trigger_open,unique"`
	WindfarmID     uint `gorm:"not null;index:idx_trigger_open,unique"`
	TriggeredValue float64
	ThresholdValue float64       // snapshot of the rule threshold at trigger time
	Status         TriggerStatus `gorm:"type:varchar(16);index;not null"`
	OpenMarker     *int          `gorm:"index:idx_trigger_open,unique"`
	TriggeredAt    time.Time     `gorm:"index"`
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
}

// Notification is one dispatch decision that was not suppressed.
// Immutable once created except Status and DeliveredAt.
type Notification struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	UserID      uint   `gorm:"index;not null"`
	TriggerID   *uint  `gorm:"index"` // nil for digest summaries
	Title       string
	Message     string
	Severity    Severity           `gorm:"type:varchar(16)"`
	Channel     Channel            `gorm:"type:varchar(16);index"`
	Status      NotificationStatus `gorm:"type:varchar(16);index"`
	CreatedAt   time.Time          `gorm:"index"`
	DeliveredAt *time.Time // digest items: nil until flushed
}

// NotificationPreference is the per-user delivery preference singleton.
type NotificationPreference struct {
	ID                  uint `gorm:"primaryKey"`
	UserID              uint `gorm:"uniqueIndex;not null"`
	EmailEnabled        bool
	EmailDigestEnabled  bool
	InAppEnabled        bool
	DigestFrequencyHours int
	QuietHoursEnabled   bool
	QuietHoursStart     int // hour of day, 0-23
	QuietHoursEnd       int // hour of day, 0-23; wrap-around allowed
	MinSeverity         Severity `gorm:"type:varchar(16)"`
	LastDigestAt        *time.Time
	UpdatedAt           time.Time
}

// DefaultPreference returns the preferences applied to a user who has
// never saved any.
func DefaultPreference(userID uint) *NotificationPreference {
	return &NotificationPreference{
		UserID:               userID,
		EmailEnabled:         true,
		EmailDigestEnabled:   true,
		InAppEnabled:         true,
		DigestFrequencyHours: 24,
		MinSeverity:          SeverityLow,
	}
}
