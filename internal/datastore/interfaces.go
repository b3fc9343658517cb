package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/windwatch/windwatch-go/internal/errors"
)

// Sentinel errors returned by store operations.
var (
	ErrRuleNotFound         = errors.Newf("alert rule not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrTriggerNotFound      = errors.Newf("alert trigger not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrNotificationNotFound = errors.Newf("notification not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrUserNotFound         = errors.Newf("user not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	ErrWindfarmNotFound     = errors.Newf("windfarm not found").Component("datastore").Category(errors.CategoryNotFound).Build()
	// ErrTriggerAlreadyOpen is the "already open" signal of the atomic
	// open-trigger check-and-set; callers treat it as success.
	ErrTriggerAlreadyOpen = errors.Newf("trigger already open for rule and windfarm").Component("datastore").Category(errors.CategoryConflict).Build()
)

// Interface defines the store operations used by the engine and the API.
type Interface interface {
	Open() error
	Close() error

	// Users
	CreateUser(user *User) error
	GetUserByUsername(username string) (*User, error)

	// Windfarms and portfolios
	SaveWindfarm(farm *Windfarm) error
	GetWindfarm(id uint) (*Windfarm, error)
	GetActiveWindfarmIDs() ([]uint, error)
	AddPortfolioMember(portfolioID, windfarmID uint) error
	GetPortfolioWindfarmIDs(portfolioID uint) ([]uint, error)

	// Alert rules
	CreateRule(rule *AlertRule) error
	UpdateRule(rule *AlertRule) error
	GetRule(userID, id uint) (*AlertRule, error)
	ListRules(userID uint) ([]AlertRule, error)
	ListEnabledRules() ([]AlertRule, error)
	ToggleRule(userID, id uint) (*AlertRule, error)
	DeleteRule(userID, id uint) error

	// Alert triggers
	OpenTrigger(trigger *AlertTrigger) error
	GetTrigger(userID, id uint) (*AlertTrigger, error)
	GetOpenTrigger(ruleID, windfarmID uint) (*AlertTrigger, error)
	AcknowledgeTrigger(userID, id uint) (*AlertTrigger, error)
	ResolveTrigger(userID, id uint, at time.Time) (*AlertTrigger, error)
	ResolveOpenTrigger(ruleID, windfarmID uint, at time.Time) (*AlertTrigger, error)
	ListTriggers(userID uint, status TriggerStatus) ([]AlertTrigger, error)
	CountTriggersByStatus(userID uint) (active, acknowledged int64, err error)
	RecentTriggers(userID uint, limit int) ([]AlertTrigger, error)

	// Notifications
	CreateNotification(notification *Notification) error
	ListNotifications(userID uint, status NotificationStatus) ([]Notification, error)
	CountUnreadNotifications(userID uint) (int64, error)
	MarkNotificationRead(userID uint, id string) error
	MarkAllNotificationsRead(userID uint) error
	DeleteNotification(userID uint, id string) error
	PendingDigestNotifications(userID uint) ([]Notification, error)
	MarkDigestDelivered(ids []string, at time.Time) error

	// Notification preferences
	GetPreference(userID uint) (*NotificationPreference, error)
	UpsertPreference(pref *NotificationPreference) error
	SetLastDigestAt(userID uint, at time.Time) error
	DigestCandidates() ([]NotificationPreference, error)
}

// DataStore implements Interface on top of a gorm DB handle. SQLiteStore
// and MySQLStore embed it and contribute their Open implementations.
type DataStore struct {
	DB *gorm.DB
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "close").
			Build()
	}
	return sqlDB.Close()
}

// dbError wraps a gorm error with store metadata.
func dbError(err error, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}
