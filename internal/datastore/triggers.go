package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/windwatch/windwatch-go/internal/errors"
)

// OpenTrigger inserts a new open trigger for (rule, windfarm). The unique
// index on (rule_id, windfarm_id, open_marker) makes this a check-and-set:
// if another open trigger already holds the slot the insert fails and
// ErrTriggerAlreadyOpen is returned. Two concurrent ticks racing on the
// same pair therefore cannot double-open.
func (ds *DataStore) OpenTrigger(trigger *AlertTrigger) error {
	marker := 1
	trigger.Status = TriggerActive
	trigger.OpenMarker = &marker
	if trigger.TriggeredAt.IsZero() {
		trigger.TriggeredAt = time.Now()
	}

	err := ds.DB.Create(trigger).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrTriggerAlreadyOpen
	}
	return dbError(err, "open_trigger")
}

// GetOpenTrigger returns the open (active or acknowledged) trigger for a
// (rule, windfarm) pair, or ErrTriggerNotFound.
func (ds *DataStore) GetOpenTrigger(ruleID, windfarmID uint) (*AlertTrigger, error) {
	var trigger AlertTrigger
	err := ds.DB.Where("rule_id = ? AND windfarm_id = ? AND open_marker IS NOT NULL", ruleID, windfarmID).
		First(&trigger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTriggerNotFound
	}
	if err != nil {
		return nil, dbError(err, "get_open_trigger")
	}
	return &trigger, nil
}

// GetTrigger fetches one trigger whose rule is owned by the given user.
func (ds *DataStore) GetTrigger(userID, id uint) (*AlertTrigger, error) {
	var trigger AlertTrigger
	err := ds.DB.
		Joins("JOIN alert_rules ON alert_rules.id = alert_triggers.rule_id").
		Where("alert_triggers.id = ? AND alert_rules.user_id = ?", id, userID).
		First(&trigger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTriggerNotFound
	}
	if err != nil {
		return nil, dbError(err, "get_trigger")
	}
	return &trigger, nil
}

// AcknowledgeTrigger moves an active trigger to acknowledged. Only the
// active state can be acknowledged; acknowledging an acknowledged trigger
// is a no-op, while acknowledging a resolved trigger is a state error.
func (ds *DataStore) AcknowledgeTrigger(userID, id uint) (*AlertTrigger, error) {
	trigger, err := ds.GetTrigger(userID, id)
	if err != nil {
		return nil, err
	}

	switch trigger.Status {
	case TriggerAcknowledged:
		return trigger, nil // idempotent retry
	case TriggerResolved:
		return nil, errors.Newf("cannot acknowledge a resolved trigger").
			Component("datastore").
			Category(errors.CategoryState).
			Context("trigger_id", id).
			Build()
	}

	now := time.Now()
	result := ds.DB.Model(&AlertTrigger{}).
		Where("id = ? AND status = ?", id, TriggerActive).
		Updates(map[string]any{
			"status":          TriggerAcknowledged,
			"acknowledged_at": now,
		})
	if result.Error != nil {
		return nil, dbError(result.Error, "acknowledge_trigger")
	}
	return ds.GetTrigger(userID, id)
}

// ResolveTrigger resolves a trigger by id. Resolving an already resolved
// trigger is a no-op, not an error.
func (ds *DataStore) ResolveTrigger(userID, id uint, at time.Time) (*AlertTrigger, error) {
	trigger, err := ds.GetTrigger(userID, id)
	if err != nil {
		return nil, err
	}
	if trigger.Status == TriggerResolved {
		return trigger, nil
	}

	result := ds.DB.Model(&AlertTrigger{}).
		Where("id = ? AND open_marker IS NOT NULL", id).
		Updates(map[string]any{
			"status":      TriggerResolved,
			"open_marker": nil,
			"resolved_at": at,
		})
	if result.Error != nil {
		return nil, dbError(result.Error, "resolve_trigger")
	}
	return ds.GetTrigger(userID, id)
}

// ResolveOpenTrigger resolves the open trigger of a (rule, windfarm) pair
// if one exists. Returns ErrTriggerNotFound when the pair has no open
// trigger, which auto-resolution treats as nothing-to-do.
func (ds *DataStore) ResolveOpenTrigger(ruleID, windfarmID uint, at time.Time) (*AlertTrigger, error) {
	trigger, err := ds.GetOpenTrigger(ruleID, windfarmID)
	if err != nil {
		return nil, err
	}

	result := ds.DB.Model(&AlertTrigger{}).
		Where("id = ? AND open_marker IS NOT NULL", trigger.ID).
		Updates(map[string]any{
			"status":      TriggerResolved,
			"open_marker": nil,
			"resolved_at": at,
		})
	if result.Error != nil {
		return nil, dbError(result.Error, "resolve_open_trigger")
	}
	if result.RowsAffected == 0 {
		// Lost the race against an explicit resolve; already closed.
		return ds.GetOpenOrLatest(trigger.ID)
	}
	trigger.Status = TriggerResolved
	trigger.OpenMarker = nil
	trigger.ResolvedAt = &at
	return trigger, nil
}

// GetOpenOrLatest reloads a trigger by primary key regardless of owner,
// used internally after concurrent transitions.
func (ds *DataStore) GetOpenOrLatest(id uint) (*AlertTrigger, error) {
	var trigger AlertTrigger
	if err := ds.DB.First(&trigger, id).Error; err != nil {
		return nil, dbError(err, "reload_trigger")
	}
	return &trigger, nil
}

// ListTriggers returns the triggers of all rules owned by the user,
// optionally filtered by status, newest first.
func (ds *DataStore) ListTriggers(userID uint, status TriggerStatus) ([]AlertTrigger, error) {
	query := ds.DB.
		Joins("JOIN alert_rules ON alert_rules.id = alert_triggers.rule_id").
		Where("alert_rules.user_id = ?", userID)
	if status != "" {
		query = query.Where("alert_triggers.status = ?", status)
	}

	var triggers []AlertTrigger
	if err := query.Order("alert_triggers.triggered_at DESC").Find(&triggers).Error; err != nil {
		return nil, dbError(err, "list_triggers")
	}
	return triggers, nil
}

// CountTriggersByStatus returns the active and acknowledged trigger counts
// for the user's rules.
func (ds *DataStore) CountTriggersByStatus(userID uint) (active, acknowledged int64, err error) {
	base := func(status TriggerStatus) *gorm.DB {
		return ds.DB.Model(&AlertTrigger{}).
			Joins("JOIN alert_rules ON alert_rules.id = alert_triggers.rule_id").
			Where("alert_rules.user_id = ? AND alert_triggers.status = ?", userID, status)
	}
	if err = base(TriggerActive).Count(&active).Error; err != nil {
		return 0, 0, dbError(err, "count_triggers")
	}
	if err = base(TriggerAcknowledged).Count(&acknowledged).Error; err != nil {
		return 0, 0, dbError(err, "count_triggers")
	}
	return active, acknowledged, nil
}

// RecentTriggers returns the user's most recently opened triggers.
func (ds *DataStore) RecentTriggers(userID uint, limit int) ([]AlertTrigger, error) {
	var triggers []AlertTrigger
	err := ds.DB.
		Joins("JOIN alert_rules ON alert_rules.id = alert_triggers.rule_id").
		Where("alert_rules.user_id = ?", userID).
		Order("alert_triggers.triggered_at DESC").
		Limit(limit).
		Find(&triggers).Error
	if err != nil {
		return nil, dbError(err, "recent_triggers")
	}
	return triggers, nil
}
