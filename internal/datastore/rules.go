package datastore

import (
	"gorm.io/gorm"

	"github.com/windwatch/windwatch-go/internal/errors"
)

// ValidateRule checks the cross-field invariants of an alert rule before
// it is persisted. Violations are validation-category errors carrying the
// offending field name; they are never silently coerced.
func ValidateRule(rule *AlertRule) error {
	if rule.Name == "" {
		return ruleValidationError("name", "name is required")
	}
	if !rule.Metric.Valid() {
		return ruleValidationError("metric", "unknown metric")
	}
	if !rule.Condition.Valid() {
		return ruleValidationError("condition", "unknown condition")
	}
	if !rule.Severity.Valid() {
		return ruleValidationError("severity", "unknown severity")
	}
	if !rule.Scope.Valid() {
		return ruleValidationError("scope", "unknown scope")
	}
	if rule.SustainedMinutes < 0 {
		return ruleValidationError("sustained_minutes", "sustained_minutes must be >= 0")
	}
	if len(rule.Channels()) == 0 {
		return ruleValidationError("channels", "at least one channel is required")
	}

	switch rule.Condition {
	case ConditionOutsideRange:
		if rule.ThresholdValueUpper == nil {
			return ruleValidationError("threshold_value_upper", "threshold_value_upper is required for outside_range")
		}
		if *rule.ThresholdValueUpper <= rule.ThresholdValue {
			return ruleValidationError("threshold_value_upper", "threshold_value_upper must be strictly greater than threshold_value")
		}
	default:
		if rule.ThresholdValueUpper != nil {
			return ruleValidationError("threshold_value_upper", "threshold_value_upper is only valid for outside_range")
		}
	}

	switch rule.Scope {
	case ScopeSpecificWindfarm:
		if rule.WindfarmID == nil {
			return ruleValidationError("windfarm_id", "windfarm_id is required for specific_windfarm scope")
		}
		if rule.PortfolioID != nil {
			return ruleValidationError("portfolio_id", "portfolio_id must not be set for specific_windfarm scope")
		}
	case ScopePortfolio:
		if rule.PortfolioID == nil {
			return ruleValidationError("portfolio_id", "portfolio_id is required for portfolio scope")
		}
		if rule.WindfarmID != nil {
			return ruleValidationError("windfarm_id", "windfarm_id must not be set for portfolio scope")
		}
	case ScopeAllWindfarms:
		if rule.WindfarmID != nil || rule.PortfolioID != nil {
			return ruleValidationError("scope", "all_windfarms scope takes no target id")
		}
	}

	return nil
}

func ruleValidationError(field, message string) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}

// CreateRule validates and persists a new alert rule.
func (ds *DataStore) CreateRule(rule *AlertRule) error {
	if err := ValidateRule(rule); err != nil {
		return err
	}
	if err := ds.DB.Create(rule).Error; err != nil {
		return dbError(err, "create_rule")
	}
	return nil
}

// UpdateRule validates and saves changes to an existing rule.
func (ds *DataStore) UpdateRule(rule *AlertRule) error {
	if err := ValidateRule(rule); err != nil {
		return err
	}
	result := ds.DB.Model(&AlertRule{}).
		Where("id = ? AND user_id = ?", rule.ID, rule.UserID).
		Updates(map[string]any{
			"name":                  rule.Name,
			"description":           rule.Description,
			"metric":                rule.Metric,
			"condition":             rule.Condition,
			"threshold_value":       rule.ThresholdValue,
			"threshold_value_upper": rule.ThresholdValueUpper,
			"scope":                 rule.Scope,
			"windfarm_id":           rule.WindfarmID,
			"portfolio_id":          rule.PortfolioID,
			"severity":              rule.Severity,
			"sustained_minutes":     rule.SustainedMinutes,
			"channels":              rule.RawChannels,
			"is_enabled":            rule.IsEnabled,
		})
	if result.Error != nil {
		return dbError(result.Error, "update_rule")
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// GetRule fetches one rule owned by the given user.
func (ds *DataStore) GetRule(userID, id uint) (*AlertRule, error) {
	var rule AlertRule
	err := ds.DB.Where("id = ? AND user_id = ?", id, userID).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, dbError(err, "get_rule")
	}
	return &rule, nil
}

// ListRules returns all rules owned by the given user, newest first.
func (ds *DataStore) ListRules(userID uint) ([]AlertRule, error) {
	var rules []AlertRule
	if err := ds.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&rules).Error; err != nil {
		return nil, dbError(err, "list_rules")
	}
	return rules, nil
}

// ListEnabledRules returns every enabled rule across all users, for the
// evaluation tick.
func (ds *DataStore) ListEnabledRules() ([]AlertRule, error) {
	var rules []AlertRule
	if err := ds.DB.Where("is_enabled = ?", true).Find(&rules).Error; err != nil {
		return nil, dbError(err, "list_enabled_rules")
	}
	return rules, nil
}

// ToggleRule flips the enabled flag of a rule and returns the updated
// record. Repeated calls are safe; each call is a single atomic flip.
func (ds *DataStore) ToggleRule(userID, id uint) (*AlertRule, error) {
	result := ds.DB.Model(&AlertRule{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_enabled", gorm.Expr("NOT is_enabled"))
	if result.Error != nil {
		return nil, dbError(result.Error, "toggle_rule")
	}
	if result.RowsAffected == 0 {
		return nil, ErrRuleNotFound
	}
	return ds.GetRule(userID, id)
}

// DeleteRule soft-deletes a rule and removes its triggers.
// Deleting an already deleted rule returns ErrRuleNotFound.
func (ds *DataStore) DeleteRule(userID, id uint) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND user_id = ?", id, userID).Delete(&AlertRule{})
		if result.Error != nil {
			return dbError(result.Error, "delete_rule")
		}
		if result.RowsAffected == 0 {
			return ErrRuleNotFound
		}
		// Cascade: remove the rule's triggers, releasing the
		// open-trigger index slot.
		if err := tx.Where("rule_id = ?", id).Delete(&AlertTrigger{}).Error; err != nil {
			return dbError(err, "delete_rule_cascade")
		}
		return nil
	})
}
