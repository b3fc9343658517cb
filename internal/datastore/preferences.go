package datastore

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/windwatch/windwatch-go/internal/errors"
)

// ValidatePreference checks the field invariants of a preference record.
func ValidatePreference(pref *NotificationPreference) error {
	switch pref.DigestFrequencyHours {
	case 6, 12, 24, 168:
	default:
		return prefValidationError("digest_frequency_hours", "digest_frequency_hours must be one of 6, 12, 24, 168")
	}
	if pref.QuietHoursStart < 0 || pref.QuietHoursStart > 23 {
		return prefValidationError("quiet_hours_start", "quiet_hours_start must be an hour of day (0-23)")
	}
	if pref.QuietHoursEnd < 0 || pref.QuietHoursEnd > 23 {
		return prefValidationError("quiet_hours_end", "quiet_hours_end must be an hour of day (0-23)")
	}
	if !pref.MinSeverity.Valid() {
		return prefValidationError("min_severity", "unknown severity")
	}
	return nil
}

func prefValidationError(field, message string) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}

// GetPreference returns the user's preference record, or the defaults if
// the user has never saved any.
func (ds *DataStore) GetPreference(userID uint) (*NotificationPreference, error) {
	var pref NotificationPreference
	err := ds.DB.Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultPreference(userID), nil
	}
	if err != nil {
		return nil, dbError(err, "get_preference")
	}
	return &pref, nil
}

// UpsertPreference creates or replaces the user's preference singleton.
// LastDigestAt is preserved across upserts; it belongs to the digest
// scheduler, not the user.
func (ds *DataStore) UpsertPreference(pref *NotificationPreference) error {
	if err := ValidatePreference(pref); err != nil {
		return err
	}
	err := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email_enabled",
			"email_digest_enabled",
			"in_app_enabled",
			"digest_frequency_hours",
			"quiet_hours_enabled",
			"quiet_hours_start",
			"quiet_hours_end",
			"min_severity",
			"updated_at",
		}),
	}).Create(pref).Error
	if err != nil {
		return dbError(err, "upsert_preference")
	}
	return nil
}

// SetLastDigestAt records when the user's digest was last flushed.
func (ds *DataStore) SetLastDigestAt(userID uint, at time.Time) error {
	err := ds.DB.Model(&NotificationPreference{}).
		Where("user_id = ?", userID).
		Update("last_digest_at", at).Error
	if err != nil {
		return dbError(err, "set_last_digest_at")
	}
	return nil
}

// DigestCandidates returns the preference rows of users who have digest
// email enabled.
func (ds *DataStore) DigestCandidates() ([]NotificationPreference, error) {
	var prefs []NotificationPreference
	err := ds.DB.Where("email_digest_enabled = ?", true).Find(&prefs).Error
	if err != nil {
		return nil, dbError(err, "digest_candidates")
	}
	return prefs, nil
}
