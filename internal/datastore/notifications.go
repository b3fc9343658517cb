package datastore

import (
	"time"

	"github.com/google/uuid"
)

// CreateNotification persists a notification. An ID is assigned if the
// caller did not set one; status defaults to unread.
func (ds *DataStore) CreateNotification(notification *Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.Status == "" {
		notification.Status = NotificationUnread
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	if err := ds.DB.Create(notification).Error; err != nil {
		return dbError(err, "create_notification")
	}
	return nil
}

// ListNotifications returns the user's notifications, optionally filtered
// by status, newest first. Archived notifications are excluded from the
// unfiltered listing.
func (ds *DataStore) ListNotifications(userID uint, status NotificationStatus) ([]Notification, error) {
	query := ds.DB.Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status <> ?", NotificationArchived)
	}

	var notifications []Notification
	if err := query.Order("created_at DESC").Find(&notifications).Error; err != nil {
		return nil, dbError(err, "list_notifications")
	}
	return notifications, nil
}

// CountUnreadNotifications returns the user's unread notification count.
func (ds *DataStore) CountUnreadNotifications(userID uint) (int64, error) {
	var count int64
	err := ds.DB.Model(&Notification{}).
		Where("user_id = ? AND status = ?", userID, NotificationUnread).
		Count(&count).Error
	if err != nil {
		return 0, dbError(err, "count_unread")
	}
	return count, nil
}

// MarkNotificationRead transitions one notification to read. Marking an
// already read notification is a no-op.
func (ds *DataStore) MarkNotificationRead(userID uint, id string) error {
	result := ds.DB.Model(&Notification{}).
		Where("id = ? AND user_id = ? AND status = ?", id, userID, NotificationUnread).
		Update("status", NotificationRead)
	if result.Error != nil {
		return dbError(result.Error, "mark_read")
	}
	if result.RowsAffected == 0 {
		// Distinguish missing from already-read for a correct 404.
		var count int64
		if err := ds.DB.Model(&Notification{}).
			Where("id = ? AND user_id = ?", id, userID).
			Count(&count).Error; err != nil {
			return dbError(err, "mark_read")
		}
		if count == 0 {
			return ErrNotificationNotFound
		}
	}
	return nil
}

// MarkAllNotificationsRead transitions all of the user's unread
// notifications to read.
func (ds *DataStore) MarkAllNotificationsRead(userID uint) error {
	err := ds.DB.Model(&Notification{}).
		Where("user_id = ? AND status = ?", userID, NotificationUnread).
		Update("status", NotificationRead).Error
	if err != nil {
		return dbError(err, "mark_all_read")
	}
	return nil
}

// DeleteNotification archives a notification. Archived rows stay in the
// store for the audit trail but leave every listing.
func (ds *DataStore) DeleteNotification(userID uint, id string) error {
	result := ds.DB.Model(&Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("status", NotificationArchived)
	if result.Error != nil {
		return dbError(result.Error, "delete_notification")
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// PendingDigestNotifications returns the user's email_digest notifications
// that have not been flushed into a digest yet, oldest first.
func (ds *DataStore) PendingDigestNotifications(userID uint) ([]Notification, error) {
	var notifications []Notification
	err := ds.DB.
		Where("user_id = ? AND channel = ? AND delivered_at IS NULL", userID, ChannelEmailDigest).
		Order("created_at ASC").
		Find(&notifications).Error
	if err != nil {
		return nil, dbError(err, "pending_digest")
	}
	return notifications, nil
}

// MarkDigestDelivered stamps the given digest notifications as delivered.
func (ds *DataStore) MarkDigestDelivered(ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	err := ds.DB.Model(&Notification{}).
		Where("id IN ?", ids).
		Update("delivered_at", at).Error
	if err != nil {
		return dbError(err, "mark_digest_delivered")
	}
	return nil
}
