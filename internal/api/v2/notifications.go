package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/windwatch/windwatch-go/internal/api/v2/auth"
	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/errors"
)

// notificationResponse is the JSON shape of an in-app notification.
type notificationResponse struct {
	ID          string  `json:"id"`
	TriggerID   *uint   `json:"trigger_id,omitempty"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	Severity    string  `json:"severity"`
	Channel     string  `json:"channel"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	DeliveredAt *string `json:"delivered_at,omitempty"`
}

func toNotificationResponse(n *datastore.Notification) notificationResponse {
	return notificationResponse{
		ID:          n.ID,
		TriggerID:   n.TriggerID,
		Title:       n.Title,
		Message:     n.Message,
		Severity:    string(n.Severity),
		Channel:     string(n.Channel),
		Status:      string(n.Status),
		CreatedAt:   formatTime(n.CreatedAt),
		DeliveredAt: formatTimePtr(n.DeliveredAt),
	}
}

// ListNotifications returns the caller's notification inbox with the
// unread count. The optional status query parameter filters by read
// state; without it, archived entries are excluded.
func (c *Controller) ListNotifications(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)

	status := datastore.NotificationStatus(ctx.QueryParam("status"))
	if status != "" && status != datastore.NotificationUnread &&
		status != datastore.NotificationRead && status != datastore.NotificationArchived {
		return c.HandleError(ctx, errors.Newf("unknown notification status: %s", status).
			Component("api").
			Category(errors.CategoryValidation).
			Context("field", "status").
			Build(), "invalid status filter")
	}

	notifications, err := c.DS.ListNotifications(principal.UserID, status)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list notifications")
	}
	unread, err := c.DS.CountUnreadNotifications(principal.UserID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to count unread notifications")
	}

	out := make([]notificationResponse, 0, len(notifications))
	for i := range notifications {
		out = append(out, toNotificationResponse(&notifications[i]))
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"notifications": out,
		"unread_count":  unread,
	})
}

// MarkNotificationRead marks one notification as read. Repeating the
// call is a no-op.
func (c *Controller) MarkNotificationRead(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)
	id := ctx.Param("id")

	if err := c.DS.MarkNotificationRead(principal.UserID, id); err != nil {
		return c.HandleError(ctx, err, "failed to mark notification read")
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "read"})
}

// MarkAllNotificationsRead marks every unread notification of the
// caller as read.
func (c *Controller) MarkAllNotificationsRead(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)

	if err := c.DS.MarkAllNotificationsRead(principal.UserID); err != nil {
		return c.HandleError(ctx, err, "failed to mark notifications read")
	}

	unread, err := c.DS.CountUnreadNotifications(principal.UserID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to count unread notifications")
	}
	return ctx.JSON(http.StatusOK, map[string]any{"unread_count": unread})
}

// DeleteNotification removes a notification from the inbox.
func (c *Controller) DeleteNotification(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)
	id := ctx.Param("id")

	if err := c.DS.DeleteNotification(principal.UserID, id); err != nil {
		return c.HandleError(ctx, err, "failed to delete notification")
	}
	return ctx.NoContent(http.StatusNoContent)
}
