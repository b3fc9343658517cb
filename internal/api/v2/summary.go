package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/windwatch/windwatch-go/internal/api/v2/auth"
)

// recentTriggerLimit caps the dashboard's recent trigger list.
const recentTriggerLimit = 10

// AlertSummary returns the dashboard header counts and the most recent
// triggers.
func (c *Controller) AlertSummary(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)

	active, acknowledged, err := c.DS.CountTriggersByStatus(principal.UserID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to count alert triggers")
	}
	unread, err := c.DS.CountUnreadNotifications(principal.UserID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to count unread notifications")
	}
	rules, err := c.DS.ListRules(principal.UserID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list alert rules")
	}
	recent, err := c.DS.RecentTriggers(principal.UserID, recentTriggerLimit)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list recent triggers")
	}

	enabled := 0
	for i := range rules {
		if rules[i].IsEnabled {
			enabled++
		}
	}

	names := c.windfarmNames(recent)
	recentOut := make([]triggerResponse, 0, len(recent))
	for i := range recent {
		recentOut = append(recentOut, toTriggerResponse(&recent[i], names[recent[i].WindfarmID]))
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"active_count":         active,
		"acknowledged_count":   acknowledged,
		"unread_notifications": unread,
		"total_rules":          len(rules),
		"enabled_rules":        enabled,
		"recent_triggers":      recentOut,
	})
}
