package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/windwatch/windwatch-go/internal/api/v2/auth"
	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/errors"
)

// triggerResponse is the JSON shape of an alert trigger.
type triggerResponse struct {
	ID             uint    `json:"id"`
	RuleID         uint    `json:"rule_id"`
	WindfarmID     uint    `json:"windfarm_id"`
	WindfarmName   string  `json:"windfarm_name,omitempty"`
	TriggeredValue float64 `json:"triggered_value"`
	ThresholdValue float64 `json:"threshold_value"`
	Status         string  `json:"status"`
	TriggeredAt    string  `json:"triggered_at"`
	AcknowledgedAt *string `json:"acknowledged_at,omitempty"`
	ResolvedAt     *string `json:"resolved_at,omitempty"`
}

func toTriggerResponse(trigger *datastore.AlertTrigger, windfarmName string) triggerResponse {
	return triggerResponse{
		ID:             trigger.ID,
		RuleID:         trigger.RuleID,
		WindfarmID:     trigger.WindfarmID,
		WindfarmName:   windfarmName,
		TriggeredValue: trigger.TriggeredValue,
		ThresholdValue: trigger.ThresholdValue,
		Status:         string(trigger.Status),
		TriggeredAt:    formatTime(trigger.TriggeredAt),
		AcknowledgedAt: formatTimePtr(trigger.AcknowledgedAt),
		ResolvedAt:     formatTimePtr(trigger.ResolvedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// windfarmNames resolves display names for a trigger list, one lookup
// per distinct windfarm.
func (c *Controller) windfarmNames(triggers []datastore.AlertTrigger) map[uint]string {
	names := make(map[uint]string)
	for i := range triggers {
		id := triggers[i].WindfarmID
		if _, done := names[id]; done {
			continue
		}
		farm, err := c.DS.GetWindfarm(id)
		if err != nil {
			names[id] = ""
			continue
		}
		names[id] = farm.Name
	}
	return names
}

// ListTriggers returns the caller's triggers with workload counts. The
// optional status query parameter filters by lifecycle state.
func (c *Controller) ListTriggers(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)

	status := datastore.TriggerStatus(ctx.QueryParam("status"))
	if status != "" && status != datastore.TriggerActive &&
		status != datastore.TriggerAcknowledged && status != datastore.TriggerResolved {
		return c.HandleError(ctx, errors.Newf("unknown trigger status: %s", status).
			Component("api").
			Category(errors.CategoryValidation).
			Context("field", "status").
			Build(), "invalid status filter")
	}

	triggers, err := c.DS.ListTriggers(principal.UserID, status)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list alert triggers")
	}
	active, acknowledged, err := c.DS.CountTriggersByStatus(principal.UserID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to count alert triggers")
	}

	names := c.windfarmNames(triggers)
	out := make([]triggerResponse, 0, len(triggers))
	for i := range triggers {
		out = append(out, toTriggerResponse(&triggers[i], names[triggers[i].WindfarmID]))
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"triggers":           out,
		"active_count":       active,
		"acknowledged_count": acknowledged,
	})
}

// AcknowledgeTrigger marks an active trigger as acknowledged.
// Acknowledging an acknowledged trigger is a no-op; acknowledging a
// resolved one is a state conflict.
func (c *Controller) AcknowledgeTrigger(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid trigger id")
	}

	trigger, err := c.DS.AcknowledgeTrigger(principal.UserID, id)
	if err != nil {
		return c.HandleError(ctx, err, "failed to acknowledge trigger")
	}

	c.logger.Info("trigger acknowledged", "trigger_id", id, "user_id", principal.UserID)
	name := ""
	if farm, err := c.DS.GetWindfarm(trigger.WindfarmID); err == nil {
		name = farm.Name
	}
	return ctx.JSON(http.StatusOK, toTriggerResponse(trigger, name))
}

// ResolveTrigger manually resolves a trigger. Resolving an already
// resolved trigger returns the trigger unchanged.
func (c *Controller) ResolveTrigger(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid trigger id")
	}

	trigger, err := c.DS.ResolveTrigger(principal.UserID, id, time.Now())
	if err != nil {
		return c.HandleError(ctx, err, "failed to resolve trigger")
	}

	c.logger.Info("trigger resolved", "trigger_id", id, "user_id", principal.UserID)
	name := ""
	if farm, err := c.DS.GetWindfarm(trigger.WindfarmID); err == nil {
		name = farm.Name
	}
	return ctx.JSON(http.StatusOK, toTriggerResponse(trigger, name))
}
