package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/windwatch/windwatch-go/internal/api/v2/auth"
	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/errors"
)

// ruleRequest is the JSON body for creating or replacing an alert rule.
type ruleRequest struct {
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	Metric              string   `json:"metric"`
	Condition           string   `json:"condition"`
	ThresholdValue      float64  `json:"threshold_value"`
	ThresholdValueUpper *float64 `json:"threshold_value_upper"`
	Scope               string   `json:"scope"`
	WindfarmID          *uint    `json:"windfarm_id"`
	PortfolioID         *uint    `json:"portfolio_id"`
	Severity            string   `json:"severity"`
	SustainedMinutes    int      `json:"sustained_minutes"`
	Channels            []string `json:"channels"`
	IsEnabled           *bool    `json:"is_enabled"`
}

// ruleResponse is the JSON shape of an alert rule.
type ruleResponse struct {
	ID                  uint     `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	Metric              string   `json:"metric"`
	Condition           string   `json:"condition"`
	ThresholdValue      float64  `json:"threshold_value"`
	ThresholdValueUpper *float64 `json:"threshold_value_upper,omitempty"`
	Scope               string   `json:"scope"`
	WindfarmID          *uint    `json:"windfarm_id,omitempty"`
	PortfolioID         *uint    `json:"portfolio_id,omitempty"`
	Severity            string   `json:"severity"`
	SustainedMinutes    int      `json:"sustained_minutes"`
	Channels            []string `json:"channels"`
	IsEnabled           bool     `json:"is_enabled"`
	CreatedAt           string   `json:"created_at"`
	UpdatedAt           string   `json:"updated_at"`
}

func toRuleResponse(rule *datastore.AlertRule) ruleResponse {
	channels := make([]string, 0, 3)
	for _, ch := range rule.Channels() {
		channels = append(channels, string(ch))
	}
	return ruleResponse{
		ID:                  rule.ID,
		Name:                rule.Name,
		Description:         rule.Description,
		Metric:              string(rule.Metric),
		Condition:           string(rule.Condition),
		ThresholdValue:      rule.ThresholdValue,
		ThresholdValueUpper: rule.ThresholdValueUpper,
		Scope:               string(rule.Scope),
		WindfarmID:          rule.WindfarmID,
		PortfolioID:         rule.PortfolioID,
		Severity:            string(rule.Severity),
		SustainedMinutes:    rule.SustainedMinutes,
		Channels:            channels,
		IsEnabled:           rule.IsEnabled,
		CreatedAt:           rule.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		UpdatedAt:           rule.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// toRule builds the persistent rule from a request body. Channel names
// are validated here; everything else is validated by the store.
func (req *ruleRequest) toRule(userID uint) (*datastore.AlertRule, error) {
	channels, err := datastore.ParseChannels(req.Channels)
	if err != nil {
		return nil, err
	}

	rule := &datastore.AlertRule{
		UserID:              userID,
		Name:                req.Name,
		Description:         req.Description,
		Metric:              datastore.Metric(req.Metric),
		Condition:           datastore.Condition(req.Condition),
		ThresholdValue:      req.ThresholdValue,
		ThresholdValueUpper: req.ThresholdValueUpper,
		Scope:               datastore.Scope(req.Scope),
		WindfarmID:          req.WindfarmID,
		PortfolioID:         req.PortfolioID,
		Severity:            datastore.Severity(req.Severity),
		SustainedMinutes:    req.SustainedMinutes,
		IsEnabled:           true,
	}
	rule.SetChannels(channels)
	if req.IsEnabled != nil {
		rule.IsEnabled = *req.IsEnabled
	}
	return rule, nil
}

// ListRules returns the caller's alert rules, newest first.
func (c *Controller) ListRules(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)
	rules, err := c.DS.ListRules(principal.UserID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to list alert rules")
	}

	out := make([]ruleResponse, 0, len(rules))
	for i := range rules {
		out = append(out, toRuleResponse(&rules[i]))
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"rules": out,
		"total": len(out),
	})
}

// CreateRule validates and persists a new alert rule.
func (c *Controller) CreateRule(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)

	var req ruleRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequestBody(err), "invalid request body")
	}

	rule, err := req.toRule(principal.UserID)
	if err != nil {
		return c.HandleError(ctx, err, "invalid alert rule")
	}
	if err := c.DS.CreateRule(rule); err != nil {
		return c.HandleError(ctx, err, "failed to create alert rule")
	}

	c.logger.Info("alert rule created", "rule_id", rule.ID, "user_id", principal.UserID, "metric", rule.Metric)
	return ctx.JSON(http.StatusCreated, toRuleResponse(rule))
}

// GetRule returns one of the caller's rules by id.
func (c *Controller) GetRule(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid rule id")
	}

	rule, err := c.DS.GetRule(principal.UserID, id)
	if err != nil {
		return c.HandleError(ctx, err, "failed to get alert rule")
	}
	return ctx.JSON(http.StatusOK, toRuleResponse(rule))
}

// UpdateRule replaces an existing rule with the request body.
func (c *Controller) UpdateRule(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid rule id")
	}

	var req ruleRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequestBody(err), "invalid request body")
	}

	rule, err := req.toRule(principal.UserID)
	if err != nil {
		return c.HandleError(ctx, err, "invalid alert rule")
	}
	rule.ID = id
	if err := c.DS.UpdateRule(rule); err != nil {
		return c.HandleError(ctx, err, "failed to update alert rule")
	}

	updated, err := c.DS.GetRule(principal.UserID, id)
	if err != nil {
		return c.HandleError(ctx, err, "failed to load updated rule")
	}
	return ctx.JSON(http.StatusOK, toRuleResponse(updated))
}

// ToggleRule flips a rule's enabled flag and returns the updated rule.
func (c *Controller) ToggleRule(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid rule id")
	}

	rule, err := c.DS.ToggleRule(principal.UserID, id)
	if err != nil {
		return c.HandleError(ctx, err, "failed to toggle alert rule")
	}

	c.logger.Info("alert rule toggled", "rule_id", id, "enabled", rule.IsEnabled)
	return ctx.JSON(http.StatusOK, toRuleResponse(rule))
}

// DeleteRule removes a rule and its triggers.
func (c *Controller) DeleteRule(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "invalid rule id")
	}

	if err := c.DS.DeleteRule(principal.UserID, id); err != nil {
		return c.HandleError(ctx, err, "failed to delete alert rule")
	}

	c.logger.Info("alert rule deleted", "rule_id", id, "user_id", principal.UserID)
	return ctx.NoContent(http.StatusNoContent)
}

// badRequestBody wraps a body decoding failure as a validation error.
func badRequestBody(err error) error {
	return errors.New(err).
		Component("api").
		Category(errors.CategoryValidation).
		Context("field", "body").
		Build()
}
