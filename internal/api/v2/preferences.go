package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/windwatch/windwatch-go/internal/api/v2/auth"
	"github.com/windwatch/windwatch-go/internal/datastore"
)

// preferenceRequest is the JSON body for replacing delivery preferences.
type preferenceRequest struct {
	EmailEnabled         bool   `json:"email_enabled"`
	EmailDigestEnabled   bool   `json:"email_digest_enabled"`
	InAppEnabled         bool   `json:"in_app_enabled"`
	DigestFrequencyHours int    `json:"digest_frequency_hours"`
	QuietHoursEnabled    bool   `json:"quiet_hours_enabled"`
	QuietHoursStart      int    `json:"quiet_hours_start"`
	QuietHoursEnd        int    `json:"quiet_hours_end"`
	MinSeverity          string `json:"min_severity"`
}

// preferenceResponse is the JSON shape of delivery preferences.
type preferenceResponse struct {
	EmailEnabled         bool    `json:"email_enabled"`
	EmailDigestEnabled   bool    `json:"email_digest_enabled"`
	InAppEnabled         bool    `json:"in_app_enabled"`
	DigestFrequencyHours int     `json:"digest_frequency_hours"`
	QuietHoursEnabled    bool    `json:"quiet_hours_enabled"`
	QuietHoursStart      int     `json:"quiet_hours_start"`
	QuietHoursEnd        int     `json:"quiet_hours_end"`
	MinSeverity          string  `json:"min_severity"`
	LastDigestAt         *string `json:"last_digest_at,omitempty"`
}

func toPreferenceResponse(pref *datastore.NotificationPreference) preferenceResponse {
	return preferenceResponse{
		EmailEnabled:         pref.EmailEnabled,
		EmailDigestEnabled:   pref.EmailDigestEnabled,
		InAppEnabled:         pref.InAppEnabled,
		DigestFrequencyHours: pref.DigestFrequencyHours,
		QuietHoursEnabled:    pref.QuietHoursEnabled,
		QuietHoursStart:      pref.QuietHoursStart,
		QuietHoursEnd:        pref.QuietHoursEnd,
		MinSeverity:          string(pref.MinSeverity),
		LastDigestAt:         formatTimePtr(pref.LastDigestAt),
	}
}

// GetPreferences returns the caller's delivery preferences, falling back
// to the defaults for users who never saved any.
func (c *Controller) GetPreferences(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)

	pref, err := c.DS.GetPreference(principal.UserID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to load notification preferences")
	}
	return ctx.JSON(http.StatusOK, toPreferenceResponse(pref))
}

// UpdatePreferences replaces the caller's delivery preferences.
func (c *Controller) UpdatePreferences(ctx echo.Context) error {
	principal := auth.PrincipalFrom(ctx)

	var req preferenceRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequestBody(err), "invalid request body")
	}

	// Keep the stored row id so the upsert replaces rather than inserts.
	current, err := c.DS.GetPreference(principal.UserID)
	if err != nil {
		return c.HandleError(ctx, err, "failed to load notification preferences")
	}

	pref := &datastore.NotificationPreference{
		ID:                   current.ID,
		UserID:               principal.UserID,
		EmailEnabled:         req.EmailEnabled,
		EmailDigestEnabled:   req.EmailDigestEnabled,
		InAppEnabled:         req.InAppEnabled,
		DigestFrequencyHours: req.DigestFrequencyHours,
		QuietHoursEnabled:    req.QuietHoursEnabled,
		QuietHoursStart:      req.QuietHoursStart,
		QuietHoursEnd:        req.QuietHoursEnd,
		MinSeverity:          datastore.Severity(req.MinSeverity),
		LastDigestAt:         current.LastDigestAt,
	}
	if err := c.DS.UpsertPreference(pref); err != nil {
		return c.HandleError(ctx, err, "failed to save notification preferences")
	}

	c.logger.Info("notification preferences updated", "user_id", principal.UserID)
	return ctx.JSON(http.StatusOK, toPreferenceResponse(pref))
}
