// Package api provides the JSON REST surface of the alert engine: rule
// management, trigger workflow, the notification inbox, delivery
// preferences and the dashboard summary.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/windwatch/windwatch-go/internal/api/v2/auth"
	"github.com/windwatch/windwatch-go/internal/conf"
	"github.com/windwatch/windwatch-go/internal/datastore"
	"github.com/windwatch/windwatch-go/internal/errors"
	"github.com/windwatch/windwatch-go/internal/logging"
	"github.com/windwatch/windwatch-go/internal/observability"
)

// Controller owns the echo instance and all route handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	authService auth.Service
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// New creates the API controller and registers all routes. The metrics
// parameter may be nil in tests.
func New(settings *conf.Settings, ds datastore.Interface, authService auth.Service, metrics *observability.Metrics) *Controller {
	logger := logging.ForService("api")
	if logger == nil {
		logger = slog.Default().With("service", "api")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:        e,
		DS:          ds,
		Settings:    settings,
		authService: authService,
		metrics:     metrics,
		logger:      logger,
	}

	c.initRoutes()
	return c
}

// initRoutes mounts the unauthenticated endpoints at the root and every
// resource route under the configured base path behind bearer auth.
func (c *Controller) initRoutes() {
	c.Echo.GET("/health", c.Health)
	c.Echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
		c.metricsRegistry(), promhttp.HandlerOpts{})))

	basePath := c.Settings.HTTP.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}

	c.Echo.POST(basePath+"/auth/login", c.Login)

	c.Group = c.Echo.Group(basePath, auth.Middleware(c.authService))
	c.Group.POST("/auth/logout", c.Logout)

	c.Group.GET("/alert-rules", c.ListRules)
	c.Group.POST("/alert-rules", c.CreateRule)
	c.Group.GET("/alert-rules/:id", c.GetRule)
	c.Group.PUT("/alert-rules/:id", c.UpdateRule)
	c.Group.PATCH("/alert-rules/:id/toggle", c.ToggleRule)
	c.Group.DELETE("/alert-rules/:id", c.DeleteRule)

	c.Group.GET("/alert-triggers", c.ListTriggers)
	c.Group.POST("/alert-triggers/:id/acknowledge", c.AcknowledgeTrigger)
	c.Group.POST("/alert-triggers/:id/resolve", c.ResolveTrigger)

	c.Group.GET("/notifications", c.ListNotifications)
	c.Group.PATCH("/notifications/read-all", c.MarkAllNotificationsRead)
	c.Group.PATCH("/notifications/:id/read", c.MarkNotificationRead)
	c.Group.DELETE("/notifications/:id", c.DeleteNotification)

	c.Group.GET("/notification-preferences", c.GetPreferences)
	c.Group.PUT("/notification-preferences", c.UpdatePreferences)

	c.Group.GET("/alerts/summary", c.AlertSummary)
}

// Start runs the HTTP server until it fails or is shut down.
func (c *Controller) Start() error {
	addr := fmt.Sprintf("%s:%d", c.Settings.HTTP.Host, c.Settings.HTTP.Port)
	c.logger.Info("http server starting", "addr", addr)
	if err := c.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("addr", addr).
			Build()
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.logger.Info("http server shutting down")
	return c.Echo.Shutdown(ctx)
}

// Health reports liveness.
func (c *Controller) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (c *Controller) metricsRegistry() *prometheus.Registry {
	if c.metrics != nil {
		return c.metrics.Registry()
	}
	return observability.NewMetrics().Registry()
}

// fieldError is one entry in a validation failure response.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// HandleError maps a store or engine error onto an HTTP response.
// Validation failures carry per-field details so the dashboard can
// highlight the offending input.
func (c *Controller) HandleError(ctx echo.Context, err error, fallback string) error {
	status := http.StatusInternalServerError
	message := fallback

	var enhanced *errors.EnhancedError
	if errors.As(err, &enhanced) {
		message = enhanced.Error()
		switch enhanced.Category {
		case errors.CategoryValidation:
			field := "request"
			if f, ok := enhanced.Context["field"].(string); ok {
				field = f
			}
			return ctx.JSON(http.StatusUnprocessableEntity, map[string]any{
				"error":   "validation failed",
				"details": []fieldError{{Field: field, Message: enhanced.Error()}},
			})
		case errors.CategoryNotFound:
			status = http.StatusNotFound
		case errors.CategoryState, errors.CategoryConflict:
			status = http.StatusConflict
		case errors.CategoryAuth:
			status = http.StatusUnauthorized
		default:
			// Don't leak internals on 500s.
			message = fallback
		}
	}

	if status == http.StatusInternalServerError {
		c.logger.Error("request failed", "path", ctx.Path(), "error", err)
	}
	return ctx.JSON(status, map[string]string{"error": message})
}

// pathID parses the numeric :id path parameter.
func pathID(ctx echo.Context) (uint, error) {
	var id uint
	if _, err := fmt.Sscanf(ctx.Param("id"), "%d", &id); err != nil {
		return 0, errors.Newf("invalid id %q", ctx.Param("id")).
			Component("api").
			Category(errors.CategoryValidation).
			Context("field", "id").
			Build()
	}
	return id, nil
}
