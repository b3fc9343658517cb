package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/windwatch/windwatch-go/internal/errors"
)

// loginRequest is the JSON body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for a bearer token.
func (c *Controller) Login(ctx echo.Context) error {
	var req loginRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequestBody(err), "invalid request body")
	}
	if req.Username == "" || req.Password == "" {
		return c.HandleError(ctx, errors.Newf("username and password are required").
			Component("api").
			Category(errors.CategoryValidation).
			Context("field", "username").
			Build(), "invalid credentials")
	}

	token, principal, err := c.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryAuth) {
			return ctx.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid credentials",
			})
		}
		return c.HandleError(ctx, err, "login failed")
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"token":    token,
		"username": principal.Username,
	})
}

// Logout revokes the caller's bearer token.
func (c *Controller) Logout(ctx echo.Context) error {
	header := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
		c.authService.Revoke(token)
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "logged out"})
}
