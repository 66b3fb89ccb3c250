package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health reports "ok" while ping succeeds. Used for /health.
func Health(ping func(ctx context.Context) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  "DB_UNREACHABLE",
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
		})
	}
}
