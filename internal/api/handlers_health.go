// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HandleHealth returns server health status. The server reports "starting"
// until a session exists.
func (h *Handler) HandleHealth(c echo.Context) error {
	sess, err := h.sessions.Current()
	if err != nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "starting",
			"version": h.version,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"session": sess.Info(),
	})
}
