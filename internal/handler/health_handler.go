package handler

import (
	"net/http"

	"projecthub-service/pkg/database"
	"projecthub-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Health reports whether the database is reachable
func (h *Handler) Health(c echo.Context) error {
	if err := database.Ping(h.db); err != nil {
		logger.FromEcho(c).Error("Health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Message: "Database unavailable",
			Data:    echo.Map{"status": "unavailable", "database": "disconnected"},
		})
	}
	return ok(c, http.StatusOK, "", echo.Map{"status": "ok", "database": "connected"})
}
