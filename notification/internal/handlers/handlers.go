package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ConsumerStatus reports consumers that stopped for good.
type ConsumerStatus interface {
	FailedConsumers() []string
}

// RegisterRoutes adds the health and metrics routes. The notification
// service has no other HTTP surface.
func RegisterRoutes(e *echo.Echo, consumers ConsumerStatus) {
	e.GET("/notification-health", func(c echo.Context) error {
		if failed := consumers.FailedConsumers(); len(failed) > 0 {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":          "degraded",
				"failedConsumers": failed,
				"time":            time.Now().Format(time.RFC3339),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}
