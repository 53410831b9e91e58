package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/flightquery/internal/metrics"
)

// Register mounts the API on e. registry may be nil, in which case /metrics
// is not served.
func Register(e *echo.Echo, h *SearchHandler, registry *metrics.Registry) {
	api := e.Group("/api/v1")
	api.POST("/flights/one-way", h.OneWay)
	api.POST("/flights/round-trip", h.RoundTrip)
	api.POST("/flights/multi-city", h.MultiCity)
	api.POST("/flights/date-range", h.DateRange)
	api.POST("/flights/compare-airports", h.CompareAirports)
	api.POST("/flights/compare-trip-types", h.CompareTripTypes)
	api.POST("/offers/price", h.ConfirmPrice)

	e.GET("/health", HealthHandler)
	if registry != nil {
		e.GET("/metrics", echo.WrapHandler(registry.Handler()))
	}
}
