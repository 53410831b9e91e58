package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/internal/search"
)

type SearchHandler struct {
	service *search.Service
}

func NewSearchHandler(service *search.Service) *SearchHandler {
	return &SearchHandler{service: service}
}

func (h *SearchHandler) OneWay(c echo.Context) error {
	return serve(c, h.service.OneWay)
}

func (h *SearchHandler) RoundTrip(c echo.Context) error {
	return serve(c, h.service.RoundTrip)
}

func (h *SearchHandler) MultiCity(c echo.Context) error {
	return serve(c, h.service.MultiCity)
}

func (h *SearchHandler) DateRange(c echo.Context) error {
	return serve(c, h.service.DateRange)
}

func (h *SearchHandler) CompareAirports(c echo.Context) error {
	return serve(c, h.service.CompareAirports)
}

func (h *SearchHandler) CompareTripTypes(c echo.Context) error {
	return serve(c, h.service.CompareOneWayVsRoundTrip)
}

func (h *SearchHandler) ConfirmPrice(c echo.Context) error {
	return serve(c, h.service.ConfirmPrice)
}

// serve binds the JSON body into Req, runs op with the request id attached
// and writes either the response or a mapped error.
func serve[Req, Resp any](c echo.Context, op func(context.Context, *Req) (Resp, error)) error {
	var req Req
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:       "invalid_request",
			Message:     "Failed to parse request body: " + err.Error(),
			Code:        http.StatusBadRequest,
			Remediation: "send a JSON body matching the endpoint's request schema",
		})
	}

	ctx := search.WithRequestID(c.Request().Context(), requestID(c))
	resp, err := op(ctx, &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

func requestID(c echo.Context) string {
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
