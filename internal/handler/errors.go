package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/flightquery/internal/governor"
	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/internal/orchestrator"
	"github.com/dharmasatrya/flightquery/internal/pricing"
	"github.com/dharmasatrya/flightquery/internal/providers"
	"github.com/dharmasatrya/flightquery/internal/search"
)

// errorResponse maps a service error onto the API's error body.
func errorResponse(err error) models.ErrorResponse {
	var (
		validation models.ValidationError
		tooLarge   *governor.BatchTooLargeError
		missing    *pricing.MissingFieldsError
		exhausted  *orchestrator.ExhaustedError
	)

	switch {
	case errors.As(err, &validation):
		return models.ErrorResponse{
			Error:       "validation_error",
			Message:     err.Error(),
			Code:        http.StatusBadRequest,
			Remediation: "fix the request fields named in the message",
		}
	case errors.As(err, &tooLarge):
		return models.ErrorResponse{
			Error:       "batch_too_large",
			Message:     err.Error(),
			Code:        http.StatusUnprocessableEntity,
			Remediation: tooLarge.Remediation,
			Details: map[string]any{
				"kind":      string(tooLarge.Kind),
				"requested": tooLarge.Requested,
				"ceiling":   tooLarge.Ceiling,
				"total":     tooLarge.Total,
			},
		}
	case errors.As(err, &missing):
		return models.ErrorResponse{
			Error:       "sanitization_failed",
			Message:     err.Error(),
			Code:        http.StatusUnprocessableEntity,
			Remediation: missing.Hint,
			Details:     map[string]any{"missing": missing.Missing},
		}
	case errors.Is(err, pricing.ErrInvalidPayload), errors.Is(err, pricing.ErrWrongSource):
		return models.ErrorResponse{
			Error:       "sanitization_failed",
			Message:     err.Error(),
			Code:        http.StatusUnprocessableEntity,
			Remediation: "send a flight returned by an amadeus search, unmodified",
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return models.ErrorResponse{
			Error:       "request_cancelled",
			Message:     err.Error(),
			Code:        http.StatusRequestTimeout,
			Remediation: "retry the request",
		}
	case errors.Is(err, orchestrator.ErrNoSources), errors.Is(err, search.ErrPricingUnavailable):
		resp := models.ErrorResponse{
			Error:       "service_unavailable",
			Message:     err.Error(),
			Code:        http.StatusServiceUnavailable,
			Remediation: "configure at least one source for this operation",
		}
		if errors.As(err, &exhausted) {
			resp.GoogleFlightsURL = exhausted.DeepLink
		}
		return resp
	}

	resp := sourceError(providers.Classify(err), err)
	if errors.As(err, &exhausted) {
		resp.GoogleFlightsURL = exhausted.DeepLink
		resp.Details = map[string]any{"source": exhausted.Source, "attempts": exhausted.Attempts}
	}
	return resp
}

func sourceError(kind providers.Kind, err error) models.ErrorResponse {
	resp := models.ErrorResponse{Message: err.Error()}
	switch kind {
	case providers.KindRateLimited:
		resp.Error = "rate_limited"
		resp.Code = http.StatusTooManyRequests
		resp.Remediation = "wait before retrying or use the Google Flights link"
	case providers.KindAuth:
		resp.Error = "auth_required"
		resp.Code = http.StatusBadGateway
		resp.Remediation = "check the source credentials configured on the server"
	case providers.KindUnsupported:
		resp.Error = "unsupported_trip_kind"
		resp.Code = http.StatusBadGateway
		resp.Remediation = "search the legs separately or use the Google Flights link"
	default:
		resp.Error = "upstream_error"
		resp.Code = http.StatusBadGateway
		resp.Remediation = "retry later or use the Google Flights link"
	}
	return resp
}

func writeError(c echo.Context, err error) error {
	resp := errorResponse(err)
	if resp.Code >= http.StatusInternalServerError {
		log.Printf("[handler] %s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(resp.Code, resp)
}
