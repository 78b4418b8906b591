package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jmehdipour/payout-engine/internal/service/settlement"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// retryAfter is the hint sent with 503 responses for an open breaker.
const retryAfter = 60

func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not_found", "description": err.Error()})
	case errors.Is(err, settlement.ErrIneligible):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "provider_ineligible", "description": err.Error()})
	case errors.Is(err, settlement.ErrInvalid):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_request", "description": err.Error()})
	case errors.Is(err, settlement.ErrInProgress):
		return c.JSON(http.StatusConflict, map[string]string{"error": "settlement_in_progress"})
	case errors.Is(err, settlement.ErrBreakerOpen):
		c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "processor_unavailable"})
	case errors.Is(err, settlement.ErrUpstream):
		log.Errorf("processor error: %v", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "processor_error"})
	default:
		log.Errorf("request failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

func providerID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}
