package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/labstack/echo/v4"
)

func eligibilityHandler(elig EligibilityChecker) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := providerID(c)
		if !ok {
			return badRequest(c, "invalid provider id")
		}
		v := elig.Check(c.Request().Context(), id)
		return c.JSON(http.StatusOK, map[string]any{
			"provider_id": id,
			"eligible":    v.Eligible,
			"reason":      v.Reason,
		})
	}
}

func historyHandler(svc PayoutService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := providerID(c)
		if !ok {
			return badRequest(c, "invalid provider id")
		}

		q := model.HistoryQuery{ProviderID: id}
		if v := c.QueryParam("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return badRequest(c, "invalid limit")
			}
			q.Limit = n
		}
		if v := c.QueryParam("offset"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return badRequest(c, "invalid offset")
			}
			q.Offset = n
		}
		if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
			q.Status = model.PayoutStatus(raw)
		}

		hist, err := svc.GetProviderPayoutHistory(c.Request().Context(), q)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, hist)
	}
}

func balanceHandler(svc PayoutService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := providerID(c)
		if !ok {
			return badRequest(c, "invalid provider id")
		}
		bal, err := svc.GetProviderBalance(c.Request().Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, bal)
	}
}

func onboardingStatusHandler(svc PayoutService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := providerID(c)
		if !ok {
			return badRequest(c, "invalid provider id")
		}
		return c.JSON(http.StatusOK, map[string]any{
			"provider_id": id,
			"completed":   svc.HasCompletedOnboarding(c.Request().Context(), id),
		})
	}
}

func onboardingLinkHandler(svc PayoutService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := providerID(c)
		if !ok {
			return badRequest(c, "invalid provider id")
		}
		link, err := svc.CreateOnboardingLink(c.Request().Context(), id)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, link)
	}
}
